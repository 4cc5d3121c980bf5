// Package conflicts detects catalog data-quality conflicts and maintains the
// per-store conflict flags that keep conflicting records out of sync.
package conflicts

import (
	"sort"

	"github.com/agentstation/brightsync/pkg/catalog"
)

// Kind classifies a conflict.
type Kind string

// Conflict kinds, in report order.
const (
	KindDuplicate        Kind = "duplicate"
	KindBadSKUChars      Kind = "bad_sku_chars"
	KindMissingSubSKU    Kind = "missing_sub_sku"
	KindMissingInventory Kind = "missing_inventory"
)

// Kinds lists every kind in report order.
var Kinds = []Kind{KindDuplicate, KindBadSKUChars, KindMissingSubSKU, KindMissingInventory}

func (k Kind) rank() int {
	for i, kind := range Kinds {
		if kind == k {
			return i
		}
	}
	return len(Kinds)
}

// Row is one line of a conflict report.
type Row struct {
	Kind      Kind              `json:"kind"`
	SKU       string            `json:"sku"`
	ProductID catalog.ProductID `json:"product_id"`
	Name      string            `json:"name"`
	Detail    string            `json:"detail"`
}

// SortRows orders rows by kind, SKU, product id and detail.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Kind != b.Kind {
			return a.Kind.rank() < b.Kind.rank()
		}
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		if a.ProductID != b.ProductID {
			return a.ProductID.Less(b.ProductID)
		}
		return a.Detail < b.Detail
	})
}

// CountByKind tallies rows per kind.
func CountByKind(rows []Row) map[Kind]int {
	counts := make(map[Kind]int, len(Kinds))
	for _, r := range rows {
		counts[r.Kind]++
	}
	return counts
}
