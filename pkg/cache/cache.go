// Package cache is the per-store change-detection cache. It remembers, per
// product, what the engine saw last time so unchanged products are skipped
// without fetching their detail.
package cache

import (
	"bytes"
	"encoding/json"
	"slices"
	"sort"

	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/tags"
)

// Entry is the cached state of one product.
type Entry struct {
	ID        catalog.ProductID `json:"id"`
	ParentSKU string            `json:"parent_sku"`
	UpdatedAt string            `json:"updated_at"`
	Active    bool              `json:"active"`
	Vendors   VendorSet         `json:"vendors"`
	FinalSKUs FinalSKUs         `json:"final_skus"`

	// TagSources holds, per final SKU, the tags the engine assigned and why.
	TagSources map[string]tags.Sources `json:"tag_sources,omitempty"`
}

// NewEntry builds an entry from a listing product and its resolved variants.
func NewEntry(p catalog.Product, parentSKU string, finalSKUs []string, sources map[string]tags.Sources) Entry {
	return Entry{
		ID:         p.ID,
		ParentSKU:  parentSKU,
		UpdatedAt:  p.UpdatedAt,
		Active:     p.IsActive(),
		Vendors:    VendorSet(p.VendorNames()),
		FinalSKUs:  FinalSKUs(slices.Clone(finalSKUs)),
		TagSources: sources,
	}
}

// Snapshot is a store's cache: product id → entry.
type Snapshot map[catalog.ProductID]Entry

// Has reports whether id has an entry.
func (s Snapshot) Has(id catalog.ProductID) bool {
	_, ok := s[id]
	return ok
}

// Unchanged reports whether p matches its cached entry: the entry exists, the
// update timestamps are equal and, when vendorSensitive, the vendor sets are equal.
func (s Snapshot) Unchanged(p catalog.Product, vendorSensitive bool) bool {
	entry, ok := s[p.ID]
	if !ok {
		return false
	}
	if !catalog.SameTimestamp(entry.UpdatedAt, p.UpdatedAt) {
		return false
	}
	if vendorSensitive && !slices.Equal(entry.Vendors.Sorted(), p.VendorNames()) {
		return false
	}
	return true
}

// Merge returns the union of s and updates; updates win on conflicts.
func (s Snapshot) Merge(updates Snapshot) Snapshot {
	out := make(Snapshot, len(s)+len(updates))
	for id, e := range s {
		out[id] = e
	}
	for id, e := range updates {
		out[id] = e
	}
	return out
}

// SKUOwners maps each non-empty cached parent SKU to the products carrying it.
func (s Snapshot) SKUOwners() map[string][]catalog.ProductID {
	owners := make(map[string][]catalog.ProductID)
	for id, e := range s {
		if e.ParentSKU == "" {
			continue
		}
		owners[e.ParentSKU] = append(owners[e.ParentSKU], id)
	}
	for sku := range owners {
		sort.Slice(owners[sku], func(i, j int) bool { return owners[sku][i].Less(owners[sku][j]) })
	}
	return owners
}

// VendorSet is a list of vendor names. It also decodes the older
// [{"name": ...}] shape.
type VendorSet []string

// UnmarshalJSON implements json.Unmarshaler.
func (v *VendorSet) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	names := make([]string, 0, len(raw))
	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			names = append(names, name)
			continue
		}
		var vendor catalog.Vendor
		if err := json.Unmarshal(item, &vendor); err != nil {
			return err
		}
		names = append(names, vendor.Name)
	}
	*v = names
	return nil
}

// Sorted returns the distinct non-empty names in sorted order.
func (v VendorSet) Sorted() []string {
	vendors := make([]catalog.Vendor, len(v))
	for i, name := range v {
		vendors[i] = catalog.Vendor{Name: name}
	}
	return catalog.VendorNames(vendors)
}

// FinalSKUs is a list of variant SKUs. It also decodes the older shape,
// a list of inventory rows.
type FinalSKUs []string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FinalSKUs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	skus := make([]string, 0, len(raw))
	for _, item := range raw {
		var sku string
		if err := json.Unmarshal(item, &sku); err == nil {
			skus = append(skus, sku)
			continue
		}
		var row catalog.InventoryRow
		if err := json.Unmarshal(item, &row); err != nil {
			return err
		}
		skus = append(skus, row.FinalSKU)
	}
	*f = skus
	return nil
}
