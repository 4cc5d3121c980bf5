package conflicts

import (
	"sort"

	"github.com/agentstation/brightsync/pkg/catalog"
)

// FlagEntry lists a store's SKUs and product ids currently in conflict.
type FlagEntry struct {
	SKUs        []string `json:"skus"`
	PIDs        []string `json:"pids"`
	LastChecked string   `json:"last_checked"`
}

// Empty reports whether the entry flags nothing.
func (e *FlagEntry) Empty() bool {
	return e == nil || (len(e.SKUs) == 0 && len(e.PIDs) == 0)
}

// NewFlagEntry derives the flag entry of a scan from its rows. It returns
// nil when there are no rows.
func NewFlagEntry(rows []Row, lastChecked string) *FlagEntry {
	if len(rows) == 0 {
		return nil
	}
	skus := make(map[string]struct{})
	pids := make(map[string]struct{})
	for _, r := range rows {
		if r.SKU != "" {
			skus[r.SKU] = struct{}{}
		}
		if r.ProductID != "" {
			pids[r.ProductID.String()] = struct{}{}
		}
	}
	entry := &FlagEntry{
		SKUs:        sortedKeys(skus, func(a, b string) bool { return a < b }),
		PIDs:        sortedKeys(pids, func(a, b string) bool { return catalog.ProductID(a).Less(catalog.ProductID(b)) }),
		LastChecked: lastChecked,
	}
	if entry.Empty() {
		return nil
	}
	return entry
}

func sortedKeys(m map[string]struct{}, less func(a, b string) bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Flags is the global mapping of store flag key → entry.
type Flags map[string]FlagEntry

// Apply replaces the entry of key, removing it when entry is empty.
// Other stores' entries are untouched.
func (f Flags) Apply(key string, entry *FlagEntry) {
	if entry.Empty() {
		delete(f, key)
		return
	}
	f[key] = *entry
}

// Set is a lookup view of one store's flags.
type Set struct {
	skus map[string]struct{}
	pids map[string]struct{}
}

// Lookup returns the flag set of key. Missing stores yield an empty set.
func (f Flags) Lookup(key string) Set {
	s := Set{skus: map[string]struct{}{}, pids: map[string]struct{}{}}
	entry, ok := f[key]
	if !ok {
		return s
	}
	for _, sku := range entry.SKUs {
		s.skus[sku] = struct{}{}
	}
	for _, pid := range entry.PIDs {
		s.pids[pid] = struct{}{}
	}
	return s
}

// Flagged reports whether a product is excluded by its SKU or id.
func (s Set) Flagged(sku string, id catalog.ProductID) bool {
	if _, ok := s.skus[sku]; ok && sku != "" {
		return true
	}
	_, ok := s.pids[id.String()]
	return ok
}

// Len returns the number of flagged SKUs and product ids.
func (s Set) Len() int {
	return len(s.skus) + len(s.pids)
}
