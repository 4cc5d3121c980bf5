// Package tags derives the fulfillment tag set of a sellable variant and
// tracks which tags the engine owns, so tags added by other systems or by
// hand survive reconciliation.
package tags

import (
	"sort"
	"strconv"

	"github.com/agentstation/brightsync/pkg/config"
	"github.com/agentstation/brightsync/pkg/filter"
)

// Reason prefixes recorded in Sources.
const (
	ReasonPrefix = "prefix:"
	ReasonVendor = "vendor"
)

// Set is a sorted, duplicate-free list of tag ids.
type Set []config.TagID

// NewSet builds a Set from ids.
func NewSet(ids ...config.TagID) Set {
	seen := make(map[config.TagID]struct{}, len(ids))
	out := make(Set, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether id is in the set.
func (s Set) Contains(id config.TagID) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	return i < len(s) && s[i] == id
}

// Refs renders the set as fulfillment tag references.
func (s Set) Refs() []Ref {
	refs := make([]Ref, len(s))
	for i, id := range s {
		refs[i] = Ref{TagID: id}
	}
	return refs
}

// Ref is the fulfillment platform's tag reference shape.
type Ref struct {
	TagID config.TagID `json:"tagId"`
}

// IDs extracts the ids of refs.
func IDs(refs []Ref) []config.TagID {
	ids := make([]config.TagID, len(refs))
	for i, r := range refs {
		ids[i] = r.TagID
	}
	return ids
}

// Sources is the provenance of engine-owned tags: tag id → reasons.
type Sources map[string][]string

// Add records reason for tag.
func (s Sources) Add(tag config.TagID, reason string) {
	key := tag.String()
	for _, r := range s[key] {
		if r == reason {
			return
		}
	}
	s[key] = append(s[key], reason)
}

// Tags returns the tags the engine owns according to s. Keys that are not
// tag ids are ignored.
func (s Sources) Tags() Set {
	ids := make([]config.TagID, 0, len(s))
	for key := range s {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, config.TagID(id))
	}
	return NewSet(ids...)
}

// Merge computes desired ∪ (existing − tags owned in prior).
func Merge(existing []config.TagID, prior Sources, desired Set) Set {
	owned := prior.Tags()
	out := make([]config.TagID, 0, len(existing)+len(desired))
	out = append(out, desired...)
	for _, id := range existing {
		if !owned.Contains(id) {
			out = append(out, id)
		}
	}
	return NewSet(out...)
}

// Released returns the tags owned in prior that are no longer desired.
func Released(prior Sources, desired Set) Set {
	var out []config.TagID
	for _, id := range prior.Tags() {
		if !desired.Contains(id) {
			out = append(out, id)
		}
	}
	return NewSet(out...)
}

// Reconciler derives desired tags from a store's rules.
type Reconciler struct {
	filter     *filter.Filter
	vendors    config.VendorTags
	useVendors bool
}

// NewReconciler creates a Reconciler for a store.
func NewReconciler(store *config.Store, f *filter.Filter, vendors config.VendorTags) *Reconciler {
	return &Reconciler{
		filter:     f,
		vendors:    vendors,
		useVendors: store.FilterMode.UsesVendors(),
	}
}

// Desired returns the tags the rules assign to finalSKU and their sources.
// The first matching prefix contributes its tag in every mode; vendor tags
// apply only in modes that match on vendors.
func (r *Reconciler) Desired(finalSKU string, vendors []string) (Set, Sources) {
	sources := make(Sources)
	var ids []config.TagID

	if rule, ok := r.filter.MatchPrefix(finalSKU); ok {
		ids = append(ids, rule.Tag)
		sources.Add(rule.Tag, ReasonPrefix+rule.Prefix)
	}

	if r.useVendors {
		for _, v := range vendors {
			if tag, ok := r.vendors.Lookup(v); ok {
				ids = append(ids, tag)
				sources.Add(tag, ReasonVendor)
			}
		}
	}

	return NewSet(ids...), sources
}

// Reconcile returns the final tag set for a variant given the tags it
// currently carries and the sources recorded by the previous run.
func (r *Reconciler) Reconcile(existing []config.TagID, prior Sources, finalSKU string, vendors []string) (Set, Sources) {
	desired, sources := r.Desired(finalSKU, vendors)
	return Merge(existing, prior, desired), sources
}
