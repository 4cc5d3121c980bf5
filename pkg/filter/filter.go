// Package filter decides whether a product belongs to a store's sync and
// conflict universe.
package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/agentstation/brightsync/pkg/config"
)

// Filter evaluates a store's inclusion rules.
type Filter struct {
	mode     config.FilterMode
	rules    config.PrefixRules
	folded   []string
	vendors  config.VendorTags
	caseFold cases.Caser
}

// New creates a Filter for a store configuration and the global vendor map.
func New(store *config.Store, vendors config.VendorTags) *Filter {
	f := &Filter{
		mode:     store.FilterMode,
		rules:    store.PrefixToTag,
		vendors:  vendors,
		caseFold: cases.Fold(),
	}
	f.folded = make([]string, len(store.PrefixToTag))
	for i, rule := range store.PrefixToTag {
		f.folded[i] = f.fold(rule.Prefix)
	}
	return f
}

// fold returns the case-folded form of s. A folding Caser is stateless,
// so one Filter may be shared across goroutines.
func (f *Filter) fold(s string) string {
	return f.caseFold.String(s)
}

// Mode returns the filter mode.
func (f *Filter) Mode() config.FilterMode {
	return f.mode
}

// MatchPrefix returns the first configured rule whose prefix occurs in sku,
// compared case-insensitively.
func (f *Filter) MatchPrefix(sku string) (config.PrefixRule, bool) {
	if sku == "" {
		return config.PrefixRule{}, false
	}
	folded := f.fold(sku)
	for i, p := range f.folded {
		if strings.Contains(folded, p) {
			return f.rules[i], true
		}
	}
	return config.PrefixRule{}, false
}

// MatchingPrefixes returns every configured prefix occurring in sku, in order.
func (f *Filter) MatchingPrefixes(sku string) []string {
	if sku == "" {
		return nil
	}
	folded := f.fold(sku)
	var out []string
	for i, p := range f.folded {
		if strings.Contains(folded, p) {
			out = append(out, f.rules[i].Prefix)
		}
	}
	return out
}

// MatchingVendors returns the vendor names that are keys of the vendor map.
func (f *Filter) MatchingVendors(vendors []string) []string {
	var out []string
	for _, v := range vendors {
		if f.vendors.Has(v) {
			out = append(out, v)
		}
	}
	return out
}

// ShouldInclude applies the store's filter mode.
func (f *Filter) ShouldInclude(sku string, vendors []string) bool {
	switch f.mode {
	case config.ModeAll:
		return true
	case config.ModeSKU:
		return f.skuMatch(sku)
	case config.ModeVendor:
		return f.vendorMatch(vendors)
	case config.ModeSKUOrVendor:
		return f.skuMatch(sku) || f.vendorMatch(vendors)
	default:
		return false
	}
}

// Reasons explains why a product matches a prefix or the vendor map,
// regardless of mode. An empty result means no rule matches.
func (f *Filter) Reasons(sku string, vendors []string) []string {
	var reasons []string
	for _, p := range f.MatchingPrefixes(sku) {
		reasons = append(reasons, "prefix:"+p)
	}
	for _, v := range f.MatchingVendors(vendors) {
		reasons = append(reasons, "vendor:"+v)
	}
	return reasons
}

func (f *Filter) skuMatch(sku string) bool {
	_, ok := f.MatchPrefix(sku)
	return ok
}

func (f *Filter) vendorMatch(vendors []string) bool {
	for _, v := range vendors {
		if f.vendors.Has(v) {
			return true
		}
	}
	return false
}
