package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/brightsync/pkg/config"
)

func newFilter(mode config.FilterMode) *Filter {
	store := &config.Store{
		Name:       "acme",
		FilterMode: mode,
		PrefixToTag: config.PrefixRules{
			{Prefix: "abc", Tag: 101},
			{Prefix: "AB", Tag: 303},
			{Prefix: "Q-", Tag: 404},
		},
	}
	return New(store, config.VendorTags{"Acme Corp": 11})
}

func TestShouldInclude(t *testing.T) {
	tests := []struct {
		name    string
		mode    config.FilterMode
		sku     string
		vendors []string
		want    bool
	}{
		{"sku prefix at start", config.ModeSKU, "ABC-100", nil, true},
		{"sku substring not at start", config.ModeSKU, "X-abc-1", nil, true},
		{"sku case insensitive", config.ModeSKU, "aBc9", nil, true},
		{"sku no match", config.ModeSKU, "XYZ-1", []string{"Acme Corp"}, false},
		{"sku empty", config.ModeSKU, "", nil, false},
		{"vendor match", config.ModeVendor, "XYZ-1", []string{"Other", "Acme Corp"}, true},
		{"vendor is case sensitive", config.ModeVendor, "XYZ-1", []string{"acme corp"}, false},
		{"vendor ignores sku", config.ModeVendor, "ABC-1", nil, false},
		{"either by sku", config.ModeSKUOrVendor, "ABC-1", nil, true},
		{"either by vendor", config.ModeSKUOrVendor, "ZZZ", []string{"Acme Corp"}, true},
		{"either none", config.ModeSKUOrVendor, "ZZZ", []string{"Other"}, false},
		{"all", config.ModeAll, "", nil, true},
		{"unknown mode", config.FilterMode("bogus"), "ABC", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newFilter(tt.mode).ShouldInclude(tt.sku, tt.vendors))
		})
	}
}

func TestMatchPrefixFirstWins(t *testing.T) {
	f := newFilter(config.ModeSKU)

	rule, ok := f.MatchPrefix("ABC-100")
	assert.True(t, ok)
	assert.Equal(t, config.PrefixRule{Prefix: "abc", Tag: 101}, rule)

	rule, ok = f.MatchPrefix("AB-7")
	assert.True(t, ok)
	assert.Equal(t, config.TagID(303), rule.Tag)

	_, ok = f.MatchPrefix("ZZZ")
	assert.False(t, ok)

	assert.Equal(t, []string{"abc", "AB"}, f.MatchingPrefixes("xabcx"))
}

func TestReasons(t *testing.T) {
	f := newFilter(config.ModeSKU)

	assert.Equal(t, []string{"prefix:abc", "prefix:AB", "vendor:Acme Corp"},
		f.Reasons("ABC-1", []string{"Acme Corp", "Other"}))
	assert.Empty(t, f.Reasons("ZZZ", []string{"Other"}))
}
