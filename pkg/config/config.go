// Package config holds the per-store configuration and the global vendor tag
// map. Both are stored as JSON documents and decoded with go-yaml, which
// accepts JSON as a subset of YAML and keeps mapping order for prefix rules.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/errors"
)

// FilterMode selects which products belong to a store.
type FilterMode string

// Filter modes.
const (
	ModeSKU         FilterMode = "sku"
	ModeVendor      FilterMode = "vendor"
	ModeSKUOrVendor FilterMode = "sku_or_vendor"
	ModeAll         FilterMode = "all"
)

// Valid reports whether m is a known mode.
func (m FilterMode) Valid() bool {
	switch m {
	case ModeSKU, ModeVendor, ModeSKUOrVendor, ModeAll:
		return true
	}
	return false
}

// UsesVendors reports whether vendor membership includes products and
// contributes tags in this mode.
func (m FilterMode) UsesVendors() bool {
	return m == ModeVendor || m == ModeSKUOrVendor
}

// String implements fmt.Stringer.
func (m FilterMode) String() string {
	return string(m)
}

// TagID identifies a fulfillment platform tag.
type TagID int64

// String implements fmt.Stringer.
func (t TagID) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// ParseTagID converts a decoded document value into a TagID.
func ParseTagID(v any) (TagID, error) {
	switch n := v.(type) {
	case int:
		return TagID(n), nil
	case int64:
		return TagID(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("tag id %d out of range", n)
		}
		return TagID(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("tag id %v is not an integer", n)
		}
		return TagID(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("tag id %q is not an integer", n)
		}
		return TagID(i), nil
	default:
		return 0, fmt.Errorf("unsupported tag id %v (%T)", v, v)
	}
}

// PrefixRule maps a SKU substring to a tag.
type PrefixRule struct {
	Prefix string
	Tag    TagID
}

// PrefixRules is the ordered prefix → tag mapping. Order is significant:
// the first matching rule wins when tagging.
type PrefixRules []PrefixRule

// UnmarshalYAML decodes a mapping while preserving key order.
func (r *PrefixRules) UnmarshalYAML(b []byte) error {
	var ms yaml.MapSlice
	if err := yaml.Unmarshal(b, &ms); err != nil {
		return err
	}
	rules := make(PrefixRules, 0, len(ms))
	for _, item := range ms {
		prefix := fmt.Sprint(item.Key)
		tag, err := ParseTagID(item.Value)
		if err != nil {
			return errors.NewValidationError("prefix_to_tag."+prefix, item.Value, err.Error())
		}
		rules = append(rules, PrefixRule{Prefix: prefix, Tag: tag})
	}
	*r = rules
	return nil
}

// MarshalYAML encodes the rules as an ordered mapping.
func (r PrefixRules) MarshalYAML() (any, error) {
	ms := make(yaml.MapSlice, 0, len(r))
	for _, rule := range r {
		ms = append(ms, yaml.MapItem{Key: rule.Prefix, Value: int64(rule.Tag)})
	}
	return ms, nil
}

// Prefixes returns the configured prefixes in order.
func (r PrefixRules) Prefixes() []string {
	out := make([]string, len(r))
	for i, rule := range r {
		out[i] = rule.Prefix
	}
	return out
}

// Store is a single store's configuration document.
type Store struct {
	// Key is the store key the document was loaded under.
	Key string `yaml:"-" json:"-"`

	Name                  string      `yaml:"store_name" json:"store_name"`
	URL                   string      `yaml:"brightstores_url" json:"brightstores_url"`
	Token                 string      `yaml:"brightstores_token" json:"brightstores_token"`
	FilterMode            FilterMode  `yaml:"filter_mode" json:"filter_mode"`
	PrefixToTag           PrefixRules `yaml:"prefix_to_tag" json:"prefix_to_tag"`
	InclusionDays         int         `yaml:"inclusion_days" json:"inclusion_days"`
	IncludeUncachedActive *bool       `yaml:"include_uncached_active" json:"include_uncached_active"`
	IncludeInactive       bool        `yaml:"include_inactive" json:"include_inactive"`
	SKUSeparator          string      `yaml:"sku_separator" json:"sku_separator"`
}

// Parse decodes a store configuration document and applies defaults.
func Parse(key string, data []byte) (*Store, error) {
	var s Store
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.WrapParse("json", key+constants.StoreConfigSuffix, err)
	}
	s.Key = key
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ApplyDefaults fills unset optional fields.
func (s *Store) ApplyDefaults() {
	if s.Name == "" {
		s.Name = s.Key
	}
	if s.FilterMode == "" {
		s.FilterMode = ModeSKU
	}
	s.FilterMode = FilterMode(strings.ToLower(string(s.FilterMode)))
	if s.InclusionDays == 0 {
		s.InclusionDays = constants.DefaultInclusionDays
	}
	if s.IncludeUncachedActive == nil {
		v := true
		s.IncludeUncachedActive = &v
	}
	if s.SKUSeparator == "" {
		s.SKUSeparator = constants.DefaultSKUSeparator
	}
}

// Validate checks the configuration for errors.
func (s *Store) Validate() error {
	if s.Name == "" {
		return errors.NewValidationError("store_name", s.Name, "must not be empty")
	}
	if !s.FilterMode.Valid() {
		return errors.NewValidationError("filter_mode", s.FilterMode, "must be one of sku, vendor, sku_or_vendor, all")
	}
	if s.InclusionDays < 0 {
		return errors.NewValidationError("inclusion_days", s.InclusionDays, "must not be negative")
	}
	seen := make(map[string]bool, len(s.PrefixToTag))
	for _, rule := range s.PrefixToTag {
		if strings.TrimSpace(rule.Prefix) == "" {
			return errors.NewValidationError("prefix_to_tag", rule.Prefix, "prefix must not be empty")
		}
		if seen[rule.Prefix] {
			return errors.NewValidationError("prefix_to_tag", rule.Prefix, "duplicate prefix")
		}
		seen[rule.Prefix] = true
	}
	return nil
}

// UncachedActive reports whether active products missing from the cache are fetched.
func (s *Store) UncachedActive() bool {
	return s.IncludeUncachedActive == nil || *s.IncludeUncachedActive
}

// FlagKey is the store's key in the global conflict flag mapping.
func (s *Store) FlagKey() string {
	return strings.ToUpper(s.Name)
}

// FileKey is the lower-case store name used in artifact file names.
func (s *Store) FileKey() string {
	return strings.ToLower(s.Name)
}

// VendorTags maps vendor names to the tag they contribute.
type VendorTags map[string]TagID

// ParseVendorTags decodes the global vendor tag map document.
func ParseVendorTags(data []byte) (VendorTags, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapParse("json", constants.VendorTagMapFile, err)
	}
	tags := make(VendorTags, len(raw))
	for name, v := range raw {
		tag, err := ParseTagID(v)
		if err != nil {
			return nil, errors.NewValidationError("vendor_tag_map."+name, v, err.Error())
		}
		tags[name] = tag
	}
	return tags, nil
}

// Has reports whether vendor is a key of the map.
func (v VendorTags) Has(vendor string) bool {
	_, ok := v[vendor]
	return ok
}

// Lookup returns the tag for vendor.
func (v VendorTags) Lookup(vendor string) (TagID, bool) {
	tag, ok := v[vendor]
	return tag, ok
}
