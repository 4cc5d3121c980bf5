package catalog

import (
	"strings"
	"time"

	"github.com/agentstation/utc"
)

// timestampLayouts are the formats the storefront has been seen to emit.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a storefront timestamp. Values without a zone are read as UTC.
func ParseTimestamp(s string) (utc.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return utc.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return utc.New(t), true
		}
	}
	return utc.Time{}, false
}

// SameTimestamp reports whether two storefront timestamps denote the same
// instant. Unparsable values compare as raw strings.
func SameTimestamp(a, b string) bool {
	ta, okA := ParseTimestamp(a)
	tb, okB := ParseTimestamp(b)
	if okA && okB {
		return ta.Time.Equal(tb.Time)
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// FormatHorizon renders a time as the storefront's updated_at_from filter value.
func FormatHorizon(t utc.Time) string {
	return t.Time.UTC().Format("2006-01-02T15:04:05")
}
