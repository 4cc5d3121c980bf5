package conflicts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagsApply(t *testing.T) {
	flags := Flags{"OTHER": {SKUs: []string{"X"}, PIDs: []string{"9"}}}

	flags.Apply("ACME", &FlagEntry{SKUs: []string{"ABC"}, PIDs: []string{"1"}})
	assert.Len(t, flags, 2)

	flags.Apply("ACME", nil)
	assert.NotContains(t, flags, "ACME")
	assert.Contains(t, flags, "OTHER")

	flags.Apply("ACME", &FlagEntry{})
	assert.NotContains(t, flags, "ACME")
}

func TestFlagsLookup(t *testing.T) {
	flags := Flags{"ACME": {SKUs: []string{"ABC-100"}, PIDs: []string{"4"}}}

	set := flags.Lookup("ACME")
	assert.True(t, set.Flagged("ABC-100", "99"))
	assert.True(t, set.Flagged("OTHER", "4"))
	assert.False(t, set.Flagged("OTHER", "5"))
	assert.False(t, set.Flagged("", "5"))
	assert.Equal(t, 2, set.Len())

	assert.Equal(t, 0, flags.Lookup("MISSING").Len())
}

func TestNewFlagEntry(t *testing.T) {
	assert.Nil(t, NewFlagEntry(nil, "now"))

	entry := NewFlagEntry([]Row{
		{Kind: KindDuplicate, SKU: "B", ProductID: "10"},
		{Kind: KindDuplicate, SKU: "B", ProductID: "9"},
		{Kind: KindBadSKUChars, SKU: "A#", ProductID: "10"},
	}, "now")
	assert.Equal(t, &FlagEntry{SKUs: []string{"A#", "B"}, PIDs: []string{"9", "10"}, LastChecked: "now"}, entry)
}

func TestSortRowsAndCount(t *testing.T) {
	rows := []Row{
		{Kind: KindMissingInventory, SKU: "A", ProductID: "1"},
		{Kind: KindDuplicate, SKU: "B", ProductID: "10"},
		{Kind: KindDuplicate, SKU: "B", ProductID: "2"},
		{Kind: KindBadSKUChars, SKU: "A#", ProductID: "3"},
	}
	SortRows(rows)

	assert.Equal(t, KindDuplicate, rows[0].Kind)
	assert.Equal(t, "2", rows[0].ProductID.String())
	assert.Equal(t, "10", rows[1].ProductID.String())
	assert.Equal(t, KindBadSKUChars, rows[2].Kind)
	assert.Equal(t, KindMissingInventory, rows[3].Kind)

	counts := CountByKind(rows)
	assert.Equal(t, 2, counts[KindDuplicate])
	assert.Equal(t, 0, counts[KindMissingSubSKU])
}
