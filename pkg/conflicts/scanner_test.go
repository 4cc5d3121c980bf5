package conflicts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/brightsync/pkg/cache"
	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/catalog/catalogtest"
	"github.com/agentstation/brightsync/pkg/config"
	"github.com/agentstation/brightsync/pkg/filter"
)

var fixedNow = utc.New(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

func clock() utc.Time { return fixedNow }

func skuStore(prefixes ...string) *config.Store {
	store := &config.Store{Name: "acme", FilterMode: config.ModeSKU, InclusionDays: 90}
	for i, p := range prefixes {
		store.PrefixToTag = append(store.PrefixToTag, config.PrefixRule{Prefix: p, Tag: config.TagID(100 + i)})
	}
	return store
}

func newScanner(fake *catalogtest.Fake, store *config.Store, vendors config.VendorTags, opts ...ScannerOption) *Scanner {
	opts = append([]ScannerOption{WithClock(clock)}, opts...)
	return NewScanner(fake, store, filter.New(store, vendors), opts...)
}

func prod(id, sku string) catalog.Product {
	return catalog.Product{ID: catalog.ProductID(id), SKU: sku, Name: "Product " + id, UpdatedAt: "2024-05-30T00:00:00Z"}
}

func withInventory(fake *catalogtest.Fake) {
	for _, p := range fake.Products {
		fake.Inventory = append(fake.Inventory, catalog.InventoryRow{ProductID: p.ID, FinalSKU: p.SKU + "-S"})
	}
}

func scenarioFake() *catalogtest.Fake {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-100"), nil)
	fake.AddProduct(prod("2", "ABC-100"), nil)
	fake.AddProduct(prod("3", "XYZ-1"), nil)
	fake.AddProduct(prod("4", "ABC#2"), nil)
	withInventory(fake)
	return fake
}

func TestScanScenario(t *testing.T) {
	res, err := newScanner(scenarioFake(), skuStore("ABC"), nil).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Row{
		{Kind: KindDuplicate, SKU: "ABC-100", ProductID: "1", Name: "Product 1", Detail: "shared by 2 products"},
		{Kind: KindDuplicate, SKU: "ABC-100", ProductID: "2", Name: "Product 2", Detail: "shared by 2 products"},
		{Kind: KindBadSKUChars, SKU: "ABC#2", ProductID: "4", Name: "Product 4", Detail: "invalid characters: #"},
	}, res.Rows)

	for _, r := range res.Rows {
		assert.NotEqual(t, "XYZ-1", r.SKU)
		assert.NotEqual(t, catalog.ProductID("3"), r.ProductID)
	}

	require.NotNil(t, res.Flag)
	assert.Equal(t, []string{"ABC#2", "ABC-100"}, res.Flag.SKUs)
	assert.Equal(t, []string{"1", "2", "4"}, res.Flag.PIDs)
	assert.Equal(t, "2024-06-01T12:00:00Z", res.Flag.LastChecked)
	assert.Equal(t, 4, res.Listed)
	assert.Equal(t, 3, res.Considered)
}

func TestScanIsIdempotent(t *testing.T) {
	fake := scenarioFake()
	scanner := newScanner(fake, skuStore("ABC"), nil)

	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Flag, second.Flag)
}

func TestEveryDuplicateMemberReported(t *testing.T) {
	fake := &catalogtest.Fake{}
	for _, id := range []string{"7", "12", "3", "40"} {
		fake.AddProduct(prod(id, "SAME-1"), nil)
	}
	fake.AddProduct(prod("5", "UNIQUE-1"), nil)
	fake.AddProduct(prod("6", ""), nil)
	fake.AddProduct(prod("8", "  "), nil)
	withInventory(fake)

	store := skuStore()
	store.FilterMode = config.ModeAll
	res, err := newScanner(fake, store, nil).Scan(context.Background())
	require.NoError(t, err)

	var dupIDs []catalog.ProductID
	for _, r := range res.Rows {
		if r.Kind == KindDuplicate {
			dupIDs = append(dupIDs, r.ProductID)
		}
	}
	assert.Equal(t, []catalog.ProductID{"3", "7", "12", "40"}, dupIDs)
}

func TestValidSKU(t *testing.T) {
	for _, sku := range []string{"ABC-100", "a_b.c/d e", "Z9", "--..//__"} {
		assert.True(t, ValidSKU(sku), sku)
	}
	for _, sku := range []string{`AB"C`, "AB#1", "me@x", "tab\tsku", "ÄBC", ""} {
		assert.False(t, ValidSKU(sku), sku)
	}
}

func TestBadCharsReportedForEveryProduct(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", `Q"1`), nil)
	fake.AddProduct(prod("2", "Q#1"), nil)
	fake.AddProduct(prod("3", "Q@1"), nil)
	fake.AddProduct(prod("4", "Q-1"), nil)
	withInventory(fake)

	res, err := newScanner(fake, skuStore("Q"), nil).Scan(context.Background())
	require.NoError(t, err)

	bad := map[catalog.ProductID]bool{}
	for _, r := range res.Rows {
		if r.Kind == KindBadSKUChars {
			bad[r.ProductID] = true
		}
	}
	assert.Equal(t, map[catalog.ProductID]bool{"1": true, "2": true, "3": true}, bad)
}

func TestDeepChecks(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-1"), &catalog.ProductDetail{Options: []catalog.Option{
		{Name: "Size", SubOptions: []catalog.SubOption{{Name: "S", SubSKU: "S"}, {Name: "M"}}},
	}})
	fake.AddProduct(prod("2", "ABC-2"), nil)
	noVendorMatch := prod("3", "NOPE-3")
	noVendorMatch.Vendors = []catalog.Vendor{{Name: "Acme Corp"}}
	fake.AddProduct(noVendorMatch, nil)
	fake.Inventory = []catalog.InventoryRow{{ProductID: "1", FinalSKU: "ABC-1-S"}}

	store := skuStore("ABC")
	store.FilterMode = config.ModeAll
	res, err := newScanner(fake, store, config.VendorTags{"Acme Corp": 11}).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Row{
		{Kind: KindMissingSubSKU, SKU: "ABC-1", ProductID: "1", Name: "Product 1", Detail: "Size: M"},
		{Kind: KindMissingInventory, SKU: "ABC-2", ProductID: "2", Name: "Product 2", Detail: "prefix:ABC"},
		{Kind: KindMissingInventory, SKU: "NOPE-3", ProductID: "3", Name: "Product 3", Detail: "vendor:Acme Corp"},
	}, res.Rows)
	assert.Equal(t, 1, fake.InventoryCalls())
}

func TestDeepChecksSkippedForUnchangedProducts(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-1"), nil)
	fake.AddProduct(prod("2", "ABC-2"), nil)

	snap := cache.Snapshot{"1": cache.NewEntry(prod("1", "ABC-1"), "ABC-1", nil, nil)}
	res, err := newScanner(fake, skuStore("ABC"), nil, WithCache(snap)).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, fake.DetailCalls("1"))
	assert.Equal(t, 1, fake.DetailCalls("2"))
	assert.Equal(t, 1, res.DeepSkipped)
	assert.Equal(t, 1, res.DeepChecked)
	for _, r := range res.Rows {
		assert.NotEqual(t, catalog.ProductID("1"), r.ProductID)
	}
}

func TestDetailFailureSkipsProduct(t *testing.T) {
	fake := &catalogtest.Fake{DetailErrs: map[catalog.ProductID]error{"2": errors.New("timeout")}}
	fake.AddProduct(prod("1", "ABC-1"), nil)
	fake.AddProduct(prod("2", "ABC-2"), nil)

	res, err := newScanner(fake, skuStore("ABC"), nil).Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.DetailErrors, 1)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, catalog.ProductID("1"), res.Rows[0].ProductID)
	assert.Equal(t, KindMissingInventory, res.Rows[0].Kind)
}

func TestListingFailureIsReturned(t *testing.T) {
	fake := &catalogtest.Fake{ListErr: errors.New("boom")}
	_, err := newScanner(fake, skuStore("ABC"), nil).Scan(context.Background())
	assert.Error(t, err)

	fake = &catalogtest.Fake{InventoryErr: errors.New("boom")}
	_, err = newScanner(fake, skuStore("ABC"), nil).Scan(context.Background())
	assert.Error(t, err)
}

func TestInactiveHorizon(t *testing.T) {
	old := prod("1", "ABC#1")
	old.Active = catalogtest.Bool(false)
	old.UpdatedAt = "2023-01-01T00:00:00Z"

	recent := prod("2", "ABC#2")
	recent.Active = catalogtest.Bool(false)

	unparsable := prod("3", "ABC#3")
	unparsable.Active = catalogtest.Bool(false)
	unparsable.UpdatedAt = "sometime"

	activeOld := prod("4", "ABC#4")
	activeOld.UpdatedAt = "2020-01-01T00:00:00Z"

	fake := &catalogtest.Fake{}
	for _, p := range []catalog.Product{old, recent, unparsable, activeOld} {
		fake.AddProduct(p, nil)
	}
	withInventory(fake)

	res, err := newScanner(fake, skuStore("ABC"), nil).Scan(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.Flag)
	assert.Equal(t, []string{"2", "3", "4"}, res.Flag.PIDs)
}

func TestNoConflictsYieldsNilFlag(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-1"), nil)
	withInventory(fake)

	res, err := newScanner(fake, skuStore("ABC"), nil).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Nil(t, res.Flag)
}
