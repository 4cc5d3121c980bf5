package reconciler

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
	"github.com/agentstation/brightsync/pkg/conflicts"
	"github.com/agentstation/brightsync/pkg/state"
	"github.com/agentstation/brightsync/pkg/tags"
)

var fixedNow = utc.New(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

func clock() utc.Time { return fixedNow }

const recent = "2024-05-30T00:00:00Z"

func testStore() *config.Store {
	store := &config.Store{
		Key:         "acme",
		URL:         "https://shop.example.com",
		FilterMode:  config.ModeSKU,
		PrefixToTag: config.PrefixRules{{Prefix: "ABC", Tag: 100}},
	}
	store.ApplyDefaults()
	return store
}

func prod(id, sku, updated string) catalog.Product {
	return catalog.Product{ID: catalog.ProductID(id), SKU: sku, Name: "Product " + id, UpdatedAt: updated}
}

func newEngine(t *testing.T, fake *catalogtest.Fake, store *config.Store, vendors config.VendorTags, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(clock)}, opts...)
	e, err := New(fake, store, vendors, opts...)
	require.NoError(t, err)
	return e
}

func noFlags() conflicts.Set {
	return conflicts.Flags{}.Lookup("ACME")
}

func skus(b state.Batch) []string {
	out := make([]string, len(b))
	for i, r := range b {
		out[i] = r.SKU
	}
	return out
}

func TestRunBuildsBatch(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-1", recent), &catalog.ProductDetail{Image: "/img/1.jpg"})
	fake.AddProduct(prod("2", "XYZ-1", recent), nil)
	fake.Inventory = []catalog.InventoryRow{
		{ProductID: "1", FinalSKU: "ABC-1-S"},
		{ProductID: "1", FinalSKU: "ABC-1-M"},
		{ProductID: "2", FinalSKU: "XYZ-1-S"},
	}

	res, err := newEngine(t, fake, testStore(), nil).Run(context.Background(), nil, noFlags())
	require.NoError(t, err)

	assert.True(t, res.IsSuccess())
	assert.True(t, res.HasBatch())
	assert.Equal(t, []string{"ABC-1-S", "ABC-1-M"}, skus(res.Batch))
	for _, rec := range res.Batch {
		assert.Equal(t, "Product 1", rec.Name)
		assert.Equal(t, "https://shop.example.com/img/1.jpg", rec.ImageURL)
		assert.Equal(t, []tags.Ref{{TagID: 100}}, rec.Tags)
		assert.Equal(t, tags.Sources{"100": {"prefix:ABC"}}, rec.TagSources)
		assert.Empty(t, rec.ReleasedTags)
	}

	require.Contains(t, res.Updates, catalog.ProductID("1"))
	assert.NotContains(t, res.Updates, catalog.ProductID("2"), "excluded products are not cached")
	entry := res.Updates["1"]
	assert.Equal(t, "ABC-1", entry.ParentSKU)
	assert.Equal(t, cache.FinalSKUs{"ABC-1-S", "ABC-1-M"}, entry.FinalSKUs)
	assert.Equal(t, recent, entry.UpdatedAt)
	assert.Equal(t, 0, fake.DetailCalls("2"))
	assert.Equal(t, 1, fake.InventoryCalls())
	assert.Equal(t, 1, res.Metadata.Stats.FilteredOut)
}

func TestUnchangedProductsAreSkipped(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-1", recent), nil)
	fake.AddProduct(prod("2", "ABC-2", recent), nil)
	fake.Inventory = []catalog.InventoryRow{
		{ProductID: "1", FinalSKU: "ABC-1-S"},
		{ProductID: "2", FinalSKU: "ABC-2-S"},
	}

	prior := cache.Snapshot{
		"1": cache.NewEntry(prod("1", "ABC-1", "2024-05-30T00:00:00+00:00"), "ABC-1", []string{"ABC-1-S"}, nil),
		"9": cache.NewEntry(prod("9", "ABC-9", "2023-01-01T00:00:00Z"), "ABC-9", nil, nil),
	}

	res, err := newEngine(t, fake, testStore(), nil).Run(context.Background(), prior, noFlags())
	require.NoError(t, err)

	assert.Equal(t, 0, fake.DetailCalls("1"), "unchanged product detail must not be fetched")
	assert.Equal(t, 1, fake.DetailCalls("2"))
	assert.Equal(t, []string{"ABC-2-S"}, skus(res.Batch))
	assert.Equal(t, 1, res.Metadata.Stats.Unchanged)

	assert.Contains(t, res.Cache, catalog.ProductID("1"))
	assert.Contains(t, res.Cache, catalog.ProductID("2"))
	assert.Contains(t, res.Cache, catalog.ProductID("9"), "untouched prior entries are preserved")
	assert.NotContains(t, res.Updates, catalog.ProductID("1"))
}

func TestVendorChangeForcesRebuild(t *testing.T) {
	store := testStore()
	store.FilterMode = config.ModeSKUOrVendor

	p := prod("1", "ABC-1", recent)
	p.Vendors = []catalog.Vendor{{Name: "Acme Corp"}}
	fake := &catalogtest.Fake{}
	fake.AddProduct(p, nil)
	fake.Inventory = []catalog.InventoryRow{{ProductID: "1", FinalSKU: "ABC-1-S"}}

	prior := cache.Snapshot{"1": cache.NewEntry(prod("1", "ABC-1", recent), "ABC-1", []string{"ABC-1-S"}, nil)}
	vendors := config.VendorTags{"Acme Corp": 200}

	res, err := newEngine(t, fake, store, vendors).Run(context.Background(), prior, noFlags())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.DetailCalls("1"))
	require.Len(t, res.Batch, 1)
	assert.Equal(t, []tags.Ref{{TagID: 100}, {TagID: 200}}, res.Batch[0].Tags)
	assert.Equal(t, tags.Sources{"100": {"prefix:ABC"}, "200": {"vendor"}}, res.Batch[0].TagSources)
}

func TestFlaggedSKUsNeverEmitted(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-1", recent), nil)
	fake.AddProduct(prod("2", "ABC-2", recent), nil)
	fake.AddProduct(prod("3", "ABC-3", recent), nil)
	fake.Inventory = []catalog.InventoryRow{
		{ProductID: "1", FinalSKU: "ABC-1-S"},
		{ProductID: "2", FinalSKU: "ABC-2-S"},
		{ProductID: "2", FinalSKU: "ABC-2-M"},
		{ProductID: "3", FinalSKU: "ABC-3-S"},
	}

	flags := conflicts.Flags{"ACME": {SKUs: []string{"ABC-1", "ABC-2-S"}, PIDs: []string{"3"}}}

	res, err := newEngine(t, fake, testStore(), nil).Run(context.Background(), nil, flags.Lookup("ACME"))
	require.NoError(t, err)

	assert.Equal(t, []string{"ABC-2-M"}, skus(res.Batch))
	assert.Equal(t, 2, res.Metadata.Stats.FlaggedSkipped)
	assert.Equal(t, 1, res.Metadata.Stats.VariantsFlagged)
	assert.Equal(t, 0, fake.DetailCalls("1"))
	assert.Equal(t, 0, fake.DetailCalls("3"))
}

func TestFetchHorizonAndUncachedActive(t *testing.T) {
	old := "2023-01-01T00:00:00Z"
	newFake := func() *catalogtest.Fake {
		fake := &catalogtest.Fake{}
		fake.AddProduct(prod("1", "ABC-1", recent), nil)
		fake.AddProduct(prod("2", "ABC-2", old), nil)
		fake.AddProduct(prod("3", "ABC-3", old), nil)
		inactive := prod("4", "ABC-4", old)
		inactive.Active = catalogtest.Bool(false)
		fake.AddProduct(inactive, nil)
		return fake
	}
	prior := cache.Snapshot{"3": cache.NewEntry(prod("3", "ABC-3", "2022-01-01T00:00:00Z"), "ABC-3", nil, nil)}

	t.Run("enabled", func(t *testing.T) {
		fake := newFake()
		res, err := newEngine(t, fake, testStore(), nil).Run(context.Background(), prior, noFlags())
		require.NoError(t, err)

		assert.Equal(t, []string{"2024-03-03T12:00:00"}, fake.SinceCalls())
		assert.Equal(t, "2024-03-03T12:00:00", res.Metadata.Horizon)
		assert.Equal(t, 1, fake.ListCalls())
		assert.Equal(t, 2, res.Metadata.Stats.Fetched)
		assert.Equal(t, 1, res.Metadata.Stats.UncachedActive)
		assert.Equal(t, 1, fake.DetailCalls("2"))
		assert.Equal(t, 0, fake.DetailCalls("3"), "cached products outside the horizon are not refetched")
		assert.Equal(t, 0, fake.DetailCalls("4"), "inactive products are never pulled in as uncached")
	})

	t.Run("disabled", func(t *testing.T) {
		fake := newFake()
		res, err := newEngine(t, fake, testStore(), nil, WithUncachedActive(false)).Run(context.Background(), prior, noFlags())
		require.NoError(t, err)

		assert.Equal(t, 0, fake.ListCalls())
		assert.Equal(t, 1, res.Metadata.Stats.Fetched)
		assert.Equal(t, 0, fake.DetailCalls("2"))
	})
}

func TestDetailFailureLeavesCacheStale(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-1", recent), nil)
	fake.AddProduct(prod("2", "ABC-2", recent), nil)
	fake.Inventory = []catalog.InventoryRow{
		{ProductID: "1", FinalSKU: "ABC-1-S"},
		{ProductID: "2", FinalSKU: "ABC-2-S"},
	}
	fake.DetailErrs = map[catalog.ProductID]error{"2": errors.New("timeout")}

	stale := cache.NewEntry(prod("2", "ABC-2", "2024-01-01T00:00:00Z"), "ABC-2", []string{"ABC-2-S"}, nil)
	prior := cache.Snapshot{"2": stale}

	res, err := newEngine(t, fake, testStore(), nil).Run(context.Background(), prior, noFlags())
	require.NoError(t, err)

	assert.False(t, res.IsSuccess())
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Metadata.Stats.DetailErrors)
	assert.Equal(t, []string{"ABC-1-S"}, skus(res.Batch))
	assert.NotContains(t, res.Updates, catalog.ProductID("2"))
	assert.Equal(t, stale.UpdatedAt, res.Cache["2"].UpdatedAt, "failed products keep their prior entry")
}

func TestListingFailureAbortsRun(t *testing.T) {
	fake := &catalogtest.Fake{ListErr: errors.New("boom")}
	res, err := newEngine(t, fake, testStore(), nil).Run(context.Background(), nil, noFlags())
	assert.Error(t, err)
	assert.Nil(t, res)

	fake = &catalogtest.Fake{InventoryErr: errors.New("boom")}
	fake.AddProduct(prod("1", "ABC-1", recent), nil)
	res, err = newEngine(t, fake, testStore(), nil).Run(context.Background(), nil, noFlags())
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestInactiveProducts(t *testing.T) {
	newFake := func() *catalogtest.Fake {
		p := prod("1", "ABC-1", recent)
		p.Active = catalogtest.Bool(false)
		fake := &catalogtest.Fake{}
		fake.AddProduct(p, nil)
		fake.Inventory = []catalog.InventoryRow{{ProductID: "1", FinalSKU: "ABC-1-S"}}
		return fake
	}

	fake := newFake()
	res, err := newEngine(t, fake, testStore(), nil).Run(context.Background(), nil, noFlags())
	require.NoError(t, err)
	assert.Empty(t, res.Batch)
	assert.Equal(t, 1, res.Metadata.Stats.InactiveSkipped)
	assert.Equal(t, 0, fake.DetailCalls("1"))
	require.Contains(t, res.Updates, catalog.ProductID("1"))
	assert.False(t, res.Updates["1"].Active)

	fake = newFake()
	res, err = newEngine(t, fake, testStore(), nil, WithIncludeInactive(true)).Run(context.Background(), nil, noFlags())
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC-1-S"}, skus(res.Batch))
}

func TestNoVariantsStillRecordsCache(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-1", recent), nil)

	res, err := newEngine(t, fake, testStore(), nil).Run(context.Background(), nil, noFlags())
	require.NoError(t, err)
	assert.False(t, res.HasBatch())
	require.Contains(t, res.Cache, catalog.ProductID("1"))
	assert.Empty(t, res.Cache["1"].FinalSKUs)
}

func TestReleasedTagsRecorded(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-1", recent), nil)
	fake.Inventory = []catalog.InventoryRow{{ProductID: "1", FinalSKU: "ABC-1-S"}}

	prior := cache.Snapshot{"1": cache.NewEntry(
		prod("1", "ABC-1", "2024-01-01T00:00:00Z"), "ABC-1", []string{"ABC-1-S"},
		map[string]tags.Sources{"ABC-1-S": {"100": {"prefix:ABC"}, "200": {"vendor"}}},
	)}

	res, err := newEngine(t, fake, testStore(), nil).Run(context.Background(), prior, noFlags())
	require.NoError(t, err)
	require.Len(t, res.Batch, 1)
	assert.Equal(t, []config.TagID{200}, res.Batch[0].ReleasedTags)
	assert.Equal(t, tags.Sources{"100": {"prefix:ABC"}}, res.Cache["1"].TagSources["ABC-1-S"])
}

func TestDuplicateFinalSKUsEmittedOnce(t *testing.T) {
	fake := &catalogtest.Fake{}
	fake.AddProduct(prod("1", "ABC-1", recent), nil)
	fake.AddProduct(prod("2", "ABC-1", recent), nil)
	fake.Inventory = []catalog.InventoryRow{
		{ProductID: "1", FinalSKU: "ABC-1-S"},
		{ProductID: "2", FinalSKU: "ABC-1-S"},
	}

	res, err := newEngine(t, fake, testStore(), nil).Run(context.Background(), nil, noFlags())
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC-1-S"}, skus(res.Batch))
	assert.Equal(t, 1, res.Metadata.Stats.DuplicateSKUs)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, testStore(), nil)
	assert.Error(t, err)

	_, err = New(&catalogtest.Fake{}, nil, nil)
	assert.Error(t, err)

	_, err = New(&catalogtest.Fake{}, testStore(), nil, WithClock(nil))
	assert.Error(t, err)
}
