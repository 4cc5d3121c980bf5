// Package reconciler is the sync reconciliation engine. For one store it
// turns the catalog changes since the last run into an ordered batch of
// variant records and the cache entries that record what was examined.
//
// A run moves through five stages: FETCH, FILTER, RESOLVE_CHANGES,
// BUILD_VARIANTS and EMIT. Nothing is persisted here; callers save the
// batch and the merged cache once the run has completed.
package reconciler

import (
	"context"
	"time"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/agentstation/brightsync/pkg/cache"
	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/config"
	"github.com/agentstation/brightsync/pkg/conflicts"
	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/filter"
	"github.com/agentstation/brightsync/pkg/logging"
	"github.com/agentstation/brightsync/pkg/state"
	"github.com/agentstation/brightsync/pkg/tags"
)

// Stage names a step of a sync run.
type Stage string

// Stages of a sync run, in order.
const (
	StageFetch          Stage = "FETCH"
	StageFilter         Stage = "FILTER"
	StageResolveChanges Stage = "RESOLVE_CHANGES"
	StageBuildVariants  Stage = "BUILD_VARIANTS"
	StageEmit           Stage = "EMIT"
)

// Engine runs the sync pipeline for one store.
type Engine struct {
	client  catalog.Client
	store   *config.Store
	filter  *filter.Filter
	tags    *tags.Reconciler
	options *options
}

// New creates an Engine for store.
func New(client catalog.Client, store *config.Store, vendors config.VendorTags, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, &errors.ValidationError{Field: "client", Message: "cannot be nil"}
	}
	if store == nil {
		return nil, &errors.ValidationError{Field: "store", Message: "cannot be nil"}
	}
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	if options.imageBase == "" {
		options.imageBase = store.URL
	}

	f := filter.New(store, vendors)
	return &Engine{
		client:  client,
		store:   store,
		filter:  f,
		tags:    tags.NewReconciler(store, f, vendors),
		options: options,
	}, nil
}

// runContext holds shared state for one run.
type runContext struct {
	prior     cache.Snapshot
	flags     conflicts.Set
	inventory catalog.InventoryIndex
	logger    *zerolog.Logger
	result    *Result
}

// Run executes FETCH → FILTER → RESOLVE_CHANGES → BUILD_VARIANTS → EMIT
// against the prior cache snapshot and the store's current conflict flags.
// Listing failures abort the run; detail failures skip the product and are
// recorded in the result.
func (e *Engine) Run(ctx context.Context, prior cache.Snapshot, flags conflicts.Set) (*Result, error) {
	if prior == nil {
		prior = cache.Snapshot{}
	}
	rctx := &runContext{
		prior:  prior,
		flags:  flags,
		logger: logging.FromContext(ctx),
		result: NewResult(),
	}

	// Step 1: Fetch changed and never-cached products
	products, err := e.fetch(ctx, rctx)
	if err != nil {
		return nil, err
	}

	// Step 2: Drop conflicted and excluded products
	products = e.filterProducts(rctx, products)

	// Step 3: Drop unchanged and inactive products
	products, inactive := e.resolveChanges(rctx, products)

	// Step 4: Build variant records for what is left
	built, err := e.buildVariants(ctx, rctx, products)
	if err != nil {
		return nil, err
	}

	// Step 5: Emit the batch and cache updates
	e.emit(rctx, built, inactive)

	return rctx.result, nil
}

func (e *Engine) uncachedActive() bool {
	if e.options.uncachedActive != nil {
		return *e.options.uncachedActive
	}
	return e.store.UncachedActive()
}

func (e *Engine) includeInactive() bool {
	if e.options.includeInactive != nil {
		return *e.options.includeInactive
	}
	return e.store.IncludeInactive
}

// fetch returns products updated since the horizon plus, when enabled,
// active products the cache has never seen. Each id appears once.
func (e *Engine) fetch(ctx context.Context, rctx *runContext) ([]catalog.Product, error) {
	horizon := catalog.FormatHorizon(utc.New(e.options.now().Time.AddDate(0, 0, -e.store.InclusionDays)))
	rctx.result.Metadata.Horizon = horizon

	updated, err := e.client.FetchProductsUpdatedSince(ctx, horizon)
	if err != nil {
		return nil, err
	}

	seen := make(map[catalog.ProductID]struct{}, len(updated))
	products := make([]catalog.Product, 0, len(updated))
	for _, p := range updated {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		products = append(products, p)
	}

	if e.uncachedActive() {
		all, err := e.client.FetchAllProducts(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range all {
			if _, ok := seen[p.ID]; ok || !p.IsActive() || rctx.prior.Has(p.ID) {
				continue
			}
			seen[p.ID] = struct{}{}
			products = append(products, p)
			rctx.result.Metadata.Stats.UncachedActive++
		}
	}

	rctx.result.Metadata.Stats.Fetched = len(products)
	rctx.logger.Debug().
		Str("stage", string(StageFetch)).
		Str("horizon", horizon).
		Int("products", len(products)).
		Msg("Fetched candidate products")
	return products, nil
}

func (e *Engine) filterProducts(rctx *runContext, products []catalog.Product) []catalog.Product {
	stats := &rctx.result.Metadata.Stats
	out := products[:0:0]
	for _, p := range products {
		if rctx.flags.Flagged(p.TrimmedSKU(), p.ID) {
			stats.FlaggedSkipped++
			continue
		}
		if !e.filter.ShouldInclude(p.TrimmedSKU(), p.VendorNames()) {
			stats.FilteredOut++
			continue
		}
		out = append(out, p)
	}
	rctx.logger.Debug().
		Str("stage", string(StageFilter)).
		Int("kept", len(out)).
		Int("flagged", stats.FlaggedSkipped).
		Int("excluded", stats.FilteredOut).
		Msg("Filtered products")
	return out
}

// resolveChanges splits products into those to build and inactive ones
// that are only recorded in the cache.
func (e *Engine) resolveChanges(rctx *runContext, products []catalog.Product) (changed, inactive []catalog.Product) {
	stats := &rctx.result.Metadata.Stats
	vendorSensitive := e.store.FilterMode.UsesVendors()
	for _, p := range products {
		if rctx.prior.Unchanged(p, vendorSensitive) {
			stats.Unchanged++
			continue
		}
		if !p.IsActive() && !e.includeInactive() {
			stats.InactiveSkipped++
			inactive = append(inactive, p)
			continue
		}
		changed = append(changed, p)
	}
	rctx.logger.Debug().
		Str("stage", string(StageResolveChanges)).
		Int("changed", len(changed)).
		Int("unchanged", stats.Unchanged).
		Int("inactive", stats.InactiveSkipped).
		Msg("Resolved changes")
	return changed, inactive
}

// builtProduct is a product whose detail was fetched and whose variants
// were resolved.
type builtProduct struct {
	product catalog.Product
	records []state.Record
	entry   cache.Entry
}

func (e *Engine) buildVariants(ctx context.Context, rctx *runContext, products []catalog.Product) ([]builtProduct, error) {
	if len(products) == 0 {
		return nil, nil
	}

	rows, err := e.client.FetchInventory(ctx)
	if err != nil {
		return nil, err
	}
	rctx.inventory = catalog.IndexInventory(rows)

	stats := &rctx.result.Metadata.Stats
	built := make([]builtProduct, 0, len(products))
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		detail, err := e.client.FetchProductDetail(ctx, p.ID)
		if err != nil {
			rctx.logger.Warn().
				Err(err).
				Str("stage", string(StageBuildVariants)).
				Str("product_id", p.ID.String()).
				Str("sku", p.SKU).
				Msg("Skipping product, detail fetch failed")
			stats.DetailErrors++
			rctx.result.Errors = append(rctx.result.Errors, err)
			continue
		}
		built = append(built, e.buildProduct(rctx, p, detail))
		stats.Built++
	}
	return built, nil
}

func (e *Engine) buildProduct(rctx *runContext, p catalog.Product, detail *catalog.ProductDetail) builtProduct {
	parentSKU := p.TrimmedSKU()
	vendors := p.VendorNames()
	finalSKUs := rctx.inventory[p.ID]
	prior := rctx.prior[p.ID].TagSources

	name := p.Name
	if name == "" {
		name = detail.Name
	}

	sources := make(map[string]tags.Sources, len(finalSKUs))
	records := make([]state.Record, 0, len(finalSKUs))
	for _, sku := range finalSKUs {
		desired, src := e.tags.Desired(sku, vendors)
		sources[sku] = src
		rec := state.Record{
			SKU:        sku,
			Name:       name,
			ImageURL:   e.resolveImage(detail, parentSKU, sku),
			Tags:       desired.Refs(),
			TagSources: src,
		}
		if released := tags.Released(prior[sku], desired); len(released) > 0 {
			rec.ReleasedTags = released
		}
		records = append(records, rec)
	}

	return builtProduct{
		product: p,
		records: records,
		entry:   cache.NewEntry(p, parentSKU, finalSKUs, sources),
	}
}

// emit assembles the ordered batch and the cache updates. Variants whose
// SKU is flagged, or already emitted by an earlier product, are dropped.
func (e *Engine) emit(rctx *runContext, built []builtProduct, inactive []catalog.Product) {
	res := rctx.result
	stats := &res.Metadata.Stats

	emitted := make(map[string]struct{})
	for _, b := range built {
		for _, rec := range b.records {
			if rctx.flags.Flagged(rec.SKU, "") {
				stats.VariantsFlagged++
				continue
			}
			if _, dup := emitted[rec.SKU]; dup {
				stats.DuplicateSKUs++
				continue
			}
			emitted[rec.SKU] = struct{}{}
			res.Batch = append(res.Batch, rec)
		}
		res.Updates[b.product.ID] = b.entry
	}

	for _, p := range inactive {
		prev := rctx.prior[p.ID]
		res.Updates[p.ID] = cache.NewEntry(p, p.TrimmedSKU(), prev.FinalSKUs, prev.TagSources)
	}

	stats.Variants = len(res.Batch)
	res.Cache = rctx.prior.Merge(res.Updates)
	res.Metadata.EndTime = time.Now()
	res.Metadata.Duration = res.Metadata.EndTime.Sub(res.Metadata.StartTime)

	rctx.logger.Info().
		Str("stage", string(StageEmit)).
		Int("fetched", stats.Fetched).
		Int("built", stats.Built).
		Int("unchanged", stats.Unchanged).
		Int("flagged", stats.FlaggedSkipped).
		Int("variants", stats.Variants).
		Int("detail_errors", stats.DetailErrors).
		Msg("Sync run complete")
}
