// Package brightsync keeps storefront catalogs and a fulfillment platform
// in step. For each configured store it scans the catalog for conflicts,
// builds a batch of changed variants while holding back conflicted
// records, pushes that batch, and retries what could not be applied.
package brightsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentstation/brightsync/pkg/cache"
	"github.com/agentstation/brightsync/pkg/config"
	"github.com/agentstation/brightsync/pkg/docstore"
	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/logging"
	"github.com/agentstation/brightsync/pkg/state"
)

// Runner runs store operations against one document store.
type Runner struct {
	options *options
	loader  *config.Loader
	cache   *cache.Store
	state   *state.State

	// flagsMu serializes read-modify-write of the shared flag document
	// within this process; a file lock covers other processes.
	flagsMu sync.Mutex

	// missingMu does the same for the combined missing-products CSV.
	missingMu sync.Mutex

	hooks *hooks
}

// New creates a Runner with the given options
func New(opts ...Option) (*Runner, error) {
	o := defaultOptions()
	if err := o.apply(opts...); err != nil {
		return nil, fmt.Errorf("applying options: %w", err)
	}
	return &Runner{
		options: o,
		loader:  config.NewLoader(o.docs),
		cache:   cache.NewStore(o.docs),
		state:   state.New(o.docs),
		hooks:   newHooks(),
	}, nil
}

// Docs returns the document store
func (r *Runner) Docs() docstore.Store {
	return r.options.docs
}

// OnConflictsDetected registers a callback for scans that found conflicts
func (r *Runner) OnConflictsDetected(fn ConflictsDetectedHook) {
	r.hooks.OnConflictsDetected(fn)
}

// OnBatchEmitted registers a callback for syncs that emitted a batch
func (r *Runner) OnBatchEmitted(fn BatchEmittedHook) {
	r.hooks.OnBatchEmitted(fn)
}

// OnStoreFailed registers a callback for failed store runs
func (r *Runner) OnStoreFailed(fn StoreFailedHook) {
	r.hooks.OnStoreFailed(fn)
}

// ListStores returns the keys of all configured stores
func (r *Runner) ListStores(ctx context.Context) ([]string, error) {
	return r.loader.StoreKeys(ctx)
}

// storeContext is what every operation on one store needs.
type storeContext struct {
	ctx     context.Context
	store   *config.Store
	vendors config.VendorTags
}

// loadStore reads a store's configuration and the vendor tag map. A missing
// vendor map is fatal only for stores that match on vendors.
func (r *Runner) loadStore(ctx context.Context, key string) (*storeContext, error) {
	store, err := r.loader.Store(ctx, key)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithStore(ctx, store.Name)

	vendors, err := r.loader.VendorTags(ctx)
	if err != nil {
		if !errors.IsConfigNotFound(err) || store.FilterMode.UsesVendors() {
			return nil, err
		}
		logging.FromContext(ctx).Warn().Err(err).Msg("No vendor tag map, vendor rules disabled")
		vendors = config.VendorTags{}
	}
	return &storeContext{ctx: ctx, store: store, vendors: vendors}, nil
}

// loadCache reads a store's snapshot. Only a corrupt cache falls back to
// empty; any other read failure stops the store so the cache is not
// overwritten from scratch.
func (r *Runner) loadCache(sc *storeContext, summary *Summary) (cache.Snapshot, error) {
	snap, err := r.cache.Get(sc.ctx, sc.store.FileKey())
	if err != nil {
		if !errors.IsCorruptState(err) {
			return nil, err
		}
		logging.FromContext(sc.ctx).Warn().Err(err).Msg("Ignoring unreadable cache")
		summary.addError(err)
	}
	return snap, nil
}
