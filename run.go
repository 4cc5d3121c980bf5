package brightsync

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/logging"
)

// storeFunc is the body of an operation on one locked, configured store.
type storeFunc func(sc *storeContext, summary *Summary) error

// Run scans a store and then syncs it under one lock, so the sync sees
// the flags of the scan that just ran.
func (r *Runner) Run(ctx context.Context, key string) (*Summary, error) {
	return r.withStore(ctx, key, OpRun, func(sc *storeContext, summary *Summary) error {
		if err := r.scan(sc, summary); err != nil {
			return err
		}
		return r.sync(sc, summary)
	})
}

// RunAll applies op to every configured store, at most parallelism
// stores at a time. A store's failure is recorded in its summary and never
// stops the other stores. The error is non-nil only when the stores could
// not be listed.
func (r *Runner) RunAll(ctx context.Context, op Operation) ([]*Summary, error) {
	keys, err := r.ListStores(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]*Summary, len(keys))
	var g errgroup.Group
	g.SetLimit(r.options.parallelism)
	for i, key := range keys {
		g.Go(func() error {
			summary, err := r.Do(ctx, op, key)
			if err != nil {
				failed := logging.WithFields(ctx, map[string]any{"store": key, "operation": string(op)})
				logging.FromContext(logging.WithError(failed, err)).Error().Msg("Store failed")
			}
			summaries[i] = summary
			return nil
		})
	}
	_ = g.Wait()
	return summaries, nil
}

// Do applies op to one store.
func (r *Runner) Do(ctx context.Context, op Operation, key string) (*Summary, error) {
	switch op {
	case OpScan:
		return r.Scan(ctx, key)
	case OpSync:
		return r.Sync(ctx, key)
	case OpRun:
		return r.Run(ctx, key)
	case OpPush:
		return r.Push(ctx, key)
	default:
		err := errors.NewValidationError("operation", op, "must be one of scan, sync, run, push")
		summary := newSummary(key, op, "", r.options.now())
		summary.fail(err)
		return summary, err
	}
}

// withStore locks the store, loads its configuration and runs fn. Fatal
// errors end up in the summary, the StoreFailed hooks and the return value.
func (r *Runner) withStore(ctx context.Context, key string, op Operation, fn storeFunc) (*Summary, error) {
	start := time.Now()
	ctx, runID := logging.WithRun(ctx)
	ctx = logging.WithOperation(ctx, string(op))
	summary := newSummary(key, op, runID, r.options.now())
	defer summary.finish(start)

	fail := func(err error) (*Summary, error) {
		summary.fail(err)
		r.hooks.storeFailed(summary.Store, err)
		return summary, err
	}

	unlock, err := r.tryLock(key)
	if err != nil {
		return fail(err)
	}
	defer unlock()

	sc, err := r.loadStore(ctx, key)
	if err != nil {
		return fail(err)
	}
	summary.Store = sc.store.Name

	if err := fn(sc, summary); err != nil {
		return fail(errors.NewStoreError(sc.store.Name, string(op), err))
	}

	logging.FromContext(sc.ctx).Info().
		Int("conflicts_found", summary.ConflictsFound).
		Int("conflicts_cleared", summary.ConflictsCleared).
		Int("skus_synced", summary.SKUsSynced).
		Int("skus_skipped", summary.SKUsSkipped).
		Int("errors", len(summary.Errors)).
		Msg("Store complete")
	return summary, nil
}
