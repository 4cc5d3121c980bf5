package brightsync

import (
	"context"
	"strings"
	"time"

	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/logging"
	"github.com/agentstation/brightsync/pkg/push"
	"github.com/agentstation/brightsync/pkg/retryqueue"
	"github.com/agentstation/brightsync/pkg/state"
)

// Push applies the store's sync-ready batch to the fulfillment platform.
// Variants that could not be applied go to the store's retry queue and the
// batch is cleared.
func (r *Runner) Push(ctx context.Context, key string) (*Summary, error) {
	return r.withStore(ctx, key, OpPush, r.push)
}

func (r *Runner) push(sc *storeContext, summary *Summary) error {
	pusher, err := r.pusher()
	if err != nil {
		return err
	}
	ctx := logging.WithStage(sc.ctx, string(OpPush))
	log := logging.FromContext(ctx)

	batch, err := r.state.Batches.Load(ctx, sc.store.FileKey())
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		log.Info().Msg("Nothing to push")
		return nil
	}

	res, err := pusher.Push(ctx, batch, r.queue(sc.store.FileKey()))
	if err != nil {
		// The failures were not queued; keep the batch for the next push.
		log.Error().Err(err).Msg("Retry queue not written, batch kept")
		summary.addError(err)
		return nil
	}
	summary.Updated = len(res.Updated)
	summary.Missing = len(res.Missing)
	summary.Queued = len(res.Missing) + len(res.Failed)

	if err := r.exportMissing(ctx, sc.store.FileKey()); err != nil {
		log.Error().Err(err).Msg("Missing-products CSV not written")
		summary.addError(err)
	}

	if err := r.state.Batches.Save(ctx, sc.store.FileKey(), nil); err != nil {
		log.Error().Err(err).Msg("Pushed batch not cleared")
		summary.addError(err)
	}
	return nil
}

// Rerun retries every store's queued variants. Variants failing too often
// move to the store's dead-letter document.
func (r *Runner) Rerun(ctx context.Context) ([]*Summary, error) {
	pusher, err := r.pusher()
	if err != nil {
		return nil, err
	}
	names, err := retryqueue.Names(ctx, r.options.docs)
	if err != nil {
		return nil, err
	}

	summaries := make([]*Summary, 0, len(names))
	for _, name := range names {
		summaries = append(summaries, r.rerun(ctx, pusher, name))
	}
	return summaries, nil
}

func (r *Runner) rerun(ctx context.Context, pusher *push.Pusher, name string) *Summary {
	start := time.Now()
	ctx, runID := logging.WithRun(ctx)
	ctx = logging.WithStore(logging.WithOperation(ctx, string(OpRerun)), name)
	summary := newSummary(name, OpRerun, runID, r.options.now())
	defer summary.finish(start)

	unlock, err := r.tryLock(name)
	if err != nil {
		summary.fail(err)
		r.hooks.storeFailed(name, err)
		return summary
	}
	defer unlock()

	report, err := r.queue(name).Process(ctx, pusher.Apply)
	if report != nil {
		summary.Cleared = report.Cleared
		summary.Queued = report.Remaining
		summary.DeadLetters = report.Dead
	}
	if err != nil {
		summary.fail(err)
		r.hooks.storeFailed(name, err)
		return summary
	}
	if err := r.exportMissing(ctx, name); err != nil {
		logging.FromContext(ctx).Error().Err(err).Msg("Missing-products CSV not written")
		summary.addError(err)
	}
	return summary
}

// exportMissing rewrites the named queue's CSV companion and rebuilds the
// combined CSV over every queue.
func (r *Runner) exportMissing(ctx context.Context, name string) error {
	r.missingMu.Lock()
	defer r.missingMu.Unlock()

	unlock, err := r.lock(missingLockName)
	if err != nil {
		return err
	}
	defer unlock()

	names, err := retryqueue.Names(ctx, r.options.docs)
	if err != nil {
		return err
	}
	byStore := make(map[string][]state.Record, len(names))
	for _, n := range names {
		items, err := r.queue(n).Items(ctx)
		if err != nil {
			if !errors.IsCorruptState(err) {
				return err
			}
			logging.FromContext(ctx).Warn().Err(err).Str("queue", n).Msg("Leaving unreadable queue out of the CSV")
			continue
		}
		for _, it := range items {
			byStore[n] = append(byStore[n], it.Value)
		}
	}

	if err := r.state.Missing.Write(ctx, name, byStore[strings.ToLower(name)]); err != nil {
		return err
	}
	return r.state.Missing.Rebuild(ctx, byStore)
}

func (r *Runner) pusher() (*push.Pusher, error) {
	if r.options.fulfillment == nil {
		return nil, &errors.ValidationError{Field: "fulfillment", Message: "no fulfillment client configured"}
	}
	return push.New(r.options.fulfillment, push.WithParallelism(r.options.parallelism)), nil
}

func (r *Runner) queue(name string) *retryqueue.Queue[state.Record] {
	return retryqueue.New(r.options.docs, name, r.options.maxAttempts, func(rec state.Record) string { return rec.SKU })
}
