package brightsync

import (
	"context"

	"github.com/agentstation/brightsync/pkg/conflicts"
	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/filter"
	"github.com/agentstation/brightsync/pkg/logging"
)

// Scan scans a store's catalog for conflicts, replaces its conflict report
// and recomputes its entry in the shared conflict flags.
func (r *Runner) Scan(ctx context.Context, key string) (*Summary, error) {
	return r.withStore(ctx, key, OpScan, r.scan)
}

func (r *Runner) scan(sc *storeContext, summary *Summary) error {
	ctx := logging.WithStage(sc.ctx, string(OpScan))
	log := logging.FromContext(ctx)

	snap, err := r.loadCache(sc, summary)
	if err != nil {
		return err
	}
	scanner := conflicts.NewScanner(
		r.options.catalogs(sc.store),
		sc.store,
		filter.New(sc.store, sc.vendors),
		conflicts.WithClock(r.options.now),
		conflicts.WithCache(snap),
	)
	res, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}

	summary.ConflictsFound = len(res.Rows)
	summary.ConflictKinds = conflicts.CountByKind(res.Rows)
	summary.DetailErrors += len(res.DetailErrors)

	written, deleted, err := r.state.Reports.Replace(ctx, sc.store.FileKey(), res.CheckedAt, res.Rows)
	if err != nil {
		log.Error().Err(err).Msg("Conflict report not written")
		summary.addError(err)
	}
	summary.Report = written
	if len(deleted) > 0 {
		log.Debug().Strs("deleted", deleted).Msg("Removed older conflict reports")
	}

	cleared, err := r.updateFlags(ctx, sc.store.FlagKey(), res.Flag)
	if err != nil {
		log.Error().Err(err).Msg("Conflict flags not updated")
		summary.addError(err)
	}
	summary.ConflictsCleared = cleared

	r.hooks.conflictsDetected(sc.store.Name, res.Rows)
	return nil
}

// updateFlags replaces key's entry in the shared flag document and returns
// how many previously flagged SKUs are no longer flagged.
func (r *Runner) updateFlags(ctx context.Context, key string, entry *conflicts.FlagEntry) (int, error) {
	r.flagsMu.Lock()
	defer r.flagsMu.Unlock()

	unlock, err := r.lock(flagsLockName)
	if err != nil {
		return 0, err
	}
	defer unlock()

	flags, err := r.state.Flags.Load(ctx)
	if err != nil {
		if !errors.IsCorruptState(err) {
			return 0, err
		}
		logging.FromContext(ctx).Warn().Err(err).Msg("Rebuilding unreadable conflict flags")
	}

	prev := flags[key]
	flags.Apply(key, entry)
	if err := r.state.Flags.Save(ctx, flags); err != nil {
		return 0, err
	}

	still := flags.Lookup(key)
	cleared := 0
	for _, sku := range prev.SKUs {
		if !still.Flagged(sku, "") {
			cleared++
		}
	}
	return cleared, nil
}
