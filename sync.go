package brightsync

import (
	"context"
	"slices"

	"github.com/agentstation/brightsync/pkg/cache"
	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/config"
	"github.com/agentstation/brightsync/pkg/conflicts"
	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/logging"
	"github.com/agentstation/brightsync/pkg/reconciler"
	"github.com/agentstation/brightsync/pkg/state"
	"github.com/agentstation/brightsync/pkg/tags"
)

// Sync builds the store's sync-ready batch from the products changed since
// the last sync, holding back everything the current conflict flags name.
// The cache is written only after the batch is stored.
func (r *Runner) Sync(ctx context.Context, key string) (*Summary, error) {
	return r.withStore(ctx, key, OpSync, r.sync)
}

func (r *Runner) sync(sc *storeContext, summary *Summary) error {
	ctx := logging.WithStage(sc.ctx, string(OpSync))
	log := logging.FromContext(ctx)

	snap, err := r.loadCache(sc, summary)
	if err != nil {
		return err
	}
	flags, err := r.state.Flags.Load(ctx)
	if err != nil {
		if !errors.IsCorruptState(err) {
			return err
		}
		log.Warn().Err(err).Msg("Syncing without unreadable conflict flags")
		summary.addError(err)
	}
	flagged := flags.Lookup(sc.store.FlagKey())

	engine, err := reconciler.New(r.options.catalogs(sc.store), sc.store, sc.vendors, reconciler.WithClock(r.options.now))
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, snap, flagged)
	if err != nil {
		return err
	}

	stats := res.Metadata.Stats
	summary.SKUsSynced = len(res.Batch)
	summary.SKUsSkipped = stats.FlaggedSkipped + stats.VariantsFlagged
	summary.ProductsUnchanged = stats.Unchanged
	summary.DetailErrors += stats.DetailErrors
	for _, err := range res.Errors {
		summary.addError(err)
	}

	if res.HasBatch() {
		pending, err := r.state.Batches.Load(ctx, sc.store.FileKey())
		if err != nil {
			if !errors.IsCorruptState(err) {
				return err
			}
			log.Warn().Err(err).Msg("Replacing unreadable pending batch")
			pending = nil
		}
		batch := mergeBatch(pending, res.Batch, flagged, res.Cache)
		if err := r.state.Batches.Save(ctx, sc.store.FileKey(), batch); err != nil {
			log.Error().Err(err).Msg("Batch not stored, cache left unchanged")
			summary.addError(err)
			return nil
		}
		if len(pending) > 0 {
			log.Info().Int("pending", len(pending)).Int("batch", len(batch)).Msg("Merged with unpushed batch")
		}
		r.hooks.batchEmitted(sc.store.Name, batch)
	}

	if err := r.cache.Put(ctx, sc.store.FileKey(), res.Cache); err != nil {
		log.Error().Err(err).Msg("Cache not written")
		summary.addError(err)
	}
	return nil
}

// mergeBatch appends fresh to the records of an unpushed batch. Fresh
// records replace pending ones with the same SKU and inherit their released
// tags, since those were never removed from the fulfillment product. Pending
// records that are now flagged are dropped.
func mergeBatch(pending, fresh state.Batch, flagged conflicts.Set, snap cache.Snapshot) state.Batch {
	if len(pending) == 0 {
		return fresh
	}
	owners := make(map[string]catalog.ProductID)
	for id, e := range snap {
		for _, sku := range e.FinalSKUs {
			owners[sku] = id
		}
	}
	replaced := make(map[string]int, len(fresh))
	for i, rec := range fresh {
		replaced[rec.SKU] = i
	}

	merged := slices.Clone(fresh)
	out := make(state.Batch, 0, len(pending)+len(fresh))
	for _, rec := range pending {
		if i, ok := replaced[rec.SKU]; ok {
			merged[i].ReleasedTags = carryReleased(rec.ReleasedTags, merged[i])
			continue
		}
		if flagged.Flagged(rec.SKU, owners[rec.SKU]) {
			continue
		}
		out = append(out, rec)
	}
	return append(out, merged...)
}

// carryReleased unions earlier released tags into rec's, minus the tags rec
// desires again.
func carryReleased(earlier []config.TagID, rec state.Record) []config.TagID {
	if len(earlier) == 0 {
		return rec.ReleasedTags
	}
	desired := tags.NewSet(tags.IDs(rec.Tags)...)
	var out []config.TagID
	for _, id := range tags.NewSet(append(slices.Clone(rec.ReleasedTags), earlier...)...) {
		if !desired.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}
