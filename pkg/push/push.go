// Package push applies sync-ready batches to the fulfillment platform.
// Each variant's tags are reconciled against the tags it currently
// carries, so tags owned by other systems survive. Variants that cannot be
// applied are handed to the store's retry queue.
package push

import (
	"context"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/logging"
	"github.com/agentstation/brightsync/pkg/retryqueue"
	"github.com/agentstation/brightsync/pkg/state"
	"github.com/agentstation/brightsync/pkg/tags"
)

// ReasonReleased marks tags a previous run assigned and this run dropped.
const ReasonReleased = "released"

// Product is a fulfillment platform product.
type Product struct {
	ID           string     `json:"productId"`
	SKU          string     `json:"sku"`
	Name         string     `json:"name"`
	ImageURL     string     `json:"imageUrl,omitempty"`
	ThumbnailURL string     `json:"thumbnailUrl,omitempty"`
	Tags         []tags.Ref `json:"tags"`
}

// Fulfillment is the part of the fulfillment platform the pusher needs.
// FindBySKU returns a NotFoundError when no product carries sku.
type Fulfillment interface {
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
}

// Result summarizes a push.
type Result struct {
	Updated   []string          `json:"updated"`
	Unchanged []string          `json:"unchanged"`
	Missing   []string          `json:"missing"`
	Failed    map[string]string `json:"failed"`
}

// Pusher applies records to the fulfillment platform.
type Pusher struct {
	client      Fulfillment
	parallelism int
}

// Option configures a Pusher.
type Option func(*Pusher)

// WithParallelism bounds the number of concurrent updates.
func WithParallelism(n int) Option {
	return func(p *Pusher) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// New creates a Pusher.
func New(client Fulfillment, opts ...Option) *Pusher {
	p := &Pusher{client: client, parallelism: 1}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Push applies every record of batch. Records that fail are added to queue
// when it is non-nil, and applied records leave it. Only queue failures are
// returned as errors.
func (p *Pusher) Push(ctx context.Context, batch state.Batch, queue *retryqueue.Queue[state.Record]) (*Result, error) {
	log := logging.FromContext(ctx)
	res := &Result{Failed: map[string]string{}}

	var (
		mu       sync.Mutex
		failures []retryqueue.Failure[state.Record]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for _, rec := range batch {
		g.Go(func() error {
			changed, err := p.apply(gctx, rec)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && changed:
				res.Updated = append(res.Updated, rec.SKU)
			case err == nil:
				res.Unchanged = append(res.Unchanged, rec.SKU)
			case errors.IsNotFound(err):
				res.Missing = append(res.Missing, rec.SKU)
				failures = append(failures, retryqueue.Failure[state.Record]{Value: rec, Err: err})
			default:
				log.Warn().Err(err).Str("sku", rec.SKU).Msg("Failed to apply variant")
				res.Failed[rec.SKU] = err.Error()
				failures = append(failures, retryqueue.Failure[state.Record]{Value: rec, Err: err})
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(res.Updated)
	slices.Sort(res.Unchanged)
	slices.Sort(res.Missing)
	slices.SortFunc(failures, func(a, b retryqueue.Failure[state.Record]) int {
		return strings.Compare(a.Value.SKU, b.Value.SKU)
	})

	log.Info().
		Int("updated", len(res.Updated)).
		Int("unchanged", len(res.Unchanged)).
		Int("missing", len(res.Missing)).
		Int("failed", len(res.Failed)).
		Msg("Batch pushed")

	if queue == nil {
		return res, nil
	}
	// Applied records supersede whatever an earlier push queued for them.
	if err := queue.Remove(ctx, slices.Concat(res.Updated, res.Unchanged)...); err != nil {
		return res, err
	}
	if len(failures) > 0 {
		if err := queue.Add(ctx, failures...); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Apply applies one record. It is the retry function of a store's queue.
func (p *Pusher) Apply(ctx context.Context, rec state.Record) error {
	_, err := p.apply(ctx, rec)
	return err
}

// apply reconciles rec onto its fulfillment product and reports whether
// an update was sent.
func (p *Pusher) apply(ctx context.Context, rec state.Record) (bool, error) {
	current, err := p.client.FindBySKU(ctx, rec.SKU)
	if err != nil {
		return false, err
	}

	desired := tags.NewSet(tags.IDs(rec.Tags)...)
	final := tags.Merge(tags.IDs(current.Tags), Owned(rec), desired)

	next := *current
	next.Tags = final.Refs()
	if rec.Name != "" {
		next.Name = rec.Name
	}
	if rec.ImageURL != "" {
		next.ImageURL = rec.ImageURL
		next.ThumbnailURL = rec.ImageURL
	}

	if sameProduct(current, &next) {
		return false, nil
	}
	if err := p.client.UpdateProduct(ctx, &next); err != nil {
		return false, err
	}
	return true, nil
}

// Owned returns the provenance of the tags the engine owns on rec's
// product: its current sources plus the tags it released this run.
func Owned(rec state.Record) tags.Sources {
	owned := make(tags.Sources, len(rec.TagSources)+len(rec.ReleasedTags))
	for id, reasons := range rec.TagSources {
		owned[id] = slices.Clone(reasons)
	}
	for _, id := range rec.ReleasedTags {
		owned.Add(id, ReasonReleased)
	}
	return owned
}

func sameProduct(a, b *Product) bool {
	return a.Name == b.Name &&
		a.ImageURL == b.ImageURL &&
		a.ThumbnailURL == b.ThumbnailURL &&
		slices.Equal(tags.NewSet(tags.IDs(a.Tags)...), tags.NewSet(tags.IDs(b.Tags)...))
}
