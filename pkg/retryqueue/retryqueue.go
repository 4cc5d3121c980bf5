// Package retryqueue is a bounded retry queue persisted in the document
// store. Failed items carry an attempt count; a rerun loads the queue,
// attempts each item, requeues failures and dead-letters items that reach
// the attempt limit.
package retryqueue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/docstore"
	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/logging"
)

// Item is one queued value.
type Item[T any] struct {
	Value     T      `json:"value"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Failure is a value that failed together with its cause.
type Failure[T any] struct {
	Value T
	Err   error
}

// Report summarizes one Process pass.
type Report struct {
	Attempted int `json:"attempted"`
	Cleared   int `json:"cleared"`
	Requeued  int `json:"requeued"`
	Dead      int `json:"dead"`
	Remaining int `json:"remaining"`
}

// Queue is the retry queue of one store.
type Queue[T any] struct {
	docs        docstore.Store
	name        string
	maxAttempts int
	key         func(T) string
	now         func() utc.Time
}

// New creates the queue called name. key identifies items so a value
// queued twice is kept once. maxAttempts <= 0 selects the default.
func New[T any](docs docstore.Store, name string, maxAttempts int, key func(T) string) *Queue[T] {
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultMaxAttempts
	}
	return &Queue[T]{
		docs:        docs,
		name:        strings.ToLower(name),
		maxAttempts: maxAttempts,
		key:         key,
		now:         utc.Now,
	}
}

// Path returns the document path of the queue called name.
func Path(name string) string {
	return docstore.Join(constants.MissingFolder, "missing_products_"+strings.ToLower(name)+".json")
}

// DeadPath returns the document path of the dead letters of the queue called name.
func DeadPath(name string) string {
	return docstore.Join(constants.MissingFolder, "dead_"+strings.ToLower(name)+".json")
}

// Names lists the queues present in the document store.
func Names(ctx context.Context, docs docstore.Store) ([]string, error) {
	files, err := docs.List(ctx, constants.MissingFolder)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, f := range files {
		if !strings.HasPrefix(f, "missing_products_") || !strings.HasSuffix(f, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(f, "missing_products_"), ".json"))
	}
	return names, nil
}

// Name returns the queue name.
func (q *Queue[T]) Name() string {
	return q.name
}

// Items returns the queued items. A missing queue is empty; a corrupt one
// is empty together with a CorruptStateError.
func (q *Queue[T]) Items(ctx context.Context) ([]Item[T], error) {
	return q.load(ctx, Path(q.name))
}

// DeadLetters returns the items that exhausted their attempts.
func (q *Queue[T]) DeadLetters(ctx context.Context) ([]Item[T], error) {
	return q.load(ctx, DeadPath(q.name))
}

// Add queues failures. A value already queued keeps its attempt count and
// takes the new error.
func (q *Queue[T]) Add(ctx context.Context, failures ...Failure[T]) error {
	if len(failures) == 0 {
		return nil
	}
	items, err := q.Items(ctx)
	if err != nil && !errors.IsCorruptState(err) {
		return err
	}

	index := make(map[string]int, len(items))
	for i, it := range items {
		index[q.key(it.Value)] = i
	}
	stamp := q.stamp()
	for _, f := range failures {
		k := q.key(f.Value)
		if i, ok := index[k]; ok {
			items[i].Value = f.Value
			items[i].LastError = errString(f.Err)
			items[i].UpdatedAt = stamp
			continue
		}
		index[k] = len(items)
		items = append(items, Item[T]{Value: f.Value, LastError: errString(f.Err), UpdatedAt: stamp})
	}
	return q.save(ctx, Path(q.name), items)
}

// Remove drops the items whose keys are given, typically because a newer
// value for them was applied. The dead letters are left alone.
func (q *Queue[T]) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	items, err := q.Items(ctx)
	if err != nil && !errors.IsCorruptState(err) {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	kept := items[:0]
	for _, it := range items {
		if _, ok := drop[q.key(it.Value)]; !ok {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	return q.save(ctx, Path(q.name), kept)
}

// Process attempts every queued item with fn. Successes are removed,
// failures are requeued with one more attempt, and items reaching the
// attempt limit move to the dead letters. When the context is canceled the
// untried items stay queued unchanged.
func (q *Queue[T]) Process(ctx context.Context, fn func(context.Context, T) error) (*Report, error) {
	log := logging.FromContext(ctx)

	items, err := q.Items(ctx)
	if err != nil {
		if !errors.IsCorruptState(err) {
			return nil, err
		}
		log.Warn().Err(err).Str("queue", q.name).Msg("Discarding corrupt retry queue")
	}

	report := &Report{}
	var remaining, dead []Item[T]
	stamp := q.stamp()
	var canceled error
	for i, it := range items {
		if canceled = ctx.Err(); canceled != nil {
			remaining = append(remaining, items[i:]...)
			break
		}
		report.Attempted++
		err := fn(ctx, it.Value)
		if err == nil {
			report.Cleared++
			continue
		}
		it.LastError = err.Error()
		it.Attempts++
		it.UpdatedAt = stamp
		if it.Attempts >= q.maxAttempts {
			report.Dead++
			dead = append(dead, it)
			log.Warn().Str("queue", q.name).Str("item", q.key(it.Value)).Int("attempts", it.Attempts).Msg("Retry attempts exhausted")
			continue
		}
		report.Requeued++
		remaining = append(remaining, it)
	}
	report.Remaining = len(remaining)

	// Progress is persisted even when ctx was canceled mid-pass.
	ctx = context.WithoutCancel(ctx)
	if len(dead) > 0 {
		prior, err := q.DeadLetters(ctx)
		if err != nil && !errors.IsCorruptState(err) {
			return report, err
		}
		if err := q.save(ctx, DeadPath(q.name), append(prior, dead...)); err != nil {
			return report, err
		}
	}
	if err := q.save(ctx, Path(q.name), remaining); err != nil {
		return report, err
	}

	log.Info().
		Str("queue", q.name).
		Int("cleared", report.Cleared).
		Int("requeued", report.Requeued).
		Int("dead", report.Dead).
		Msg("Retry queue processed")
	return report, canceled
}

func (q *Queue[T]) stamp() string {
	return q.now().Time.UTC().Format(time.RFC3339)
}

func (q *Queue[T]) load(ctx context.Context, p string) ([]Item[T], error) {
	data, err := q.docs.Download(ctx, p)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var items []Item[T]
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.NewCorruptStateError(p, err)
	}
	return items, nil
}

// save writes items to p, deleting the document when there are none.
func (q *Queue[T]) save(ctx context.Context, p string, items []Item[T]) error {
	if len(items) == 0 {
		return q.docs.Delete(ctx, p)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return errors.WrapParse("json", p, err)
	}
	return q.docs.Upload(ctx, p, data)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
