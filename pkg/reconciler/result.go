package reconciler

import (
	"fmt"
	"time"

	"github.com/agentstation/brightsync/pkg/cache"
	"github.com/agentstation/brightsync/pkg/state"
)

// Result represents the outcome of one store's sync run.
type Result struct {
	// Batch is the ordered list of variant records ready to push.
	Batch state.Batch

	// Updates holds the cache entries computed by this run.
	Updates cache.Snapshot

	// Cache is the prior snapshot merged with Updates.
	Cache cache.Snapshot

	// Metadata
	Metadata ResultMetadata

	// Errors are the recoverable detail failures of the run.
	Errors []error
}

// ResultMetadata contains metadata about the run.
type ResultMetadata struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Horizon is the updated-since timestamp sent to the catalog.
	Horizon string

	Stats ResultStatistics
}

// ResultStatistics counts products and variants per stage.
type ResultStatistics struct {
	Fetched         int
	UncachedActive  int
	FlaggedSkipped  int
	FilteredOut     int
	Unchanged       int
	InactiveSkipped int
	Built           int
	DetailErrors    int
	Variants        int
	VariantsFlagged int
	DuplicateSKUs   int
}

// IsSuccess returns true if every changed product was built.
func (r *Result) IsSuccess() bool {
	return len(r.Errors) == 0
}

// HasBatch returns true if at least one variant qualified.
func (r *Result) HasBatch() bool {
	return len(r.Batch) > 0
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	s := r.Metadata.Stats
	return fmt.Sprintf("%d fetched, %d built, %d unchanged, %d skipped for conflicts, %d variants ready, %d errors",
		s.Fetched, s.Built, s.Unchanged, s.FlaggedSkipped, len(r.Batch), len(r.Errors))
}

// NewResult creates a new result with defaults.
func NewResult() *Result {
	return &Result{
		Updates: cache.Snapshot{},
		Errors:  []error{},
		Metadata: ResultMetadata{
			StartTime: time.Now(),
		},
	}
}
