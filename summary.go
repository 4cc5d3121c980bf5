package brightsync

import (
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/brightsync/pkg/conflicts"
)

// Operation names a store operation.
type Operation string

// Store operations.
const (
	OpScan  Operation = "scan"
	OpSync  Operation = "sync"
	OpRun   Operation = "run"
	OpPush  Operation = "push"
	OpRerun Operation = "rerun"
)

// Summary is the operational summary of one operation on one store.
type Summary struct {
	Store     string    `json:"store" yaml:"store"`
	Operation Operation `json:"operation" yaml:"operation"`
	RunID     string    `json:"run_id" yaml:"run_id"`
	StartedAt string    `json:"started_at" yaml:"started_at"`
	Duration  string    `json:"duration" yaml:"duration"`

	// Scan
	ConflictsFound   int                    `json:"conflicts_found" yaml:"conflicts_found"`
	ConflictsCleared int                    `json:"conflicts_cleared" yaml:"conflicts_cleared"`
	ConflictKinds    map[conflicts.Kind]int `json:"conflict_kinds,omitempty" yaml:"conflict_kinds,omitempty"`
	Report           string                 `json:"report,omitempty" yaml:"report,omitempty"`

	// Sync
	SKUsSynced        int `json:"skus_synced" yaml:"skus_synced"`
	SKUsSkipped       int `json:"skus_skipped" yaml:"skus_skipped"`
	ProductsUnchanged int `json:"products_unchanged" yaml:"products_unchanged"`
	DetailErrors      int `json:"detail_errors" yaml:"detail_errors"`

	// Push and rerun
	Updated     int `json:"updated" yaml:"updated"`
	Missing     int `json:"missing" yaml:"missing"`
	Queued      int `json:"queued" yaml:"queued"`
	Cleared     int `json:"cleared" yaml:"cleared"`
	DeadLetters int `json:"dead_letters" yaml:"dead_letters"`

	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Err is the fatal error that stopped the operation, if any.
	Err error `json:"-" yaml:"-"`
}

func newSummary(store string, op Operation, runID string, now utc.Time) *Summary {
	return &Summary{Store: store, Operation: op, RunID: runID, StartedAt: now.Time.UTC().Format(time.RFC3339)}
}

// Failed reports whether the operation stopped on a fatal error.
func (s *Summary) Failed() bool {
	return s.Err != nil
}

// OK reports whether the operation completed without any error.
func (s *Summary) OK() bool {
	return s.Err == nil && len(s.Errors) == 0
}

func (s *Summary) addError(err error) {
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
}

func (s *Summary) fail(err error) {
	s.Err = err
	s.addError(err)
}

func (s *Summary) finish(start time.Time) {
	s.Duration = time.Since(start).Round(time.Millisecond).String()
}
