package brightsync

import (
	"sync"

	"github.com/agentstation/brightsync/pkg/conflicts"
	"github.com/agentstation/brightsync/pkg/state"
)

// Hook function types for store run events
type (
	// ConflictsDetectedHook is called after a scan found conflicts in a store
	ConflictsDetectedHook func(store string, rows []conflicts.Row)

	// BatchEmittedHook is called after a sync produced a non-empty batch
	BatchEmittedHook func(store string, batch state.Batch)

	// StoreFailedHook is called when a store's run stops on a fatal error
	StoreFailedHook func(store string, err error)
)

// hooks manages event callbacks for store runs
type hooks struct {
	mu                  sync.RWMutex
	onConflictsDetected []ConflictsDetectedHook
	onBatchEmitted      []BatchEmittedHook
	onStoreFailed       []StoreFailedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnConflictsDetected registers a callback for scans that found conflicts
func (h *hooks) OnConflictsDetected(fn ConflictsDetectedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConflictsDetected = append(h.onConflictsDetected, fn)
}

// OnBatchEmitted registers a callback for syncs that emitted a batch
func (h *hooks) OnBatchEmitted(fn BatchEmittedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onBatchEmitted = append(h.onBatchEmitted, fn)
}

// OnStoreFailed registers a callback for failed store runs
func (h *hooks) OnStoreFailed(fn StoreFailedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStoreFailed = append(h.onStoreFailed, fn)
}

func (h *hooks) conflictsDetected(store string, rows []conflicts.Row) {
	if len(rows) == 0 {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onConflictsDetected {
		hook(store, rows)
	}
}

func (h *hooks) batchEmitted(store string, batch state.Batch) {
	if len(batch) == 0 {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onBatchEmitted {
		hook(store, batch)
	}
}

func (h *hooks) storeFailed(store string, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onStoreFailed {
		hook(store, err)
	}
}
