package state

import (
	"context"
	"strings"

	"github.com/agentstation/brightsync/pkg/config"
	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/docstore"
	"github.com/agentstation/brightsync/pkg/tags"
)

// Record is one sellable variant ready to push to the fulfillment platform.
type Record struct {
	SKU        string       `json:"sku"`
	Name       string       `json:"name"`
	ImageURL   string       `json:"imageUrl,omitempty"`
	Tags       []tags.Ref   `json:"tags"`
	TagSources tags.Sources `json:"tagSources"`

	// ReleasedTags were assigned by a previous run and are no longer desired.
	ReleasedTags []config.TagID `json:"releasedTags,omitempty"`
}

// Batch is a store's ordered sync-ready variant list.
type Batch []Record

// Batches persists sync-ready batches.
type Batches struct {
	docs docstore.Store
}

// BatchPath returns the document path of a store's sync-ready batch.
func BatchPath(store string) string {
	return docstore.Join(constants.SyncReadyFolder, strings.ToLower(store)+"_sync_ready.json")
}

// Save writes the store's batch, or deletes a stale batch when b is empty.
func (s *Batches) Save(ctx context.Context, store string, b Batch) error {
	if len(b) == 0 {
		return s.docs.Delete(ctx, BatchPath(store))
	}
	return saveJSON(ctx, s.docs, BatchPath(store), b)
}

// Load reads the store's batch. A missing batch is empty.
func (s *Batches) Load(ctx context.Context, store string) (Batch, error) {
	var b Batch
	if _, err := loadJSON(ctx, s.docs, BatchPath(store), &b); err != nil {
		return nil, err
	}
	return b, nil
}
