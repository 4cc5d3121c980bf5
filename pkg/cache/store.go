package cache

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/docstore"
	"github.com/agentstation/brightsync/pkg/errors"
)

// Store persists snapshots in the document store.
type Store struct {
	docs docstore.Store
}

// NewStore creates a cache Store over docs.
func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

// Path returns the document path of a store's cache.
func Path(store string) string {
	return docstore.Join(constants.CacheFolder, strings.ToLower(store)+"_bs_cache.json")
}

// Get loads a store's snapshot. A missing cache is empty. A corrupt cache
// yields an empty snapshot together with a CorruptStateError.
func (c *Store) Get(ctx context.Context, store string) (Snapshot, error) {
	p := Path(store)
	data, err := c.docs.Download(ctx, p)
	if err != nil {
		if errors.IsNotFound(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.NewCorruptStateError(p, err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	for id, e := range snap {
		if e.ID == "" {
			e.ID = id
			snap[id] = e
		}
	}
	return snap, nil
}

// Put replaces a store's snapshot.
func (c *Store) Put(ctx context.Context, store string, snap Snapshot) error {
	p := Path(store)
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.WrapParse("json", p, err)
	}
	return c.docs.Upload(ctx, p, data)
}
