// Package state reads and writes the engine's persisted artifacts in the
// document store: conflict reports, the global conflict flags, the
// per-store sync-ready batches and the missing-products CSVs.
package state

import (
	"context"
	"encoding/json"

	"github.com/agentstation/brightsync/pkg/docstore"
	"github.com/agentstation/brightsync/pkg/errors"
)

// State bundles the artifact stores over one document store.
type State struct {
	Reports *Reports
	Flags   *FlagStore
	Batches *Batches
	Missing *MissingReports
}

// New creates the artifact stores over docs.
func New(docs docstore.Store) *State {
	return &State{
		Reports: &Reports{docs: docs},
		Flags:   &FlagStore{docs: docs},
		Batches: &Batches{docs: docs},
		Missing: &MissingReports{docs: docs},
	}
}

// loadJSON decodes the document at p into v. It returns found=false for a
// missing document and a CorruptStateError for undecodable content.
func loadJSON(ctx context.Context, docs docstore.Store, p string, v any) (found bool, err error) {
	data, err := docs.Download(ctx, p)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, errors.NewCorruptStateError(p, err)
	}
	return true, nil
}

func saveJSON(ctx context.Context, docs docstore.Store, p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WrapParse("json", p, err)
	}
	return docs.Upload(ctx, p, data)
}
