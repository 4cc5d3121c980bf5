package state

import (
	"context"

	"github.com/agentstation/brightsync/pkg/conflicts"
	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/docstore"
)

// FlagsPath is the document path of the global conflict flags.
var FlagsPath = docstore.Join(constants.CacheFolder, constants.ConflictFlagsFile)

// FlagStore persists the global conflict flag mapping.
type FlagStore struct {
	docs docstore.Store
}

// Load reads the flag mapping. Missing flags are empty; corrupt flags are
// empty together with a CorruptStateError.
func (f *FlagStore) Load(ctx context.Context) (conflicts.Flags, error) {
	var flags conflicts.Flags
	if _, err := loadJSON(ctx, f.docs, FlagsPath, &flags); err != nil {
		return conflicts.Flags{}, err
	}
	if flags == nil {
		flags = conflicts.Flags{}
	}
	return flags, nil
}

// Save replaces the flag mapping.
func (f *FlagStore) Save(ctx context.Context, flags conflicts.Flags) error {
	return saveJSON(ctx, f.docs, FlagsPath, flags)
}
