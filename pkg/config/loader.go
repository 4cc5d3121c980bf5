package config

import (
	"context"
	"sort"
	"strings"

	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/docstore"
	"github.com/agentstation/brightsync/pkg/errors"
)

// Loader reads configuration documents from the document store.
type Loader struct {
	docs docstore.Store
}

// NewLoader creates a Loader over docs.
func NewLoader(docs docstore.Store) *Loader {
	return &Loader{docs: docs}
}

// StorePath returns the document path of a store's configuration.
func StorePath(key string) string {
	return docstore.Join(constants.StoreConfigFolder, strings.ToLower(key)+constants.StoreConfigSuffix)
}

// VendorTagsPath is the document path of the global vendor tag map.
var VendorTagsPath = docstore.Join(constants.GlobalConfigFolder, constants.VendorTagMapFile)

// Store loads and validates the configuration for key.
func (l *Loader) Store(ctx context.Context, key string) (*Store, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	p := StorePath(key)
	data, err := l.docs.Download(ctx, p)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewConfigNotFoundError(key, p, err)
		}
		return nil, err
	}
	return Parse(key, data)
}

// VendorTags loads the global vendor tag map.
func (l *Loader) VendorTags(ctx context.Context) (VendorTags, error) {
	data, err := l.docs.Download(ctx, VendorTagsPath)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewConfigNotFoundError("", VendorTagsPath, err)
		}
		return nil, err
	}
	return ParseVendorTags(data)
}

// StoreKeys lists the keys of all configured stores, sorted.
func (l *Loader) StoreKeys(ctx context.Context) ([]string, error) {
	names, err := l.docs.List(ctx, constants.StoreConfigFolder)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(names))
	for _, name := range names {
		if key, ok := strings.CutSuffix(name, constants.StoreConfigSuffix); ok && key != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
