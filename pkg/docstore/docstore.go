// Package docstore is the document store the engine persists its artifacts to:
// caches, conflict flags, reports, sync-ready batches and retry queues.
// Paths are slash-separated and relative to the store root.
package docstore

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/errors"
)

// Store is the document store interface.
type Store interface {
	// Upload writes data to p, replacing any previous content atomically.
	Upload(ctx context.Context, p string, data []byte) error
	// Download reads p. Missing documents yield a NotFoundError.
	Download(ctx context.Context, p string) ([]byte, error)
	// Delete removes p. Deleting a missing document is not an error.
	Delete(ctx context.Context, p string) error
	// List returns the names of the documents directly inside folder, sorted.
	List(ctx context.Context, folder string) ([]string, error)
}

// FS is a Store backed by an afero file system.
type FS struct {
	fs afero.Fs
}

var _ Store = (*FS)(nil)

// New returns a Store over fsys.
func New(fsys afero.Fs) *FS {
	return &FS{fs: fsys}
}

// NewOS returns a Store rooted at dir on the local disk.
func NewOS(dir string) *FS {
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// NewMemory returns an in-memory Store.
func NewMemory() *FS {
	return New(afero.NewMemMapFs())
}

// Fs exposes the underlying file system.
func (s *FS) Fs() afero.Fs {
	return s.fs
}

// Upload implements Store.
func (s *FS) Upload(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapUpload(p, err)
	}
	name := clean(p)

	if err := s.fs.MkdirAll(filepath.Dir(name), constants.DirPermissions); err != nil {
		return errors.WrapUpload(p, errors.WrapIO("mkdir", filepath.Dir(name), err))
	}

	tmp := name + ".tmp-" + uuid.NewString()
	if err := afero.WriteFile(s.fs, tmp, data, constants.FilePermissions); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.WrapUpload(p, errors.WrapIO("write", tmp, err))
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.WrapUpload(p, errors.WrapIO("rename", name, err))
	}
	return nil
}

// Download implements Store.
func (s *FS) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := clean(p)

	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		if isNotExist(err) {
			return nil, errors.NewNotFoundError("document", p)
		}
		return nil, errors.WrapIO("read", p, err)
	}
	return data, nil
}

// Delete implements Store.
func (s *FS) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := clean(p)

	if err := s.fs.Remove(name); err != nil && !isNotExist(err) {
		return errors.WrapIO("delete", p, err)
	}
	return nil
}

// List implements Store.
func (s *FS) List(ctx context.Context, folder string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := clean(folder)

	infos, err := afero.ReadDir(s.fs, name)
	if err != nil {
		if isNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.WrapIO("list", folder, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || strings.Contains(info.Name(), ".tmp-") {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Join builds a document path from folder and name.
func Join(folder, name string) string {
	return path.Join(folder, name)
}

// clean anchors p at the store root so ".." cannot escape it.
func clean(p string) string {
	return filepath.FromSlash(path.Clean("/" + strings.TrimSpace(p)))
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, fs.ErrNotExist)
}
