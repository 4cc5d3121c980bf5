package brightsync

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/errors"
)

const (
	// flagsLockName is the lock file guarding the shared conflict flags.
	flagsLockName = "conflict_flags"
	// missingLockName guards the combined missing-products CSV.
	missingLockName = "missing_products_all"
)

// tryLock takes the named run lock without waiting. It returns a
// LockError when another run holds it.
func (r *Runner) tryLock(name string) (func(), error) {
	path, err := r.lockPath(name)
	if err != nil {
		return nil, errors.NewLockError(name, path, err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.NewLockError(name, path, err)
	}
	if !ok {
		return nil, errors.NewLockError(name, path, nil)
	}
	return func() { _ = fl.Unlock() }, nil
}

// lock takes the named lock, waiting for other processes to release it.
func (r *Runner) lock(name string) (func(), error) {
	path, err := r.lockPath(name)
	if err != nil {
		return nil, errors.NewLockError(name, path, err)
	}
	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, errors.NewLockError(name, path, err)
	}
	return func() { _ = fl.Unlock() }, nil
}

func (r *Runner) lockPath(name string) (string, error) {
	path := filepath.Join(r.options.lockDir, strings.ToLower(name)+".lock")
	if err := os.MkdirAll(r.options.lockDir, constants.DirPermissions); err != nil {
		return path, err
	}
	return path, nil
}
