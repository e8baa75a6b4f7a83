// Package lock serialises sitesnap operations on a snapshot root.
package lock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// FileName is the lock file created inside the snapshot root.
const FileName = ".sitesnap.lock"

// ErrLocked is returned when another process holds the root.
var ErrLocked = errors.New("snapshot root is locked by another sitesnap process")

// Lock is a held advisory lock on a snapshot root.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock on root without blocking.
func Acquire(root string) (*Lock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create snapshot root")
	}
	path := filepath.Join(root, FileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "lock %s", path)
	}
	if !ok {
		return nil, errors.Wrap(ErrLocked, path)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
