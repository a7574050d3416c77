// Package runlock keeps two depo runs from working on the same mirror root.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/Iron-Ham/depo/internal/errors"
)

// Dir is the state directory under the mirror root.
const Dir = ".depo"

const lockFileName = "depo.lock"

// Lock provides cross-process mutual exclusion for a mirror root using
// flock(2). The lock file is <root>/.depo/depo.lock.
type Lock struct {
	path  string
	flock *flock.Flock
}

// New creates a Lock for the mirror root. Call Acquire/Release to take and
// drop it.
func New(root string) *Lock {
	path := filepath.Join(root, Dir, lockFileName)
	return &Lock{
		path:  path,
		flock: flock.New(path),
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock without blocking. It fails with ErrRunLocked when
// another run holds it. The process id is written into the lock file.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	if !locked {
		holder := ""
		if data, readErr := os.ReadFile(l.path); readErr == nil && len(data) > 0 {
			holder = fmt.Sprintf(" (pid %s)", string(data))
		}
		return errors.Wrapf(errors.ErrRunLocked, "%s%s", l.path, holder)
	}

	if err := os.WriteFile(l.path, []byte(fmt.Sprint(os.Getpid())), 0o644); err != nil {
		_ = l.flock.Unlock()
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

// Locked reports whether this Lock currently holds the lock.
func (l *Lock) Locked() bool {
	return l.flock.Locked()
}

// Release drops the lock. Releasing a lock that is not held is a no-op.
func (l *Lock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("funlock: %w", err)
	}
	return nil
}
