// Package watch waits for a manifest file to change between synchronization
// passes.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/depo/internal/errors"
)

// ErrClosed is returned by Wait once the watcher has been closed.
var ErrClosed = errors.New("watcher closed")

// DefaultDebounce collapses the bursts of events editors emit for one save.
const DefaultDebounce = 50 * time.Millisecond

// Reason tells why Wait returned.
type Reason int

const (
	// Elapsed means the interval passed without a change.
	Elapsed Reason = iota
	// Changed means the file was written, replaced or removed.
	Changed
)

func (r Reason) String() string {
	if r == Changed {
		return "changed"
	}
	return "elapsed"
}

// Watcher watches one file. The file's directory is watched so that editors
// replacing the file through a rename are noticed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
}

// New starts watching path.
func New(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	return &Watcher{
		watcher:  watcher,
		path:     filepath.Clean(abs),
		debounce: DefaultDebounce,
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Wait blocks until the file changes, interval elapses (interval <= 0 waits
// for a change only) or ctx is done.
func (w *Watcher) Wait(ctx context.Context, interval time.Duration) (Reason, error) {
	var elapsed <-chan time.Time
	if interval > 0 {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		elapsed = timer.C
	}

	// Debounce: fire once the events for a save have stopped arriving
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Elapsed, ctx.Err()

		case <-elapsed:
			return Elapsed, nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return Elapsed, ErrClosed
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			return Changed, nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return Elapsed, ErrClosed
			}
			return Elapsed, err
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
