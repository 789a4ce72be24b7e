// Package watch follows the alerts directory and reports the pending count
// as it changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events a single publish or sweep
// produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher emits the result of Count once at start and again whenever a
// record file change moves it.
type Watcher struct {
	Dir      string
	Count    func() (int, error)
	Debounce time.Duration
	Log      *log.Logger
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context, emit func(count int)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	last, err := w.Count()
	if err != nil {
		return err
	}
	emit(last)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isRecord(event.Name) {
				continue
			}
			w.diag("fsnotify event", "op", event.Op.String(), "file", filepath.Base(event.Name))
			timer.Reset(debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.diag("fsnotify error", "err", err)
		case <-timer.C:
			n, err := w.Count()
			if err != nil {
				return err
			}
			if n != last {
				last = n
				emit(n)
			}
		}
	}
}

// isRecord skips the lock file and in-flight temp files.
func isRecord(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && filepath.Ext(base) == ".yaml"
}

// diag logs at Warn so it shows on a default-level logger; callers gate it
// by passing a nil Log.
func (w *Watcher) diag(msg string, keyvals ...interface{}) {
	if w.Log != nil {
		w.Log.Warn(msg, keyvals...)
	}
}
