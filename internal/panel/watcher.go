package panel

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads expert definitions into a registry when their files
// change, so a running session picks up edits without a restart.
type Watcher struct {
	registry *Registry
	dir      string
	fs       *fsnotify.Watcher
}

// NewWatcher starts watching dir for expert definition changes.
func NewWatcher(registry *Registry, dir string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{registry: registry, dir: dir, fs: fs}, nil
}

// Run processes filesystem events until the context is canceled.
// Writes are debounced: editors fire several events per save, and one
// reload covers them all.
func (w *Watcher) Run(ctx context.Context) {
	const debounce = 250 * time.Millisecond
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			if n, err := w.registry.LoadDir(w.dir); err != nil {
				debugLog("[watcher] reload failed: %v", err)
			} else {
				debugLog("[watcher] reloaded %d expert definitions", n)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			debugLog("[watcher] error: %v", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return false
	}
	ext := filepath.Ext(event.Name)
	return ext == ".yaml" || ext == ".yml"
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
