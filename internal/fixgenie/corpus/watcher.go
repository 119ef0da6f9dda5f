package corpus

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
)

// debounceWindow coalesces bursts of write events from editors and atomic
// renames into a single reload.
const debounceWindow = 500 * time.Millisecond

// Watcher re-ingests a data file whenever it changes on disk.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	reload  func(ctx context.Context, path string) error
}

// NewWatcher creates a file watcher for the given data file. reload is called
// after each change settles.
func NewWatcher(path string, reload func(ctx context.Context, path string) error) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{path: path, watcher: fw, reload: reload}, nil
}

// Start watches until the context ends.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer w.watcher.Close()

		var timer *time.Timer
		fire := make(chan struct{}, 1)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceWindow, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case <-fire:
				logger.Infow("data file changed, reloading", "path", w.path)
				if err := w.reload(ctx, w.path); err != nil {
					logger.Errorw("data file reload failed", "path", w.path, "error", err)
				}
				// Re-add the path after atomic replace via rename.
				_ = w.watcher.Add(w.path)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				logger.Warnw("file watcher error", "error", err)
			}
		}
	}()
}
