package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the file must stay quiet before the handler
// runs.
const DefaultDebounce = 250 * time.Millisecond

// Handler is invoked with the watched path after it changes.
type Handler func(ctx context.Context, path string) error

// Watcher calls a Handler each time one file is written, created or
// replaced.
type Watcher struct {
	path     string
	handler  Handler
	logger   *zap.Logger
	debounce time.Duration

	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Watcher for path. The file does not have to exist yet but
// its directory does.
func New(path string, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	return &Watcher{
		path:     abs,
		handler:  handler,
		logger:   logger,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Start runs the handler once for the current file contents and then
// watches for changes in the background until Stop is called or ctx is
// done. Handler errors are logged and do not stop the watcher.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fsw = fsw

	w.run(ctx)

	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("watching", zap.String("path", w.path), zap.Duration("debounce", w.debounce))
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file event", zap.String("op", event.Op.String()), zap.String("name", event.Name))
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			w.run(ctx)

		case <-ctx.Done():
			return

		case <-w.stopCh:
			return
		}
	}
}

// relevant reports whether event touches the watched file in a way that
// can change its contents.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) run(ctx context.Context) {
	start := time.Now()
	if err := w.handler(ctx, w.path); err != nil {
		w.logger.Warn("handler failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Debug("handler done", zap.Duration("took", time.Since(start)))
}

// Stop halts the watcher and waits for the background loop to exit. It is
// safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}
