package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDropDebounce is how long a file must stay quiet before it is
// handed off. DCS keeps appending to dcs.log while a session runs.
const DefaultDropDebounce = 2 * time.Second

// DropHandler receives a batch of settled files.
type DropHandler func(ctx context.Context, paths []string) error

// DropWatcherConfig configures a DropWatcher.
type DropWatcherConfig struct {
	Dir      string
	Pattern  string
	Debounce time.Duration
	// ScanExisting hands matching files already in Dir to the handler on Start.
	ScanExisting bool
}

// DropWatcher watches a drop folder and hands newly written log files to a
// DropHandler once they stop changing.
type DropWatcher struct {
	mu sync.Mutex

	cfg    DropWatcherConfig
	handle DropHandler
	logger *zap.Logger

	pending map[string]time.Time
	// handled records the modification time of files already handed off so a
	// stray Write or chmod does not ingest the same file twice.
	handled map[string]time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewDropWatcher validates cfg and creates a watcher. logger may be nil.
func NewDropWatcher(cfg DropWatcherConfig, handle DropHandler, logger *zap.Logger) (*DropWatcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("drop folder is required")
	}
	if handle == nil {
		return nil, errors.New("drop handler is required")
	}
	if cfg.Pattern == "" {
		cfg.Pattern = "*.log"
	}
	if _, err := filepath.Match(cfg.Pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid watch pattern %q: %w", cfg.Pattern, err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDropDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DropWatcher{
		cfg:     cfg,
		handle:  handle,
		logger:  logger.With(zap.String("dir", cfg.Dir)),
		pending: make(map[string]time.Time),
		handled: make(map[string]time.Time),
	}, nil
}

// Start begins watching. It returns once the directory watch is in place;
// events are processed in a background goroutine until ctx is cancelled or
// Stop is called.
func (w *DropWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("drop watcher already running")
	}

	info, err := os.Stat(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("checking drop folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("drop folder %s is not a directory", w.cfg.Dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := watcher.Add(w.cfg.Dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", w.cfg.Dir, err)
	}

	if w.cfg.ScanExisting {
		entries, err := os.ReadDir(w.cfg.Dir)
		if err != nil {
			_ = watcher.Close()
			return fmt.Errorf("listing drop folder: %w", err)
		}
		// Backdate so existing files are handed off on the first tick.
		settled := time.Now().Add(-w.cfg.Debounce)
		for _, e := range entries {
			if e.IsDir() || !w.matches(e.Name()) {
				continue
			}
			w.pending[filepath.Join(w.cfg.Dir, e.Name())] = settled
		}
	}

	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.run(ctx, watcher, w.stopCh, w.doneCh)

	w.logger.Info("drop watcher started",
		zap.String("pattern", w.cfg.Pattern),
		zap.Duration("debounce", w.cfg.Debounce))
	return nil
}

// Stop ends watching and waits for an in-flight batch to finish. It is safe
// to call after the Start context has been cancelled.
func (w *DropWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	return nil
}

// Done is closed when the event loop exits, either through Stop or because
// the Start context was cancelled.
func (w *DropWatcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.doneCh == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return w.doneCh
}

// IsRunning reports whether the watcher is active.
func (w *DropWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *DropWatcher) run(ctx context.Context, watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer func() {
		if err := watcher.Close(); err != nil {
			w.logger.Warn("closing fsnotify watcher", zap.Error(err))
		}
		w.logger.Info("drop watcher stopped")
	}()

	tick := w.cfg.Debounce / 4
	if tick > 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *DropWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.matches(filepath.Base(event.Name)) {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
	w.logger.Debug("file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
}

func (w *DropWatcher) matches(name string) bool {
	ok, err := filepath.Match(w.cfg.Pattern, name)
	return err == nil && ok
}

// flush hands every file that has been quiet for the debounce period to the
// handler as one batch. A batch the handler rejects is queued again and
// retried after another debounce period.
func (w *DropWatcher) flush(ctx context.Context) {
	now := time.Now()
	ready := make(map[string]time.Time)

	w.mu.Lock()
	for path, last := range w.pending {
		if now.Sub(last) < w.cfg.Debounce {
			continue
		}
		delete(w.pending, path)

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			// Renamed away or deleted before it settled.
			continue
		}
		if prev, ok := w.handled[path]; ok && prev.Equal(info.ModTime()) {
			continue
		}
		ready[path] = info.ModTime()
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}
	paths := make([]string, 0, len(ready))
	for path := range ready {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	w.logger.Info("handing off settled files", zap.Strings("files", paths))
	err := w.handle(ctx, paths)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.logger.Error("processing dropped files, will retry", zap.Strings("files", paths), zap.Error(err))
		retryAt := time.Now()
		for _, path := range paths {
			if _, ok := w.pending[path]; !ok {
				w.pending[path] = retryAt
			}
		}
		return
	}
	for path, mod := range ready {
		w.handled[path] = mod
	}
}
