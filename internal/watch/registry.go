package watch

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pictree/pictree/internal/pathutil"
)

// FsWatcher abstracts one OS-level watch subscription so tests can inject
// channel-backed fakes. The production implementation wraps fsnotify.
type FsWatcher interface {
	Add(path string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

// fsnotifyWatcher adapts *fsnotify.Watcher (whose Events/Errors are struct
// fields) to the FsWatcher interface.
type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func newFsnotifyWatcher() (FsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating fsnotify watcher: %w", err)
	}

	return &fsnotifyWatcher{w: w}, nil
}

func (f *fsnotifyWatcher) Add(path string) error         { return f.w.Add(path) }
func (f *fsnotifyWatcher) Close() error                  { return f.w.Close() }
func (f *fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWatcher) Errors() <-chan error          { return f.w.Errors }

// RecordFunc is the sink raw notifications are forwarded to — in production
// the Coalescer's Record method.
type RecordFunc func(folder, changedPath string, kind Kind)

// handle is one live watch subscription. At most one handle exists per
// normalized folder path at any time.
type handle struct {
	folder     string
	watcher    FsWatcher
	errorCount int
	lastReset  time.Time
}

// Registry owns the set of active directory watches, enforces the concurrent
// cap, and repairs failing watches via an error-count/cooldown state machine.
// All mutations are guarded by a single mutex; the registry never blocks on
// the coalescer or the dispatch loop.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*handle // key: folded folder path
	opts    Options
	record  RecordFunc
	exists  func(path string) bool // live existence probe
	logger  *slog.Logger
	closed  bool
	wg      sync.WaitGroup

	// Test seams, replaced in unit tests.
	factory func() (FsWatcher, error)
	now     func() time.Time
}

// NewRegistry creates a Registry. exists must perform a live check (a stale
// cached positive here would register a watch on a directory that is gone).
func NewRegistry(opts Options, record RecordFunc, exists func(string) bool, logger *slog.Logger) *Registry {
	return &Registry{
		handles: make(map[string]*handle),
		opts:    opts.withDefaults(),
		record:  record,
		exists:  exists,
		logger:  logger,
		factory: newFsnotifyWatcher,
		now:     time.Now,
	}
}

// Watch begins watching folder for create/delete/rename/modify notifications.
// It is a no-op when the folder is already watched, missing, or the watcher
// cap is exhausted — reported, never fatal.
func (r *Registry) Watch(folder string) {
	folder = pathutil.Normalize(folder)
	key := pathutil.Fold(folder)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	if _, ok := r.handles[key]; ok {
		return
	}

	if len(r.handles) >= r.opts.MaxWatchers {
		r.logger.Warn("watcher capacity exhausted, folder not watched",
			slog.String("folder", folder),
			slog.Int("max_watchers", r.opts.MaxWatchers),
		)

		return
	}

	if !r.exists(folder) {
		r.logger.Debug("folder missing, not watched", slog.String("folder", folder))
		return
	}

	if err := r.createLocked(folder, key); err != nil {
		r.logger.Warn("failed to start watch",
			slog.String("folder", folder),
			slog.String("error", err.Error()),
		)
	}
}

// Unwatch releases the watch for folder and, recursively, for every watched
// descendant — a removed subtree must not leave orphaned watches behind.
func (r *Registry) Unwatch(folder string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, h := range r.handles {
		if pathutil.IsWithin(folder, h.folder) {
			r.releaseLocked(key, h)
		}
	}
}

// UnwatchAll releases every watch. Idempotent.
func (r *Registry) UnwatchAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, h := range r.handles {
		r.releaseLocked(key, h)
	}
}

// Close releases every watch, rejects future Watch calls, and waits for the
// forwarding goroutines to finish. Safe to call more than once and from a
// shutdown path.
func (r *Registry) Close() {
	r.mu.Lock()

	if !r.closed {
		r.closed = true

		for key, h := range r.handles {
			r.releaseLocked(key, h)
		}
	}

	r.mu.Unlock()

	r.wg.Wait()
}

// IsWatching reports whether folder currently has a live handle.
func (r *Registry) IsWatching(folder string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.handles[pathutil.Fold(folder)]

	return ok
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.handles)
}

// createLocked builds a watcher for folder, registers the handle, and starts
// its forwarding goroutine. Caller holds r.mu.
func (r *Registry) createLocked(folder, key string) error {
	w, err := r.factory()
	if err != nil {
		return err
	}

	if err := w.Add(folder); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch: subscribing to %s: %w", folder, err)
	}

	h := &handle{
		folder:    folder,
		watcher:   w,
		lastReset: r.now(),
	}
	r.handles[key] = h

	r.wg.Add(1)
	go r.run(h)

	r.logger.Debug("watch started",
		slog.String("folder", folder),
		slog.Int("active", len(r.handles)),
	)

	return nil
}

// releaseLocked closes a handle's watcher and removes it from the table.
// Closing the watcher closes its channels, which ends the forwarding
// goroutine. Caller holds r.mu.
func (r *Registry) releaseLocked(key string, h *handle) {
	if err := h.watcher.Close(); err != nil {
		r.logger.Debug("watcher close failed",
			slog.String("folder", h.folder),
			slog.String("error", err.Error()),
		)
	}

	delete(r.handles, key)

	r.logger.Debug("watch released", slog.String("folder", h.folder))
}

// run forwards one handle's raw notifications into the record sink and feeds
// watch errors into the reset state machine. It exits when the watcher's
// channels close.
func (r *Registry) run(h *handle) {
	defer r.wg.Done()

	events := h.watcher.Events()
	errs := h.watcher.Errors()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}

			kind, relevant := mapFsnotifyOp(ev.Op)
			if !relevant {
				continue
			}

			r.record(h.folder, ev.Name, kind)

		case err, ok := <-errs:
			if !ok {
				return
			}

			r.handleWatchError(h, err)
		}
	}
}

// handleWatchError implements the Error ⇄ Watching state machine: each error
// increments the handle's count; once the count reaches the threshold AND the
// cooldown has elapsed since the last reset, the handle is torn down and —
// only if the folder still exists — recreated from scratch. The count and
// reset timestamp start fresh regardless of whether recreation succeeded,
// which prevents both reset storms and silent permanent failure.
func (r *Registry) handleWatchError(h *handle, watchErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pathutil.Fold(h.folder)
	if r.handles[key] != h {
		// Already unwatched or replaced by a reset; stale goroutine.
		return
	}

	h.errorCount++

	r.logger.Warn("watch error",
		slog.String("folder", h.folder),
		slog.Int("error_count", h.errorCount),
		slog.String("error", watchErr.Error()),
	)

	if h.errorCount < r.opts.ErrorResetThreshold {
		return
	}

	if r.now().Sub(h.lastReset) < r.opts.ErrorResetCooldown {
		return
	}

	r.resetLocked(key, h)
}

// resetLocked tears down a failing handle and recreates it when the folder
// still exists. Caller holds r.mu.
func (r *Registry) resetLocked(key string, h *handle) {
	r.releaseLocked(key, h)

	if !r.exists(h.folder) {
		r.logger.Info("folder gone, watch not recreated", slog.String("folder", h.folder))
		return
	}

	if err := r.createLocked(h.folder, key); err != nil {
		r.logger.Warn("watch recreation failed",
			slog.String("folder", h.folder),
			slog.String("error", err.Error()),
		)

		return
	}

	r.logger.Info("watch reset after repeated errors", slog.String("folder", h.folder))
}
