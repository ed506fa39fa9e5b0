package watch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pictree/pictree/internal/pathutil"
)

// pendingBatch accumulates the changes observed in one folder since its last
// flush. Events are keyed by the changed path; a later event for the same
// path overwrites the stored kind (latest wins), so a rapid modify-then-delete
// collapses to a single delete.
type pendingBatch struct {
	folder    string // normalized, original casing
	events    map[string]Event
	createdAt time.Time
}

// Coalescer merges raw (folder, path, kind) notifications into per-folder
// pending batches. Record is called from arbitrary watch goroutines; Next is
// called only by the dispatcher. A batch is queued for dispatch exactly once,
// at the moment its event count transitions from zero to one.
type Coalescer struct {
	mu      sync.Mutex
	pending map[string]*pendingBatch // key: folded folder path
	queue   []string                 // folded folder paths in enqueue order
	logger  *slog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewCoalescer creates an empty Coalescer.
func NewCoalescer(logger *slog.Logger) *Coalescer {
	return &Coalescer{
		pending: make(map[string]*pendingBatch),
		logger:  logger,
		now:     time.Now,
	}
}

// Record merges one raw notification into the folder's pending batch,
// creating and enqueueing the batch if this is the first event since the
// folder's last flush. Editors and copy tools emit bursts of writes per
// file; keying by changed path collapses each burst to its final kind.
func (c *Coalescer) Record(folder, changedPath string, kind Kind) {
	folder = pathutil.Normalize(folder)
	key := pathutil.Fold(folder)

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.pending[key]
	if !ok {
		b = &pendingBatch{
			folder:    folder,
			events:    make(map[string]Event),
			createdAt: c.now(),
		}
		c.pending[key] = b
		c.queue = append(c.queue, key)
	}

	b.events[pathutil.Fold(changedPath)] = Event{
		Folder: folder,
		Path:   changedPath,
		Kind:   kind,
	}
}

// next dequeues the oldest pending batch, removing it from the active map.
// Once dequeued a batch is never re-queued: the dispatcher owns its fate.
func (c *Coalescer) next() (*pendingBatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil, false
	}

	key := c.queue[0]
	c.queue = c.queue[1:]

	b, ok := c.pending[key]
	if !ok {
		// Queue entry without a batch should not happen; treat as drained.
		c.logger.Warn("queued folder had no pending batch", slog.String("folder", key))
		return nil, false
	}

	delete(c.pending, key)

	return b, true
}

// PendingFolders returns the number of folders with a queued batch.
func (c *Coalescer) PendingFolders() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.queue)
}
