package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/pictree/pictree/internal/pathutil"
)

// errorBackoffMultiplier stretches the quiet interval after a cycle fails,
// so a persistently broken consumer cannot spin the loop hot.
const errorBackoffMultiplier = 4

// Dispatcher is the single perpetual pull side of the pipeline. Each cycle
// it sleeps one quiet interval (letting bursts finish coalescing), drains a
// bounded number of pending batches, and delivers each surviving batch's
// events one at a time through the consumer callback. Deliveries are strictly
// serialized: the consumer never observes two invocations concurrently.
type Dispatcher struct {
	coalescer *Coalescer
	consumer  Consumer
	exists    func(path string) bool // live probe; discard batches for gone folders
	opts      Options
	logger    *slog.Logger

	// sleep is replaceable in tests to drive cycles without real time.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a Dispatcher draining c into consumer.
func NewDispatcher(
	c *Coalescer, consumer Consumer, exists func(string) bool,
	opts Options, logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		coalescer: c,
		consumer:  consumer,
		exists:    exists,
		opts:      opts.withDefaults(),
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Run executes dispatch cycles until ctx is canceled. A panic inside one
// cycle is logged and followed by a longer sleep rather than loop
// termination — the watcher must never silently die.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		if err := d.sleep(ctx, d.opts.QuietInterval); err != nil {
			return
		}

		if !d.safeCycle() {
			// Back off after a failed cycle before retrying.
			if err := d.sleep(ctx, d.opts.QuietInterval*errorBackoffMultiplier); err != nil {
				return
			}
		}
	}
}

// safeCycle runs one drain cycle, converting panics into a logged failure.
func (d *Dispatcher) safeCycle() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch cycle panicked", slog.Any("panic", r))
			ok = false
		}
	}()

	d.cycle()

	return true
}

// cycle drains up to MaxBatchesPerCycle batches. A folder already processed
// in this cycle is skipped (not re-queued): a folder that re-queues itself
// mid-drain must not starve the rest of the queue.
func (d *Dispatcher) cycle() {
	seen := make(map[string]bool, d.opts.MaxBatchesPerCycle)

	for range d.opts.MaxBatchesPerCycle {
		b, ok := d.coalescer.next()
		if !ok {
			return
		}

		key := pathutil.Fold(b.folder)
		if seen[key] {
			d.logger.Debug("folder already processed this cycle, batch dropped",
				slog.String("folder", b.folder),
			)

			continue
		}

		seen[key] = true

		d.deliver(b)
	}
}

// deliver applies the discard policy and hands a batch's retained events to
// the consumer, at most MaxEventsPerBatch of them, one at a time.
func (d *Dispatcher) deliver(b *pendingBatch) {
	// A batch this large implies a scan or bulk copy, not discrete edits;
	// delivering it would flood the consumer. Discard wholesale.
	if len(b.events) > d.opts.DiscardThreshold {
		d.logger.Info("oversized batch discarded",
			slog.String("folder", b.folder),
			slog.Int("events", len(b.events)),
			slog.Int("threshold", d.opts.DiscardThreshold),
		)

		return
	}

	if !d.exists(b.folder) {
		d.logger.Debug("folder gone, batch discarded",
			slog.String("folder", b.folder),
			slog.Int("events", len(b.events)),
		)

		return
	}

	delivered := 0

	for _, ev := range b.events {
		if delivered >= d.opts.MaxEventsPerBatch {
			d.logger.Debug("per-batch delivery cap reached",
				slog.String("folder", b.folder),
				slog.Int("delivered", delivered),
				slog.Int("pending", len(b.events)-delivered),
			)

			break
		}

		d.consumer(ev.Folder, ev.Path, ev.Kind)
		delivered++
	}

	d.logger.Debug("batch delivered",
		slog.String("folder", b.folder),
		slog.Int("events", delivered),
		slog.Duration("age", time.Since(b.createdAt)),
	)
}

// sleepCtx sleeps for d or until ctx is canceled, returning the context
// error in the latter case.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
