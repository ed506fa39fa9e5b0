// Package watch keeps an in-memory view synchronized with a live filesystem.
// It owns three cooperating pieces: a bounded Registry of per-folder fsnotify
// watches with failure detection and self-healing, a Coalescer that collapses
// raw notification bursts into per-folder batches, and a Dispatcher that
// drains batches on a quiet interval and delivers events serially to a single
// consumer. Service wires the three together.
package watch

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind classifies a filesystem change delivered to the consumer.
type Kind int

// Change kinds, in rough lifecycle order.
const (
	KindCreated Kind = iota
	KindDeleted
	KindRenamed
	KindChanged
)

// String returns the human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindDeleted:
		return "deleted"
	case KindRenamed:
		return "renamed"
	case KindChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Event is one coalesced filesystem change: the watched folder, the path
// that changed inside it, and the latest observed kind.
type Event struct {
	Folder string
	Path   string
	Kind   Kind
}

// Consumer receives delivered events. The dispatcher invokes it serially —
// never from two goroutines at once — so the consumer may mutate shared view
// state without its own locking.
type Consumer func(folder, path string, kind Kind)

// mapFsnotifyOp translates an fsnotify op bitmask into a Kind. Bare chmod
// events carry no content change and are dropped (ok == false).
func mapFsnotifyOp(op fsnotify.Op) (Kind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return KindCreated, true
	case op.Has(fsnotify.Remove):
		return KindDeleted, true
	case op.Has(fsnotify.Rename):
		return KindRenamed, true
	case op.Has(fsnotify.Write):
		return KindChanged, true
	default:
		return 0, false
	}
}

// Options carries the tuning knobs for the watch pipeline. Zero values are
// replaced by the defaults below; all of them are configuration, not
// contracts.
type Options struct {
	MaxWatchers         int           // concurrent watch cap
	QuietInterval       time.Duration // dispatch sleep between drain cycles
	MaxBatchesPerCycle  int           // batches drained per cycle
	MaxEventsPerBatch   int           // events delivered from one batch
	DiscardThreshold    int           // batch size implying a bulk operation
	ErrorResetThreshold int           // watch errors before a reset attempt
	ErrorResetCooldown  time.Duration // minimum time between resets
}

// Defaults for Options fields left zero.
const (
	DefaultMaxWatchers         = 100
	DefaultQuietInterval       = 300 * time.Millisecond
	DefaultMaxBatchesPerCycle  = 10
	DefaultMaxEventsPerBatch   = 20
	DefaultDiscardThreshold    = 100
	DefaultErrorResetThreshold = 5
	DefaultErrorResetCooldown  = 30 * time.Second
)

// withDefaults fills in zero fields.
func (o Options) withDefaults() Options {
	if o.MaxWatchers <= 0 {
		o.MaxWatchers = DefaultMaxWatchers
	}

	if o.QuietInterval <= 0 {
		o.QuietInterval = DefaultQuietInterval
	}

	if o.MaxBatchesPerCycle <= 0 {
		o.MaxBatchesPerCycle = DefaultMaxBatchesPerCycle
	}

	if o.MaxEventsPerBatch <= 0 {
		o.MaxEventsPerBatch = DefaultMaxEventsPerBatch
	}

	if o.DiscardThreshold <= 0 {
		o.DiscardThreshold = DefaultDiscardThreshold
	}

	if o.ErrorResetThreshold <= 0 {
		o.ErrorResetThreshold = DefaultErrorResetThreshold
	}

	if o.ErrorResetCooldown <= 0 {
		o.ErrorResetCooldown = DefaultErrorResetCooldown
	}

	return o
}
