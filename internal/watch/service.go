package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pictree/pictree/internal/fscache"
)

// closeGracePeriod bounds how long Close waits for an in-flight delivery
// before releasing resources anyway.
const closeGracePeriod = time.Second

// Service wires the registry, coalescer, and dispatcher into one unit: raw
// OS notifications flow from per-folder watches through the coalescer into
// quiet-interval batches delivered serially to the consumer.
type Service struct {
	Registry  *Registry
	Coalescer *Coalescer

	dispatcher *Dispatcher
	logger     *slog.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewService assembles the pipeline. existence supplies the live directory
// probes used before watch registration and during batch delivery; consumer
// receives every delivered event, serially.
func NewService(opts Options, existence *fscache.Cache, consumer Consumer, logger *slog.Logger) *Service {
	opts = opts.withDefaults()

	exists := func(path string) bool {
		return existence.DirectoryExists(path, true)
	}

	coalescer := NewCoalescer(logger)
	registry := NewRegistry(opts, coalescer.Record, exists, logger)
	dispatcher := NewDispatcher(coalescer, consumer, exists, opts, logger)

	return &Service{
		Registry:   registry,
		Coalescer:  coalescer,
		dispatcher: dispatcher,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start launches the dispatch loop. Subsequent calls are no-ops.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel

		go func() {
			defer close(s.done)
			s.dispatcher.Run(ctx)
		}()

		s.logger.Info("watch service started")
	})
}

// Close stops the dispatch loop, waits up to a grace period for an in-flight
// delivery to finish, and releases every watch. Double-close is a no-op.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()

			select {
			case <-s.done:
			case <-time.After(closeGracePeriod):
				s.logger.Warn("dispatch loop did not stop within grace period")
			}
		}

		s.Registry.Close()

		s.logger.Info("watch service stopped")
	})
}
