package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pictree/pictree/internal/config"
	"github.com/pictree/pictree/internal/fscache"
	"github.com/pictree/pictree/internal/index"
	"github.com/pictree/pictree/internal/metadata"
	"github.com/pictree/pictree/internal/pathutil"
	"github.com/pictree/pictree/internal/tree"
	"github.com/pictree/pictree/internal/watch"
)

// pidFileName is the daemon lock file, written under the data directory.
const pidFileName = "pictree.pid"

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <folder>...",
		Short: "Watch folder trees and report changes",
		Long: `Load one or more folder trees, register filesystem watches on every
folder, and report coalesced changes until interrupted. Sidecar edits made
by other programs are folded into the tag index as they happen.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := shutdownContext(cmd.Context(), logger)

	cleanup, err := writePIDFile(pidFilePath())
	if err != nil {
		return err
	}
	defer cleanup()

	store := metadata.NewStore(resolvedCfg.Metadata.SidecarName, logger)
	cache := fscache.New(resolvedCfg.Cache.ExistenceTTLValue(), logger)

	ix := openIndexBestEffort(ctx)
	if ix != nil {
		defer ix.Close()
	}

	reporter := &changeReporter{store: store, index: ix, cache: cache, logger: logger}

	svc := watch.NewService(watchOptions(resolvedCfg), cache, reporter.handle, logger)
	defer svc.Close()

	svc.Start()

	loader := tree.NewLoader(store, svc.Registry, logger)

	// Each root loads independently; one failed root aborts the daemon
	// rather than silently watching a partial set.
	var g errgroup.Group

	for _, root := range args {
		g.Go(func() error {
			if _, err := loader.LoadTreeRecursively(root); err != nil {
				return err
			}

			logger.Info("subtree loaded", slog.String("root", root))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	statusf("watching %d folder(s), Ctrl-C to stop\n", svc.Registry.Len())

	<-ctx.Done()

	return nil
}

// changeReporter consumes dispatched filesystem events: it logs each one,
// drops stale existence cache entries for removed paths, and refreshes the
// tag index when a sidecar file changes underneath us.
type changeReporter struct {
	store  *metadata.Store
	index  *index.Index
	cache  *fscache.Cache
	logger *slog.Logger
}

func (c *changeReporter) handle(folder, path string, kind watch.Kind) {
	c.logger.Info("change",
		slog.String("folder", folder),
		slog.String("path", path),
		slog.String("kind", kind.String()),
	)

	switch kind {
	case watch.KindDeleted, watch.KindRenamed:
		c.cache.Invalidate(path, true)
	}

	if c.index != nil && pathutil.Equal(path, c.store.SidecarPath(folder)) {
		// A deleted sidecar reads back as no tags, clearing the entry.
		if err := c.index.Upsert(context.Background(), folder, c.store.GetTags(folder)); err != nil {
			c.logger.Warn("tag index update failed",
				slog.String("folder", folder),
				slog.String("error", err.Error()),
			)
		}
	}
}

// watchOptions maps the watcher config section onto pipeline options.
func watchOptions(cfg *config.Config) watch.Options {
	return watch.Options{
		MaxWatchers:         cfg.Watcher.MaxWatchers,
		QuietInterval:       cfg.Watcher.QuietIntervalValue(),
		MaxBatchesPerCycle:  cfg.Watcher.MaxBatchesPerCycle,
		MaxEventsPerBatch:   cfg.Watcher.MaxEventsPerBatch,
		DiscardThreshold:    cfg.Watcher.DiscardThreshold,
		ErrorResetThreshold: cfg.Watcher.ErrorResetThreshold,
		ErrorResetCooldown:  cfg.Watcher.ErrorResetCooldownValue(),
	}
}

func pidFilePath() string {
	return filepath.Join(config.DefaultDataDir(), pidFileName)
}
