package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pictree/pictree/internal/index"
	"github.com/pictree/pictree/internal/metadata"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage folder tags",
	}

	cmd.AddCommand(newTagSetCmd())
	cmd.AddCommand(newTagAddCmd())
	cmd.AddCommand(newTagRmCmd())
	cmd.AddCommand(newTagRenameCmd())

	return cmd
}

func newTagSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <folder> [tag]...",
		Short: "Replace a folder's tags",
		Long: `Replace a folder's tag set. With no tags, clears all tags.
The folder's rating is preserved.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runTagSet,
	}
}

func newTagAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <folder> <tag>...",
		Short: "Add tags to a folder",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runTagAdd,
	}
}

func newTagRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <folder> <tag>...",
		Short: "Remove tags from a folder",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runTagRm,
	}
}

func newTagRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a tag across every folder carrying it",
		Args:  cobra.ExactArgs(2),
		RunE:  runTagRename,
	}
}

func runTagSet(cmd *cobra.Command, args []string) error {
	return applyTags(cmd.Context(), args[0], func(_ []string) []string {
		return args[1:]
	})
}

func runTagAdd(cmd *cobra.Command, args []string) error {
	return applyTags(cmd.Context(), args[0], func(existing []string) []string {
		// Normalization dedupes case-insensitively, keeping first casing.
		return append(existing, args[1:]...)
	})
}

func runTagRm(cmd *cobra.Command, args []string) error {
	remove := args[1:]

	return applyTags(cmd.Context(), args[0], func(existing []string) []string {
		kept := existing[:0]

		for _, tag := range existing {
			if !containsFold(remove, tag) {
				kept = append(kept, tag)
			}
		}

		return kept
	})
}

// applyTags reads a folder's tags, transforms them, writes the sidecar back
// (rating untouched), and refreshes the reverse index.
func applyTags(ctx context.Context, folder string, transform func([]string) []string) error {
	store := metadata.NewStore(resolvedCfg.Metadata.SidecarName, logger)

	tags := transform(store.GetTags(folder))

	if err := store.SetTagsAndRating(folder, tags, store.GetRating(folder)); err != nil {
		return err
	}

	ix := openIndexBestEffort(ctx)
	if ix != nil {
		defer ix.Close()
	}

	reindexFolder(ctx, ix, store, folder)

	statusf("tags for %s: %s\n", folder, formatTags(store.GetTags(folder)))

	return nil
}

func runTagRename(cmd *cobra.Command, args []string) error {
	oldTag, newTag := args[0], args[1]
	ctx := cmd.Context()

	// Rename needs the index: it supplies the candidate folders. Unlike the
	// per-folder commands, there is no fallback worth having — scanning every
	// filesystem would be the alternative.
	ix, err := index.Open(ctx, resolvedCfg.Index.Path, logger)
	if err != nil {
		return fmt.Errorf("tag rename requires the tag index: %w", err)
	}
	defer ix.Close()

	candidates, err := ix.PathsWithTag(ctx, oldTag)
	if err != nil {
		return fmt.Errorf("finding folders tagged %q: %w", oldTag, err)
	}

	store := metadata.NewStore(resolvedCfg.Metadata.SidecarName, logger)

	changed := store.RenameTagEverywhere(oldTag, newTag, candidates)

	for _, folder := range candidates {
		reindexFolder(ctx, ix, store, folder)
	}

	statusf("renamed tag %q to %q in %d folder(s)\n", oldTag, newTag, changed)

	return nil
}

// openIndexBestEffort opens the tag catalog, returning nil when it is
// unavailable. The sidecars remain the source of truth; per-folder commands
// proceed without the index and only reverse lookups go stale.
func openIndexBestEffort(ctx context.Context) *index.Index {
	ix, err := index.Open(ctx, resolvedCfg.Index.Path, logger)
	if err != nil {
		logger.Warn("tag index unavailable, reverse lookups will be stale",
			slog.String("error", err.Error()),
		)

		return nil
	}

	return ix
}

// reindexFolder refreshes the catalog entry for one folder from its sidecar.
func reindexFolder(ctx context.Context, ix *index.Index, store *metadata.Store, folder string) {
	if ix == nil {
		return
	}

	if err := ix.Upsert(ctx, folder, store.GetTags(folder)); err != nil {
		logger.Warn("tag index update failed",
			slog.String("folder", folder),
			slog.String("error", err.Error()),
		)
	}
}

// containsFold reports whether tags contains candidate, case-insensitively.
func containsFold(tags []string, candidate string) bool {
	for _, tag := range tags {
		if strings.EqualFold(tag, candidate) {
			return true
		}
	}

	return false
}
