package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pictree/pictree/internal/metadata"
)

func newRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <folder> <rating>",
		Short: fmt.Sprintf("Set a folder's star rating (0-%d)", metadata.MaxRating),
		Args:  cobra.ExactArgs(2),
		RunE:  runRate,
	}
}

func runRate(_ *cobra.Command, args []string) error {
	folder := args[0]

	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("rating must be a number: %w", err)
	}

	if rating < 0 || rating > metadata.MaxRating {
		return fmt.Errorf("rating must be between 0 and %d, got %d", metadata.MaxRating, rating)
	}

	store := metadata.NewStore(resolvedCfg.Metadata.SidecarName, logger)

	// Ratings and tags share the sidecar; keep the existing tags.
	if err := store.SetTagsAndRating(folder, store.GetTags(folder), rating); err != nil {
		return err
	}

	statusf("rated %s: %s\n", folder, formatStars(rating))

	return nil
}
