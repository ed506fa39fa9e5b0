package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pictree/pictree/internal/metadata"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// formatStars renders a rating as filled and hollow stars, e.g. "★★★☆☆".
// A zero rating renders as "unrated".
func formatStars(rating int) string {
	if rating <= 0 {
		return "unrated"
	}

	if rating > metadata.MaxRating {
		rating = metadata.MaxRating
	}

	return strings.Repeat("★", rating) + strings.Repeat("☆", metadata.MaxRating-rating)
}

// formatTags joins tags for display, "-" when the folder has none.
func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}

	return strings.Join(tags, ", ")
}
