package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pictree/pictree/internal/tree"
)

func TestFormatStars(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unrated", formatStars(0))
	assert.Equal(t, "★★★☆☆", formatStars(3))
	assert.Equal(t, "★★★★★", formatStars(5))
	assert.Equal(t, "★★★★★", formatStars(9), "over-range ratings clamp to the maximum")
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-", formatTags(nil))
	assert.Equal(t, "Nature, Sky", formatTags([]string{"Nature", "Sky"}))
}

func TestPrintNode_IndentsAndAnnotates(t *testing.T) {
	t.Parallel()

	root := &tree.FolderNode{
		Name:   "photos",
		Rating: 4,
		Tags:   []string{"Travel"},
		Children: []*tree.FolderNode{
			{Name: "iceland"},
		},
	}

	var sb strings.Builder
	printNode(&sb, root, 0)

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "photos  ★★★★☆  [Travel]", lines[0])
	assert.Equal(t, "  iceland", lines[1])
}
