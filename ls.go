package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pictree/pictree/internal/metadata"
	"github.com/pictree/pictree/internal/tree"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <folder>",
		Short: "List a folder's subfolders with their tags and ratings",
		Args:  cobra.ExactArgs(1),
		RunE:  runLs,
	}

	cmd.Flags().BoolP("recursive", "R", false, "descend into the whole subtree")

	return cmd
}

func runLs(cmd *cobra.Command, args []string) error {
	recursive, err := cmd.Flags().GetBool("recursive")
	if err != nil {
		return err
	}

	store := metadata.NewStore(resolvedCfg.Metadata.SidecarName, logger)

	// One-shot listing: no watch registrations.
	loader := tree.NewLoader(store, nil, logger)

	var node *tree.FolderNode

	if recursive {
		node, err = loader.LoadTreeRecursively(args[0])
	} else {
		node, err = loader.LoadRoot(args[0])
	}

	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(node)
	}

	printNode(os.Stdout, node, 0)

	return nil
}

// printNode writes one line per folder, indented by depth, with the rating
// and tags appended when present.
func printNode(w io.Writer, node *tree.FolderNode, depth int) {
	line := strings.Repeat("  ", depth) + node.Name

	if node.Rating > 0 {
		line += "  " + formatStars(node.Rating)
	}

	if len(node.Tags) > 0 {
		line += "  [" + formatTags(node.Tags) + "]"
	}

	fmt.Fprintln(w, line)

	for _, child := range node.Children {
		printNode(w, child, depth+1)
	}
}
