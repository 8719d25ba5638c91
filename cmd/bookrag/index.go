package main

import (
	"fmt"
	"time"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/pkg/types"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index book chapters",
	Long: `Index a markdown file or a directory of chapters inside the book root
(BOOK_DIR, default the working directory). Relative paths are resolved
against the root and passages are keyed by their path relative to it.

Files are split at headings, embedded in search_document mode and upserted
into the Qdrant collection. Re-indexing a chapter replaces its passages and drops the
ones for sections that no longer exist.

Supported file types: .md, .mdx, .markdown, .txt

Ignored directories: .git, node_modules, build, .docusaurus

Examples:
  bookrag index ./docs
  bookrag index ./docs/module-1/ros2.md
  bookrag index ./docs --collection drafts`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.svc.Close()

	fmt.Printf("Indexing %s into %s...\n", args[0], a.cfg.Collection)
	start := time.Now()

	count, err := a.svc.Index(cmd.Context(), types.IndexRequest{Path: args[0]})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("Indexed %d passages in %s\n", count, time.Since(start).Round(time.Millisecond))

	if verbose {
		requests, avgMs := a.embedder.Stats()
		fmt.Printf("Embedding requests: %d (avg %.0fms)\n", requests, avgMs)
	}

	return nil
}
