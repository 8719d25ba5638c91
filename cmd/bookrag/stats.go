package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	Long: `Show statistics about the indexed collection.

Examples:
  bookrag stats`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.svc.Close()

	stats, err := a.svc.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Println("bookrag statistics")
	fmt.Println("──────────────────")
	fmt.Printf("Collection:      %s\n", stats.Collection)
	fmt.Printf("Passages:        %d\n", stats.Passages)
	fmt.Printf("Embedding model: %s\n", stats.EmbeddingModel)
	fmt.Printf("Dimensions:      %d\n", stats.Dimensions)

	return nil
}
