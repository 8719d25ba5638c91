package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var embedJSON bool

var embedCmd = &cobra.Command{
	Use:   "embed <text>",
	Short: "Print the query embedding of a text",
	Long: `Embed a text as a search query with Cohere embed-english-v3.0 and print
the vector.

Examples:
  bookrag embed "inverse kinematics"
  bookrag embed "inverse kinematics" --json=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().BoolVar(&embedJSON, "json", true, "Print the full vector as JSON")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.svc.Close()

	resp, err := a.svc.Embed(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	if embedJSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(resp.Embedding)
	}

	fmt.Printf("Model:      %s\n", resp.Model)
	fmt.Printf("Dimensions: %d\n", resp.Dimensions)
	fmt.Printf("Preview:    %v\n", preview(resp.Embedding, 8))
	return nil
}

func preview(v []float32, n int) []float32 {
	if len(v) <= n {
		return v
	}
	return v[:n]
}
