package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/pkg/types"
	"github.com/spf13/cobra"
)

var (
	searchLimit     int
	searchThreshold float32
	searchSource    string
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the book",
	Long: `Search the indexed chapters using semantic search. The query is embedded in
search_query mode and compared against the passages in Qdrant by cosine
similarity.

Examples:
  bookrag search "what sensors does a humanoid use"
  bookrag search "gazebo simulation" --limit 3
  bookrag search "bipedal gait" --source module-2/locomotion.md
  bookrag search "VLA models" --threshold 0.4
  bookrag search "VLA models" --threshold -1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "Maximum results to return")
	searchCmd.Flags().Float32VarP(&searchThreshold, "threshold", "t", 0, "Minimum similarity score (0 uses the default 0.7, negative disables)")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "Only search one chapter file")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.svc.Close()

	resp, err := a.svc.Search(cmd.Context(), types.SearchRequest{
		Query:     query,
		Limit:     searchLimit,
		Threshold: searchThreshold,
		Source:    searchSource,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results found")
		return nil
	}

	fmt.Printf("Found %d results (%dms):\n\n", resp.Total, resp.Timing)

	for i, result := range resp.Results {
		p := result.Passage
		fmt.Printf("%d. [%.2f] %s", i+1, result.Score, p.Source)
		if p.Heading != "" {
			fmt.Printf(" > %s", p.Heading)
		}
		fmt.Printf(" (lines %d-%d)\n", p.StartLine, p.EndLine)
		fmt.Printf("   %s\n\n", formatContent(p.Content))
	}

	return nil
}

// formatContent collapses whitespace and truncates to 200 characters
func formatContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if runes := []rune(content); len(runes) > 200 {
		content = string(runes[:197]) + "..."
	}
	return content
}
