// bookrag - retrieval backend for the Physical AI & Humanoid Robotics book chatbot
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	collection string
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bookrag",
	Short: "Semantic search over the Physical AI book",
	Long: `bookrag embeds questions with Cohere (embed-english-v3.0) and searches the
book chapters stored in a Qdrant collection.

Credentials are read from COHERE_API_KEY and QDRANT_API_KEY, or from a .env
file in the working directory.

Examples:
  # Embed a query
  bookrag embed "What is a humanoid robot?"

  # Index the book chapters
  bookrag index ./docs

  # Search the book
  bookrag search "how does a robot keep its balance"

  # Start the API for the chatbot widget
  bookrag serve`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&collection, "collection", "c", "", "Qdrant collection (default: $QDRANT_COLLECTION or book_content)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
}
