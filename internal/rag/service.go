// Package rag provides retrieval over the indexed book
package rag

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/pkg/types"
)

var (
	// ErrQueryRequired is returned for searches with a blank query.
	ErrQueryRequired = errors.New("query is required")

	// ErrPathRequired is returned for index requests without a path.
	ErrPathRequired = errors.New("path is required")

	// ErrPathOutsideRoot is returned for index paths that resolve outside the book root.
	ErrPathOutsideRoot = errors.New("path is outside the book root")

	// ErrUnsupportedFile is returned when a single file is not a chapter format.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// Service orchestrates embedding, indexing and search
type Service interface {
	// Embed returns the query-mode embedding of text
	Embed(ctx context.Context, text string) (*types.EmbedResponse, error)

	// Search finds relevant passages using semantic search
	Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error)

	// Index chunks a file or directory of chapters and stores the passages
	Index(ctx context.Context, req types.IndexRequest) (int, error)

	// Stats returns collection statistics
	Stats(ctx context.Context) (*types.StatsResponse, error)

	// Health checks the vector database connection
	Health(ctx context.Context) error

	// Close releases resources
	Close() error
}

// Config configures the rag service
type Config struct {
	Root           string   // Book directory; index paths must resolve inside it
	EmbedBatchSize int      // Texts per document embedding request
	IndexIgnore    []string // Names skipped while walking directories

	// RateLimiter paces document embedding requests. Nil means unlimited.
	RateLimiter *rate.Limiter

	// Search defaults
	DefaultSearchLimit     int
	DefaultSearchThreshold float32
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Root:                   ".",
		EmbedBatchSize:         96,
		IndexIgnore:            []string{".git", "node_modules", "build", ".docusaurus"},
		DefaultSearchLimit:     5,
		DefaultSearchThreshold: 0.7,
	}
}
