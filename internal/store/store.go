// Package store defines the vector storage interface
package store

import (
	"context"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/pkg/types"
)

// Store handles persistence of passages and vector search
type Store interface {
	// EnsureCollection creates the collection for vectors of the given size if missing
	EnsureCollection(ctx context.Context, dims int) error

	// Upsert inserts or replaces passages by ID
	Upsert(ctx context.Context, passages []*types.Passage) error

	// DeleteBySource removes the passages of source whose IDs are not in keep
	DeleteBySource(ctx context.Context, source string, keep []string) error

	// Search finds the passages closest to the query vector
	Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]types.SearchResult, error)

	// Count returns the number of stored passages
	Count(ctx context.Context) (uint64, error)

	// Health checks that the backend is reachable
	Health(ctx context.Context) error

	// Collection returns the name of the backing collection
	Collection() string

	// Close releases resources
	Close() error
}

// SearchOptions configures vector search
type SearchOptions struct {
	Limit     int
	Threshold float32 // Minimum similarity score; 0 disables the cut-off
	Source    string  // Exact match on the passage source
}
