// Package chunking splits book chapters into passages for embedding
package chunking

import (
	"context"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/pkg/types"
)

// Chunker splits content into passages
type Chunker interface {
	// Chunk splits content into pieces based on options
	Chunk(ctx context.Context, content string, opts ChunkOptions) ([]types.Chunk, error)

	// ChunkFile reads and chunks a file
	ChunkFile(ctx context.Context, path string) ([]types.Chunk, error)

	// SupportedExtensions returns the lower-case file extensions the chunker accepts
	SupportedExtensions() []string
}

// ChunkOptions configures chunking behavior
type ChunkOptions struct {
	MaxSize int // Maximum chunk size in characters
	Overlap int // Overlap between consecutive chunks of one section, in characters
}

// DefaultChunkOptions returns sensible defaults
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		MaxSize: 1000,
		Overlap: 100,
	}
}
