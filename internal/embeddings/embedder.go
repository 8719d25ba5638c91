// Package embeddings provides vector embedding generation
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the service answers without any vectors.
	ErrEmptyResponse = errors.New("embeddings: response contains no vectors")

	// ErrUnexpectedResponse is returned when the response carries no float embeddings.
	ErrUnexpectedResponse = errors.New("embeddings: unexpected response format")

	// ErrBatchMismatch is returned when a batch response does not have one vector per input.
	ErrBatchMismatch = errors.New("embeddings: vector count does not match input count")
)

// Embedder generates vector embeddings from text
type Embedder interface {
	// Embed generates the embedding of a search query
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments generates embeddings for passages that will be indexed
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector dimensions
	Dimensions() int

	// Model returns the model identifier
	Model() string

	// Close releases any resources
	Close() error
}
