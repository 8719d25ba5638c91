package embeddings

import (
	"context"
	"crypto/sha256"
	"math"
)

// MockEmbedder generates deterministic unit vectors from a hash of the text.
// Query and document embeddings of the same text are identical.
type MockEmbedder struct {
	dims int
}

// NewMockEmbedder creates a mock embedder; dims <= 0 uses the Cohere v3 size
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = DimensionsEmbedEnglishV3
	}
	return &MockEmbedder{dims: dims}
}

// Embed returns the deterministic vector for text
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return m.vector(text), nil
}

// EmbedDocuments returns one deterministic vector per text
func (m *MockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vector(text)
	}
	return out, nil
}

func (m *MockEmbedder) vector(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	v := make([]float32, m.dims)

	var sum float64
	for i := range v {
		v[i] = float32(hash[i%len(hash)])/127.5 - 1.0
		sum += float64(v[i] * v[i])
	}

	mag := float32(math.Sqrt(sum))
	if mag == 0 {
		return v
	}
	for i := range v {
		v[i] /= mag
	}
	return v
}

// Dimensions returns the vector size
func (m *MockEmbedder) Dimensions() int { return m.dims }

// Model returns a fixed identifier
func (m *MockEmbedder) Model() string { return "mock" }

// Close is a no-op
func (m *MockEmbedder) Close() error { return nil }

var _ Embedder = (*MockEmbedder)(nil)
