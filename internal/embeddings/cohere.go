package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"
)

const (
	// ModelEmbedEnglishV3 is the Cohere model used for both queries and passages.
	// Vectors from different models are not comparable.
	ModelEmbedEnglishV3 = "embed-english-v3.0"

	// DimensionsEmbedEnglishV3 is the vector size produced by ModelEmbedEnglishV3.
	DimensionsEmbedEnglishV3 = 1024
)

// CohereClient generates embeddings through the Cohere Embed API
type CohereClient struct {
	client *cohereclient.Client
	model  string
	dims   int

	// Stats
	requests atomic.Int64
	latency  atomic.Int64 // cumulative latency in microseconds
}

// CohereConfig configures the Cohere client
type CohereConfig struct {
	APIKey     string
	BaseURL    string       // empty uses the SDK default
	HTTPClient *http.Client // empty uses the SDK default
}

// NewCohereClient creates a Cohere embeddings client. No request is made
// until the first Embed call, and the API key is not validated here.
func NewCohereClient(cfg CohereConfig) *CohereClient {
	opts := []option.RequestOption{
		option.WithToken(cfg.APIKey),
		// exactly one outbound request per call
		option.WithMaxAttempts(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &CohereClient{
		client: cohereclient.NewClient(opts...),
		model:  ModelEmbedEnglishV3,
		dims:   DimensionsEmbedEnglishV3,
	}
}

// Embed returns the embedding of a single search query. The text is sent
// as-is; length limits are enforced by the remote API.
func (c *CohereClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text}, cohere.EmbedInputTypeSearchQuery)
	if err != nil {
		return nil, err
	}

	if len(vectors) == 0 {
		return nil, fmt.Errorf("failed to embed query: %w", ErrEmptyResponse)
	}

	return vectors[0], nil
}

// EmbedDocuments embeds passages for indexing in a single request
func (c *CohereClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := c.embed(ctx, texts, cohere.EmbedInputTypeSearchDocument)
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("got %d vectors for %d texts: %w", len(vectors), len(texts), ErrBatchMismatch)
	}

	return vectors, nil
}

func (c *CohereClient) embed(ctx context.Context, texts []string, inputType cohere.EmbedInputType) ([][]float32, error) {
	start := time.Now()

	model := c.model
	resp, err := c.client.Embed(ctx, &cohere.EmbedRequest{
		Texts:     texts,
		Model:     &model,
		InputType: &inputType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call Cohere embed: %w", err)
	}

	c.requests.Add(1)
	c.latency.Add(time.Since(start).Microseconds())

	if resp == nil || resp.EmbeddingsFloats == nil {
		return nil, ErrUnexpectedResponse
	}

	return toFloat32(resp.EmbeddingsFloats.Embeddings), nil
}

// toFloat32 narrows the API's float64 vectors to the float32 the vector store uses
func toFloat32(in [][]float64) [][]float32 {
	out := make([][]float32, len(in))
	for i, vec := range in {
		v := make([]float32, len(vec))
		for j, f := range vec {
			v[j] = float32(f)
		}
		out[i] = v
	}
	return out
}

// Dimensions returns the embedding vector dimensions
func (c *CohereClient) Dimensions() int {
	return c.dims
}

// Model returns the embedding model name
func (c *CohereClient) Model() string {
	return c.model
}

// Close releases resources
func (c *CohereClient) Close() error {
	return nil
}

// Stats returns client statistics
func (c *CohereClient) Stats() (requests int64, avgLatencyMs float64) {
	requests = c.requests.Load()
	if requests > 0 {
		avgLatencyMs = float64(c.latency.Load()) / float64(requests) / 1000
	}
	return
}

var _ Embedder = (*CohereClient)(nil)
