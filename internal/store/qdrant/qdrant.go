// Package qdrant provides the Qdrant storage implementation
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/store"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/pkg/types"
)

const (
	restPort = 6333
	grpcPort = 6334
)

// Payload keys
const (
	keyContent   = "content"
	keySource    = "source"
	keyHeading   = "heading"
	keyStartLine = "start_line"
	keyEndLine   = "end_line"
	keyIndexedAt = "indexed_at"
)

// Store implements store.Store on a Qdrant collection over gRPC
type Store struct {
	client     *qdrant.Client
	collection string
}

// Config configures the Qdrant store
type Config struct {
	URL        string // Cluster URL, e.g. https://xyz.cloud.qdrant.io
	APIKey     string
	Collection string
}

// endpoint is the gRPC address derived from a cluster URL
type endpoint struct {
	Host   string
	Port   int
	UseTLS bool
}

// parseEndpoint maps a Qdrant URL to its gRPC endpoint. The REST port, or no
// port at all, maps to the gRPC port; any other explicit port is kept.
func parseEndpoint(raw string) (endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("invalid qdrant url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return endpoint{}, fmt.Errorf("invalid qdrant url scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return endpoint{}, fmt.Errorf("invalid qdrant url: missing host")
	}

	ep := endpoint{
		Host:   u.Hostname(),
		Port:   grpcPort,
		UseTLS: u.Scheme == "https",
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return endpoint{}, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
		if port != restPort {
			ep.Port = port
		}
	}

	return ep, nil
}

// New creates a Qdrant store. The connection is established lazily on the
// first call; construction performs no network I/O.
func New(cfg Config) (*Store, error) {
	ep, err := parseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   ep.Host,
		Port:                   ep.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 ep.UseTLS,
		SkipCompatibilityCheck: true,
		PoolSize:               1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Store{
		client:     client,
		collection: cfg.Collection,
	}, nil
}

// Collection returns the collection name
func (s *Store) Collection() string {
	return s.collection
}

// EnsureCollection creates a cosine-distance collection if it does not exist
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}

	slog.Info("qdrant: collection created", "collection", s.collection, "dimensions", dims)
	return nil
}

// Upsert writes passages and waits for the update to be applied
func (s *Store) Upsert(ctx context.Context, passages []*types.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(passages))
	for _, p := range passages {
		payload, err := qdrant.TryValueMap(toPayload(p))
		if err != nil {
			return fmt.Errorf("failed to encode payload for %s: %w", p.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Embedding...),
			Payload: payload,
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}

	return nil
}

// DeleteBySource removes the points of one source that are not listed in keep
func (s *Store) DeleteBySource(ctx context.Context, source string, keep []string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(keySource, source)},
	}
	if len(keep) > 0 {
		ids := make([]*qdrant.PointId, len(keep))
		for i, id := range keep {
			ids[i] = qdrant.NewID(id)
		}
		filter.MustNot = []*qdrant.Condition{qdrant.NewHasID(ids...)}
	}

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("failed to delete stale points of %s: %w", source, err)
	}

	return nil
}

// Search runs a nearest-neighbour query against the collection
func (s *Store) Search(ctx context.Context, embedding []float32, opts store.SearchOptions) ([]types.SearchResult, error) {
	limit := uint64(opts.Limit)
	if limit == 0 {
		limit = 5
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.Threshold > 0 {
		threshold := opts.Threshold
		query.ScoreThreshold = &threshold
	}
	if opts.Source != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(keySource, opts.Source)},
		}
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", s.collection, err)
	}

	results := make([]types.SearchResult, 0, len(points))
	for _, point := range points {
		results = append(results, types.SearchResult{
			Passage: fromPayload(point.GetId().GetUuid(), point.GetPayload()),
			Score:   point.GetScore(),
		})
	}

	return results, nil
}

// Count returns the exact number of points in the collection
func (s *Store) Count(ctx context.Context) (uint64, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points in %s: %w", s.collection, err)
	}
	return n, nil
}

// Health checks that the cluster answers
func (s *Store) Health(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Close closes the gRPC connection
func (s *Store) Close() error {
	return s.client.Close()
}

func toPayload(p *types.Passage) map[string]any {
	return map[string]any{
		keyContent:   p.Content,
		keySource:    p.Source,
		keyHeading:   p.Heading,
		keyStartLine: int64(p.StartLine),
		keyEndLine:   int64(p.EndLine),
		keyIndexedAt: p.IndexedAt.UTC().Format(time.RFC3339),
	}
}

func fromPayload(id string, payload map[string]*qdrant.Value) types.Passage {
	p := types.Passage{
		ID:        id,
		Content:   payload[keyContent].GetStringValue(),
		Source:    payload[keySource].GetStringValue(),
		Heading:   payload[keyHeading].GetStringValue(),
		StartLine: int(payload[keyStartLine].GetIntegerValue()),
		EndLine:   int(payload[keyEndLine].GetIntegerValue()),
	}
	if ts, err := time.Parse(time.RFC3339, payload[keyIndexedAt].GetStringValue()); err == nil {
		p.IndexedAt = ts
	}
	return p
}

var _ store.Store = (*Store)(nil)
