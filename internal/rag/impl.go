// Package rag provides the retrieval service implementation
package rag

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/chunking"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/embeddings"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/store"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/pkg/types"
)

// passageNamespace scopes the deterministic passage IDs
var passageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("bookrag/passage"))

// serviceImpl implements the Service interface
type serviceImpl struct {
	store    store.Store
	embedder embeddings.Embedder
	chunker  chunking.Chunker
	config   Config
}

// NewService creates a new rag service
func NewService(st store.Store, emb embeddings.Embedder, ch chunking.Chunker, cfg Config) Service {
	if cfg.DefaultSearchLimit <= 0 {
		cfg.DefaultSearchLimit = 5
	}
	if cfg.DefaultSearchThreshold < 0 {
		cfg.DefaultSearchThreshold = 0
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 96
	}

	return &serviceImpl{
		store:    st,
		embedder: emb,
		chunker:  ch,
		config:   cfg,
	}
}

// Embed returns the query embedding for text. The text is not validated;
// the embedding service decides what it accepts.
func (s *serviceImpl) Embed(ctx context.Context, text string) (*types.EmbedResponse, error) {
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	return &types.EmbedResponse{
		Embedding:  embedding,
		Model:      s.embedder.Model(),
		Dimensions: len(embedding),
	}, nil
}

// Search finds relevant passages using semantic search
func (s *serviceImpl) Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrQueryRequired
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.config.DefaultSearchLimit
	}

	// Zero selects the default cut-off, a negative value disables it
	threshold := req.Threshold
	switch {
	case threshold == 0:
		threshold = s.config.DefaultSearchThreshold
	case threshold < 0:
		threshold = 0
	}

	results, err := s.store.Search(ctx, queryEmbedding, store.SearchOptions{
		Limit:     limit,
		Threshold: threshold,
		Source:    req.Source,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	slog.Debug("rag: search", "query_len", len(query), "results", len(results), "limit", limit)

	return &types.SearchResponse{
		Results: results,
		Total:   len(results),
		Timing:  time.Since(start).Milliseconds(),
	}, nil
}

// Index processes a file or directory of chapters and stores the passages.
// Relative paths are resolved against the book root and nothing outside the
// root is read. Sources are recorded relative to the root, so a chapter gets
// the same passage IDs whether it is indexed alone or with its directory.
func (s *serviceImpl) Index(ctx context.Context, req types.IndexRequest) (int, error) {
	if req.Path == "" {
		return 0, ErrPathRequired
	}

	root, err := s.root()
	if err != nil {
		return 0, err
	}

	path, source, err := resolveInRoot(root, req.Path)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to access path: %w", err)
	}

	if !info.IsDir() && !s.supported(path) {
		return 0, fmt.Errorf("%s: %w", source, ErrUnsupportedFile)
	}

	if err := s.store.EnsureCollection(ctx, s.embedder.Dimensions()); err != nil {
		return 0, err
	}

	if !info.IsDir() {
		return s.indexFile(ctx, path, source)
	}
	return s.indexDirectory(ctx, root, path)
}

// root returns the absolute book root with symlinks resolved
func (s *serviceImpl) root() (string, error) {
	root, err := filepath.Abs(s.config.Root)
	if err != nil {
		return "", fmt.Errorf("invalid book root: %w", err)
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("invalid book root: %w", err)
	}
	return root, nil
}

// resolveInRoot returns the real path of p and its slash-separated path
// relative to root. Paths that escape root, directly or through a symlink,
// are rejected.
func resolveInRoot(root, p string) (string, string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", "", fmt.Errorf("failed to access path: %w", err)
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s: %w", p, ErrPathOutsideRoot)
	}

	return resolved, filepath.ToSlash(rel), nil
}

func (s *serviceImpl) supported(path string) bool {
	return slices.Contains(s.chunker.SupportedExtensions(), strings.ToLower(filepath.Ext(path)))
}

// indexDirectory recursively indexes every supported file under dir
func (s *serviceImpl) indexDirectory(ctx context.Context, root, dir string) (int, error) {
	var count int

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("rag: skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path != dir && slices.Contains(s.config.IndexIgnore, d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		// Symlinks are skipped since they could point outside the root
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		if !s.supported(path) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		n, err := s.indexFile(ctx, path, filepath.ToSlash(rel))
		if err != nil {
			// Log and continue with the remaining chapters
			slog.Warn("rag: failed to index file", "path", path, "error", err)
			return nil
		}
		count += n

		return nil
	})

	return count, err
}

// indexFile chunks, embeds and stores a single file, then removes the
// passages an earlier version of the file left behind
func (s *serviceImpl) indexFile(ctx context.Context, path, source string) (int, error) {
	chunks, err := s.chunker.ChunkFile(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to chunk file: %w", err)
	}

	now := time.Now()
	passages := make([]*types.Passage, 0, len(chunks))

	for i := 0; i < len(chunks); i += s.config.EmbedBatchSize {
		end := min(i+s.config.EmbedBatchSize, len(chunks))

		batch := chunks[i:end]
		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.Content
		}

		if s.config.RateLimiter != nil {
			if err := s.config.RateLimiter.Wait(ctx); err != nil {
				return 0, fmt.Errorf("rate limiter: %w", err)
			}
		}

		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("got %d embeddings for %d chunks: %w", len(vectors), len(batch), embeddings.ErrBatchMismatch)
		}

		for j, chunk := range batch {
			passages = append(passages, &types.Passage{
				ID:        PassageID(source, chunk.StartLine),
				Content:   chunk.Content,
				Source:    source,
				Heading:   chunk.Heading,
				StartLine: chunk.StartLine,
				EndLine:   chunk.EndLine,
				Embedding: vectors[j],
				IndexedAt: now,
			})
		}
	}

	if err := s.store.Upsert(ctx, passages); err != nil {
		return 0, fmt.Errorf("failed to store passages: %w", err)
	}

	keep := make([]string, len(passages))
	for i, p := range passages {
		keep[i] = p.ID
	}
	if err := s.store.DeleteBySource(ctx, source, keep); err != nil {
		return 0, fmt.Errorf("failed to remove stale passages: %w", err)
	}

	slog.Info("rag: indexed file", "source", source, "passages", len(passages))
	return len(passages), nil
}

// PassageID derives a stable point ID so re-indexing a chapter replaces its passages
func PassageID(source string, startLine int) string {
	return uuid.NewSHA1(passageNamespace, []byte(source+"#"+strconv.Itoa(startLine))).String()
}

// Stats returns collection statistics
func (s *serviceImpl) Stats(ctx context.Context) (*types.StatsResponse, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &types.StatsResponse{
		Collection:     s.store.Collection(),
		Passages:       n,
		EmbeddingModel: s.embedder.Model(),
		Dimensions:     s.embedder.Dimensions(),
	}, nil
}

// Health checks the vector database
func (s *serviceImpl) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

// Close releases resources
func (s *serviceImpl) Close() error {
	if err := s.embedder.Close(); err != nil {
		return err
	}
	return s.store.Close()
}
