package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/chunking"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/embeddings"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/store"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/pkg/types"
)

// memoryStore is an in-memory store.Store scoring by dot product
type memoryStore struct {
	mu         sync.Mutex
	passages   map[string]*types.Passage
	ensured    []int
	lastSearch store.SearchOptions
	searchErr  error
	closed     bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{passages: make(map[string]*types.Passage)}
}

func (m *memoryStore) EnsureCollection(_ context.Context, dims int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured = append(m.ensured, dims)
	return nil
}

func (m *memoryStore) Upsert(_ context.Context, passages []*types.Passage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range passages {
		m.passages[p.ID] = p
	}
	return nil
}

func (m *memoryStore) DeleteBySource(_ context.Context, source string, keep []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.passages {
		if p.Source == source && !slices.Contains(keep, id) {
			delete(m.passages, id)
		}
	}
	return nil
}

func (m *memoryStore) Search(_ context.Context, embedding []float32, opts store.SearchOptions) ([]types.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSearch = opts
	if m.searchErr != nil {
		return nil, m.searchErr
	}

	var results []types.SearchResult
	for _, p := range m.passages {
		if opts.Source != "" && p.Source != opts.Source {
			continue
		}
		var score float32
		for i := range embedding {
			score += embedding[i] * p.Embedding[i]
		}
		if opts.Threshold > 0 && score < opts.Threshold {
			continue
		}
		results = append(results, types.SearchResult{Passage: *p, Score: score})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (m *memoryStore) Count(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.passages)), nil
}

func (m *memoryStore) Health(_ context.Context) error { return nil }

func (m *memoryStore) Collection() string { return "test_book" }

func (m *memoryStore) Close() error {
	m.closed = true
	return nil
}

// countingEmbedder records document batch sizes
type countingEmbedder struct {
	*embeddings.MockEmbedder
	batches []int
	err     error
}

func (c *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches = append(c.batches, len(texts))
	if c.err != nil {
		return nil, c.err
	}
	return c.MockEmbedder.EmbedDocuments(ctx, texts)
}

func writeChapter(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestService(root string, st store.Store, emb embeddings.Embedder) Service {
	cfg := DefaultConfig()
	cfg.Root = root
	return NewService(st, emb, chunking.NewMarkdownChunker(1500, 100), cfg)
}

func TestService_Embed(t *testing.T) {
	emb := embeddings.NewMockEmbedder(16)
	svc := newTestService("", newMemoryStore(), emb)

	resp, err := svc.Embed(context.Background(), "What is ROS 2?")
	require.NoError(t, err)

	want, _ := emb.Embed(context.Background(), "What is ROS 2?")
	assert.Equal(t, want, resp.Embedding)
	assert.Equal(t, "mock", resp.Model)
	assert.Equal(t, 16, resp.Dimensions)
}

func TestService_Search_RequiresQuery(t *testing.T) {
	svc := newTestService("", newMemoryStore(), embeddings.NewMockEmbedder(8))

	_, err := svc.Search(context.Background(), types.SearchRequest{Query: "   "})
	assert.ErrorIs(t, err, ErrQueryRequired)
}

func TestService_Search_AppliesDefaults(t *testing.T) {
	st := newMemoryStore()
	svc := newTestService("", st, embeddings.NewMockEmbedder(8))

	_, err := svc.Search(context.Background(), types.SearchRequest{Query: "humanoid"})
	require.NoError(t, err)

	assert.Equal(t, 5, st.lastSearch.Limit)
	assert.Equal(t, float32(0.7), st.lastSearch.Threshold)
	assert.Empty(t, st.lastSearch.Source)

	_, err = svc.Search(context.Background(), types.SearchRequest{Query: "humanoid", Threshold: -1})
	require.NoError(t, err)
	assert.Zero(t, st.lastSearch.Threshold)

	_, err = svc.Search(context.Background(), types.SearchRequest{Query: "humanoid", Threshold: 0.3})
	require.NoError(t, err)
	assert.Equal(t, float32(0.3), st.lastSearch.Threshold)
}

func TestService_Search_PropagatesStoreError(t *testing.T) {
	st := newMemoryStore()
	st.searchErr = errors.New("unavailable")
	svc := newTestService("", st, embeddings.NewMockEmbedder(8))

	_, err := svc.Search(context.Background(), types.SearchRequest{Query: "humanoid"})
	require.Error(t, err)
	assert.ErrorIs(t, err, st.searchErr)
}

func TestService_IndexAndSearch(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "intro.md", "# Introduction\n\nPhysical AI systems act in the real world.")
	writeChapter(t, dir, "module-1/ros2.md", "# ROS 2\n\nNodes communicate over topics.\n\n## Services\n\nServices are request and response.")
	writeChapter(t, dir, "module-1/diagram.png", "not text")
	writeChapter(t, dir, "node_modules/pkg/readme.md", "# Ignored\n\nShould not be indexed.")

	st := newMemoryStore()
	svc := newTestService(dir, st, embeddings.NewMockEmbedder(8))

	n, err := svc.Index(context.Background(), types.IndexRequest{Path: dir})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{8}, st.ensured)

	sources := map[string]bool{}
	for _, p := range st.passages {
		sources[p.Source] = true
		assert.NotEmpty(t, p.Embedding)
		assert.False(t, p.IndexedAt.IsZero())
	}
	assert.Equal(t, map[string]bool{"intro.md": true, "module-1/ros2.md": true}, sources)

	// The mock embeds identical text to identical vectors, so an exact passage is the top hit.
	resp, err := svc.Search(context.Background(), types.SearchRequest{
		Query: "## Services\n\nServices are request and response.",
		Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Services", resp.Results[0].Passage.Heading)
	assert.Equal(t, "module-1/ros2.md", resp.Results[0].Passage.Source)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Passages)
	assert.Equal(t, "test_book", stats.Collection)
}

func TestService_Index_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "intro.md", "# Introduction\n\nPhysical AI systems act in the real world.")

	st := newMemoryStore()
	svc := newTestService(dir, st, embeddings.NewMockEmbedder(8))

	for i := 0; i < 2; i++ {
		_, err := svc.Index(context.Background(), types.IndexRequest{Path: dir})
		require.NoError(t, err)
	}

	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestService_Index_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "kinematics.md", "# Kinematics\n\nJoint space and task space.")

	st := newMemoryStore()
	svc := newTestService(dir, st, embeddings.NewMockEmbedder(8))

	n, err := svc.Index(context.Background(), types.IndexRequest{Path: filepath.Join(dir, "kinematics.md")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, p := range st.passages {
		assert.Equal(t, "kinematics.md", p.Source)
		assert.Equal(t, PassageID("kinematics.md", 1), p.ID)
	}
}

func TestService_Index_Batches(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "long.md", "# A\n\none\n\n# B\n\ntwo\n\n# C\n\nthree\n\n# D\n\nfour\n\n# E\n\nfive")

	emb := &countingEmbedder{MockEmbedder: embeddings.NewMockEmbedder(8)}
	cfg := DefaultConfig()
	cfg.Root = dir
	cfg.EmbedBatchSize = 2
	svc := NewService(newMemoryStore(), emb, chunking.NewMarkdownChunker(1500, 0), cfg)

	n, err := svc.Index(context.Background(), types.IndexRequest{Path: dir})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{2, 2, 1}, emb.batches)
}

func TestService_Index_RateLimited(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "long.md", "# A\n\none\n\n# B\n\ntwo\n\n# C\n\nthree")

	emb := &countingEmbedder{MockEmbedder: embeddings.NewMockEmbedder(8)}
	cfg := DefaultConfig()
	cfg.Root = dir
	cfg.EmbedBatchSize = 1
	cfg.RateLimiter = rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
	svc := NewService(newMemoryStore(), emb, chunking.NewMarkdownChunker(1500, 0), cfg)

	start := time.Now()
	n, err := svc.Index(context.Background(), types.IndexRequest{Path: dir})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 1, 1}, emb.batches)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestService_Index_RateLimiterHonorsCancel(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "intro.md", "# Introduction\n\ntext")

	emb := &countingEmbedder{MockEmbedder: embeddings.NewMockEmbedder(8)}
	cfg := DefaultConfig()
	cfg.Root = dir
	cfg.RateLimiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	cfg.RateLimiter.Allow() // drain the burst
	st := newMemoryStore()
	svc := NewService(st, emb, chunking.NewMarkdownChunker(1500, 0), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := svc.Index(ctx, types.IndexRequest{Path: filepath.Join(dir, "intro.md")})
	require.Error(t, err)
	assert.Empty(t, emb.batches)
	assert.Empty(t, st.passages)
}

func TestService_Index_Errors(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(dir, newMemoryStore(), embeddings.NewMockEmbedder(8))

	_, err := svc.Index(context.Background(), types.IndexRequest{})
	assert.ErrorIs(t, err, ErrPathRequired)

	_, err = svc.Index(context.Background(), types.IndexRequest{Path: filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestService_Index_SameFileNameInDifferentModules(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "module-1/intro.md", "# ROS 2\n\nNodes and topics.")
	writeChapter(t, dir, "module-2/intro.md", "# Gazebo\n\nSimulating the robot.")

	st := newMemoryStore()
	svc := newTestService(dir, st, embeddings.NewMockEmbedder(8))

	for _, chapter := range []string{"module-1/intro.md", "module-2/intro.md"} {
		_, err := svc.Index(context.Background(), types.IndexRequest{Path: filepath.Join(dir, chapter)})
		require.NoError(t, err)
	}

	require.Len(t, st.passages, 2)
	sources := map[string]string{}
	for _, p := range st.passages {
		sources[p.Source] = p.Heading
	}
	assert.Equal(t, map[string]string{"module-1/intro.md": "ROS 2", "module-2/intro.md": "Gazebo"}, sources)
}

func TestService_Index_ChapterAloneMatchesDirectory(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "docs/module-1/ros2.md", "# ROS 2\n\nNodes communicate over topics.")
	writeChapter(t, dir, "docs/intro.md", "# Introduction\n\nPhysical AI.")

	st := newMemoryStore()
	svc := newTestService(dir, st, embeddings.NewMockEmbedder(8))

	_, err := svc.Index(context.Background(), types.IndexRequest{Path: "docs"})
	require.NoError(t, err)
	_, err = svc.Index(context.Background(), types.IndexRequest{Path: "docs/module-1/ros2.md"})
	require.NoError(t, err)

	require.Len(t, st.passages, 2)
	_, ok := st.passages[PassageID("docs/module-1/ros2.md", 1)]
	assert.True(t, ok)
}

func TestService_Index_ReindexDropsRemovedSections(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "chapter.md", "# A\n\none\n\n# B\n\ntwo")
	writeChapter(t, dir, "other.md", "# C\n\nthree")

	st := newMemoryStore()
	svc := newTestService(dir, st, embeddings.NewMockEmbedder(8))

	_, err := svc.Index(context.Background(), types.IndexRequest{Path: dir})
	require.NoError(t, err)
	require.Len(t, st.passages, 3)

	writeChapter(t, dir, "chapter.md", "# A\n\none")
	n, err := svc.Index(context.Background(), types.IndexRequest{Path: "chapter.md"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var contents []string
	for _, p := range st.passages {
		contents = append(contents, p.Content)
	}
	assert.ElementsMatch(t, []string{"# A\n\none", "# C\n\nthree"}, contents)

	// An emptied chapter keeps nothing
	writeChapter(t, dir, "chapter.md", "")
	n, err = svc.Index(context.Background(), types.IndexRequest{Path: "chapter.md"})
	require.NoError(t, err)
	assert.Zero(t, n)
	require.Len(t, st.passages, 1)
}

func TestService_Index_StaysInsideRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "book")
	writeChapter(t, root, "intro.md", "# Introduction\n\nPhysical AI.")
	writeChapter(t, base, "secret.md", "# Secret\n\nnot part of the book")
	writeChapter(t, root, "id_rsa", "PRIVATE KEY")
	require.NoError(t, os.Symlink(filepath.Join(base, "secret.md"), filepath.Join(root, "linked.md")))

	st := newMemoryStore()
	svc := newTestService(root, st, embeddings.NewMockEmbedder(8))

	for _, path := range []string{
		"../secret.md",
		filepath.Join(base, "secret.md"),
		"linked.md",
		base,
	} {
		_, err := svc.Index(context.Background(), types.IndexRequest{Path: path})
		assert.ErrorIs(t, err, ErrPathOutsideRoot, path)
	}

	_, err := svc.Index(context.Background(), types.IndexRequest{Path: "id_rsa"})
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	assert.Empty(t, st.passages)

	// The directory walk skips the symlink and the unsupported file
	n, err := svc.Index(context.Background(), types.IndexRequest{Path: root})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	for _, p := range st.passages {
		assert.Equal(t, "intro.md", p.Source)
	}
}

func TestService_Index_EmbedFailureOnSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "intro.md", "# Introduction\n\ntext")

	emb := &countingEmbedder{MockEmbedder: embeddings.NewMockEmbedder(8), err: errors.New("rate limited")}
	st := newMemoryStore()
	svc := newTestService(dir, st, emb)

	_, err := svc.Index(context.Background(), types.IndexRequest{Path: filepath.Join(dir, "intro.md")})
	require.Error(t, err)
	assert.Empty(t, st.passages)
}

func TestPassageID(t *testing.T) {
	a := PassageID("intro.md", 1)
	assert.Equal(t, a, PassageID("intro.md", 1))
	assert.NotEqual(t, a, PassageID("intro.md", 2))
	assert.NotEqual(t, a, PassageID("outro.md", 1))
	assert.Len(t, a, 36)
}

func TestService_Close(t *testing.T) {
	st := newMemoryStore()
	svc := newTestService("", st, embeddings.NewMockEmbedder(8))

	require.NoError(t, svc.Close())
	assert.True(t, st.closed)
}
