package main

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/chunking"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/config"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/embeddings"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/rag"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/store/qdrant"
)

// app bundles what the commands need
type app struct {
	cfg      *config.Config
	svc      rag.Service
	embedder *embeddings.CohereClient
}

// initApp loads configuration, sets up logging and builds the clients.
// Nothing here talks to the network.
func initApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if collection != "" {
		cfg.Collection = collection
	}

	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	st, err := qdrant.New(qdrant.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.Collection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	embedder := embeddings.NewCohereClient(embeddings.CohereConfig{
		APIKey: cfg.CohereAPIKey,
	})

	ragCfg := rag.DefaultConfig()
	ragCfg.Root = cfg.BookDir
	ragCfg.EmbedBatchSize = cfg.EmbedBatchSize
	if cfg.EmbedRateLimit > 0 {
		ragCfg.RateLimiter = rate.NewLimiter(rate.Limit(cfg.EmbedRateLimit), 1)
	}

	chunkOpts := chunking.DefaultChunkOptions()
	svc := rag.NewService(st, embedder, chunking.NewMarkdownChunker(chunkOpts.MaxSize, chunkOpts.Overlap), ragCfg)

	slog.Debug("initialized",
		"qdrant_url", cfg.QdrantURL,
		"collection", cfg.Collection,
		"model", embedder.Model(),
		"rate_limit", cfg.EmbedRateLimit,
	)

	return &app{cfg: cfg, svc: svc, embedder: embedder}, nil
}
