// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultQdrantURL is the managed Qdrant cluster holding the book collection.
const DefaultQdrantURL = "https://0be15939-2f39-4ed6-8b02-a4230bf16349.us-east4-0.gcp.cloud.qdrant.io"

// DefaultCollection is the Qdrant collection the book chapters are indexed into.
const DefaultCollection = "book_content"

// Config holds all application configuration.
type Config struct {
	// Secrets. Neither is validated here: an empty key surfaces as an
	// authentication error on the first remote call.
	CohereAPIKey string
	QdrantAPIKey string

	QdrantURL  string
	Collection string

	LogLevel string
	Host     string
	Port     int

	// Directory holding the book chapters; indexing never reads outside it
	BookDir string
	// Exposes POST /index on the HTTP API
	IndexAPIEnabled bool

	// Texts per embedding request when indexing documents
	EmbedBatchSize int
	// Embedding requests per second while indexing, 0 disables the limit
	EmbedRateLimit float64
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a bool or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// Load reads configuration from environment variables and returns a Config struct.
// It loads a .env file from the working directory first if one exists; values
// already present in the environment are not overridden by it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	qdrantURL := getEnv("QDRANT_URL", DefaultQdrantURL)
	if err := validateURL(qdrantURL); err != nil {
		return nil, fmt.Errorf("QDRANT_URL: %w", err)
	}

	port := getEnvAsInt("PORT", 8000)
	if port <= 0 {
		return nil, errors.New("PORT must be a positive integer")
	}

	batch := getEnvAsInt("EMBED_BATCH_SIZE", 96)
	if batch <= 0 {
		return nil, errors.New("EMBED_BATCH_SIZE must be a positive integer")
	}

	rateLimit := getEnvAsFloat("EMBED_RATE_LIMIT", 0)
	if rateLimit < 0 {
		return nil, errors.New("EMBED_RATE_LIMIT must not be negative")
	}

	cfg := &Config{
		CohereAPIKey: os.Getenv("COHERE_API_KEY"),
		QdrantAPIKey: os.Getenv("QDRANT_API_KEY"),
		QdrantURL:    qdrantURL,
		Collection:   getEnv("QDRANT_COLLECTION", DefaultCollection),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Host:         getEnv("HOST", "127.0.0.1"),
		Port:         port,

		BookDir:         getEnv("BOOK_DIR", "."),
		IndexAPIEnabled: getEnvAsBool("INDEX_API_ENABLED", false),

		EmbedBatchSize: batch,
		EmbedRateLimit: rateLimit,
	}

	return cfg, nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return errors.New("missing host")
	}
	return nil
}
