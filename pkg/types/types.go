// Package types defines the core data structures for bookrag
package types

import "time"

// Passage is one indexed piece of book content stored in the vector database
type Passage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`            // file path relative to the indexed root
	Heading   string    `json:"heading,omitempty"` // nearest markdown heading above the passage
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Embedding []float32 `json:"-"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Chunk represents a piece of a document produced by a chunker
type Chunk struct {
	Content   string `json:"content"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Heading   string `json:"heading,omitempty"`
}

// SearchResult represents a passage match with similarity score
type SearchResult struct {
	Passage Passage `json:"passage"`
	Score   float32 `json:"score"`
}

// EmbedRequest is the request payload for embedding a query
type EmbedRequest struct {
	Text string `json:"text"`
}

// EmbedResponse is the response payload for a query embedding
type EmbedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
}

// SearchRequest is the request payload for searching the book
type SearchRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float32 `json:"threshold,omitempty"`
	Source    string  `json:"source,omitempty"` // restrict to one chapter file
}

// SearchResponse is the response payload for search
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Timing  int64          `json:"timing_ms"`
}

// IndexRequest is the request payload for indexing a file or directory
type IndexRequest struct {
	Path string `json:"path"`
}

// StatsResponse contains statistics about the indexed collection
type StatsResponse struct {
	Collection     string `json:"collection"`
	Passages       uint64 `json:"passages"`
	EmbeddingModel string `json:"embedding_model"`
	Dimensions     int    `json:"dimensions"`
}
