// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

// SourceDocument is the ingestion record handed to the core by producers
// (scraper, PDF pipeline, file loader): content plus citation fields.
type SourceDocument struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Title   string `json:"title"`
	Type    string `json:"type"`
}

// Metadata is the per-chunk metadata mapping. Producers always write the
// keys "source", "title", "chunk_id" and "total_chunks"; anything else may
// accumulate freely.
type Metadata map[string]any

// NewChunkMetadata builds the standard metadata for one chunk of a document.
func NewChunkMetadata(source, title string, chunkID, totalChunks int) Metadata {
	return Metadata{
		"source":       source,
		"title":        title,
		"chunk_id":     chunkID,
		"total_chunks": totalChunks,
	}
}

// GetString returns a string value from the mapping, or "" if absent or
// not a string.
func (m Metadata) GetString(key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// GetInt returns an integer value from the mapping. JSON round-trips turn
// numbers into float64, so both are accepted.
func (m Metadata) GetInt(key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// SearchResult is one ranked passage returned by a similarity search.
type SearchResult struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"` // Inner-product similarity (vectors are unit-normalized)
	Rank     int      `json:"rank"`  // 1-based
}

// StoreStats describes the current state of a vector store.
type StoreStats struct {
	TotalDocuments   int      `json:"total_documents"`
	VectorDimensions int      `json:"vector_dimensions"`
	IndexSize        int      `json:"index_size"`
	UniqueSources    int      `json:"unique_sources"`
	Sources          []string `json:"sources"`
}

// ChatMessage represents a conversation turn.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest represents a query with conversation context.
type ChatRequest struct {
	Query   string        `json:"query"`
	History []ChatMessage `json:"history,omitempty"`
}

// ChatResponse represents the LLM's answer with citations.
type ChatResponse struct {
	Answer  string         `json:"answer"`
	Sources []string       `json:"sources"`
	Results []SearchResult `json:"results,omitempty"`
}
