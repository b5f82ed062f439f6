// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"

	"github.com/0xcro3dile/docsqa-go/internal/domain/entities"
)

// EmbedMode tells the embedding backend whether the text is a stored
// document or a retrieval query. Some models encode the two differently.
type EmbedMode string

const (
	EmbedDocument EmbedMode = "document"
	EmbedQuery    EmbedMode = "query"
)

// EmbeddingService generates vector embeddings for text.
// All vectors returned for one store instance must share one dimension.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)
}

// GenerateOptions tune a single generation call.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// LLMService generates text responses from a language model.
type LLMService interface {
	// Generate produces a response for the given prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateStream produces a streaming response (for real-time UI).
	// Returns a channel of StreamTokens for token-by-token output.
	GenerateStream(ctx context.Context, prompt string) (<-chan StreamToken, error)
}

// VectorStore persists document chunks with their embeddings and answers
// similarity queries. Texts, embeddings and metadata share ordinal
// positions: the Nth vector added corresponds to the Nth text and the Nth
// metadata entry, always.
type VectorStore interface {
	// AddDocuments appends texts with their embeddings and metadata as one
	// atomic unit. Mismatched lengths are an error; empty input is a no-op.
	AddDocuments(ctx context.Context, texts []string, embeddings [][]float32, metadatas []entities.Metadata) error

	// Search returns up to k passages ranked by descending similarity.
	// An empty store yields an empty result, not an error.
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]entities.SearchResult, error)

	// DeleteSource removes every chunk whose metadata source matches.
	// Used to replace a document's chunks when it is re-ingested.
	// Deleting an absent source is a no-op.
	DeleteSource(ctx context.Context, source string) error

	// Stats reports the current size and dimension of the store.
	Stats(ctx context.Context) (entities.StoreStats, error)

	// Clear removes all data and any durable state. Idempotent.
	Clear(ctx context.Context) error
}

// DocumentLoader reads documents from the file system.
type DocumentLoader interface {
	// Load reads the file at path and returns the ingestion records it
	// contains. Plain files yield one record; JSON batches may yield many.
	Load(ctx context.Context, path string) ([]entities.SourceDocument, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// StreamToken represents a single token in a streaming LLM response.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
