package usecases

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/0xcro3dile/docsqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docsqa-go/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	mu      sync.Mutex
	calls   []string
	embedFn func(text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string, mode ports.EmbedMode) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string, mode ports.EmbedMode) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i], mode)
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

// mockVectorStore implements ports.VectorStore for testing
type mockVectorStore struct {
	texts          []string
	embeddings     [][]float32
	metadatas      []entities.Metadata
	addFn          func() error
	results        []entities.SearchResult
	deletedSources []string
}

func (m *mockVectorStore) AddDocuments(ctx context.Context, texts []string, embeddings [][]float32, metadatas []entities.Metadata) error {
	if m.addFn != nil {
		if err := m.addFn(); err != nil {
			return err
		}
	}
	m.texts = append(m.texts, texts...)
	m.embeddings = append(m.embeddings, embeddings...)
	m.metadatas = append(m.metadatas, metadatas...)
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, queryEmbedding []float32, k int) ([]entities.SearchResult, error) {
	if len(m.results) > k {
		return m.results[:k], nil
	}
	return m.results, nil
}

func (m *mockVectorStore) DeleteSource(ctx context.Context, source string) error {
	m.deletedSources = append(m.deletedSources, source)

	var texts []string
	var embeddings [][]float32
	var metadatas []entities.Metadata
	for i, meta := range m.metadatas {
		if meta.GetString("source") == source {
			continue
		}
		texts = append(texts, m.texts[i])
		embeddings = append(embeddings, m.embeddings[i])
		metadatas = append(metadatas, meta)
	}
	m.texts = texts
	m.embeddings = embeddings
	m.metadatas = metadatas
	return nil
}

func (m *mockVectorStore) Stats(ctx context.Context) (entities.StoreStats, error) {
	return entities.StoreStats{TotalDocuments: len(m.texts)}, nil
}

func (m *mockVectorStore) Clear(ctx context.Context) error {
	m.texts = nil
	m.embeddings = nil
	m.metadatas = nil
	return nil
}

func TestIngestRecords_ChunksAndStores(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 100, 20, 2)

	records := []entities.SourceDocument{
		{Content: "Short document about cats.", Source: "cats.txt", Title: "Cats"},
	}

	n, err := uc.IngestRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk stored, got %d", n)
	}
	if len(store.texts) != 1 || len(store.embeddings) != 1 || len(store.metadatas) != 1 {
		t.Fatalf("store arrays misaligned: %d texts, %d embeddings, %d metadatas",
			len(store.texts), len(store.embeddings), len(store.metadatas))
	}

	meta := store.metadatas[0]
	if got := meta.GetString("source"); got != "cats.txt" {
		t.Errorf("source = %q, want cats.txt", got)
	}
	if got := meta.GetString("title"); got != "Cats" {
		t.Errorf("title = %q, want Cats", got)
	}
	if got := meta.GetInt("chunk_id"); got != 0 {
		t.Errorf("chunk_id = %d, want 0", got)
	}
	if got := meta.GetInt("total_chunks"); got != 1 {
		t.Errorf("total_chunks = %d, want 1", got)
	}
}

func TestIngestRecords_NumbersChunksPerRecord(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 60, 10, 4)

	long := strings.Repeat("Sentences that end like this keep the chunker busy. ", 6)
	records := []entities.SourceDocument{
		{Content: long, Source: "long.txt"},
		{Content: "A tiny one.", Source: "tiny.txt"},
	}

	n, err := uc.IngestRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if n < 3 {
		t.Fatalf("expected the long record to produce multiple chunks, stored %d", n)
	}

	// The last chunk belongs to tiny.txt and restarts numbering at zero.
	last := store.metadatas[len(store.metadatas)-1]
	if got := last.GetString("source"); got != "tiny.txt" {
		t.Errorf("last source = %q, want tiny.txt", got)
	}
	if got := last.GetInt("chunk_id"); got != 0 {
		t.Errorf("last chunk_id = %d, want 0", got)
	}

	// Every long.txt chunk reports the same total.
	total := store.metadatas[0].GetInt("total_chunks")
	for _, meta := range store.metadatas[:len(store.metadatas)-1] {
		if meta.GetInt("total_chunks") != total {
			t.Errorf("inconsistent total_chunks across one record")
		}
	}
}

func TestIngestRecords_EmptyContentSkipped(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 0, 0, 0)

	records := []entities.SourceDocument{
		{Content: "   ", Source: "blank.txt"},
		{Content: "", Source: "empty.txt"},
		{Content: "?!?! ... !!??", Source: "junk.txt"},
	}

	n, err := uc.IngestRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 chunks stored, got %d", n)
	}
	if len(embedder.calls) != 0 {
		t.Errorf("embedder should not be called for empty records")
	}
}

func TestIngestRecords_DropsFailedChunks(t *testing.T) {
	embedder := &mockEmbedder{
		embedFn: func(text string) ([]float32, error) {
			if strings.Contains(text, "poison") {
				return nil, errors.New("embedding service unavailable")
			}
			return []float32{1, 0, 0}, nil
		},
	}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 1000, 0, 2)

	records := []entities.SourceDocument{
		{Content: "good first", Source: "a.txt"},
		{Content: "poison pill", Source: "b.txt"},
		{Content: "good last", Source: "c.txt"},
	}

	n, err := uc.IngestRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 chunks stored, got %d", n)
	}
	if store.texts[0] != "good first" || store.texts[1] != "good last" {
		t.Errorf("surviving chunks out of order: %v", store.texts)
	}
	if store.metadatas[0].GetString("source") != "a.txt" ||
		store.metadatas[1].GetString("source") != "c.txt" {
		t.Errorf("metadata no longer aligned with texts after drop")
	}
}

func TestIngestRecords_RetriesOnceBeforeDropping(t *testing.T) {
	attempts := 0
	embedder := &mockEmbedder{
		embedFn: func(text string) ([]float32, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("transient failure")
			}
			return []float32{1, 0}, nil
		},
	}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 1000, 0, 1)

	n, err := uc.IngestRecords(context.Background(), []entities.SourceDocument{
		{Content: "flaky but recoverable", Source: "f.txt"},
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected the retried chunk to be stored, got %d", n)
	}
	if attempts != 2 {
		t.Errorf("expected 2 embed attempts, got %d", attempts)
	}
}

func TestIngestRecords_AllChunksFailed(t *testing.T) {
	embedder := &mockEmbedder{
		embedFn: func(text string) ([]float32, error) {
			return nil, errors.New("service down")
		},
	}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 1000, 0, 2)

	_, err := uc.IngestRecords(context.Background(), []entities.SourceDocument{
		{Content: "doomed", Source: "d.txt"},
	})
	if err == nil {
		t.Fatal("expected error when every chunk fails to embed")
	}
	if len(store.texts) != 0 {
		t.Errorf("nothing should be stored when every chunk fails")
	}
}

func TestReplaceRecords_DropsStaleChunksFirst(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 1000, 0, 2)

	records := []entities.SourceDocument{{Content: "original wording", Source: "notes.txt"}}
	if _, err := uc.ReplaceRecords(context.Background(), records); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	records[0].Content = "edited wording"
	n, err := uc.ReplaceRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk stored, got %d", n)
	}

	// Only the edited content remains; the stale chunk is gone.
	if len(store.texts) != 1 || store.texts[0] != "edited wording" {
		t.Errorf("store texts = %v, want only the edited chunk", store.texts)
	}
	want := []string{"notes.txt", "notes.txt"}
	if len(store.deletedSources) != len(want) {
		t.Fatalf("deleted sources = %v, want %v", store.deletedSources, want)
	}
}

func TestReplaceRecords_DeletesEachSourceOnce(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 1000, 0, 2)

	records := []entities.SourceDocument{
		{Content: "first part", Source: "guide.md"},
		{Content: "second part", Source: "guide.md"},
		{Content: "other file", Source: "faq.md"},
	}
	if _, err := uc.ReplaceRecords(context.Background(), records); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(store.deletedSources) != 2 {
		t.Errorf("deleted sources = %v, want one delete per distinct source", store.deletedSources)
	}
	if len(store.texts) != 3 {
		t.Errorf("stored %d chunks, want 3", len(store.texts))
	}
}

func TestIngestRecords_StoreErrorPropagates(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{
		addFn: func() error { return errors.New("disk full") },
	}
	uc := NewIngestUseCase(embedder, store, 1000, 0, 2)

	_, err := uc.IngestRecords(context.Background(), []entities.SourceDocument{
		{Content: "some content", Source: "s.txt"},
	})
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
}
