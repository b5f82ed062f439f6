// Package vectordb provides vector store adapters.
// Clean Architecture: Adapters implementing ports.VectorStore.
// SnapshotStore keeps the index in memory and mirrors it to a durable
// snapshot after every mutation; SQLiteStore trades that for a database.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/0xcro3dile/docsqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docsqa-go/internal/index"
)

// ErrLengthMismatch is returned when texts, embeddings and metadatas do
// not line up. Nothing is committed in that case.
var ErrLengthMismatch = errors.New("texts, embeddings and metadatas must have equal lengths")

const defaultTopK = 5

// SnapshotStore holds the vector index and the parallel text/metadata
// arrays in memory, persisting a full snapshot eagerly on every add and
// clear. Position is the sole join key: the Nth vector always corresponds
// to the Nth text and the Nth metadata entry.
//
// Eager full-snapshot persistence is a deliberate simplicity/throughput
// tradeoff for small corpora; crash-safety covers the last completed
// operation.
type SnapshotStore struct {
	mu        sync.RWMutex
	dataPath  string
	snap      *snapshot
	index     *index.Flat
	texts     []string
	metadatas []entities.Metadata
}

// NewSnapshotStore opens (or creates) a store rooted at dataPath and
// loads the snapshot if one exists. Corrupt or partial snapshots are
// logged and treated as an empty store.
func NewSnapshotStore(dataPath string) (*SnapshotStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	snap := newSnapshot(dataPath)
	state := snap.load()

	idx := index.NewFlat()
	if len(state.texts) > 0 {
		restored, err := index.Restore(state.dim, state.vectors)
		if err != nil {
			log.Printf("[WARN] restoring index: %v (starting with an empty store)", err)
			state = snapshotState{}
		} else {
			idx = restored
		}
	}

	return &SnapshotStore{
		dataPath:  dataPath,
		snap:      snap,
		index:     idx,
		texts:     state.texts,
		metadatas: state.metadatas,
	}, nil
}

// AddDocuments appends texts with their embeddings and metadata, then
// persists the snapshot. Either every new entry is committed and durable,
// or none is: a failed persist rolls the in-memory commit back.
func (s *SnapshotStore) AddDocuments(ctx context.Context, texts []string, embeddings [][]float32, metadatas []entities.Metadata) error {
	if len(texts) == 0 || len(embeddings) == 0 {
		return nil
	}
	if len(texts) != len(embeddings) || len(texts) != len(metadatas) {
		return fmt.Errorf("adding documents: %w (%d texts, %d embeddings, %d metadatas)",
			ErrLengthMismatch, len(texts), len(embeddings), len(metadatas))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.index.Size()
	if err := s.index.Add(embeddings); err != nil {
		return fmt.Errorf("adding documents to vector store: %w", err)
	}
	s.texts = append(s.texts, texts...)
	s.metadatas = append(s.metadatas, metadatas...)

	if err := s.snap.save(s.index.Dimension(), s.index.Vectors(), s.texts, s.metadatas); err != nil {
		s.index.Truncate(prev)
		s.texts = s.texts[:prev]
		s.metadatas = s.metadatas[:prev]
		return fmt.Errorf("persisting vector store: %w", err)
	}
	return nil
}

// Search returns up to k passages ranked by descending similarity. An
// empty store yields an empty result, not an error.
func (s *SnapshotStore) Search(ctx context.Context, queryEmbedding []float32, k int) ([]entities.SearchResult, error) {
	if k <= 0 {
		k = defaultTopK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.texts) == 0 {
		return nil, nil
	}

	matches, err := s.index.Search(queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]entities.SearchResult, 0, len(matches))
	for _, m := range matches {
		// Positions are bounds-checked before dereferencing, in case the
		// index and the arrays ever desync.
		if m.Position < 0 || m.Position >= len(s.texts) {
			continue
		}
		results = append(results, entities.SearchResult{
			Text:     s.texts[m.Position],
			Metadata: s.metadatas[m.Position],
			Score:    m.Score,
			Rank:     m.Rank,
		})
	}
	return results, nil
}

// DeleteSource removes every chunk whose metadata source matches,
// compacting the index and both arrays so positions stay aligned, then
// persists the shrunken snapshot. The in-memory state only changes after
// the persist succeeds. Deleting an absent source is a no-op.
func (s *SnapshotStore) DeleteSource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vectors := s.index.Vectors()
	keptVectors := make([][]float32, 0, len(vectors))
	keptTexts := make([]string, 0, len(s.texts))
	keptMetas := make([]entities.Metadata, 0, len(s.metadatas))
	for i, meta := range s.metadatas {
		if meta.GetString("source") == source {
			continue
		}
		keptVectors = append(keptVectors, vectors[i])
		keptTexts = append(keptTexts, s.texts[i])
		keptMetas = append(keptMetas, meta)
	}
	if len(keptTexts) == len(s.texts) {
		return nil
	}

	dim := s.index.Dimension()
	if err := s.snap.save(dim, keptVectors, keptTexts, keptMetas); err != nil {
		return fmt.Errorf("persisting vector store: %w", err)
	}

	rebuilt, err := index.Restore(dim, keptVectors)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	s.index = rebuilt
	s.texts = keptTexts
	s.metadatas = keptMetas
	return nil
}

// Stats reports counts, the configured dimension (0 until the first add)
// and the distinct sources present in the store.
func (s *SnapshotStore) Stats(ctx context.Context) (entities.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := uniqueSources(s.metadatas)
	return entities.StoreStats{
		TotalDocuments:   len(s.texts),
		VectorDimensions: s.index.Dimension(),
		IndexSize:        s.index.Size(),
		UniqueSources:    len(sources),
		Sources:          sources,
	}, nil
}

// Clear empties the store and deletes both snapshot artifacts. Idempotent.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = index.NewFlat()
	s.texts = nil
	s.metadatas = nil

	if err := s.snap.delete(); err != nil {
		return fmt.Errorf("clearing vector store: %w", err)
	}
	return nil
}

// uniqueSources returns distinct metadata sources in first-seen order.
func uniqueSources(metadatas []entities.Metadata) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, meta := range metadatas {
		src := meta.GetString("source")
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	return sources
}
