package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/docsqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docsqa-go/internal/index"
)

// SQLiteStore implements ports.VectorStore on SQLite. Rows are keyed by
// an autoincrement position so insertion order is preserved; search is a
// brute-force cosine scan, which matches the exact-search contract of the
// in-memory store at the corpus sizes this serves.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	dataPath string
}

// NewSQLiteStore opens (or creates) a database-backed vector store.
func NewSQLiteStore(dataPath string) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "docsqa.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{db: db, dataPath: dataPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		source TEXT,
		metadata TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AddDocuments inserts texts with their embeddings and metadata in one
// transaction, enforcing the dimension fixed by the first insert.
func (s *SQLiteStore) AddDocuments(ctx context.Context, texts []string, embeddings [][]float32, metadatas []entities.Metadata) error {
	if len(texts) == 0 || len(embeddings) == 0 {
		return nil
	}
	if len(texts) != len(embeddings) || len(texts) != len(metadatas) {
		return fmt.Errorf("adding documents: %w (%d texts, %d embeddings, %d metadatas)",
			ErrLengthMismatch, len(texts), len(embeddings), len(metadatas))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := s.dimension(ctx)
	if err != nil {
		return fmt.Errorf("reading store dimension: %w", err)
	}
	if dim == 0 {
		dim = len(embeddings[0])
	}
	for i, emb := range embeddings {
		if len(emb) != dim {
			return fmt.Errorf("adding documents: embedding %d: %w: got %d, want %d",
				i, index.ErrDimensionMismatch, len(emb), dim)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (content, source, metadata, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range texts {
		metaJSON, err := json.Marshal(metadatas[i])
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		embJSON, err := json.Marshal(embeddings[i])
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		src := metadatas[i].GetString("source")
		if _, err := stmt.ExecContext(ctx, texts[i], src, metaJSON, embJSON); err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO store_meta (key, value) VALUES ('dimension', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, dim)
	if err != nil {
		return fmt.Errorf("recording dimension: %w", err)
	}

	return tx.Commit()
}

// Search scans all chunks and returns the top k by cosine similarity.
func (s *SQLiteStore) Search(ctx context.Context, queryEmbedding []float32, k int) ([]entities.SearchResult, error) {
	if k <= 0 {
		k = defaultTopK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store dimension: %w", err)
	}
	if dim > 0 && len(queryEmbedding) != dim {
		return nil, fmt.Errorf("similarity search: %w: query has %d dimensions, store has %d",
			index.ErrDimensionMismatch, len(queryEmbedding), dim)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content, metadata, embedding FROM chunks ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	type scored struct {
		text  string
		meta  entities.Metadata
		score float64
	}

	var candidates []scored
	for rows.Next() {
		var content string
		var metaJSON, embJSON []byte
		if err := rows.Scan(&content, &metaJSON, &embJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var meta entities.Metadata
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			continue // Skip corrupted metadata
		}
		var emb []float32
		if err := json.Unmarshal(embJSON, &emb); err != nil {
			continue // Skip corrupted embeddings
		}

		candidates = append(candidates, scored{
			text:  content,
			meta:  meta,
			score: cosineSimilarity(queryEmbedding, emb),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]entities.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = entities.SearchResult{
			Text:     c.text,
			Metadata: c.meta,
			Score:    c.score,
			Rank:     i + 1,
		}
	}
	return results, nil
}

// DeleteSource removes every chunk stored under the given source.
// Deleting an absent source is a no-op.
func (s *SQLiteStore) DeleteSource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source); err != nil {
		return fmt.Errorf("deleting source %s: %w", source, err)
	}
	return nil
}

// Stats reports counts, the recorded dimension and distinct sources.
func (s *SQLiteStore) Stats(ctx context.Context) (entities.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats entities.StoreStats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&stats.TotalDocuments); err != nil {
		return stats, fmt.Errorf("counting chunks: %w", err)
	}
	stats.IndexSize = stats.TotalDocuments

	dim, err := s.dimension(ctx)
	if err != nil {
		return stats, fmt.Errorf("reading store dimension: %w", err)
	}
	if stats.TotalDocuments > 0 {
		stats.VectorDimensions = dim
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source FROM chunks
		WHERE source IS NOT NULL AND source != ''
		GROUP BY source ORDER BY MIN(position)
	`)
	if err != nil {
		return stats, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return stats, fmt.Errorf("scanning source: %w", err)
		}
		stats.Sources = append(stats.Sources, src)
	}
	stats.UniqueSources = len(stats.Sources)
	return stats, rows.Err()
}

// Clear removes all chunks and the recorded dimension. Idempotent.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM store_meta"); err != nil {
		return fmt.Errorf("clearing store metadata: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = 'dimension'").Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return dim, err
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
