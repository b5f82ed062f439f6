// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
package usecases

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/docsqa-go/internal/chunker"
	"github.com/0xcro3dile/docsqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docsqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docsqa-go/internal/textutil"
)

// minRecordLength filters out records whose cleaned content is too short
// to be worth embedding.
const minRecordLength = 5

// IngestUseCase turns ingestion records into stored, searchable chunks.
// Single Responsibility: Only ingestion logic.
type IngestUseCase struct {
	embedder     ports.EmbeddingService
	store        ports.VectorStore
	chunkSize    int
	chunkOverlap int
	workers      int
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
// Dependency Injection: Adapters are passed in, not created here.
func NewIngestUseCase(
	embedder ports.EmbeddingService,
	store ports.VectorStore,
	chunkSize, chunkOverlap, workers int,
) *IngestUseCase {
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultMaxSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = chunker.DefaultOverlap
	}
	if workers <= 0 {
		workers = 8
	}
	return &IngestUseCase{
		embedder:     embedder,
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		workers:      workers,
	}
}

// IngestRecords chunks, embeds and stores a batch of records as one
// logical unit. Records with no usable content are skipped. Returns the
// number of chunks stored.
func (uc *IngestUseCase) IngestRecords(ctx context.Context, records []entities.SourceDocument) (int, error) {
	var texts []string
	var metadatas []entities.Metadata

	for _, rec := range records {
		content := textutil.CleanText(rec.Content)
		if !textutil.IsMeaningfulContent(content, minRecordLength) {
			log.Printf("[DEBUG] skipping record %q: no meaningful content", rec.Source)
			continue
		}

		source := rec.Source
		if source == "" {
			source = "unknown"
		}

		chunks := chunker.Chunk(content, uc.chunkSize, uc.chunkOverlap)
		for i, ch := range chunks {
			texts = append(texts, ch)
			metadatas = append(metadatas, entities.NewChunkMetadata(source, rec.Title, i, len(chunks)))
		}
	}
	if len(texts) == 0 {
		return 0, nil
	}

	batchID := uuid.NewString()[:8]
	log.Printf("[INFO] ingest %s: embedding %d chunks", batchID, len(texts))

	embeddings := uc.embedAll(ctx, texts)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Drop chunks whose embedding failed - text and vector together, so
	// positions stay aligned. A zero-vector substitute would pollute every
	// later search.
	keptTexts := texts[:0]
	keptMetas := metadatas[:0]
	keptEmbeds := make([][]float32, 0, len(embeddings))
	for i, emb := range embeddings {
		if emb == nil {
			continue
		}
		keptTexts = append(keptTexts, texts[i])
		keptMetas = append(keptMetas, metadatas[i])
		keptEmbeds = append(keptEmbeds, emb)
	}

	if dropped := len(embeddings) - len(keptEmbeds); dropped > 0 {
		log.Printf("[WARN] ingest %s: dropped %d chunks after failed embedding", batchID, dropped)
	}
	if len(keptEmbeds) == 0 {
		return 0, fmt.Errorf("ingest %s: embedding failed for all %d chunks", batchID, len(embeddings))
	}

	if err := uc.store.AddDocuments(ctx, keptTexts, keptEmbeds, keptMetas); err != nil {
		return 0, err
	}
	log.Printf("[INFO] ingest %s: stored %d chunks", batchID, len(keptEmbeds))
	return len(keptEmbeds), nil
}

// ReplaceRecords drops previously stored chunks for each record's source
// before ingesting, so a re-ingested file replaces its old chunks instead
// of piling duplicates next to them. Used by the file pipeline, where the
// same path comes around again on every edit and every restart.
func (uc *IngestUseCase) ReplaceRecords(ctx context.Context, records []entities.SourceDocument) (int, error) {
	seen := make(map[string]bool)
	for _, rec := range records {
		source := rec.Source
		if source == "" {
			source = "unknown"
		}
		if seen[source] {
			continue
		}
		seen[source] = true
		if err := uc.store.DeleteSource(ctx, source); err != nil {
			return 0, fmt.Errorf("replacing source %s: %w", source, err)
		}
	}
	return uc.IngestRecords(ctx, records)
}

// embedAll embeds texts across a bounded worker pool. Workers write into
// the slot matching their submission index, so results come back in the
// original order no matter how calls interleave. A failed chunk is
// retried once, then left nil for the caller to drop.
func (uc *IngestUseCase) embedAll(ctx context.Context, texts []string) [][]float32 {
	results := make([][]float32, len(texts))

	var g errgroup.Group
	g.SetLimit(uc.workers)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			emb, err := uc.embedder.Embed(ctx, text, ports.EmbedDocument)
			if err != nil && ctx.Err() == nil {
				emb, err = uc.embedder.Embed(ctx, text, ports.EmbedDocument)
			}
			if err != nil {
				log.Printf("[WARN] embedding chunk %d failed: %v", i, err)
				return nil
			}
			results[i] = emb
			return nil
		})
	}
	g.Wait()
	return results
}
