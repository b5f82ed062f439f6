package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/docsqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docsqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docsqa-go/internal/textutil"
)

// NoAnswerMessage is returned when the store holds nothing relevant.
// A question the documents cannot answer is a normal outcome, not an error.
const NoAnswerMessage = "I don't know. I couldn't find anything relevant in the loaded documents."

const (
	answerTemperature = 0.1
	answerMaxTokens   = 500

	defaultTopK       = 5
	defaultMaxSources = 3

	// resultPreviewLength caps passage text in the response; the full
	// chunk already went into the prompt, clients only show excerpts.
	resultPreviewLength = 200
)

// QueryUseCase answers questions grounded in the stored documents.
type QueryUseCase struct {
	embedder   ports.EmbeddingService
	store      ports.VectorStore
	llm        ports.LLMService
	topK       int
	maxSources int
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(
	embedder ports.EmbeddingService,
	store ports.VectorStore,
	llm ports.LLMService,
	topK, maxSources int,
) *QueryUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	if maxSources <= 0 {
		maxSources = defaultMaxSources
	}
	return &QueryUseCase{
		embedder:   embedder,
		store:      store,
		llm:        llm,
		topK:       topK,
		maxSources: maxSources,
	}
}

// Query retrieves context for the question and generates an answer.
func (uc *QueryUseCase) Query(ctx context.Context, req *entities.ChatRequest) (*entities.ChatResponse, error) {
	prompt, results, err := uc.PreparePrompt(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &entities.ChatResponse{Answer: NoAnswerMessage}, nil
	}

	answer, err := uc.llm.Generate(ctx, prompt, ports.GenerateOptions{
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &entities.ChatResponse{
		Answer:  strings.TrimSpace(answer),
		Sources: uc.collectSources(results),
		Results: previewResults(results),
	}, nil
}

// previewResults copies the results with passage text shortened to an
// excerpt.
func previewResults(results []entities.SearchResult) []entities.SearchResult {
	previews := make([]entities.SearchResult, len(results))
	copy(previews, results)
	for i := range previews {
		previews[i].Text = textutil.TruncateText(previews[i].Text, resultPreviewLength)
	}
	return previews
}

// Search exposes raw retrieval without generation.
func (uc *QueryUseCase) Search(ctx context.Context, query string) ([]entities.SearchResult, error) {
	queryEmbedding, err := uc.embedder.Embed(ctx, query, ports.EmbedQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := uc.store.Search(ctx, queryEmbedding, uc.topK)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	return results, nil
}

// PreparePrompt runs retrieval and builds the grounded prompt. Callers
// that stream the generation themselves use this instead of Query.
// An empty result slice means the store had nothing relevant.
func (uc *QueryUseCase) PreparePrompt(ctx context.Context, query string) (string, []entities.SearchResult, error) {
	results, err := uc.Search(ctx, query)
	if err != nil {
		return "", nil, err
	}
	if len(results) == 0 {
		return "", nil, nil
	}
	return buildPrompt(query, results), results, nil
}

// Stats reports the current state of the underlying store.
func (uc *QueryUseCase) Stats(ctx context.Context) (entities.StoreStats, error) {
	return uc.store.Stats(ctx)
}

// ClearAll removes every stored document.
func (uc *QueryUseCase) ClearAll(ctx context.Context) error {
	return uc.store.Clear(ctx)
}

// collectSources formats result origins as human-readable references,
// deduplicated in rank order and capped.
func (uc *QueryUseCase) collectSources(results []entities.SearchResult) []string {
	seen := make(map[string]bool, len(results))
	var sources []string
	for _, r := range results {
		ref := textutil.FormatSourceReference(r.Metadata)
		if seen[ref] {
			continue
		}
		seen[ref] = true
		sources = append(sources, ref)
		if len(sources) >= uc.maxSources {
			break
		}
	}
	return sources
}

func buildPrompt(query string, results []entities.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant answering questions about a set of documents.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Answer using ONLY the context below.\n")
	sb.WriteString("2. If the context does not contain the answer, say \"I don't know\".\n")
	sb.WriteString("3. Never invent facts that are not in the context.\n")
	sb.WriteString("4. Keep the answer concise.\n\n")
	sb.WriteString("Context:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, r.Text)
	}
	fmt.Fprintf(&sb, "Question: %s\n\nAnswer:", query)
	return sb.String()
}
