// Command docsqa runs the document QA server: it ingests documents from
// a local directory, keeps watching it for changes, and serves the
// question-answering API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/docsqa-go/internal/adapters/embedding"
	"github.com/0xcro3dile/docsqa-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/docsqa-go/internal/adapters/llm"
	"github.com/0xcro3dile/docsqa-go/internal/adapters/loader"
	"github.com/0xcro3dile/docsqa-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/docsqa-go/internal/config"
	"github.com/0xcro3dile/docsqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docsqa-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/docsqa-go/internal/infrastructure/http"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to config YAML")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[ERROR] loading config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("[ERROR] opening vector store: %v", err)
	}
	defer closeStore()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		log.Fatalf("[ERROR] configuring embedder: %v", err)
	}

	llmSvc := llm.NewOllamaAdapter(cfg.LLM.BaseURL, cfg.LLM.Model,
		time.Duration(cfg.LLM.TimeoutSecs)*time.Second)

	ingestUC := usecases.NewIngestUseCase(embedder, store,
		cfg.Chunking.MaxChunkSize, cfg.Chunking.Overlap, cfg.Ingest.Workers)
	queryUC := usecases.NewQueryUseCase(embedder, store, llmSvc,
		cfg.Query.TopK, cfg.Query.MaxSources)

	server := httpserver.NewServer(queryUC, ingestUC, llmSvc, cfg.Server.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs := loader.NewMultiLoader()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	g.Go(func() error {
		return runIngestion(ctx, cfg, ingestUC, docs)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("[ERROR] %v", err)
	}
	log.Printf("[INFO] shutdown complete")
}

func buildStore(cfg *config.AppConfig) (ports.VectorStore, func(), error) {
	switch cfg.Store.Type {
	case "sqlite":
		store, err := vectordb.NewSQLiteStore(cfg.Store.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		store, err := vectordb.NewSnapshotStore(cfg.Store.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func buildEmbedder(cfg *config.AppConfig) (ports.EmbeddingService, error) {
	switch cfg.Embedder.Type {
	case "openai":
		oa := cfg.Embedder.OpenAI
		return embedding.NewOpenAIAdapter(embedding.OpenAIConfig{
			BaseURL:   oa.BaseURL,
			APIKeyEnv: oa.APIKeyEnv,
			Model:     oa.Model,
			Timeout:   time.Duration(oa.TimeoutSecs) * time.Second,
		})
	default:
		ol := cfg.Embedder.Ollama
		return embedding.NewOllamaAdapter(ol.BaseURL, ol.Model,
			time.Duration(ol.TimeoutSecs)*time.Second), nil
	}
}

// runIngestion loads every supported file already in the documents
// directory, then keeps re-ingesting files as the watcher reports
// changes. A missing directory only disables watching.
func runIngestion(ctx context.Context, cfg *config.AppConfig, ingestUC *usecases.IngestUseCase, docs ports.DocumentLoader) error {
	dir := cfg.Ingest.DocumentsDir
	if _, err := os.Stat(dir); err != nil {
		log.Printf("[WARN] documents directory %s not available: %v", dir, err)
		return nil
	}

	// ReplaceRecords keeps the store free of stale chunks when a file is
	// re-ingested, whether by an edit or by the scan after a restart.
	ingestFile := func(path string) {
		records, err := docs.Load(ctx, path)
		if err != nil {
			log.Printf("[WARN] loading %s: %v", path, err)
			return
		}
		if _, err := ingestUC.ReplaceRecords(ctx, records); err != nil {
			log.Printf("[WARN] ingesting %s: %v", path, err)
		}
	}

	supported := make(map[string]bool)
	for _, ext := range docs.SupportedExtensions() {
		supported[ext] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !supported[filepath.Ext(entry.Name())] {
			continue
		}
		ingestFile(filepath.Join(dir, entry.Name()))
	}

	if !cfg.Ingest.Watch {
		return nil
	}

	watcher, err := filewatcher.NewFSNotifyWatcher(docs.SupportedExtensions())
	if err != nil {
		return err
	}
	defer watcher.Stop()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}
	log.Printf("[INFO] watching %s for document changes", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			switch event.Operation {
			case ports.FileCreated, ports.FileModified:
				log.Printf("[INFO] detected change: %s", event.Path)
				ingestFile(event.Path)
			}
		}
	}
}
