package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/0xcro3dile/docsqa-go/internal/domain/ports"
)

func TestOllamaAdapter_Embed(t *testing.T) {
	// Mock Ollama server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float32{0.1, 0.2, 0.3},
		})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test-model", 0)
	emb, err := adapter.Embed(context.Background(), "hello", ports.EmbedDocument)

	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(emb) != 3 {
		t.Errorf("expected 3 dims, got %d", len(emb))
	}
}

func TestOllamaAdapter_EmbedBatch(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float32{float32(callCount) * 0.1},
		})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test-model", 0)
	texts := []string{"a", "b", "c"}
	results, err := adapter.EmbedBatch(context.Background(), texts, ports.EmbedDocument)

	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestOllamaAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test-model", 0)
	_, err := adapter.Embed(context.Background(), "hello", ports.EmbedQuery)

	if err == nil {
		t.Error("expected error on server failure")
	}
}

func TestOllamaAdapter_EmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float32{},
		})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test-model", 0)
	_, err := adapter.Embed(context.Background(), "hello", ports.EmbedDocument)

	if err == nil {
		t.Error("expected error on empty embedding")
	}
}

func TestOllamaAdapter_ConfiguredTimeout(t *testing.T) {
	adapter := NewOllamaAdapter("", "", 5*time.Second)
	if adapter.client.Timeout != 5*time.Second {
		t.Errorf("client timeout = %v, want 5s", adapter.client.Timeout)
	}

	adapter = NewOllamaAdapter("", "", 0)
	if adapter.client.Timeout != 60*time.Second {
		t.Errorf("default client timeout = %v, want 60s", adapter.client.Timeout)
	}
}
