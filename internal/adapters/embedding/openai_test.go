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

func newOpenAITestAdapter(t *testing.T, url string) *OpenAIAdapter {
	t.Helper()
	t.Setenv("TEST_API_KEY", "sk-test")
	adapter, err := NewOpenAIAdapter(OpenAIConfig{
		BaseURL:   url,
		APIKeyEnv: "TEST_API_KEY",
		Model:     "test-embed",
	})
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	return adapter
}

func TestOpenAIAdapter_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %q", got)
		}

		var req struct {
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		// Answer out of order to exercise index placement.
		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			data[len(req.Input)-1-i] = map[string]interface{}{
				"index":     i,
				"embedding": []float32{float32(i), 0},
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
	defer server.Close()

	adapter := newOpenAITestAdapter(t, server.URL)
	results, err := adapter.EmbedBatch(context.Background(), []string{"a", "b", "c"}, ports.EmbedDocument)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, emb := range results {
		if emb[0] != float32(i) {
			t.Errorf("result %d misplaced: %v", i, emb)
		}
	}
}

func TestOpenAIAdapter_MissingKey(t *testing.T) {
	t.Setenv("EMPTY_KEY_ENV", "")
	_, err := NewOpenAIAdapter(OpenAIConfig{APIKeyEnv: "EMPTY_KEY_ENV"})
	if err == nil {
		t.Error("missing API key should fail at construction")
	}
}

func TestOpenAIAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := newOpenAITestAdapter(t, server.URL)
	_, err := adapter.Embed(context.Background(), "hello", ports.EmbedQuery)
	if err == nil {
		t.Error("expected error on server failure")
	}
}

func TestOpenAIAdapter_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{},
		})
	}))
	defer server.Close()

	adapter := newOpenAITestAdapter(t, server.URL)
	_, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"}, ports.EmbedDocument)
	if err == nil {
		t.Error("expected error when response count disagrees")
	}
}

func TestOpenAIAdapter_ConfiguredTimeout(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test")
	adapter, err := NewOpenAIAdapter(OpenAIConfig{
		APIKeyEnv: "TEST_API_KEY",
		Timeout:   7 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	if adapter.client.Timeout != 7*time.Second {
		t.Errorf("client timeout = %v, want 7s", adapter.client.Timeout)
	}
}
