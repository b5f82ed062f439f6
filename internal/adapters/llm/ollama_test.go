package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/0xcro3dile/docsqa-go/internal/domain/ports"
)

func TestOllamaAdapter_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		opts, _ := req["options"].(map[string]interface{})
		if opts["temperature"] != 0.1 {
			t.Errorf("temperature not forwarded: %v", opts)
		}
		if opts["num_predict"] != float64(500) {
			t.Errorf("max tokens not forwarded: %v", opts)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "The answer is 42.",
			"done":     true,
		})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test-model", 0)
	answer, err := adapter.Generate(context.Background(), "What is the answer?",
		ports.GenerateOptions{Temperature: 0.1, MaxTokens: 500})

	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if answer != "The answer is 42." {
		t.Errorf("got answer %q", answer)
	}
}

func TestOllamaAdapter_GenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test-model", 0)
	_, err := adapter.Generate(context.Background(), "prompt", ports.GenerateOptions{})
	if err == nil {
		t.Error("expected error on server failure")
	}
}

func TestOllamaAdapter_GenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, tok := range []string{"Hello", ", ", "world"} {
			fmt.Fprintf(w, `{"response":%q,"done":false}`+"\n", tok)
			flusher.Flush()
		}
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test-model", 0)
	tokens, err := adapter.GenerateStream(context.Background(), "greet me")
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	var full string
	var sawDone bool
	for tok := range tokens {
		if tok.Error != nil {
			t.Fatalf("stream token error: %v", tok.Error)
		}
		full += tok.Content
		if tok.Done {
			sawDone = true
		}
	}

	if full != "Hello, world" {
		t.Errorf("got streamed content %q", full)
	}
	if !sawDone {
		t.Error("stream should end with a done token")
	}
}

func TestOllamaAdapter_ConfiguredTimeout(t *testing.T) {
	adapter := NewOllamaAdapter("", "", 30*time.Second)
	if adapter.client.Timeout != 30*time.Second {
		t.Errorf("client timeout = %v, want 30s", adapter.client.Timeout)
	}

	adapter = NewOllamaAdapter("", "", 0)
	if adapter.client.Timeout != 300*time.Second {
		t.Errorf("default client timeout = %v, want 300s", adapter.client.Timeout)
	}
}
