// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/0xcro3dile/docsqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docsqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docsqa-go/internal/domain/usecases"
)

// userFacingError is what callers see when the pipeline fails. The real
// error goes to the log; users get an apology, not internals.
const userFacingError = "Sorry, something went wrong while answering your question. Please try again."

// Server is the HTTP server for the document QA API and UI.
type Server struct {
	queryUseCase  *usecases.QueryUseCase
	ingestUseCase *usecases.IngestUseCase
	llm           ports.LLMService
	addr          string
}

// NewServer creates a new HTTP server.
func NewServer(
	queryUC *usecases.QueryUseCase,
	ingestUC *usecases.IngestUseCase,
	llm ports.LLMService,
	addr string,
) *Server {
	return &Server{
		queryUseCase:  queryUC,
		ingestUseCase: ingestUC,
		llm:           llm,
		addr:          addr,
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	// UI
	mux.HandleFunc("/", s.handleIndex)

	// API
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/query/stream", s.handleQueryStream) // SSE streaming
	mux.HandleFunc("/api/documents", s.handleDocuments)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/health", s.handleHealth)

	server := &http.Server{
		Addr:         s.addr,
		Handler:      corsMiddleware(loggingMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // Longer for streaming
	}

	log.Printf("[INFO] DocsQA server starting on %s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// handleQuery processes a non-streaming query. The endpoint always
// answers: pipeline failures are logged and surfaced as an apology so a
// chat client never has to parse an error payload.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req entities.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "Query required", http.StatusBadRequest)
		return
	}

	resp, err := s.queryUseCase.Query(r.Context(), &req)
	if err != nil {
		log.Printf("[WARN] query failed: %v", err)
		resp = &entities.ChatResponse{Answer: userFacingError}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleQueryStream handles SSE streaming queries.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Query required", http.StatusBadRequest)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()

	prompt, results, err := s.queryUseCase.PreparePrompt(ctx, query)
	if err != nil {
		log.Printf("[WARN] stream query failed: %v", err)
		sendSSE(w, flusher, map[string]interface{}{"content": userFacingError, "done": true})
		return
	}
	if len(results) == 0 {
		sendSSE(w, flusher, map[string]interface{}{"content": usecases.NoAnswerMessage, "done": true})
		return
	}

	tokenCh, err := s.llm.GenerateStream(ctx, prompt)
	if err != nil {
		log.Printf("[WARN] stream generation failed: %v", err)
		sendSSE(w, flusher, map[string]interface{}{"content": userFacingError, "done": true})
		return
	}

	for token := range tokenCh {
		if token.Error != nil {
			log.Printf("[WARN] stream token error: %v", token.Error)
			sendSSE(w, flusher, map[string]interface{}{"content": "", "done": true})
			return
		}
		sendSSE(w, flusher, map[string]interface{}{"content": token.Content, "done": token.Done})
	}
}

// handleDocuments ingests records (POST) or clears the store (DELETE).
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var records []entities.SourceDocument
		if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		stored, err := s.ingestUseCase.IngestRecords(r.Context(), records)
		if err != nil {
			log.Printf("[WARN] ingest failed: %v", err)
			http.Error(w, "Ingestion failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"chunks_stored": stored})

	case http.MethodDelete:
		if err := s.queryUseCase.ClearAll(r.Context()); err != nil {
			log.Printf("[WARN] clear failed: %v", err)
			http.Error(w, "Clear failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStats reports what the store currently holds.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.queryUseCase.Stats(r.Context())
	if err != nil {
		log.Printf("[WARN] stats failed: %v", err)
		http.Error(w, "Stats unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data map[string]interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

// handleIndex renders the minimal chat UI with SSE support.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>DocsQA</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; }
        #chat-container { height: 60vh; overflow-y: auto; border: 1px solid #ddd; border-radius: 8px; padding: 1rem; }
        .message { margin: 0.5rem 0; padding: 0.5rem 0.75rem; border-radius: 8px; }
        .message.user { background: #e8f0fe; text-align: right; }
        .message.assistant { background: #f1f3f4; }
        .error { color: #b00020; }
        form { display: flex; gap: 0.5rem; margin-top: 1rem; }
        input { flex: 1; padding: 0.5rem; }
    </style>
</head>
<body>
    <header>
        <h1>DocsQA</h1>
        <p>Ask questions about the loaded documents.</p>
    </header>

    <main>
        <div id="chat-container">
            <div id="messages"></div>
        </div>

        <form id="query-form" onsubmit="sendQuery(event)">
            <input type="text" id="query-input" name="query" placeholder="Ask about your documents..." autocomplete="off" required>
            <button type="submit" id="send-btn">Send</button>
        </form>
    </main>

    <footer>
        <p>Drop .txt / .md / .json files in the documents folder to ingest.</p>
    </footer>

    <script>
        function sendQuery(e) {
            e.preventDefault();
            const input = document.getElementById('query-input');
            const messages = document.getElementById('messages');
            const query = input.value.trim();
            if (!query) return;

            messages.innerHTML += '<div class="message user">' + escapeHtml(query) + '</div>';

            const responseId = 'response-' + Date.now();
            messages.innerHTML += '<div class="message assistant" id="' + responseId + '"></div>';

            input.value = '';

            const container = document.getElementById('chat-container');
            container.scrollTop = container.scrollHeight;

            const eventSource = new EventSource('/api/query/stream?q=' + encodeURIComponent(query));
            const responseEl = document.getElementById(responseId);
            let fullResponse = '';

            eventSource.onmessage = function(event) {
                const data = JSON.parse(event.data);
                if (data.content) {
                    fullResponse += data.content;
                    responseEl.textContent = fullResponse;
                    container.scrollTop = container.scrollHeight;
                }
                if (data.done) {
                    eventSource.close();
                    responseEl.textContent = fullResponse || 'No response';
                }
            };

            eventSource.onerror = function() {
                eventSource.close();
                if (!fullResponse) {
                    responseEl.innerHTML = '<span class="error">Connection error</span>';
                }
            };
        }

        function escapeHtml(text) {
            const div = document.createElement('div');
            div.textContent = text;
            return div.innerHTML;
        }
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}
