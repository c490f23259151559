package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avelkov/corpus-qa/internal/core/ports"
)

func TestRerankMapsResultIndicesToChunkIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Documents) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(req.Documents))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 1, "relevance_score": 0.95},
				{"index": 0, "relevance_score": 0.20},
				{"index": 7, "relevance_score": 0.99},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "rerank-v1", "secret", time.Second, nil)
	scores, err := client.Rerank(context.Background(), "query", []ports.RerankItem{
		{ID: "aaa", Text: "first"},
		{ID: "bbb", Text: "second"},
	})
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected out-of-range index dropped, got %d scores", len(scores))
	}
	if scores[0].ID != "bbb" || scores[0].Score != 0.95 {
		t.Fatalf("unexpected first score: %+v", scores[0])
	}
}

func TestRerankEmptyInputSkipsRequest(t *testing.T) {
	client := New("http://unused", "rerank-v1", "", time.Second, nil)

	scores, err := client.Rerank(context.Background(), "query", nil)
	if err != nil || scores != nil {
		t.Fatalf("expected nil result for empty input, got %v %v", scores, err)
	}
}

func TestRerankNon2xxFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, "rerank-v1", "", time.Second, nil)
	if _, err := client.Rerank(context.Background(), "query", []ports.RerankItem{{ID: "a", Text: "a"}}); err == nil {
		t.Fatalf("expected error for 429 response")
	}
}
