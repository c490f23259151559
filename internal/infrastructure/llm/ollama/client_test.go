package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

func TestEmbedReturnsVectorsInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "embed-model" || len(req.Input) != 2 {
			t.Fatalf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 0}, {0, 1}},
		})
	}))
	defer server.Close()

	client := New(server.URL, "gen-model", "embed-model", Options{})
	vectors, err := NewEmbedder(client).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestGenerateAnswerIncludesChunkContext(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Prompt
		_ = json.NewEncoder(w).Encode(map[string]any{"response": " The answer [chunk:aaa111]. "})
	}))
	defer server.Close()

	client := New(server.URL, "gen-model", "embed-model", Options{})
	candidates := []domain.RetrievalCandidate{
		{Chunk: domain.Chunk{ID: "aaa111", DocumentID: "doc-1", Text: "evidence text"}, MergedScore: 0.9},
	}
	answer, err := NewGenerator(client).GenerateAnswer(context.Background(), "what?", candidates)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "The answer [chunk:aaa111]." {
		t.Fatalf("expected trimmed answer, got %q", answer)
	}
	if !strings.Contains(prompt, "[chunk:aaa111]") {
		t.Fatalf("expected chunk marker in prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "evidence text") {
		t.Fatalf("expected chunk text in prompt")
	}
}

func TestCallSurfacesHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, "gen-model", "embed-model", Options{})
	_, err := NewGenerator(client).GenerateAnswer(context.Background(), "q", nil)
	if err == nil {
		t.Fatalf("expected error for 400 response")
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestServerErrorWrapsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "gen-model", "embed-model", Options{})
	_, err := NewEmbedder(client).Embed(context.Background(), []string{"a"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary classification for 503, got %v", err)
	}
}
