// Package httpapi implements ports.Reranker against a Cohere/Jina-style
// HTTP rerank endpoint.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avelkov/corpus-qa/internal/core/ports"
	"github.com/avelkov/corpus-qa/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model, apiKey string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) Rerank(ctx context.Context, query string, items []ports.RerankItem) ([]ports.RerankScore, error) {
	if len(items) == 0 {
		return nil, nil
	}

	documents := make([]string, len(items))
	for i, item := range items {
		documents[i] = item.Text
	}
	payload := map[string]any{
		"model":     c.model,
		"query":     query,
		"documents": documents,
	}

	var response struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}

	call := func(callCtx context.Context) error {
		return c.post(callCtx, payload, &response)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "rerank.score", call, classifyRerankError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]ports.RerankScore, 0, len(response.Results))
	for _, r := range response.Results {
		if r.Index < 0 || r.Index >= len(items) {
			continue
		}
		out = append(out, ports.RerankScore{ID: items[r.Index].ID, Score: r.RelevanceScore})
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("rerank status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("rerank status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}

func classifyRerankError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	// The retriever treats any rerank failure as soft; retrying inside the
	// rerank timeout is still worthwhile for transient transport errors.
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
