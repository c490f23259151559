// Package lexical provides an in-process fallback reranker used when no
// model-backed rerank capability is configured. It blends the candidate's
// fused prior with query-token overlap, so a strong vector-only match is
// not zeroed out just because the query shares no surface tokens with it.
package lexical

import (
	"context"
	"strings"
	"unicode"

	"github.com/avelkov/corpus-qa/internal/core/ports"
)

const (
	priorWeight   = 0.60
	overlapWeight = 0.40
)

type Reranker struct{}

func New() *Reranker {
	return &Reranker{}
}

func (r *Reranker) Rerank(ctx context.Context, query string, items []ports.RerankItem) ([]ports.RerankScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTokens := toTokenSet(query)
	out := make([]ports.RerankScore, 0, len(items))
	for _, item := range items {
		overlap := tokenOverlap(queryTokens, toTokenSet(item.Text))
		out = append(out, ports.RerankScore{
			ID:    item.ID,
			Score: priorWeight*item.Prior + overlapWeight*overlap,
		})
	}
	return out, nil
}

// tokenOverlap is the fraction of query tokens present in the chunk.
func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{}, 16)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out[b.String()] = struct{}{}
			b.Reset()
		}
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}
