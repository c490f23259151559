package index

import (
	"reflect"
	"testing"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

func TestLexicalSearchPrefersRareTerms(t *testing.T) {
	chunks := []domain.Chunk{
		{ID: "aaa", Position: 0, Text: "the system uses the standard approach"},
		{ID: "bbb", Position: 1, Text: "the system uses quorum replication"},
		{ID: "ccc", Position: 2, Text: "the general overview of the system"},
	}
	idx := buildLexicalIndex(chunks)

	hits := idx.search("quorum replication", 10)
	if len(hits) == 0 || hits[0].ChunkID != "bbb" {
		t.Fatalf("expected rare-term chunk first, got %+v", hits)
	}
}

func TestLexicalSearchTopKTruncates(t *testing.T) {
	chunks := []domain.Chunk{
		{ID: "aaa", Position: 0, Text: "token one"},
		{ID: "bbb", Position: 1, Text: "token two"},
		{ID: "ccc", Position: 2, Text: "token three"},
	}
	idx := buildLexicalIndex(chunks)

	hits := idx.search("token", 2)
	if len(hits) != 2 {
		t.Fatalf("expected topK=2 hits, got %d", len(hits))
	}
}

func TestLexicalSearchEmptyIndex(t *testing.T) {
	idx := buildLexicalIndex(nil)
	if hits := idx.search("anything", 5); hits != nil {
		t.Fatalf("expected nil hits from empty index, got %v", hits)
	}
}

func TestTokenizeAlphaNumNormalizes(t *testing.T) {
	got := tokenizeAlphaNum("Hello, World! v2.0\tnext-line")
	want := []string{"hello", "world", "v2", "0", "next", "line"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
