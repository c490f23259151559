package index

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type posting struct {
	chunkID  string
	position int
	termFreq float64
}

// lexicalIndex is an immutable BM25 inverted index over one workspace
// snapshot. It holds nothing that is not derivable from the chunk set, so a
// corrupted index is recoverable by replaying the chunks.
type lexicalIndex struct {
	postings  map[string][]posting
	docLen    map[string]float64
	avgDocLen float64
	docCount  int
}

func buildLexicalIndex(chunks []domain.Chunk) *lexicalIndex {
	idx := &lexicalIndex{
		postings: make(map[string][]posting),
		docLen:   make(map[string]float64, len(chunks)),
	}

	var totalLen float64
	for _, chunk := range chunks {
		tokens := tokenizeAlphaNum(chunk.Text)
		tf := make(map[string]float64, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		for term, freq := range tf {
			idx.postings[term] = append(idx.postings[term], posting{
				chunkID:  chunk.ID,
				position: chunk.Position,
				termFreq: freq,
			})
		}
		idx.docLen[chunk.ID] = float64(len(tokens))
		totalLen += float64(len(tokens))
	}

	idx.docCount = len(chunks)
	if idx.docCount > 0 {
		idx.avgDocLen = totalLen / float64(idx.docCount)
	}
	return idx
}

func (idx *lexicalIndex) search(queryText string, topK int) []domain.ScoredChunk {
	if idx.docCount == 0 || topK <= 0 {
		return nil
	}

	queryTerms := tokenizeAlphaNum(queryText)
	scores := make(map[string]float64)
	positions := make(map[string]int)

	seen := make(map[string]struct{}, len(queryTerms))
	for _, term := range queryTerms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		plist, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := float64(len(plist))
		idf := math.Log(1.0 + (float64(idx.docCount)-df+0.5)/(df+0.5))
		for _, p := range plist {
			norm := 1.0 - bm25B + bm25B*(idx.docLen[p.chunkID]/idx.avgDocLen)
			scores[p.chunkID] += idf * (p.termFreq * (bm25K1 + 1.0)) / (p.termFreq + bm25K1*norm)
			positions[p.chunkID] = p.position
		}
	}

	out := make([]domain.ScoredChunk, 0, len(scores))
	for id, score := range scores {
		out = append(out, domain.ScoredChunk{ChunkID: id, Position: positions[id], Score: score})
	}
	sortScored(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// sortScored applies the deterministic ordering shared by both index sides:
// score descending, then position ascending, then chunk id ascending.
func sortScored(hits []domain.ScoredChunk) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Position != hits[j].Position {
			return hits[i].Position < hits[j].Position
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
