package index

import (
	"math"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

type vectorEntry struct {
	chunkID  string
	position int
	vec      []float32
	norm     float64
}

// vectorIndex is an immutable brute-force cosine-similarity index over one
// workspace snapshot. Embeddings are produced externally; the index only
// stores and searches them.
type vectorIndex struct {
	entries []vectorEntry
}

func buildVectorIndex(chunks []domain.Chunk, vectors map[string][]float32) *vectorIndex {
	idx := &vectorIndex{entries: make([]vectorEntry, 0, len(vectors))}
	for _, chunk := range chunks {
		vec, ok := vectors[chunk.ID]
		if !ok || len(vec) == 0 {
			continue
		}
		n := vectorNorm(vec)
		if n == 0 {
			continue
		}
		idx.entries = append(idx.entries, vectorEntry{
			chunkID:  chunk.ID,
			position: chunk.Position,
			vec:      vec,
			norm:     n,
		})
	}
	return idx
}

func (idx *vectorIndex) search(queryVector []float32, topK int) []domain.ScoredChunk {
	if len(idx.entries) == 0 || len(queryVector) == 0 || topK <= 0 {
		return nil
	}
	qNorm := vectorNorm(queryVector)
	if qNorm == 0 {
		return nil
	}

	out := make([]domain.ScoredChunk, 0, len(idx.entries))
	for _, e := range idx.entries {
		if len(e.vec) != len(queryVector) {
			continue
		}
		var dot float64
		for i := range e.vec {
			dot += float64(e.vec[i]) * float64(queryVector[i])
		}
		out = append(out, domain.ScoredChunk{
			ChunkID:  e.chunkID,
			Position: e.position,
			Score:    dot / (e.norm * qNorm),
		})
	}
	sortScored(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func (idx *vectorIndex) size() int {
	return len(idx.entries)
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
