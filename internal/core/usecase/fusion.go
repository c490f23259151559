package usecase

import (
	"sort"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

// Fusion strategy names accepted by the retriever configuration.
const (
	FusionNormalizedSum = "normsum"
	FusionRRF           = "rrf"
)

type fusedHit struct {
	chunkID  string
	position int
	lexScore float64
	vecScore float64
	hasLex   bool
	hasVec   bool
	merged   float64
}

// fuseNormalizedSum merges both hit lists by chunk id: each list is min-max
// normalized to [0,1], a chunk present in both keeps both scores and sums
// them. Deterministic for identical inputs.
func fuseNormalizedSum(lexical, vector []domain.ScoredChunk) []fusedHit {
	normLex := minMaxNormalize(lexical)
	normVec := minMaxNormalize(vector)

	acc := make(map[string]fusedHit, len(lexical)+len(vector))
	for i, hit := range lexical {
		f := acc[hit.ChunkID]
		f.chunkID = hit.ChunkID
		f.position = hit.Position
		f.lexScore = hit.Score
		f.hasLex = true
		f.merged += normLex[i]
		acc[hit.ChunkID] = f
	}
	for i, hit := range vector {
		f := acc[hit.ChunkID]
		f.chunkID = hit.ChunkID
		f.position = hit.Position
		f.vecScore = hit.Score
		f.hasVec = true
		f.merged += normVec[i]
		acc[hit.ChunkID] = f
	}
	return sortFused(acc)
}

// fuseRRF merges by reciprocal rank: score = sum of 1/(k+rank+1) over the
// lists a chunk appears in.
func fuseRRF(lexical, vector []domain.ScoredChunk, rrfK int) []fusedHit {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedHit, len(lexical)+len(vector))
	for rank, hit := range lexical {
		f := acc[hit.ChunkID]
		f.chunkID = hit.ChunkID
		f.position = hit.Position
		f.lexScore = hit.Score
		f.hasLex = true
		f.merged += 1.0 / float64(rrfK+rank+1)
		acc[hit.ChunkID] = f
	}
	for rank, hit := range vector {
		f := acc[hit.ChunkID]
		f.chunkID = hit.ChunkID
		f.position = hit.Position
		f.vecScore = hit.Score
		f.hasVec = true
		f.merged += 1.0 / float64(rrfK+rank+1)
		acc[hit.ChunkID] = f
	}
	return sortFused(acc)
}

func sortFused(acc map[string]fusedHit) []fusedHit {
	out := make([]fusedHit, 0, len(acc))
	for _, f := range acc {
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].merged != out[j].merged {
			return out[i].merged > out[j].merged
		}
		if out[i].position != out[j].position {
			return out[i].position < out[j].position
		}
		return out[i].chunkID < out[j].chunkID
	})
	return out
}

func minMaxNormalize(hits []domain.ScoredChunk) []float64 {
	out := make([]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	span := maxScore - minScore
	for i, h := range hits {
		if span <= 0 {
			if h.Score > 0 {
				out[i] = 1
			}
			continue
		}
		out[i] = (h.Score - minScore) / span
	}
	return out
}
