package domain

// SearchFilter narrows a retrieval request by chunk tags. Workspace scoping
// is enforced by the retriever before any filter runs and cannot be widened
// here.
type SearchFilter struct {
	SourceType      string
	Confidentiality []string // confidentiality levels the caller's role may read; empty = unrestricted chunks only
	AgentHint       string
}

// Allows reports whether a chunk's tags pass the filter. A chunk carrying a
// confidentiality tag is only visible when the caller's filter lists that
// level.
func (f SearchFilter) Allows(tags map[string]string) bool {
	if f.SourceType != "" && tags[TagSourceType] != f.SourceType {
		return false
	}
	if level, ok := tags[TagConfidentiality]; ok && level != "" {
		allowed := false
		for _, l := range f.Confidentiality {
			if l == level {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	if f.AgentHint != "" && tags[TagAgentHint] != f.AgentHint {
		return false
	}
	return true
}

// ScoredChunk is one index hit: a chunk reference with the index-local score.
type ScoredChunk struct {
	ChunkID  string
	Position int
	Score    float64
}

// RetrievalCandidate is the ephemeral merge-time value. Never persisted.
type RetrievalCandidate struct {
	Chunk        Chunk
	LexicalScore float64
	VectorScore  float64
	HasLexical   bool
	HasVector    bool
	MergedScore  float64
	RerankScore  float64
	Reranked     bool
}

// FinalScore is the score that orders the candidate in the caller-visible
// result: rerank score when a reranker ran, merged score otherwise.
func (c RetrievalCandidate) FinalScore() float64 {
	if c.Reranked {
		return c.RerankScore
	}
	return c.MergedScore
}

// RetrievalResult carries the ordered candidates plus the snapshot identity
// they were served from, so eval runs can pin before/after comparisons.
type RetrievalResult struct {
	Candidates   []RetrievalCandidate
	IndexVersion int64
	LexicalUsed  bool
	VectorUsed   bool
}

func (r RetrievalResult) ChunkIDs() []string {
	ids := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		ids = append(ids, c.Chunk.ID)
	}
	return ids
}

// BestScore returns the top final score, or 0 for an empty result.
func (r RetrievalResult) BestScore() float64 {
	if len(r.Candidates) == 0 {
		return 0
	}
	return r.Candidates[0].FinalScore()
}
