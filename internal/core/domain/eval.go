package domain

import "time"

// EvalQuestion is one stored question replayed through the live read path.
type EvalQuestion struct {
	ID               string   `json:"id" yaml:"id"`
	WorkspaceID      string   `json:"workspace_id" yaml:"workspace"`
	Question         string   `json:"question" yaml:"question"`
	ExpectedChunkIDs []string `json:"expected_chunk_ids,omitempty" yaml:"expected_chunks,omitempty"`
}

// EvalQuestionResult records the retrieval outcome for a single question.
type EvalQuestionResult struct {
	QuestionID        string   `json:"question_id"`
	RetrievedChunkIDs []string `json:"retrieved_chunk_ids"`
	HitAt5            bool     `json:"hit_at_5"`
	HitAt10           bool     `json:"hit_at_10"`
	Answered          bool     `json:"answered"`
	CitationCount     int      `json:"citation_count"`
	ValidCitations    int      `json:"valid_citations"`
}

// EvalRunResult aggregates one eval harness run over a question set.
type EvalRunResult struct {
	ID                  string               `json:"id"`
	WorkspaceID         string               `json:"workspace_id"`
	IndexVersion        int64                `json:"index_version"`
	Questions           int                  `json:"questions"`
	RetrievalAt5        float64              `json:"retrieval_at_5"`
	RetrievalAt10       float64              `json:"retrieval_at_10"`
	CitationRate        float64              `json:"citation_rate"`
	CitationCorrectness float64              `json:"citation_correctness"`
	PerQuestion         []EvalQuestionResult `json:"per_question"`
	StartedAt           time.Time            `json:"started_at"`
	FinishedAt          time.Time            `json:"finished_at"`
}
