package ports

import (
	"context"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

// Retriever is the inbound contract for hybrid retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, workspaceID, queryText string, filter domain.SearchFilter, maxChunks int) (domain.RetrievalResult, error)
}

// Answerer is the inbound contract for the full ask path: retrieve,
// generate, validate citations or abstain.
type Answerer interface {
	Ask(ctx context.Context, workspaceID, question string, filter domain.SearchFilter, outOfDomain bool) (*domain.AnswerOutcome, error)
}

// DocumentIngestor registers new source content and enqueues it for
// indexing.
type DocumentIngestor interface {
	Ingest(ctx context.Context, workspaceID, sourceID, title string, sourceType domain.SourceType, content string) (*domain.Document, error)
}

// DocumentIndexer is the inbound contract for the ingestion-triggered
// chunk-and-index pipeline.
type DocumentIndexer interface {
	IndexByID(ctx context.Context, documentID string) error
	RebuildWorkspace(ctx context.Context, workspaceID string) (int64, error)
}

// EvalRunner replays stored question sets through the retrieval path.
type EvalRunner interface {
	RunEval(ctx context.Context, questions []domain.EvalQuestion, workspaceID string) (*domain.EvalRunResult, error)
}
