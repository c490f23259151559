package ports

import (
	"context"
	"time"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

// ChunkStore is the source of truth for documents and chunks. The dual index
// holds nothing that cannot be rebuilt from it.
type ChunkStore interface {
	CreateDocument(ctx context.Context, doc *domain.Document, content string) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	GetDocumentContent(ctx context.Context, id string) (string, error)
	UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	PersistChunks(ctx context.Context, chunks []domain.Chunk) error
	DeleteChunksByDocument(ctx context.Context, documentID string) ([]string, error)
	DeleteExpiredChunks(ctx context.Context, workspaceID string, now time.Time) ([]string, error)
	LoadChunks(ctx context.Context, workspaceID string) ([]domain.Chunk, error)
}

// Chunker splits a normalized document into overlapping, tagged chunks.
type Chunker interface {
	Chunk(doc *domain.Document, content string) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunk texts and query text. May be absent, in
// which case retrieval degrades to lexical-only.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker re-scores a small candidate set against the query. Optional; a
// failing or slow reranker must not fail the request.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []RerankItem) ([]RerankScore, error)
}

// RerankItem carries one candidate into a reranker. Prior is the candidate's
// fused score min-max normalized over the rerank window; model-backed
// rerankers may ignore it, the lexical fallback blends it in.
type RerankItem struct {
	ID    string
	Text  string
	Prior float64
}

type RerankScore struct {
	ID    string
	Score float64
}

// AnswerGenerator produces the final answer text from the question and the
// retrieved evidence. Invoked only after retrieval and before the citation
// guard.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, candidates []domain.RetrievalCandidate) (string, error)
}

// DualIndex is the versioned, workspace-scoped lexical+vector index pair.
// Writes for one document are applied atomically; rebuilds swap a complete
// snapshot so readers never observe a mix of versions.
type DualIndex interface {
	UpsertChunks(ctx context.Context, workspaceID string, chunks []domain.Chunk, vectors [][]float32) error
	RemoveChunks(ctx context.Context, workspaceID string, chunkIDs []string) error
	SearchLexical(ctx context.Context, workspaceID, queryText string, topK int) ([]domain.ScoredChunk, int64, error)
	SearchVector(ctx context.Context, workspaceID string, queryVector []float32, topK int) ([]domain.ScoredChunk, int64, error)
	GetChunk(workspaceID, chunkID string) (domain.Chunk, bool)
	ChunkCount(workspaceID string) int
	Version(workspaceID string) int64
	SwapSnapshot(ctx context.Context, workspaceID string, chunks []domain.Chunk, vectors [][]float32) (int64, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, event domain.IngestionEvent) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, domain.IngestionEvent) error) error
}

// EvalStore persists eval question sets and run results.
type EvalStore interface {
	ListQuestions(ctx context.Context, workspaceID string) ([]domain.EvalQuestion, error)
	SaveRun(ctx context.Context, run *domain.EvalRunResult) error
}
