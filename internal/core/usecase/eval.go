package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avelkov/corpus-qa/internal/core/domain"
	"github.com/avelkov/corpus-qa/internal/core/ports"
)

// EvalHarness replays stored question sets through the live retrieval path
// (and optionally generation) without touching user traffic. Results are
// deterministic for a fixed index version and model configuration.
type EvalHarness struct {
	retriever ports.Retriever
	answerer  ports.Answerer  // nil: retrieval metrics only
	store     ports.EvalStore // nil: results are returned, not persisted
	index     ports.DualIndex
	logger    *slog.Logger
}

func NewEvalHarness(
	retriever ports.Retriever,
	answerer ports.Answerer,
	store ports.EvalStore,
	index ports.DualIndex,
	logger *slog.Logger,
) *EvalHarness {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvalHarness{
		retriever: retriever,
		answerer:  answerer,
		store:     store,
		index:     index,
		logger:    logger.With("mode", "eval"),
	}
}

const evalRetrieveK = 10

func (h *EvalHarness) RunEval(ctx context.Context, questions []domain.EvalQuestion, workspaceID string) (*domain.EvalRunResult, error) {
	run := &domain.EvalRunResult{
		ID:           uuid.NewString(),
		WorkspaceID:  workspaceID,
		IndexVersion: h.index.Version(workspaceID),
		Questions:    len(questions),
		StartedAt:    time.Now().UTC(),
	}

	var hits5, hits10, withGold int
	var answered, cited, validCitations, totalCitations int

	for _, q := range questions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := h.retriever.Retrieve(ctx, workspaceID, q.Question, domain.SearchFilter{}, evalRetrieveK)
		if err != nil {
			return nil, fmt.Errorf("eval retrieve question %s: %w", q.ID, err)
		}

		qr := domain.EvalQuestionResult{
			QuestionID:        q.ID,
			RetrievedChunkIDs: result.ChunkIDs(),
		}
		if len(q.ExpectedChunkIDs) > 0 {
			withGold++
			qr.HitAt5 = intersects(q.ExpectedChunkIDs, qr.RetrievedChunkIDs, 5)
			qr.HitAt10 = intersects(q.ExpectedChunkIDs, qr.RetrievedChunkIDs, 10)
			if qr.HitAt5 {
				hits5++
			}
			if qr.HitAt10 {
				hits10++
			}
		}

		if h.answerer != nil {
			outcome, err := h.answerer.Ask(ctx, workspaceID, q.Question, domain.SearchFilter{}, false)
			if err != nil {
				return nil, fmt.Errorf("eval answer question %s: %w", q.ID, err)
			}
			qr.Answered = outcome.Answered
			qr.CitationCount = len(outcome.Citations) + len(outcome.Warnings)
			qr.ValidCitations = len(outcome.Citations)
			if outcome.Answered {
				answered++
				if len(outcome.Citations) > 0 {
					cited++
				}
			}
			validCitations += qr.ValidCitations
			totalCitations += qr.CitationCount
		}

		run.PerQuestion = append(run.PerQuestion, qr)
		h.logger.Debug("eval question done", "question", q.ID,
			"retrieved", len(qr.RetrievedChunkIDs), "hit_at_5", qr.HitAt5)
	}

	if withGold > 0 {
		run.RetrievalAt5 = float64(hits5) / float64(withGold)
		run.RetrievalAt10 = float64(hits10) / float64(withGold)
	}
	if answered > 0 {
		run.CitationRate = float64(cited) / float64(answered)
	}
	if totalCitations > 0 {
		run.CitationCorrectness = float64(validCitations) / float64(totalCitations)
	}
	run.FinishedAt = time.Now().UTC()

	if h.store != nil {
		if err := h.store.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("save eval run: %w", err)
		}
	}

	h.logger.Info("eval run finished", "run", run.ID, "workspace", workspaceID,
		"questions", run.Questions, "ret_at_5", run.RetrievalAt5, "ret_at_10", run.RetrievalAt10,
		"citation_rate", run.CitationRate, "citation_correctness", run.CitationCorrectness,
		"index_version", run.IndexVersion)
	return run, nil
}

// intersects reports whether any expected id appears in the first k
// retrieved ids.
func intersects(expected, retrieved []string, k int) bool {
	if k > len(retrieved) {
		k = len(retrieved)
	}
	want := make(map[string]struct{}, len(expected))
	for _, id := range expected {
		want[id] = struct{}{}
	}
	for _, id := range retrieved[:k] {
		if _, ok := want[id]; ok {
			return true
		}
	}
	return false
}
