package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avelkov/corpus-qa/internal/core/domain"
	"github.com/avelkov/corpus-qa/internal/core/ports"
)

// AbstentionObserver receives abstention decisions for logging/eval counts.
type AbstentionObserver interface {
	ObserveAbstention(reason string)
}

// AskUseCase runs the full answer path: retrieve evidence, decide whether
// there is enough of it, generate, then gate the result through the
// citation guard.
type AskUseCase struct {
	retriever ports.Retriever
	generator ports.AnswerGenerator
	guard     *CitationGuard
	maxChunks int
	logger    *slog.Logger
	observer  AbstentionObserver
}

func NewAskUseCase(
	retriever ports.Retriever,
	generator ports.AnswerGenerator,
	guard *CitationGuard,
	maxChunks int,
	logger *slog.Logger,
	observer AbstentionObserver,
) *AskUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AskUseCase{
		retriever: retriever,
		generator: generator,
		guard:     guard,
		maxChunks: maxChunks,
		logger:    logger,
		observer:  observer,
	}
}

func (uc *AskUseCase) Ask(
	ctx context.Context,
	workspaceID, question string,
	filter domain.SearchFilter,
	outOfDomain bool,
) (*domain.AnswerOutcome, error) {
	result, err := uc.retriever.Retrieve(ctx, workspaceID, question, filter, uc.maxChunks)
	if err != nil {
		return nil, fmt.Errorf("retrieve evidence: %w", err)
	}

	if reason, abstain := uc.guard.ShouldAbstain(result, outOfDomain); abstain {
		uc.logger.Info("abstained", "workspace", workspaceID, "reason", string(reason),
			"candidates", len(result.Candidates), "index_version", result.IndexVersion)
		if uc.observer != nil {
			uc.observer.ObserveAbstention(string(reason))
		}
		return domain.Abstention(reason), nil
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, result.Candidates)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	report := uc.guard.Validate(answerText, result.ChunkIDs())
	warnings := []string(nil)
	if len(report.Invalid) > 0 {
		uc.logger.Warn("invalid citations stripped", "workspace", workspaceID,
			"invalid", report.Invalid,
			"error", domain.WrapError(domain.ErrInvalidCitation, "validate answer", fmt.Errorf("%d citation(s) outside retrieved set", len(report.Invalid))))
		answerText, warnings = StripInvalid(answerText, report.Invalid)
	}

	return &domain.AnswerOutcome{
		Answered:  true,
		Text:      answerText,
		Citations: report.Citations,
		Warnings:  warnings,
		Sources:   result.Candidates,
	}, nil
}
