package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avelkov/corpus-qa/internal/core/domain"
	"github.com/avelkov/corpus-qa/internal/core/ports"
)

type IngestDocumentUseCase struct {
	store ports.ChunkStore
	queue ports.MessageQueue
}

func NewIngestDocumentUseCase(store ports.ChunkStore, queue ports.MessageQueue) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		store: store,
		queue: queue,
	}
}

// Ingest registers a document and hands it to the indexing queue. The
// content hash identifies re-submissions of the same source text; callers
// may use it to skip unchanged documents before calling Ingest.
func (uc *IngestDocumentUseCase) Ingest(
	ctx context.Context,
	workspaceID, sourceID, title string,
	sourceType domain.SourceType,
	content string,
) (*domain.Document, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("empty workspace id"))
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("empty content"))
	}
	if sourceType != domain.SourceTypeTranscript {
		sourceType = domain.SourceTypeText
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          uuid.NewString(),
		SourceID:    sourceID,
		WorkspaceID: workspaceID,
		Title:       title,
		SourceType:  sourceType,
		ContentHash: domain.ContentHash(content),
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.store.CreateDocument(ctx, doc, content); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	event := domain.IngestionEvent{
		DocumentID:  doc.ID,
		WorkspaceID: doc.WorkspaceID,
		ContentHash: doc.ContentHash,
	}
	if err := uc.queue.PublishDocumentIngested(ctx, event); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}
