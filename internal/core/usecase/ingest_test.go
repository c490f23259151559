package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

type ingestStoreFake struct {
	created   *domain.Document
	content   string
	createErr error
}

func (f *ingestStoreFake) CreateDocument(_ context.Context, doc *domain.Document, content string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = doc
	f.content = content
	return nil
}

func (f *ingestStoreFake) GetDocument(context.Context, string) (*domain.Document, error) {
	return nil, nil
}
func (f *ingestStoreFake) GetDocumentContent(context.Context, string) (string, error) {
	return "", nil
}
func (f *ingestStoreFake) UpdateDocumentStatus(context.Context, string, domain.DocumentStatus, string) error {
	return nil
}
func (f *ingestStoreFake) PersistChunks(context.Context, []domain.Chunk) error { return nil }
func (f *ingestStoreFake) DeleteChunksByDocument(context.Context, string) ([]string, error) {
	return nil, nil
}
func (f *ingestStoreFake) DeleteExpiredChunks(context.Context, string, time.Time) ([]string, error) {
	return nil, nil
}
func (f *ingestStoreFake) LoadChunks(context.Context, string) ([]domain.Chunk, error) {
	return nil, nil
}

type queueFake struct {
	published []domain.IngestionEvent
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, event domain.IngestionEvent) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, domain.IngestionEvent) error) error {
	return nil
}

func TestIngestCreatesAndPublishes(t *testing.T) {
	store := &ingestStoreFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(store, queue)

	doc, err := uc.Ingest(context.Background(), "ws-1", "notes/a.md", "Notes", domain.SourceTypeText, "some content")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if store.created == nil || store.created.ID != doc.ID {
		t.Fatalf("expected document persisted, got %+v", store.created)
	}
	if store.content != "some content" {
		t.Fatalf("expected content stored, got %q", store.content)
	}
	if doc.Status != domain.StatusPending {
		t.Fatalf("expected pending status, got %s", doc.Status)
	}
	if doc.ContentHash != domain.ContentHash("some content") {
		t.Fatalf("content hash mismatch")
	}
	if len(queue.published) != 1 {
		t.Fatalf("expected one publish for the new document, got %v", queue.published)
	}
	event := queue.published[0]
	if event.DocumentID != doc.ID || event.WorkspaceID != "ws-1" || event.ContentHash != doc.ContentHash {
		t.Fatalf("unexpected ingestion event: %+v", event)
	}
}

func TestIngestRejectsEmptyInput(t *testing.T) {
	uc := NewIngestDocumentUseCase(&ingestStoreFake{}, &queueFake{})

	if _, err := uc.Ingest(context.Background(), "", "s", "t", domain.SourceTypeText, "content"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty workspace, got %v", err)
	}
	if _, err := uc.Ingest(context.Background(), "ws-1", "s", "t", domain.SourceTypeText, "  "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty content, got %v", err)
	}
}

func TestIngestPublishFailureSurfaces(t *testing.T) {
	queue := &queueFake{err: errors.New("nats down")}
	uc := NewIngestDocumentUseCase(&ingestStoreFake{}, queue)

	if _, err := uc.Ingest(context.Background(), "ws-1", "s", "t", domain.SourceTypeText, "content"); err == nil {
		t.Fatalf("expected publish failure to surface")
	}
}
