package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

type indexStatusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type indexStoreFake struct {
	doc         *domain.Document
	content     string
	oldIDs      []string
	loaded      []domain.Chunk
	persisted   []domain.Chunk
	statusCalls []indexStatusCall
	getErr      error
	persistErr  error
}

func (f *indexStoreFake) CreateDocument(context.Context, *domain.Document, string) error {
	return nil
}

func (f *indexStoreFake) GetDocument(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *indexStoreFake) GetDocumentContent(context.Context, string) (string, error) {
	return f.content, nil
}

func (f *indexStoreFake) UpdateDocumentStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, indexStatusCall{status: status, errMsg: errMessage})
	return nil
}

func (f *indexStoreFake) PersistChunks(_ context.Context, chunks []domain.Chunk) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted = chunks
	return nil
}

func (f *indexStoreFake) DeleteChunksByDocument(context.Context, string) ([]string, error) {
	return f.oldIDs, nil
}

func (f *indexStoreFake) DeleteExpiredChunks(context.Context, string, time.Time) ([]string, error) {
	return nil, nil
}

func (f *indexStoreFake) LoadChunks(context.Context, string) ([]domain.Chunk, error) {
	return f.loaded, nil
}

type chunkerFake struct {
	chunks []domain.Chunk
	err    error
}

func (f *chunkerFake) Chunk(*domain.Document, string) ([]domain.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type recordingIndexFake struct {
	indexFake
	removed  []string
	upserted []domain.Chunk
	swapped  []domain.Chunk
}

func (f *recordingIndexFake) RemoveChunks(_ context.Context, _ string, chunkIDs []string) error {
	f.removed = append(f.removed, chunkIDs...)
	return nil
}

func (f *recordingIndexFake) UpsertChunks(_ context.Context, _ string, chunks []domain.Chunk, _ [][]float32) error {
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *recordingIndexFake) SwapSnapshot(_ context.Context, _ string, chunks []domain.Chunk, _ [][]float32) (int64, error) {
	f.swapped = chunks
	return f.version + 1, nil
}

func TestIndexByIDSuccess(t *testing.T) {
	store := &indexStoreFake{
		doc:     &domain.Document{ID: "doc-1", WorkspaceID: "ws-1"},
		content: "some content",
		oldIDs:  []string{"stale-1"},
	}
	chunks := []domain.Chunk{{ID: "c1", WorkspaceID: "ws-1", DocumentID: "doc-1", Text: "some content"}}
	index := &recordingIndexFake{}
	uc := NewIndexDocumentUseCase(store, &chunkerFake{chunks: chunks}, &queryEmbedderFake{vector: []float32{1}}, index, nil, nil)

	if err := uc.IndexByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("index by id: %v", err)
	}
	if len(store.statusCalls) != 2 ||
		store.statusCalls[0].status != domain.StatusIndexing ||
		store.statusCalls[1].status != domain.StatusReady {
		t.Fatalf("unexpected status transitions: %+v", store.statusCalls)
	}
	if len(store.persisted) != 1 {
		t.Fatalf("expected chunks persisted, got %d", len(store.persisted))
	}
	if len(index.removed) != 1 || index.removed[0] != "stale-1" {
		t.Fatalf("expected superseded chunk removed from index, got %v", index.removed)
	}
	if len(index.upserted) != 1 || index.upserted[0].ID != "c1" {
		t.Fatalf("expected new chunk indexed, got %v", index.upserted)
	}
}

func TestIndexByIDChunkingFailureMarksFailedWritesNothing(t *testing.T) {
	store := &indexStoreFake{
		doc:     &domain.Document{ID: "doc-1", WorkspaceID: "ws-1"},
		content: "",
	}
	chunkErr := domain.WrapError(domain.ErrChunkingFailed, "chunk", errors.New("no tokens"))
	index := &recordingIndexFake{}
	uc := NewIndexDocumentUseCase(store, &chunkerFake{err: chunkErr}, nil, index, nil, nil)

	err := uc.IndexByID(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrChunkingFailed) {
		t.Fatalf("expected chunking failure, got %v", err)
	}
	last := store.statusCalls[len(store.statusCalls)-1]
	if last.status != domain.StatusFailed || last.errMsg == "" {
		t.Fatalf("expected failed status with message, got %+v", last)
	}
	if len(store.persisted) != 0 || len(index.upserted) != 0 {
		t.Fatalf("failed document must write no chunks")
	}
}

func TestIndexByIDEmbedMismatchFails(t *testing.T) {
	store := &indexStoreFake{
		doc:     &domain.Document{ID: "doc-1", WorkspaceID: "ws-1"},
		content: "text",
	}
	chunks := []domain.Chunk{
		{ID: "c1", Text: "a"},
		{ID: "c2", Text: "b"},
	}
	mismatched := &lengthEmbedderFake{count: 1}
	uc := NewIndexDocumentUseCase(store, &chunkerFake{chunks: chunks}, mismatched, &recordingIndexFake{}, nil, nil)

	err := uc.IndexByID(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected vectors/chunks mismatch error, got %v", err)
	}
}

type lengthEmbedderFake struct {
	count int
}

func (f *lengthEmbedderFake) Embed(context.Context, []string) ([][]float32, error) {
	out := make([][]float32, f.count)
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *lengthEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

type indexObserverFake struct {
	sizes    map[string]int
	versions map[string]int64
}

func (f *indexObserverFake) SetIndexSize(workspaceID string, chunks int) {
	if f.sizes == nil {
		f.sizes = make(map[string]int)
	}
	f.sizes[workspaceID] = chunks
}

func (f *indexObserverFake) SetIndexVersion(workspaceID string, version int64) {
	if f.versions == nil {
		f.versions = make(map[string]int64)
	}
	f.versions[workspaceID] = version
}

func TestIndexByIDReportsIndexState(t *testing.T) {
	store := &indexStoreFake{
		doc:     &domain.Document{ID: "doc-1", WorkspaceID: "ws-1"},
		content: "some content",
	}
	chunks := []domain.Chunk{{ID: "c1", WorkspaceID: "ws-1", DocumentID: "doc-1", Text: "some content"}}
	index := &recordingIndexFake{indexFake: indexFake{
		chunks:  map[string]domain.Chunk{"c1": {ID: "c1"}},
		version: 3,
	}}
	observer := &indexObserverFake{}
	uc := NewIndexDocumentUseCase(store, &chunkerFake{chunks: chunks}, nil, index, nil, observer)

	if err := uc.IndexByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("index by id: %v", err)
	}
	if observer.sizes["ws-1"] != 1 {
		t.Fatalf("expected index size gauge set to 1, got %d", observer.sizes["ws-1"])
	}
	if observer.versions["ws-1"] != 3 {
		t.Fatalf("expected index version gauge set to 3, got %d", observer.versions["ws-1"])
	}
}

func TestRebuildWorkspaceReportsIndexState(t *testing.T) {
	store := &indexStoreFake{
		loaded: []domain.Chunk{{ID: "c1", WorkspaceID: "ws-1", Text: "a"}},
	}
	index := &recordingIndexFake{indexFake: indexFake{
		chunks:  map[string]domain.Chunk{"c1": {ID: "c1"}},
		version: 4,
	}}
	observer := &indexObserverFake{}
	uc := NewIndexDocumentUseCase(store, &chunkerFake{}, nil, index, nil, observer)

	if _, err := uc.RebuildWorkspace(context.Background(), "ws-1"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if observer.versions["ws-1"] != 5 {
		t.Fatalf("expected swapped version 5 reported, got %d", observer.versions["ws-1"])
	}
	if observer.sizes["ws-1"] != 1 {
		t.Fatalf("expected index size gauge set to 1, got %d", observer.sizes["ws-1"])
	}
}

func TestRebuildWorkspaceSwapsSnapshot(t *testing.T) {
	store := &indexStoreFake{
		loaded: []domain.Chunk{
			{ID: "c1", WorkspaceID: "ws-1", Text: "a"},
			{ID: "c2", WorkspaceID: "ws-1", Text: "b"},
		},
	}
	index := &recordingIndexFake{indexFake: indexFake{version: 4}}
	uc := NewIndexDocumentUseCase(store, &chunkerFake{}, nil, index, nil, nil)

	version, err := uc.RebuildWorkspace(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if version != 5 {
		t.Fatalf("expected bumped version 5, got %d", version)
	}
	if len(index.swapped) != 2 {
		t.Fatalf("expected full chunk set swapped in, got %d", len(index.swapped))
	}
}
