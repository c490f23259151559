package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*ChunkStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkStore{db: db}, mock, func() { _ = db.Close() }
}

func TestGetDocumentReturnsDomainNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, source_id, workspace_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetDocument(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetDocumentContentReturnsDomainNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT content FROM documents").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetDocumentContent(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateDocumentStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusIndexing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateDocumentStatus(context.Background(), "missing", domain.StatusIndexing, "")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPersistChunksCommitsInOneTransaction(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chunks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO chunks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	chunks := []domain.Chunk{
		{ID: "aaa", WorkspaceID: "ws-1", DocumentID: "doc-1", Text: "a", Position: 0},
		{ID: "bbb", WorkspaceID: "ws-1", DocumentID: "doc-1", Text: "b", Position: 1},
	}
	if err := store.PersistChunks(context.Background(), chunks); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPersistChunksRollsBackOnInsertError(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chunks").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := store.PersistChunks(context.Background(), []domain.Chunk{
		{ID: "aaa", WorkspaceID: "ws-1", DocumentID: "doc-1", Text: "a"},
	})
	if err == nil {
		t.Fatalf("expected insert error to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteChunksByDocumentReturnsDeletedIDs(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id"}).AddRow("aaa").AddRow("bbb")
	mock.ExpectQuery("DELETE FROM chunks WHERE document_id").
		WithArgs("doc-1").
		WillReturnRows(rows)

	ids, err := store.DeleteChunksByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(ids) != 2 || ids[0] != "aaa" || ids[1] != "bbb" {
		t.Fatalf("unexpected deleted ids: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteExpiredChunksReturnsIDs(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id"}).AddRow("old-1")
	mock.ExpectQuery("DELETE FROM chunks WHERE workspace_id").
		WithArgs("ws-1", now).
		WillReturnRows(rows)

	ids, err := store.DeleteExpiredChunks(context.Background(), "ws-1", now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != "old-1" {
		t.Fatalf("unexpected expired ids: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadChunksScansTagsAndTTL(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	ttl := time.Now().UTC().Add(time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "workspace_id", "document_id", "text", "position",
		"start_offset", "end_offset", "tags", "token_count", "index_version", "ttl_expires_at",
	}).
		AddRow("aaa", "ws-1", "doc-1", "chunk text", 0, 0, 2, []byte(`{"workspace":"ws-1"}`), 2, 3, ttl).
		AddRow("bbb", "ws-1", "doc-1", "more text", 1, 2, 4, []byte(`{}`), 2, 3, nil)

	mock.ExpectQuery("SELECT id, workspace_id, document_id").
		WithArgs("ws-1").
		WillReturnRows(rows)

	chunks, err := store.LoadChunks(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Tags[domain.TagWorkspace] != "ws-1" {
		t.Fatalf("expected tags decoded, got %v", chunks[0].Tags)
	}
	if chunks[0].TTLExpiresAt == nil || !chunks[0].TTLExpiresAt.Equal(ttl) {
		t.Fatalf("expected ttl decoded, got %v", chunks[0].TTLExpiresAt)
	}
	if chunks[1].TTLExpiresAt != nil {
		t.Fatalf("expected nil ttl for second chunk")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
