package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

// ChunkStore is the postgres source of truth for documents and chunks. The
// in-process dual index is rebuildable from it at any time.
type ChunkStore struct {
	db *sql.DB
}

func NewChunkStore(db *sql.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *ChunkStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	title TEXT NOT NULL,
	language TEXT,
	source_type TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_workspace ON documents(workspace_id);
CREATE INDEX IF NOT EXISTS idx_documents_source_hash ON documents(source_id, content_hash);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	position INTEGER NOT NULL,
	start_offset INTEGER NOT NULL DEFAULT 0,
	end_offset INTEGER NOT NULL DEFAULT 0,
	tags JSONB NOT NULL DEFAULT '{}'::jsonb,
	token_count INTEGER NOT NULL DEFAULT 0,
	index_version BIGINT NOT NULL DEFAULT 0,
	ttl_expires_at TIMESTAMPTZ,
	PRIMARY KEY (workspace_id, id)
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_ttl ON chunks(workspace_id, ttl_expires_at) WHERE ttl_expires_at IS NOT NULL;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return tx.Commit()
}

func (s *ChunkStore) CreateDocument(ctx context.Context, doc *domain.Document, content string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents (id, source_id, workspace_id, title, language, source_type, content_hash, content, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		doc.ID, doc.SourceID, doc.WorkspaceID, doc.Title, doc.Language, string(doc.SourceType),
		doc.ContentHash, content, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *ChunkStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, source_id, workspace_id, title, language, source_type, content_hash, status, error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var language, errMessage sql.NullString
	var sourceType, status string
	err := row.Scan(
		&doc.ID, &doc.SourceID, &doc.WorkspaceID, &doc.Title, &language, &sourceType,
		&doc.ContentHash, &status, &errMessage, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Language = language.String
	doc.Error = errMessage.String
	doc.SourceType = domain.SourceType(sourceType)
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (s *ChunkStore) GetDocumentContent(ctx context.Context, id string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM documents WHERE id = $1`, id).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrDocumentNotFound, "get document content", fmt.Errorf("id=%s", id))
		}
		return "", fmt.Errorf("scan document content: %w", err)
	}
	return content, nil
}

func (s *ChunkStore) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE documents SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (s *ChunkStore) PersistChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, chunk := range chunks {
		tagsJSON, err := json.Marshal(chunk.Tags)
		if err != nil {
			return fmt.Errorf("marshal chunk tags: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO chunks (id, workspace_id, document_id, text, position, start_offset, end_offset, tags, token_count, index_version, ttl_expires_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (workspace_id, id) DO UPDATE SET
	text = EXCLUDED.text,
	position = EXCLUDED.position,
	tags = EXCLUDED.tags,
	token_count = EXCLUDED.token_count,
	index_version = EXCLUDED.index_version,
	ttl_expires_at = EXCLUDED.ttl_expires_at
`,
			chunk.ID, chunk.WorkspaceID, chunk.DocumentID, chunk.Text, chunk.Position,
			chunk.StartOffset, chunk.EndOffset, tagsJSON, chunk.TokenCount, chunk.IndexVersion, chunk.TTLExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}
	return tx.Commit()
}

func (s *ChunkStore) DeleteChunksByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `DELETE FROM chunks WHERE document_id = $1 RETURNING id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("delete chunks by document: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ChunkStore) DeleteExpiredChunks(ctx context.Context, workspaceID string, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
DELETE FROM chunks WHERE workspace_id = $1 AND ttl_expires_at IS NOT NULL AND ttl_expires_at <= $2 RETURNING id
`, workspaceID, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired chunks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ChunkStore) LoadChunks(ctx context.Context, workspaceID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, workspace_id, document_id, text, position, start_offset, end_offset, tags, token_count, index_version, ttl_expires_at
FROM chunks
WHERE workspace_id = $1
ORDER BY document_id, position
`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		var tagsRaw []byte
		var ttl sql.NullTime
		err := rows.Scan(
			&chunk.ID, &chunk.WorkspaceID, &chunk.DocumentID, &chunk.Text, &chunk.Position,
			&chunk.StartOffset, &chunk.EndOffset, &tagsRaw, &chunk.TokenCount, &chunk.IndexVersion, &ttl,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := json.Unmarshal(tagsRaw, &chunk.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal chunk tags: %w", err)
		}
		if ttl.Valid {
			t := ttl.Time
			chunk.TTLExpiresAt = &t
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}
