package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

// EvalStore persists eval question sets and run results.
type EvalStore struct {
	db *sql.DB
}

func NewEvalStore(db *sql.DB) *EvalStore {
	return &EvalStore{db: db}
}

func (s *EvalStore) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS eval_questions (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	question TEXT NOT NULL,
	expected_chunk_ids JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_eval_questions_workspace ON eval_questions(workspace_id);

CREATE TABLE IF NOT EXISTS eval_runs (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	index_version BIGINT NOT NULL,
	result JSONB NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute eval schema ddl: %w", err)
	}
	return nil
}

func (s *EvalStore) ListQuestions(ctx context.Context, workspaceID string) ([]domain.EvalQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, workspace_id, question, expected_chunk_ids
FROM eval_questions
WHERE workspace_id = $1
ORDER BY id
`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list eval questions: %w", err)
	}
	defer rows.Close()

	var out []domain.EvalQuestion
	for rows.Next() {
		var q domain.EvalQuestion
		var expectedRaw []byte
		if err := rows.Scan(&q.ID, &q.WorkspaceID, &q.Question, &expectedRaw); err != nil {
			return nil, fmt.Errorf("scan eval question: %w", err)
		}
		if err := json.Unmarshal(expectedRaw, &q.ExpectedChunkIDs); err != nil {
			return nil, fmt.Errorf("unmarshal expected chunk ids: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *EvalStore) SaveRun(ctx context.Context, run *domain.EvalRunResult) error {
	resultJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal eval run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO eval_runs (id, workspace_id, index_version, result, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, run.ID, run.WorkspaceID, run.IndexVersion, resultJSON, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert eval run: %w", err)
	}
	return nil
}
