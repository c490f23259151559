package evalset

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempSet(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp set: %v", err)
	}
	return path
}

func TestLoadAppliesTopLevelWorkspace(t *testing.T) {
	path := writeTempSet(t, `
workspace: ws-main
questions:
  - id: q1
    question: "What is the retry policy?"
    expected_chunks: ["aaa", "bbb"]
  - id: q2
    workspace: ws-override
    question: "Who owns the schema?"
`)

	questions, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].WorkspaceID != "ws-main" {
		t.Fatalf("expected inherited workspace, got %q", questions[0].WorkspaceID)
	}
	if questions[1].WorkspaceID != "ws-override" {
		t.Fatalf("expected per-question override, got %q", questions[1].WorkspaceID)
	}
	if len(questions[0].ExpectedChunkIDs) != 2 {
		t.Fatalf("expected gold chunk ids parsed, got %v", questions[0].ExpectedChunkIDs)
	}
}

func TestLoadRejectsEmptySet(t *testing.T) {
	path := writeTempSet(t, "workspace: ws-main\nquestions: []\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty question set")
	}
}

func TestLoadRejectsQuestionWithoutID(t *testing.T) {
	path := writeTempSet(t, `
questions:
  - question: "no id here"
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing question id")
	}
}
