package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// ErrChunkingFailed marks a document that could not be parsed into text.
	// Surfaced to ingestion; never leaves partial chunks behind.
	ErrChunkingFailed = errors.New("chunking failed")

	// ErrIndexUnavailable marks one index branch as unreachable. Retrieval
	// degrades to the other branch; both branches failing is a hard error.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrRerankUnavailable is a soft failure: the pre-rerank order stands.
	ErrRerankUnavailable = errors.New("reranker unavailable")

	// ErrInvalidCitation marks an answer citing a chunk outside the
	// retrieved set. Always caught inside the citation guard.
	ErrInvalidCitation = errors.New("invalid citation")

	// ErrWorkspaceIsolation marks a chunk surfacing outside its workspace.
	// Internal assertion; such chunks are dropped, never returned.
	ErrWorkspaceIsolation = errors.New("workspace isolation violation")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
