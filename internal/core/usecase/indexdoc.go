package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avelkov/corpus-qa/internal/core/domain"
	"github.com/avelkov/corpus-qa/internal/core/ports"
)

// IndexObserver receives index state after a write pass completes. Optional.
type IndexObserver interface {
	SetIndexSize(workspaceID string, chunks int)
	SetIndexVersion(workspaceID string, version int64)
}

// IndexDocumentUseCase is the ingestion-triggered write path: load the
// normalized document, chunk it, embed the chunks, persist them, and apply
// them to both index sides atomically. A changed content hash supersedes the
// previous chunks in the same pass (delete-old/insert-new).
type IndexDocumentUseCase struct {
	store    ports.ChunkStore
	chunker  ports.Chunker
	embedder ports.Embedder // nil: lexical-only indexing
	index    ports.DualIndex
	logger   *slog.Logger
	observer IndexObserver
}

func NewIndexDocumentUseCase(
	store ports.ChunkStore,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.DualIndex,
	logger *slog.Logger,
	observer IndexObserver,
) *IndexDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexDocumentUseCase{
		store:    store,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		logger:   logger,
		observer: observer,
	}
}

func (uc *IndexDocumentUseCase) observeIndex(workspaceID string, version int64) {
	if uc.observer == nil {
		return
	}
	uc.observer.SetIndexSize(workspaceID, uc.index.ChunkCount(workspaceID))
	uc.observer.SetIndexVersion(workspaceID, version)
}

func (uc *IndexDocumentUseCase) IndexByID(ctx context.Context, documentID string) error {
	if err := uc.store.UpdateDocumentStatus(ctx, documentID, domain.StatusIndexing, ""); err != nil {
		return fmt.Errorf("set status=indexing: %w", err)
	}

	if err := uc.pipeline(ctx, documentID); err != nil {
		if failErr := uc.store.UpdateDocumentStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.store.UpdateDocumentStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *IndexDocumentUseCase) pipeline(ctx context.Context, documentID string) error {
	doc, err := uc.store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	content, err := uc.store.GetDocumentContent(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document content: %w", err)
	}

	// The chunker either produces the complete chunk sequence or nothing:
	// a ChunkingFailed document writes no chunks at all.
	chunks, err := uc.chunker.Chunk(doc, content)
	if err != nil {
		return err
	}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	oldIDs, err := uc.store.DeleteChunksByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("delete superseded chunks: %w", err)
	}
	if err := uc.store.PersistChunks(ctx, chunks); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	if err := uc.index.RemoveChunks(ctx, doc.WorkspaceID, oldIDs); err != nil {
		return fmt.Errorf("remove superseded chunks from index: %w", err)
	}
	if err := uc.index.UpsertChunks(ctx, doc.WorkspaceID, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}

	uc.observeIndex(doc.WorkspaceID, uc.index.Version(doc.WorkspaceID))
	uc.logger.Info("document indexed",
		"document", documentID, "workspace", doc.WorkspaceID,
		"chunks", len(chunks), "superseded", len(oldIDs),
		"index_version", uc.index.Version(doc.WorkspaceID))
	return nil
}

func (uc *IndexDocumentUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if uc.embedder == nil || len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
	}
	return vectors, nil
}

// RebuildWorkspace builds a complete new index generation from the chunk
// store off to the side and swaps it in, returning the new index version.
// The currently served snapshot is never touched until the swap.
func (uc *IndexDocumentUseCase) RebuildWorkspace(ctx context.Context, workspaceID string) (int64, error) {
	chunks, err := uc.store.LoadChunks(ctx, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("load chunks for rebuild: %w", err)
	}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	version, err := uc.index.SwapSnapshot(ctx, workspaceID, chunks, vectors)
	if err != nil {
		return 0, fmt.Errorf("swap index snapshot: %w", err)
	}
	uc.observeIndex(workspaceID, version)
	uc.logger.Info("workspace index rebuilt", "workspace", workspaceID,
		"chunks", len(chunks), "index_version", version)
	return version, nil
}
