package index

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

var errVectorMismatch = errors.New("chunks/vectors length mismatch")

// snapshot is one complete, immutable generation of a workspace's dual
// index. Readers hold the snapshot they loaded for the whole request, so a
// concurrent write or rebuild can never show them a mix of generations.
type snapshot struct {
	version int64
	chunks  map[string]domain.Chunk
	vectors map[string][]float32
	lexical *lexicalIndex
	vector  *vectorIndex
}

type workspaceIndex struct {
	writeMu sync.Mutex // serializes writers; readers only load snap
	snap    atomic.Pointer[snapshot]
}

// Manager owns the versioned dual index for every workspace. Writes build a
// fresh snapshot off to the side and publish it with a single atomic swap;
// the currently served snapshot is never mutated.
type Manager struct {
	mu         sync.RWMutex
	workspaces map[string]*workspaceIndex
}

func NewManager() *Manager {
	return &Manager{workspaces: make(map[string]*workspaceIndex)}
}

func (m *Manager) workspace(workspaceID string, create bool) *workspaceIndex {
	m.mu.RLock()
	ws, ok := m.workspaces[workspaceID]
	m.mu.RUnlock()
	if ok || !create {
		return ws
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok = m.workspaces[workspaceID]; ok {
		return ws
	}
	ws = &workspaceIndex{}
	empty := &snapshot{
		version: 1,
		chunks:  map[string]domain.Chunk{},
		vectors: map[string][]float32{},
		lexical: buildLexicalIndex(nil),
		vector:  buildVectorIndex(nil, nil),
	}
	ws.snap.Store(empty)
	m.workspaces[workspaceID] = ws
	return ws
}

// UpsertChunks adds or replaces chunks and their vectors in one atomic
// publish. vectors may be nil (lexical-only ingestion) or must match chunks
// one-to-one.
func (m *Manager) UpsertChunks(ctx context.Context, workspaceID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if vectors != nil && len(vectors) != len(chunks) {
		return domain.WrapError(domain.ErrInvalidInput, "index upsert", errVectorMismatch)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ws := m.workspace(workspaceID, true)
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	cur := ws.snap.Load()
	next := cloneMaps(cur)
	for i, chunk := range chunks {
		chunk.IndexVersion = cur.version
		next.chunks[chunk.ID] = chunk
		if vectors != nil && len(vectors[i]) > 0 {
			next.vectors[chunk.ID] = vectors[i]
		}
	}
	ws.snap.Store(rebuildViews(next))
	return nil
}

func (m *Manager) RemoveChunks(ctx context.Context, workspaceID string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ws := m.workspace(workspaceID, false)
	if ws == nil {
		return nil
	}

	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	next := cloneMaps(ws.snap.Load())
	for _, id := range chunkIDs {
		delete(next.chunks, id)
		delete(next.vectors, id)
	}
	ws.snap.Store(rebuildViews(next))
	return nil
}

// SwapSnapshot replaces a workspace's entire index with a freshly built
// generation and bumps the index version. Used by full rebuilds.
func (m *Manager) SwapSnapshot(ctx context.Context, workspaceID string, chunks []domain.Chunk, vectors [][]float32) (int64, error) {
	if vectors != nil && len(vectors) != len(chunks) {
		return 0, domain.WrapError(domain.ErrInvalidInput, "index rebuild", errVectorMismatch)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ws := m.workspace(workspaceID, true)
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	version := ws.snap.Load().version + 1
	next := &snapshot{
		version: version,
		chunks:  make(map[string]domain.Chunk, len(chunks)),
		vectors: make(map[string][]float32, len(chunks)),
	}
	for i, chunk := range chunks {
		chunk.IndexVersion = version
		next.chunks[chunk.ID] = chunk
		if vectors != nil && len(vectors[i]) > 0 {
			next.vectors[chunk.ID] = vectors[i]
		}
	}
	ws.snap.Store(rebuildViews(next))
	return version, nil
}

func (m *Manager) SearchLexical(ctx context.Context, workspaceID, queryText string, topK int) ([]domain.ScoredChunk, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	ws := m.workspace(workspaceID, false)
	if ws == nil {
		return nil, 0, nil
	}
	snap := ws.snap.Load()
	return snap.lexical.search(queryText, topK), snap.version, nil
}

func (m *Manager) SearchVector(ctx context.Context, workspaceID string, queryVector []float32, topK int) ([]domain.ScoredChunk, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	ws := m.workspace(workspaceID, false)
	if ws == nil {
		return nil, 0, nil
	}
	snap := ws.snap.Load()
	return snap.vector.search(queryVector, topK), snap.version, nil
}

func (m *Manager) GetChunk(workspaceID, chunkID string) (domain.Chunk, bool) {
	ws := m.workspace(workspaceID, false)
	if ws == nil {
		return domain.Chunk{}, false
	}
	chunk, ok := ws.snap.Load().chunks[chunkID]
	return chunk, ok
}

func (m *Manager) Version(workspaceID string) int64 {
	ws := m.workspace(workspaceID, false)
	if ws == nil {
		return 0
	}
	return ws.snap.Load().version
}

// Workspaces lists workspaces with a live index, sorted for determinism.
func (m *Manager) Workspaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.workspaces))
	for id := range m.workspaces {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ChunkCount reports the number of indexed chunks in a workspace snapshot.
func (m *Manager) ChunkCount(workspaceID string) int {
	ws := m.workspace(workspaceID, false)
	if ws == nil {
		return 0
	}
	return len(ws.snap.Load().chunks)
}

func cloneMaps(cur *snapshot) *snapshot {
	next := &snapshot{
		version: cur.version,
		chunks:  make(map[string]domain.Chunk, len(cur.chunks)),
		vectors: make(map[string][]float32, len(cur.vectors)),
	}
	for id, chunk := range cur.chunks {
		next.chunks[id] = chunk
	}
	for id, vec := range cur.vectors {
		next.vectors[id] = vec
	}
	return next
}

func rebuildViews(snap *snapshot) *snapshot {
	chunks := make([]domain.Chunk, 0, len(snap.chunks))
	for _, chunk := range snap.chunks {
		chunks = append(chunks, chunk)
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID < chunks[j].DocumentID
		}
		return chunks[i].Position < chunks[j].Position
	})
	snap.lexical = buildLexicalIndex(chunks)
	snap.vector = buildVectorIndex(chunks, snap.vectors)
	return snap
}
