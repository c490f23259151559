package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/avelkov/corpus-qa/internal/core/domain"
	"github.com/avelkov/corpus-qa/internal/core/ports"
)

// RetrievalConfig is resolved once at startup; every knob has a documented
// default so a zero value is usable.
type RetrievalConfig struct {
	LexicalTopK    int
	VectorTopK     int
	MaxChunks      int
	TokenBudget    int
	FusionStrategy string
	FusionRRFK     int
	RerankTopN     int
	RerankTimeout  time.Duration
	DedupeRequests bool
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	out := c
	if out.LexicalTopK <= 0 {
		out.LexicalTopK = 20
	}
	if out.VectorTopK <= 0 {
		out.VectorTopK = 40
	}
	if out.MaxChunks <= 0 {
		out.MaxChunks = 15
	}
	if out.TokenBudget <= 0 {
		out.TokenBudget = 6000
	}
	if out.FusionStrategy != FusionRRF {
		out.FusionStrategy = FusionNormalizedSum
	}
	if out.FusionRRFK <= 0 {
		out.FusionRRFK = 60
	}
	if out.RerankTopN <= 0 {
		out.RerankTopN = 20
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = 3 * time.Second
	}
	return out
}

// RetrievalObserver receives retrieval path measurements. Optional.
type RetrievalObserver interface {
	ObserveRetrieval(outcome string, duration time.Duration, candidates int)
}

// HybridRetriever fans a query out to the lexical and vector index sides,
// fuses and dedupes the candidates, optionally reranks, filters by tags and
// truncates to a context-fitting set. One index side being unavailable
// degrades the request; both sides unavailable fails it.
type HybridRetriever struct {
	index      ports.DualIndex
	embedder   ports.Embedder // nil: lexical-only retrieval
	reranker   ports.Reranker // nil: fused order is final
	tokenCount func(string) int
	cfg        RetrievalConfig
	logger     *slog.Logger
	observer   RetrievalObserver
	group      singleflight.Group
}

func NewHybridRetriever(
	index ports.DualIndex,
	embedder ports.Embedder,
	reranker ports.Reranker,
	tokenCount func(string) int,
	cfg RetrievalConfig,
	logger *slog.Logger,
	observer RetrievalObserver,
) *HybridRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	if tokenCount == nil {
		tokenCount = func(s string) int { return len(strings.Fields(s)) }
	}
	return &HybridRetriever{
		index:      index,
		embedder:   embedder,
		reranker:   reranker,
		tokenCount: tokenCount,
		cfg:        cfg.normalize(),
		logger:     logger,
		observer:   observer,
	}
}

func (r *HybridRetriever) Retrieve(
	ctx context.Context,
	workspaceID, queryText string,
	filter domain.SearchFilter,
	maxChunks int,
) (domain.RetrievalResult, error) {
	if strings.TrimSpace(workspaceID) == "" || strings.TrimSpace(queryText) == "" {
		return domain.RetrievalResult{}, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("workspace and query are required"))
	}
	if maxChunks <= 0 {
		maxChunks = r.cfg.MaxChunks
	}

	start := time.Now()
	result, err := r.retrieveDeduped(ctx, workspaceID, queryText, filter, maxChunks)
	if r.observer != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		r.observer.ObserveRetrieval(outcome, time.Since(start), len(result.Candidates))
	}
	return result, err
}

// retrieveDeduped collapses identical concurrent requests into one
// execution when enabled. Dedupe is an optimization: waiters get a cloned
// result, and any coordination oddity falls open to duplicate execution.
func (r *HybridRetriever) retrieveDeduped(
	ctx context.Context,
	workspaceID, queryText string,
	filter domain.SearchFilter,
	maxChunks int,
) (domain.RetrievalResult, error) {
	if !r.cfg.DedupeRequests {
		return r.retrieve(ctx, workspaceID, queryText, filter, maxChunks)
	}

	key := fmt.Sprintf("%s\x00%s\x00%d\x00%s\x00%s\x00%s",
		workspaceID, queryText, maxChunks,
		filter.SourceType, strings.Join(filter.Confidentiality, ","), filter.AgentHint)
	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.retrieve(ctx, workspaceID, queryText, filter, maxChunks)
	})
	if err != nil {
		// The shared execution runs on the leader's context. A follower whose
		// own context is still live must not inherit the leader's
		// cancellation; it re-executes on its own.
		if shared && isContextError(err) && ctx.Err() == nil {
			return r.retrieve(ctx, workspaceID, queryText, filter, maxChunks)
		}
		return domain.RetrievalResult{}, err
	}
	res, ok := v.(domain.RetrievalResult)
	if !ok {
		return r.retrieve(ctx, workspaceID, queryText, filter, maxChunks)
	}
	out := res
	out.Candidates = make([]domain.RetrievalCandidate, len(res.Candidates))
	copy(out.Candidates, res.Candidates)
	return out, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type branchResult struct {
	hits        []domain.ScoredChunk
	version     int64
	unavailable bool
	err         error
}

func (r *HybridRetriever) retrieve(
	ctx context.Context,
	workspaceID, queryText string,
	filter domain.SearchFilter,
	maxChunks int,
) (domain.RetrievalResult, error) {
	lexCh := make(chan branchResult, 1)
	vecCh := make(chan branchResult, 1)

	go func() { lexCh <- r.searchLexical(ctx, workspaceID, queryText) }()
	go func() { vecCh <- r.searchVector(ctx, workspaceID, queryText) }()

	lex, vec := <-lexCh, <-vecCh
	if err := ctx.Err(); err != nil {
		return domain.RetrievalResult{}, err
	}
	if lex.unavailable && vec.unavailable {
		err := errors.Join(lex.err, vec.err)
		return domain.RetrievalResult{}, domain.WrapError(domain.ErrIndexUnavailable, "retrieve", err)
	}
	if lex.unavailable {
		r.logger.Warn("lexical branch unavailable, degrading to vector-only",
			"workspace", workspaceID, "error", lex.err)
	}
	if vec.unavailable {
		r.logger.Warn("vector branch unavailable, degrading to lexical-only",
			"workspace", workspaceID, "error", vec.err)
	}

	version := lex.version
	if lex.unavailable {
		version = vec.version
	}

	var fused []fusedHit
	if r.cfg.FusionStrategy == FusionRRF {
		fused = fuseRRF(lex.hits, vec.hits, r.cfg.FusionRRFK)
	} else {
		fused = fuseNormalizedSum(lex.hits, vec.hits)
	}

	candidates := r.resolve(workspaceID, fused)
	candidates = r.rerank(ctx, queryText, candidates)
	candidates = filterByTags(workspaceID, candidates, filter)
	candidates = r.truncate(candidates, maxChunks)

	return domain.RetrievalResult{
		Candidates:   candidates,
		IndexVersion: version,
		LexicalUsed:  !lex.unavailable,
		VectorUsed:   !vec.unavailable,
	}, nil
}

func (r *HybridRetriever) searchLexical(ctx context.Context, workspaceID, queryText string) branchResult {
	hits, version, err := r.index.SearchLexical(ctx, workspaceID, queryText, r.cfg.LexicalTopK)
	if err != nil {
		return branchResult{unavailable: true, err: err}
	}
	return branchResult{hits: hits, version: version}
}

// searchVector distinguishes "no vector signal" (embedder absent or
// unreachable, index side down) from "no matches" (empty hit list).
func (r *HybridRetriever) searchVector(ctx context.Context, workspaceID, queryText string) branchResult {
	if r.embedder == nil {
		return branchResult{unavailable: true, err: errors.New("no embedding capability configured")}
	}
	queryVector, err := r.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return branchResult{unavailable: true, err: fmt.Errorf("embed query: %w", err)}
	}
	hits, version, err := r.index.SearchVector(ctx, workspaceID, queryVector, r.cfg.VectorTopK)
	if err != nil {
		return branchResult{unavailable: true, err: err}
	}
	return branchResult{hits: hits, version: version}
}

// resolve turns fused hits into full candidates, asserting workspace
// ownership on every chunk. A cross-workspace chunk here is a correctness
// bug, so it is dropped and logged loudly rather than returned.
func (r *HybridRetriever) resolve(workspaceID string, fused []fusedHit) []domain.RetrievalCandidate {
	out := make([]domain.RetrievalCandidate, 0, len(fused))
	for _, f := range fused {
		chunk, ok := r.index.GetChunk(workspaceID, f.chunkID)
		if !ok {
			continue
		}
		if chunk.WorkspaceID != workspaceID {
			r.logger.Error("cross-workspace chunk dropped",
				"workspace", workspaceID, "chunk", f.chunkID, "chunk_workspace", chunk.WorkspaceID,
				"error", domain.WrapError(domain.ErrWorkspaceIsolation, "resolve", errors.New("chunk owned by another workspace")))
			continue
		}
		out = append(out, domain.RetrievalCandidate{
			Chunk:        chunk,
			LexicalScore: f.lexScore,
			VectorScore:  f.vecScore,
			HasLexical:   f.hasLex,
			HasVector:    f.hasVec,
			MergedScore:  f.merged,
		})
	}
	return out
}

// rerank replaces the fused ordering with the reranker's scores for the top
// N candidates. A reranker error or timeout keeps the pre-rerank ordering.
func (r *HybridRetriever) rerank(ctx context.Context, queryText string, candidates []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	if r.reranker == nil || len(candidates) == 0 {
		return candidates
	}

	topN := r.cfg.RerankTopN
	if topN > len(candidates) {
		topN = len(candidates)
	}

	// The prior is the fused score normalized over the rerank window, so a
	// reranker can weigh merged evidence against its own signal.
	minMerged, maxMerged := candidates[0].MergedScore, candidates[0].MergedScore
	for _, c := range candidates[1:topN] {
		if c.MergedScore < minMerged {
			minMerged = c.MergedScore
		}
		if c.MergedScore > maxMerged {
			maxMerged = c.MergedScore
		}
	}
	mergedRange := maxMerged - minMerged
	prior := func(v float64) float64 {
		if mergedRange <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minMerged) / mergedRange
	}

	items := make([]ports.RerankItem, 0, topN)
	for _, c := range candidates[:topN] {
		items = append(items, ports.RerankItem{
			ID:    c.Chunk.ID,
			Text:  c.Chunk.Text,
			Prior: prior(c.MergedScore),
		})
	}

	rerankCtx, cancel := context.WithTimeout(ctx, r.cfg.RerankTimeout)
	defer cancel()
	scores, err := r.reranker.Rerank(rerankCtx, queryText, items)
	if err != nil {
		r.logger.Warn("rerank unavailable, keeping fused order", "error",
			domain.WrapError(domain.ErrRerankUnavailable, "rerank", err))
		return candidates
	}

	byID := make(map[string]float64, len(scores))
	for _, s := range scores {
		byID[s.ID] = s.Score
	}
	head := make([]domain.RetrievalCandidate, topN)
	copy(head, candidates[:topN])
	for i := range head {
		if score, ok := byID[head[i].Chunk.ID]; ok {
			head[i].RerankScore = score
			head[i].Reranked = true
		}
	}
	sortCandidates(head)

	out := make([]domain.RetrievalCandidate, 0, len(candidates))
	out = append(out, head...)
	out = append(out, candidates[topN:]...)
	return out
}

func sortCandidates(candidates []domain.RetrievalCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.FinalScore() != b.FinalScore() {
			return a.FinalScore() > b.FinalScore()
		}
		if a.Chunk.Position != b.Chunk.Position {
			return a.Chunk.Position < b.Chunk.Position
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}

// filterByTags drops candidates failing the caller's tag filter. Workspace
// scoping already happened and cannot be widened by a filter.
func filterByTags(workspaceID string, candidates []domain.RetrievalCandidate, filter domain.SearchFilter) []domain.RetrievalCandidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Chunk.WorkspaceID != workspaceID {
			continue
		}
		if !filter.Allows(c.Chunk.Tags) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// truncate keeps top candidates until either the chunk cap or the token
// budget is exhausted, whichever comes first.
func (r *HybridRetriever) truncate(candidates []domain.RetrievalCandidate, maxChunks int) []domain.RetrievalCandidate {
	out := make([]domain.RetrievalCandidate, 0, maxChunks)
	budget := r.cfg.TokenBudget
	for _, c := range candidates {
		if len(out) >= maxChunks {
			break
		}
		tokens := c.Chunk.TokenCount
		if tokens == 0 {
			tokens = r.tokenCount(c.Chunk.Text)
		}
		if tokens > budget {
			break
		}
		budget -= tokens
		out = append(out, c)
	}
	return out
}
