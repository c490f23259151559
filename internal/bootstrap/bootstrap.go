package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avelkov/corpus-qa/internal/config"
	"github.com/avelkov/corpus-qa/internal/core/ports"
	"github.com/avelkov/corpus-qa/internal/core/usecase"
	"github.com/avelkov/corpus-qa/internal/infrastructure/chunking"
	"github.com/avelkov/corpus-qa/internal/infrastructure/index"
	"github.com/avelkov/corpus-qa/internal/infrastructure/llm/ollama"
	"github.com/avelkov/corpus-qa/internal/infrastructure/queue/nats"
	rerankhttp "github.com/avelkov/corpus-qa/internal/infrastructure/rerank/httpapi"
	reranklexical "github.com/avelkov/corpus-qa/internal/infrastructure/rerank/lexical"
	"github.com/avelkov/corpus-qa/internal/infrastructure/repository/postgres"
	"github.com/avelkov/corpus-qa/internal/infrastructure/resilience"
	"github.com/avelkov/corpus-qa/internal/infrastructure/sweeper"
	"github.com/avelkov/corpus-qa/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Store     ports.ChunkStore
	Index     *index.Manager
	Metrics   *metrics.WorkerMetrics
	Recorder  *metrics.RetrievalRecorder
	Sweeper   *sweeper.Sweeper
	IngestUC  ports.DocumentIngestor
	IndexerUC ports.DocumentIndexer
	Retriever ports.Retriever
	AskUC     ports.Answerer
	EvalUC    ports.EvalRunner
	EvalStore ports.EvalStore

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, service string) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewChunkStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	evalStore := postgres.NewEvalStore(db)
	if err := evalStore.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure eval schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		EmbedRatePerSecond: cfg.EmbedRatePerSec,
		EmbedBurst:         cfg.EmbedBurst,
		Executor:           executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	var reranker ports.Reranker
	if cfg.RerankURL != "" {
		reranker = rerankhttp.New(cfg.RerankURL, cfg.RerankModel, cfg.RerankAPIKey, 10*time.Second, executor)
	} else {
		reranker = reranklexical.New()
	}

	indexManager := index.NewManager()
	chunker := chunking.NewSplitter(cfg.ChunkTargetTokens, cfg.ChunkOverlapTokens)

	workerMetrics := metrics.NewWorkerMetrics(service)
	recorder := metrics.NewRetrievalRecorder(workerMetrics, service)

	retriever := usecase.NewHybridRetriever(
		indexManager,
		embedder,
		reranker,
		chunking.EstimateTokens,
		usecase.RetrievalConfig{
			LexicalTopK:    cfg.LexicalTopK,
			VectorTopK:     cfg.VectorTopK,
			MaxChunks:      cfg.MaxChunks,
			TokenBudget:    cfg.TokenBudget,
			FusionStrategy: cfg.FusionStrategy,
			FusionRRFK:     cfg.FusionRRFK,
			RerankTopN:     cfg.RerankTopN,
			RerankTimeout:  time.Duration(cfg.RerankTimeoutSecs) * time.Second,
			DedupeRequests: cfg.DedupeRequests,
		},
		logger,
		recorder,
	)

	guard := usecase.NewCitationGuard(cfg.MinRelevance)
	askUC := usecase.NewAskUseCase(retriever, generator, guard, cfg.MaxChunks, logger, recorder)
	ingestUC := usecase.NewIngestDocumentUseCase(store, queue)
	indexerUC := usecase.NewIndexDocumentUseCase(store, chunker, embedder, indexManager, logger, recorder)
	evalUC := usecase.NewEvalHarness(retriever, askUC, evalStore, indexManager, logger)

	sweep := sweeper.New(store, indexManager, logger, recorder)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:     queue,
		Store:     store,
		Index:     indexManager,
		Metrics:   workerMetrics,
		Recorder:  recorder,
		Sweeper:   sweep,
		IngestUC:  ingestUC,
		IndexerUC: indexerUC,
		Retriever: retriever,
		AskUC:     askUC,
		EvalUC:    evalUC,
		EvalStore: evalStore,

		closeFn: func() {
			sweep.Stop()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
