package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/policy-reviewer/internal/config"
	"github.com/kirillkom/policy-reviewer/internal/core/ports"
	"github.com/kirillkom/policy-reviewer/internal/core/usecase"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/catalog"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/chunking"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/extractor"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/llm/openrouter"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/resilience"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/vector/memory"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Catalog   *catalog.Catalog
	Extractor *extractor.Router
	Executor  *resilience.Executor

	// Registry and Queue are nil when POSTGRES_DSN or NATS_URL is unset.
	Registry ports.DocumentRegistry
	Queue    ports.IngestQueue

	IngestUC *usecase.IngestUseCase
	AnswerUC *usecase.AnswerUseCase

	closers []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	controls, err := catalog.Load(cfg.ControlsPath)
	if err != nil {
		return nil, fmt.Errorf("load control catalog: %w", err)
	}
	app.Catalog = controls

	app.Executor = resilience.NewExecutor(resilienceConfig(cfg))

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	app.Extractor = extractor.NewRouter(storage)

	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN, cfg.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.addCloser(func() { closeDB(db) })
		repo := postgres.NewDocumentRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		app.Registry = repo
	}

	if cfg.NATSURL != "" {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			Name:     cfg.ServiceName,
			Executor: app.Executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.addCloser(queue.Close)
		app.Queue = queue
	}

	embedder, generator, err := app.buildModels(ctx)
	if err != nil {
		return nil, err
	}
	index, err := app.buildIndex()
	if err != nil {
		return nil, err
	}

	composer := usecase.NewQueryComposer(controls)
	retriever := usecase.NewRetriever(composer, embedder, index)
	app.AnswerUC = usecase.NewAnswerUseCase(retriever, composer, generator, cfg.RAGTopK)
	app.IngestUC = usecase.NewIngestUseCase(
		storage,
		app.Extractor,
		chunking.NewParagraphChunker(),
		embedder,
		index,
		usecase.IngestOptions{
			MaxWords: cfg.ChunkMaxWords,
			Registry: app.Registry,
			Queue:    app.Queue,
		},
	)

	slog.Info("bootstrap_completed",
		"llm_provider", cfg.LLMProvider,
		"embed_provider", cfg.EmbedProvider,
		"vector_backend", cfg.VectorBackend,
		"registry", app.Registry != nil,
		"queue", app.Queue != nil,
		"controls", len(controls.IDs()),
	)
	ok = true
	return app, nil
}

// Documents returns the registry as a read model, or nil when none is
// configured.
func (a *App) Documents() ports.DocumentReader {
	if a.Registry == nil {
		return nil
	}
	return a.Registry
}

func (a *App) buildModels(ctx context.Context) (ports.Embedder, ports.Generator, error) {
	cfg := a.Config

	var ollamaClient *ollama.Client
	ollamaShared := func() *ollama.Client {
		if ollamaClient == nil {
			ollamaClient = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, a.Executor)
		}
		return ollamaClient
	}

	var geminiClient *gemini.Client
	geminiShared := func() (*gemini.Client, error) {
		if geminiClient != nil {
			return geminiClient, nil
		}
		client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiGenModel, cfg.GeminiEmbedModel, a.Executor)
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		a.addCloser(func() { _ = client.Close() })
		geminiClient = client
		return client, nil
	}

	var embedder ports.Embedder
	switch cfg.EmbedProvider {
	case config.ProviderGemini:
		client, err := geminiShared()
		if err != nil {
			return nil, nil, err
		}
		embedder = gemini.NewEmbedder(client)
	default:
		embedder = ollama.NewEmbedder(ollamaShared())
	}

	var generator ports.Generator
	switch cfg.LLMProvider {
	case config.ProviderOpenRouter:
		gen, err := openrouter.NewGenerator(openrouter.Config{
			APIKey:  cfg.OpenRouterAPIKey,
			BaseURL: cfg.OpenRouterBaseURL,
			Model:   cfg.OpenRouterModel,
		}, a.Executor)
		if err != nil {
			return nil, nil, fmt.Errorf("init openrouter generator: %w", err)
		}
		generator = gen
	case config.ProviderGemini:
		client, err := geminiShared()
		if err != nil {
			return nil, nil, err
		}
		generator = gemini.NewGenerator(client)
	default:
		generator = ollama.NewGenerator(ollamaShared())
	}
	return embedder, generator, nil
}

func (a *App) buildIndex() (ports.VectorIndex, error) {
	switch a.Config.VectorBackend {
	case config.VectorBackendMemory:
		slog.Warn("vector_backend_in_memory", "detail", "indexed chunks are lost on restart")
		return memory.NewIndex(), nil
	case config.VectorBackendQdrant:
		return qdrant.New(a.Config.QdrantURL, a.Config.QdrantCollection, a.Executor), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", a.Config.VectorBackend)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	if cfg.ResilienceRetryMaxAttempts > 0 {
		out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	}
	if cfg.ResilienceRetryInitialBackoff > 0 {
		out.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	}
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	if cfg.ResilienceBreakerFailureRatio > 0 {
		out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	}
	if cfg.ResilienceBreakerOpenTimeout > 0 {
		out.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	}
	return out
}

func (a *App) addCloser(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases collaborators in reverse order of construction.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func closeDB(db *sql.DB) {
	done := make(chan struct{})
	go func() {
		_ = db.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		slog.Warn("postgres_close_timeout")
	}
}
