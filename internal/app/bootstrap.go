package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/data/redisStore"
	"github.com/imfeniljikadara/nexus-ai/internal/data/registry"
	"github.com/imfeniljikadara/nexus-ai/internal/data/store"
	"github.com/imfeniljikadara/nexus-ai/internal/data/uploads"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
	"github.com/imfeniljikadara/nexus-ai/internal/handlers"
	"github.com/imfeniljikadara/nexus-ai/internal/job"
	"github.com/imfeniljikadara/nexus-ai/internal/middleware"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/cache"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/embedding"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/embedding/googleEmbedding"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/embedding/openaiEmbedding"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/extract"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/fetch"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/ingest"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/llm"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/llm/gemini"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/llm/openaiLLM"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/session"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/strategy"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/vectorDB"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/vectorDB/memoryDB"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/vectorDB/qdrantDB"
	"github.com/imfeniljikadara/nexus-ai/internal/server"
	"github.com/imfeniljikadara/nexus-ai/internal/worker"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"google.golang.org/genai"
)

// App owns every long lived component. The api server, the cli and the mcp server all start from it.
type App struct {
	Config      *config.Config
	Sessions    *session.Manager
	Cache       *cache.DocumentCache
	Extractor   *extract.Extractor
	Fetcher     *fetch.Fetcher
	Transcripts chatModel.TranscriptStore
	Strategy    strategy.Strategy

	redis    *redisStore.Pool
	qdrant   *qdrantDB.Storage
	registry *registry.Registry
	pool     *worker.Pool
	genai    map[string]*genai.Client
	logger   *logger_i.Logger
}

// New wires the chat pipeline. Redis and qdrant are dialed here, the provider clients are created
// lazily by their SDKs.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config: cfg,
		genai:  map[string]*genai.Client{},
		logger: logger_i.NewLogger("bootstrap"),
	}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	if cfg.Redis.Enabled {
		a.redis = redisStore.NewPool(cfg.Redis)
	}

	var backing cache.Backing
	if redisCache, err := a.redisFor(ctx, config.RedisTextCache); err != nil {
		return err
	} else if redisCache != nil {
		backing = cache.NewRedisBacking(redisCache, cfg.Redis.TextTTL)
	}
	a.Cache = cache.New(backing)

	a.Transcripts = store.InitTranscriptStore()
	if redisTranscripts, err := a.redisFor(ctx, config.RedisTranscriptStore); err != nil {
		return err
	} else if redisTranscripts != nil {
		a.Transcripts = store.NewRedisTranscriptStore(redisTranscripts, cfg.Redis.TranscriptTTL)
	}

	a.Extractor = extract.New(cfg.Session.PageExtractTimeout)
	a.Fetcher = fetch.New(cfg.Session.FetchTimeout, cfg.Storage.MaxFetchBytes)

	provider, err := a.provider(ctx)
	if err != nil {
		return fmt.Errorf("generation provider: %w", err)
	}

	full := strategy.NewFullContext()
	var retrieval *strategy.Retrieval
	if cfg.RAG.Strategy == config.StrategyRetrieval {
		embedder, err := a.embedder(ctx)
		if err != nil {
			return fmt.Errorf("embedding provider: %w", err)
		}
		index, err := a.index(ctx, embedder.Dimensions())
		if err != nil {
			return fmt.Errorf("vector store: %w", err)
		}
		indexer := ingest.NewIndexer(embedder, index, cfg.RAG, cfg.Embedding.BatchSize)
		retrieval = strategy.NewRetrieval(indexer, embedder, index, cfg.RAG.TopK)
	}
	if a.Strategy, err = strategy.Select(cfg.RAG.Strategy, full, retrieval); err != nil {
		return err
	}

	a.Sessions = session.NewManager(session.ManagerConfig{
		Cache:       a.Cache,
		Extractor:   a.Extractor,
		Strategy:    a.Strategy,
		Provider:    provider,
		Transcripts: a.Transcripts,
		Session:     cfg.Session,
	})
	a.logger.Info("chat pipeline ready",
		"strategy", a.Strategy.Name(),
		"generation", cfg.Generation.Provider,
		"vectorStore", cfg.VectorStore.Type,
		"redis", a.redis != nil)
	return nil
}

// redisFor returns nil without an error when redis is disabled, or offline and the fallback is allowed.
func (a *App) redisFor(ctx context.Context, db int) (*redisStore.Store, error) {
	if a.redis == nil {
		return nil, nil
	}
	s, err := a.redis.Get(ctx, db)
	if err != nil {
		if a.Config.Redis.FallbackToMemory {
			a.logger.Warn("redis offline, using memory", "db", db, "error", err)
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (a *App) genaiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if c, ok := a.genai[apiKey]; ok {
		return c, nil
	}
	c, err := gemini.NewGenAIClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	a.genai[apiKey] = c
	return c, nil
}

func (a *App) provider(ctx context.Context) (llm.Provider, error) {
	cfg := a.Config.Generation
	if cfg.Provider == config.ProviderOpenAI {
		return openaiLLM.NewClient(cfg)
	}
	client, err := a.genaiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return gemini.NewClient(client, cfg)
}

func (a *App) embedder(ctx context.Context) (embedding.Embedder, error) {
	cfg := a.Config.Embedding
	if cfg.Provider == config.ProviderOpenAI {
		return openaiEmbedding.NewOpenAIEmbeddingClient(cfg)
	}
	client, err := a.genaiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return googleEmbedding.NewGoogleEmbeddingClient(client, cfg)
}

func (a *App) index(ctx context.Context, dimension int) (vectorDB.Index, error) {
	if a.Config.VectorStore.Type != config.VectorStoreQdrant {
		return memoryDB.NewStorage(dimension), nil
	}
	q, err := qdrantDB.NewStorage(ctx, a.Config.VectorStore.Qdrant, dimension)
	if err != nil {
		return nil, err
	}
	a.qdrant = q
	return q, nil
}

// HTTPHandler opens the upload side (registry, stored files, warm-up workers) and returns the routed
// api. Only the api server calls it, the registry file is locked while open.
func (a *App) HTTPHandler(ctx context.Context) (http.Handler, error) {
	cfg := a.Config
	reg, err := registry.Open(cfg.Storage.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("document registry: %w", err)
	}
	a.registry = reg
	blobs, err := uploads.New(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("upload store: %w", err)
	}

	var jobStore jobModel.JobStore = store.InitInMemoryJobStore(cfg.Redis.JobTTL)
	if redisJobs, err := a.redisFor(ctx, config.RedisJobStore); err != nil {
		return nil, err
	} else if redisJobs != nil {
		jobStore = store.NewRedisJobStore(redisJobs, cfg.Redis.JobTTL)
	}
	jobs := job.InitJobService(job.ServiceConfig{
		JobChannel:           make(chan jobModel.Job, cfg.Workers.BufferLimit),
		DispatcherChannel:    make(chan bool, 1),
		JobStore:             jobStore,
		RequestsPerNewWorker: cfg.Workers.RequestsPerNewWorker,
	})
	a.pool = worker.NewPool(worker.PoolConfig{
		Service: jobs,
		Runner:  job.NewWarmup(a.Cache, a.Extractor, blobs, reg),
		Workers: cfg.Workers,
	})
	a.pool.Start()

	h := handlers.New(handlers.Deps{
		Sessions:       a.Sessions,
		Documents:      reg,
		Blobs:          blobs,
		Jobs:           jobs,
		References:     a.Fetcher,
		Texts:          a.Cache,
		Strategy:       a.Strategy.Name(),
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
	return server.Routes(h, middleware.NewChain(cfg.Auth, cfg.Server), cfg.Server), nil
}

// StopWorkers lets queued warm-ups finish. Safe to call without HTTPHandler.
func (a *App) StopWorkers() {
	if a.pool != nil {
		a.pool.Stop()
	}
}

// Reference resolves a local path or an http(s) url. Local files are keyed by content like uploads.
func (a *App) Reference(source string) (docModel.Reference, error) {
	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return a.Fetcher.Reference(source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return docModel.Reference{}, errorModel.New(errorModel.NotFound, "app.reference", err)
		}
		return docModel.Reference{}, errorModel.New(errorModel.InvalidRequest, "app.reference", err)
	}
	sum := sha256.Sum256(data)
	return docModel.Reference{
		Id:   hex.EncodeToString(sum[:]),
		Name: filepath.Base(source),
		Loader: docModel.LoaderFunc(func(context.Context) ([]byte, error) {
			return data, nil
		}),
	}, nil
}

func (a *App) Close() {
	a.StopWorkers()
	if a.Sessions != nil {
		a.Sessions.Shutdown()
	}
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			a.logger.Warn("closing registry", "error", err)
		}
	}
	if a.qdrant != nil {
		if err := a.qdrant.Close(); err != nil {
			a.logger.Warn("closing qdrant", "error", err)
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
