package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	RatePerSecond   float64       `yaml:"rate_per_second"`
	RateBurst       int           `yaml:"rate_burst"`
}

type AuthConfig struct {
	Token string `yaml:"token"`
	// Bypass disables bearer checks, local development only.
	Bypass bool `yaml:"bypass"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

type RAGConfig struct {
	Strategy     string `yaml:"strategy"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
}

type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

type GenerationConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Temperature     float32       `yaml:"temperature"`
	MaxOutputTokens int32         `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	PoolSize   int    `yaml:"pool_size"`
	Collection string `yaml:"collection"`
}

type VectorStoreConfig struct {
	Type   string       `yaml:"type"` // memory | qdrant
	Qdrant QdrantConfig `yaml:"qdrant"`
}

type RedisConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	JobTTL        time.Duration `yaml:"job_ttl"`
	TranscriptTTL time.Duration `yaml:"transcript_ttl"`
	// TextTTL bounds cached extractions in redis, 0 keeps them until the document is deleted.
	TextTTL time.Duration `yaml:"text_ttl"`
	// FallbackToMemory keeps the service up with in-memory stores when redis is offline.
	FallbackToMemory bool `yaml:"fallback_to_memory"`
}

type StorageConfig struct {
	UploadDir      string `yaml:"upload_dir"`
	RegistryPath   string `yaml:"registry_path"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	MaxFetchBytes  int64  `yaml:"max_fetch_bytes"`
}

type SessionConfig struct {
	ChatDeadline       time.Duration `yaml:"chat_deadline"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	PageExtractTimeout time.Duration `yaml:"page_extract_timeout"`
	IdleTTL            time.Duration `yaml:"idle_ttl"`
}

type WorkerConfig struct {
	Min                  int64         `yaml:"min"`
	Max                  int64         `yaml:"max"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	RequestsPerNewWorker int64         `yaml:"requests_per_new_worker"`
	BufferLimit          int           `yaml:"buffer_limit"`
	JobTimeout           time.Duration `yaml:"job_timeout"`
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Log         LogConfig         `yaml:"log"`
	RAG         RAGConfig         `yaml:"rag"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Redis       RedisConfig       `yaml:"redis"`
	Storage     StorageConfig     `yaml:"storage"`
	Session     SessionConfig     `yaml:"session"`
	Workers     WorkerConfig      `yaml:"workers"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ServerListenAddr,
			ReadTimeout:     ReadTimeout,
			WriteTimeout:    WriteTimeout,
			IdleTimeout:     IdleTimeout,
			ShutdownTimeout: ShutdownContextTimeout,
			CORSOrigins:     []string{"*"},
			RatePerSecond:   RATE_LIMIT_PER_SECOND,
			RateBurst:       BURST_RATE_LIMIT_PER_SECOND,
		},
		Log: LogConfig{Level: "debug", Format: "text"},
		RAG: RAGConfig{
			Strategy:     DefaultStrategy,
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			TopK:         DefaultTopK,
		},
		Embedding: EmbeddingConfig{
			Provider:   DefaultModelProvider,
			Model:      GoogleEmbeddingModel,
			Dimensions: int(EmbeddingOutputDimensionality),
			BatchSize:  EmbeddingBatchSize,
			Timeout:    EmbeddingTimeout,
		},
		Generation: GenerationConfig{
			Provider:        DefaultModelProvider,
			Model:           GeminiModelName,
			Temperature:     ModelTemperature,
			MaxOutputTokens: ModelMaxOutputTokens,
			Timeout:         GenerationTimeout,
		},
		VectorStore: VectorStoreConfig{
			Type: DefaultVectorStore,
			Qdrant: QdrantConfig{
				Host:       QdrantHost,
				Port:       QdrantGrpcPort,
				UseTLS:     QdrantUseTLS,
				PoolSize:   QdrantPoolSize,
				Collection: EmbeddingDBName,
			},
		},
		Redis: RedisConfig{
			Addr:             RedisAddr,
			JobTTL:           RedisJobStoreTTL,
			TranscriptTTL:    RedisTranscriptStoreTTL,
			FallbackToMemory: true,
		},
		Storage: StorageConfig{
			UploadDir:      UploadDir,
			RegistryPath:   RegistryPath,
			MaxUploadBytes: MaxUploadSize,
			MaxFetchBytes:  MaxFetchSize,
		},
		Session: SessionConfig{
			ChatDeadline:       ChatDeadline,
			FetchTimeout:       FetchTimeout,
			PageExtractTimeout: PageExtractTimeout,
			IdleTTL:            SessionIdleTTL,
		},
		Workers: WorkerConfig{
			Min:                  MinWorkerCount,
			Max:                  MaxWorkerCount,
			IdleTimeout:          IdleWorkerTimeout,
			RequestsPerNewWorker: RequestsPerNewWorkerCount,
			BufferLimit:          BufferLimit,
			JobTimeout:           WarmupJobTimeout,
		},
	}
}

// Load builds the configuration from defaults, an optional yaml file, an optional .env file and
// finally the process environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = DefaultConfigFileName
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnv(cfg, os.Getenv)
	applyProviderDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v, err := strconv.ParseBool(getenv(key)); err == nil {
			*dst = v
		}
	}

	setString(&cfg.Server.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.Auth.Token, "AUTH_TOKEN")
	setBool(&cfg.Auth.Bypass, "AUTH_BYPASS")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.RAG.Strategy, "PDFCHAT_STRATEGY")
	setString(&cfg.VectorStore.Type, "PDFCHAT_VECTOR_STORE")

	setString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&cfg.Generation.Provider, "GENERATION_PROVIDER")
	switch cfg.Embedding.Provider {
	case ProviderOpenAI:
		setString(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
		setString(&cfg.Embedding.BaseURL, "OPENAI_BASE_URL")
	default:
		setString(&cfg.Embedding.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	}
	switch cfg.Generation.Provider {
	case ProviderOpenAI:
		setString(&cfg.Generation.APIKey, "OPENAI_API_KEY")
		setString(&cfg.Generation.BaseURL, "OPENAI_BASE_URL")
	default:
		setString(&cfg.Generation.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	}

	setString(&cfg.VectorStore.Qdrant.Host, "QDRANT_HOST")
	if port, err := strconv.Atoi(getenv("QDRANT_PORT")); err == nil {
		cfg.VectorStore.Qdrant.Port = port
	}
	setString(&cfg.VectorStore.Qdrant.APIKey, "QDRANT_API_KEY")

	if addr := getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
}

// applyProviderDefaults swaps gemini model names for openai ones when only the provider was changed.
func applyProviderDefaults(cfg *Config) {
	if cfg.Embedding.Provider == ProviderOpenAI && cfg.Embedding.Model == GoogleEmbeddingModel {
		cfg.Embedding.Model = OpenAIEmbeddingModel
	}
	if cfg.Generation.Provider == ProviderOpenAI && cfg.Generation.Model == GeminiModelName {
		cfg.Generation.Model = OpenAIModelName
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.RAG.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size), got %d", c.RAG.ChunkOverlap))
	}
	if c.RAG.TopK < 1 {
		c.RAG.TopK = DefaultTopK
	}
	switch c.RAG.Strategy {
	case StrategyFull, StrategyRetrieval:
	default:
		errs = append(errs, fmt.Errorf("unknown rag.strategy %q", c.RAG.Strategy))
	}
	for name, p := range map[string]string{"embedding.provider": c.Embedding.Provider, "generation.provider": c.Generation.Provider} {
		if p != ProviderGemini && p != ProviderOpenAI {
			errs = append(errs, fmt.Errorf("unknown %s %q", name, p))
		}
	}
	switch c.VectorStore.Type {
	case VectorStoreMemory, VectorStoreQdrant:
	default:
		errs = append(errs, fmt.Errorf("unknown vector_store.type %q", c.VectorStore.Type))
	}
	if c.Embedding.Dimensions < 1 {
		errs = append(errs, errors.New("embedding.dimensions must be positive"))
	}
	if c.Embedding.BatchSize < 1 {
		c.Embedding.BatchSize = EmbeddingBatchSize
	}
	if c.Session.ChatDeadline <= 0 {
		errs = append(errs, errors.New("session.chat_deadline must be positive"))
	}
	if c.Workers.Max < c.Workers.Min || c.Workers.Min < 1 {
		errs = append(errs, fmt.Errorf("workers: need 1 <= min <= max, got min=%d max=%d", c.Workers.Min, c.Workers.Max))
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	return errors.Join(errs...)
}
