package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"

	VectorBackendQdrant = "qdrant"
	VectorBackendMemory = "memory"
)

type Config struct {
	ServiceName string
	APIPort     string
	LogLevel    string

	// Empty PostgresDSN disables the document registry.
	PostgresDSN string

	// Empty NATSURL disables queued ingestion.
	NATSURL     string
	NATSSubject string

	LLMProvider   string
	EmbedProvider string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModel   string

	GeminiAPIKey     string
	GeminiGenModel   string
	GeminiEmbedModel string

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string

	StoragePath  string
	ControlsPath string

	ChunkMaxWords int
	RAGTopK       int

	APIRateLimitRPS   int
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIMaxConns       int
	APIMaxUploadBytes int64

	ResilienceRetryMaxAttempts    int
	ResilienceRetryInitialBackoff time.Duration
	ResilienceBreakerEnabled      bool
	ResilienceBreakerMinRequests  int
	ResilienceBreakerFailureRatio float64
	ResilienceBreakerOpenTimeout  time.Duration

	OTelEndpoint string

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		ServiceName: mustEnv("SERVICE_NAME", "policy-reviewer"),
		APIPort:     mustEnv("API_PORT", "8080"),
		LogLevel:    mustEnv("LOG_LEVEL", "info"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "policies.ingest"),

		LLMProvider:   strings.ToLower(mustEnv("LLM_PROVIDER", ProviderOllama)),
		EmbedProvider: strings.ToLower(mustEnv("EMBED_PROVIDER", ProviderOllama)),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "all-minilm"),

		OpenRouterAPIKey:  mustEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: mustEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:   mustEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),

		GeminiAPIKey:     mustEnv("GEMINI_API_KEY", ""),
		GeminiGenModel:   mustEnv("GEMINI_GEN_MODEL", "gemini-2.0-flash"),
		GeminiEmbedModel: mustEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),

		VectorBackend:    strings.ToLower(mustEnv("VECTOR_BACKEND", VectorBackendQdrant)),
		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "policies"),

		StoragePath:  mustEnv("STORAGE_PATH", "./data/uploaded"),
		ControlsPath: mustEnv("CONTROLS_PATH", ""),

		ChunkMaxWords: mustEnvInt("CHUNK_MAX_WORDS", 250),
		RAGTopK:       mustEnvInt("RAG_TOP_K", 5),

		APIRateLimitRPS:   mustEnvInt("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_INFLIGHT", 16),
		APIMaxConns:       mustEnvInt("API_MAX_CONNS", 256),
		APIMaxUploadBytes: int64(mustEnvInt("API_MAX_UPLOAD_MB", 32)) << 20,

		ResilienceRetryMaxAttempts:    mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 1),
		ResilienceRetryInitialBackoff: time.Duration(mustEnvInt("RESILIENCE_RETRY_INITIAL_BACKOFF_MS", 100)) * time.Millisecond,
		ResilienceBreakerEnabled:      mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerMinRequests:  mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 10),
		ResilienceBreakerFailureRatio: mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),
		ResilienceBreakerOpenTimeout:  time.Duration(mustEnvInt("RESILIENCE_BREAKER_OPEN_TIMEOUT_SECONDS", 30)) * time.Second,

		OTelEndpoint: mustEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// Validate reports settings that cannot produce a working service.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOllama:
	case ProviderOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("LLM_PROVIDER=openrouter requires OPENROUTER_API_KEY")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("LLM_PROVIDER=gemini requires GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.EmbedProvider {
	case ProviderOllama:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("EMBED_PROVIDER=gemini requires GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown EMBED_PROVIDER %q", c.EmbedProvider)
	}

	switch c.VectorBackend {
	case VectorBackendQdrant, VectorBackendMemory:
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend)
	}

	if c.ChunkMaxWords <= 0 {
		return fmt.Errorf("CHUNK_MAX_WORDS must be positive, got %d", c.ChunkMaxWords)
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
