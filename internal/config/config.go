package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port     string
	MongoURI string
	Database string
	RedisURL string

	// Chat provider (OpenAI-compatible endpoint)
	ProvidersFile   string
	GenerateTimeout time.Duration

	// Tavily search
	TavilyAPIKey      string
	TavilyBaseURL     string
	SearchTimeout     time.Duration
	SourceReadTimeout time.Duration

	// Ollama embeddings
	OllamaBaseURL    string
	OllamaEmbedModel string
	EmbedTimeout     time.Duration

	// RAG tuning
	RAGChunkSize    int
	RAGChunkOverlap int
	RAGTopK         int
	RAGMinScore     float64

	// Memory
	MemoryContextLimit int
	ExtractTimeout     time.Duration

	// Pending document janitor
	JanitorInterval time.Duration
	JanitorMaxAge   time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3001"),
		MongoURI: getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Database: getEnv("DATABASE_NAME", "conversa"),
		RedisURL: getEnv("REDIS_URL", ""),

		ProvidersFile:   getEnv("PROVIDERS_FILE", "providers.json"),
		GenerateTimeout: getDurationEnv("GENERATE_TIMEOUT", 120*time.Second),

		TavilyAPIKey:      getEnv("TAVILY_API_KEY", ""),
		TavilyBaseURL:     getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),
		SearchTimeout:     getDurationEnv("SEARCH_TIMEOUT", 30*time.Second),
		SourceReadTimeout: getDurationEnv("SOURCE_READ_TIMEOUT", 15*time.Second),

		OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaEmbedModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		EmbedTimeout:     getDurationEnv("EMBED_TIMEOUT", 30*time.Second),

		RAGChunkSize:    getIntEnv("RAG_CHUNK_SIZE", 1000),
		RAGChunkOverlap: getIntEnv("RAG_CHUNK_OVERLAP", 200),
		RAGTopK:         getIntEnv("RAG_TOP_K", 5),
		RAGMinScore:     getFloatEnv("RAG_MIN_SCORE", 0.3),

		MemoryContextLimit: getIntEnv("MEMORY_CONTEXT_LIMIT", 20),
		ExtractTimeout:     getDurationEnv("EXTRACT_TIMEOUT", 30*time.Second),

		JanitorInterval: getDurationEnv("JANITOR_INTERVAL", 10*time.Minute),
		JanitorMaxAge:   getDurationEnv("JANITOR_MAX_AGE", 30*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
