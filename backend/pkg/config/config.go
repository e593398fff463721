package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "content-graph/backend/pkg/errors"
)

// Store backends
const (
	StoreNeo4j  = "neo4j"
	StoreMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Graph store
	GraphStore       string
	Neo4jURI         string
	Neo4jUser        string
	Neo4jPassword    string
	Neo4jDatabase    string
	Neo4jMaxPoolSize int
	StoreTimeout     time.Duration

	// Embeddings
	EmbeddingBaseURL    string
	EmbeddingAPIKey     string
	EmbeddingModel      string
	EmbeddingMaxRetries int
	RedisAddr           string
	EmbeddingCacheTTL   time.Duration

	// Graph behaviour
	SimilarityThreshold  float64
	SimilarityCandidates int
	MaxTraversalDepth    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		GraphStore:           strings.ToLower(getEnv("GRAPH_STORE", StoreNeo4j)),
		Neo4jURI:             getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:            getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:        getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:        getEnv("NEO4J_DATABASE", ""),
		Neo4jMaxPoolSize:     getEnvInt("NEO4J_MAX_POOL_SIZE", 50),
		StoreTimeout:         getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		EmbeddingBaseURL:     getEnv("EMBEDDING_BASE_URL", "https://api.openai.com"),
		EmbeddingAPIKey:      getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:       getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingMaxRetries:  getEnvInt("EMBEDDING_MAX_RETRIES", 2),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		EmbeddingCacheTTL:    getEnvDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		SimilarityThreshold:  getEnvFloat("SIMILARITY_THRESHOLD", 0.7),
		SimilarityCandidates: getEnvInt("SIMILARITY_CANDIDATES", 5),
		MaxTraversalDepth:    getEnvInt("MAX_TRAVERSAL_DEPTH", 5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.GraphStore {
	case StoreNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
	case StoreMemory:
	default:
		return apperrors.NewConfigValidationFailed("GRAPH_STORE", fmt.Sprintf("unknown backend %q", c.GraphStore))
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return apperrors.NewConfigValidationFailed("SIMILARITY_THRESHOLD", "must be in (0, 1]")
	}
	if c.SimilarityCandidates < 1 {
		return apperrors.NewConfigValidationFailed("SIMILARITY_CANDIDATES", "must be positive")
	}
	if c.MaxTraversalDepth < 1 {
		return apperrors.NewConfigValidationFailed("MAX_TRAVERSAL_DEPTH", "must be positive")
	}
	if c.StoreTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("STORE_TIMEOUT", "must be positive")
	}
	// Embedding key and Redis address are optional: both features degrade softly
	return nil
}

// EmbeddingsEnabled reports whether an embedding provider should be wired
func (c *Config) EmbeddingsEnabled() bool {
	return c.EmbeddingAPIKey != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
