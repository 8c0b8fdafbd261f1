package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Catalog source
	CatalogAPIURL string
	SyncPageSize  int

	// Embedding service
	EmbedderServiceURL string
	EmbedderTimeout    int
	EmbedWorkers       int

	// Vector store
	PineconeAPIKey        string
	PineconeIndexName     string
	PineconeControllerURL string
	PineconeIndexHost     string
	VectorDimensions      int
	UpsertBatchSize       int

	// Scan defaults
	ScanTopK     int
	ScanMinScore float64

	// HTTP server
	Port        string
	GinMode     string
	CORSOrigins []string

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Scan history (optional, disabled when MongoURI is empty)
	MongoURI string
	DBName   string

	// Redis (optional, rate limiting is skipped without it)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Background re-indexing, 0 disables
	ReindexIntervalMinutes int

	// Telemetry
	OTelEnabled  bool
	OTelEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		CatalogAPIURL: getEnv("CATALOG_API_URL", "https://dodgerblue-otter-660921.hostingersite.com/wp-json/wp/v2/products/"),
		SyncPageSize:  getEnvInt("SYNC_PAGE_SIZE", 100),

		EmbedderServiceURL: getEnv("EMBEDDER_SERVICE_URL", "http://localhost:8001"),
		EmbedderTimeout:    getEnvInt("EMBEDDER_TIMEOUT", 30),
		EmbedWorkers:       getEnvInt("EMBED_WORKERS", 4),

		PineconeAPIKey:        getEnv("PINECONE_API_KEY", ""),
		PineconeIndexName:     getEnv("PINECONE_INDEX_NAME", "hippiekit-products"),
		PineconeControllerURL: getEnv("PINECONE_CONTROLLER_URL", "https://api.pinecone.io"),
		PineconeIndexHost:     getEnv("PINECONE_INDEX_HOST", ""),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 512),
		UpsertBatchSize:       getEnvInt("UPSERT_BATCH_SIZE", 100),

		ScanTopK:     getEnvInt("SCAN_TOP_K", 5),
		ScanMinScore: getEnvFloat64("SCAN_MIN_SCORE", 0.6),

		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		MongoURI: getEnv("MONGO_URI", ""),
		DBName:   getEnv("DB_NAME", "visual_search"),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ReindexIntervalMinutes: getEnvInt("REINDEX_INTERVAL_MINUTES", 0),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.PineconeAPIKey == "" {
		return nil, fmt.Errorf("PINECONE_API_KEY is required - set it in .env file")
	}

	if cfg.VectorDimensions <= 0 {
		return nil, fmt.Errorf("VECTOR_DIM must be a positive integer")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
