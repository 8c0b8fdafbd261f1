package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"visual-search-platform/internal/ai"
	"visual-search-platform/internal/catalog"
	"visual-search-platform/internal/config"
	"visual-search-platform/internal/logger"
	"visual-search-platform/internal/telemetry"
	"visual-search-platform/internal/vectorstore"
	"visual-search-platform/middleware"
	"visual-search-platform/routes"
	"visual-search-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Optional tracing
	if cfg.OTelEnabled {
		shutdown, err := telemetry.InitTracer("visual-search-platform", cfg.OTelEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	var metrics *telemetry.Metrics
	if cfg.OTelEnabled {
		if metrics, err = telemetry.InitMetrics(); err != nil {
			logger.Warn("Metrics disabled", "error", err)
		}
	}

	// External collaborators: embedding service and vector store. Both are
	// expensive to warm up and shared by every request.
	embedder := ai.NewEmbedderClient(cfg.EmbedderServiceURL, time.Duration(cfg.EmbedderTimeout)*time.Second)
	store := vectorstore.NewPineconeClient(vectorstore.PineconeConfig{
		APIKey:        cfg.PineconeAPIKey,
		IndexName:     cfg.PineconeIndexName,
		ControllerURL: cfg.PineconeControllerURL,
		IndexHost:     cfg.PineconeIndexHost,
		Dimension:     cfg.VectorDimensions,
	})

	catalogClient := catalog.NewClient(cfg.CatalogAPIURL, cfg.SyncPageSize)
	writer := services.NewIndexWriter(store, cfg.UpsertBatchSize)
	indexer := services.NewIndexer(catalogClient, embedder, writer, store, cfg.EmbedWorkers)
	scanner := services.NewScanner(embedder, store, cfg.ScanTopK, cfg.ScanMinScore)

	// Scan history is optional
	var history *services.HistoryService
	if cfg.MongoURI != "" {
		mongoClient, err := config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		}()
		history = services.NewHistoryService(mongoClient.Database(cfg.DBName))
	} else {
		logger.Info("Scan history disabled: MONGO_URI not set")
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	if cfg.OTelEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}

	// Rate limiting is optional as well
	if cfg.RedisURL != "" {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	} else {
		logger.Info("Rate limiting disabled: REDIS_URL not set")
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		embedderReady, _ := embedder.IsHealthy(ctx)
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"embedder_ready": embedderReady,
			"timestamp":      time.Now(),
		})
	})

	// Setup routes
	routes.SetupScanRoutes(router, scanner, history, metrics)
	routes.SetupIndexRoutes(router, indexer, store, metrics)
	if history != nil {
		routes.SetupHistoryRoutes(router, history)
	}

	// Background re-indexing
	var scheduler *services.ReindexScheduler
	if cfg.ReindexIntervalMinutes > 0 {
		scheduler = services.NewReindexScheduler(indexer, time.Duration(cfg.ReindexIntervalMinutes)*time.Minute)
		go scheduler.Start()
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
