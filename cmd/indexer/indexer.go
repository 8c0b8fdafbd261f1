package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"visual-search-platform/internal/ai"
	"visual-search-platform/internal/catalog"
	"visual-search-platform/internal/config"
	"visual-search-platform/internal/logger"
	"visual-search-platform/internal/vectorstore"
	"visual-search-platform/services"
)

// Standalone tool for indexing a single catalog page. Useful for seeding the
// index or backfilling a specific page without running a full sync.
func main() {
	page := flag.Int("page", 2, "catalog page to index")
	perPage := flag.Int("per-page", 20, "products per page")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	embedder := ai.NewEmbedderClient(cfg.EmbedderServiceURL, time.Duration(cfg.EmbedderTimeout)*time.Second)
	store := vectorstore.NewPineconeClient(vectorstore.PineconeConfig{
		APIKey:        cfg.PineconeAPIKey,
		IndexName:     cfg.PineconeIndexName,
		ControllerURL: cfg.PineconeControllerURL,
		IndexHost:     cfg.PineconeIndexHost,
		Dimension:     cfg.VectorDimensions,
	})
	catalogClient := catalog.NewClient(cfg.CatalogAPIURL, *perPage)
	writer := services.NewIndexWriter(store, cfg.UpsertBatchSize)
	indexer := services.NewIndexer(catalogClient, embedder, writer, store, cfg.EmbedWorkers)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	fmt.Printf("Indexing catalog page %d (%d products per page)...\n", *page, *perPage)

	items, err := catalogClient.FetchPage(ctx, *page, *perPage)
	if err != nil {
		log.Fatalf("Failed to fetch page %d: %v", *page, err)
	}
	if len(items) == 0 {
		fmt.Printf("No products with images found on page %d\n", *page)
		os.Exit(0)
	}

	fmt.Printf("Found %d products with images, embedding...\n", len(items))

	summary, err := indexer.IndexItems(ctx, items)
	if err != nil {
		log.Fatalf("Indexing failed: %v", err)
	}

	fmt.Printf("Done: embedded %d, failed %d, upserted %d (failed chunks: %d)\n",
		summary.Run.Embedded, summary.Run.Failed, summary.Run.Upserted, summary.Run.FailedChunks)
	if summary.Stats != nil {
		fmt.Printf("Index now holds %d vectors (dimension %d, fullness %.2f)\n",
			summary.Stats.TotalVectors, summary.Stats.Dimension, summary.Stats.IndexFullness)
	}
}
