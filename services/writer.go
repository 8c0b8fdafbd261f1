package services

import (
	"context"
	"fmt"

	"visual-search-platform/internal/logger"
	"visual-search-platform/internal/vectorstore"
	"visual-search-platform/models"
)

const (
	defaultBatchSize       = 100
	maxMetadataDescription = 500
)

// ArityError means the caller handed over mismatched item and fingerprint
// lists. That is a pipeline bug, not a runtime condition, and fails the run.
type ArityError struct {
	Items        int
	Fingerprints int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("got %d items but %d fingerprints", e.Items, e.Fingerprints)
}

// IndexWriter upserts fingerprinted catalog items into the vector store in
// bounded-size chunks. A chunk failure is recorded and the writer moves on;
// chunks already written stay written. Upserts are idempotent per id, so a
// partially failed run converges on the next sync.
type IndexWriter struct {
	store     VectorIndex
	batchSize int
}

func NewIndexWriter(store VectorIndex, batchSize int) *IndexWriter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &IndexWriter{
		store:     store,
		batchSize: batchSize,
	}
}

// Upsert writes the item/fingerprint pairs and returns how many vectors were
// upserted and how many chunks failed.
func (w *IndexWriter) Upsert(ctx context.Context, items []models.CatalogItem, fingerprints [][]float32) (int, int, error) {
	if len(items) != len(fingerprints) {
		return 0, 0, &ArityError{Items: len(items), Fingerprints: len(fingerprints)}
	}

	vectors := make([]vectorstore.Vector, len(items))
	for i, item := range items {
		vectors[i] = vectorstore.Vector{
			ID:       item.ID,
			Values:   fingerprints[i],
			Metadata: vectorMetadata(item),
		}
	}

	upserted := 0
	failedChunks := 0
	for start := 0; start < len(vectors); start += w.batchSize {
		end := start + w.batchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		chunk := vectors[start:end]

		if err := w.store.Upsert(ctx, chunk); err != nil {
			failedChunks++
			logger.Error("Upsert chunk failed", "chunk", start/w.batchSize+1, "size", len(chunk), "error", err)
			continue
		}
		upserted += len(chunk)
		logger.Debug("Upserted chunk", "chunk", start/w.batchSize+1, "size", len(chunk))
	}

	return upserted, failedChunks, nil
}

// vectorMetadata projects a catalog item into the bounded metadata payload
// stored alongside its vector.
func vectorMetadata(item models.CatalogItem) map[string]string {
	return map[string]string{
		"product_id":  item.ID,
		"name":        item.Name,
		"price":       item.Price,
		"image_url":   item.ImageURL,
		"permalink":   item.Permalink,
		"description": truncate(item.Description, maxMetadataDescription),
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
