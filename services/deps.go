package services

import (
	"context"

	"visual-search-platform/internal/vectorstore"
	"visual-search-platform/models"
)

// Fingerprinter produces a fixed-dimension embedding vector for an image.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, image []byte) ([]float32, error)
}

// VectorIndex is the slice of the vector store the services depend on.
type VectorIndex interface {
	Upsert(ctx context.Context, vectors []vectorstore.Vector) error
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]vectorstore.Match, error)
	DeleteAll(ctx context.Context) error
	DescribeStats(ctx context.Context) (*models.IndexStats, error)
}

// CatalogSource produces normalized catalog items. The int result counts
// records that were dropped for lacking a resolvable image.
type CatalogSource interface {
	FetchProducts(ctx context.Context, maxItems int) ([]models.CatalogItem, int, error)
}
