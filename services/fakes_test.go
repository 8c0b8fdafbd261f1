package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"visual-search-platform/internal/vectorstore"
	"visual-search-platform/models"
)

// fakeStore is an in-memory VectorIndex keyed by vector id.
type fakeStore struct {
	mu      sync.Mutex
	vectors map[string]vectorstore.Vector
	// failCalls marks Upsert calls that should fail, by 1-based call index
	failCalls  map[int]bool
	upsertCall int
	matches    []vectorstore.Match
	queryErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{vectors: make(map[string]vectorstore.Vector)}
}

func (f *fakeStore) Upsert(ctx context.Context, vectors []vectorstore.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCall++
	if f.failCalls[f.upsertCall] {
		return &vectorstore.StoreUnavailableError{Op: "upsert", Err: errors.New("injected failure")}
	}
	for _, v := range vectors {
		f.vectors[v.ID] = v
	}
	return nil
}

func (f *fakeStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]vectorstore.Match, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func (f *fakeStore) DeleteAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = make(map[string]vectorstore.Vector)
	return nil
}

func (f *fakeStore) DescribeStats(ctx context.Context) (*models.IndexStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.IndexStats{TotalVectors: len(f.vectors), Dimension: 512}, nil
}

// fakeEmbedder returns a deterministic vector per image and can be told to
// fail for specific payloads.
type fakeEmbedder struct {
	failFor map[string]error
}

func (f *fakeEmbedder) Fingerprint(ctx context.Context, image []byte) ([]float32, error) {
	if err, ok := f.failFor[string(image)]; ok {
		return nil, err
	}
	return []float32{float32(len(image)), 1}, nil
}

// fakeCatalog hands back a fixed item list.
type fakeCatalog struct {
	items   []models.CatalogItem
	skipped int
	err     error
}

func (f *fakeCatalog) FetchProducts(ctx context.Context, maxItems int) ([]models.CatalogItem, int, error) {
	items := f.items
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, f.skipped, f.err
}

func makeItems(n int) []models.CatalogItem {
	items := make([]models.CatalogItem, n)
	for i := range items {
		items[i] = models.CatalogItem{
			ID:       fmt.Sprintf("%d", i+1),
			Name:     fmt.Sprintf("Product %d", i+1),
			Price:    "10.00",
			ImageURL: fmt.Sprintf("https://cdn.example.com/%d.jpg", i+1),
		}
	}
	return items
}
