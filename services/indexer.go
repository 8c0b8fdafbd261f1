package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"visual-search-platform/internal/ai"
	"visual-search-platform/internal/logger"
	"visual-search-platform/models"
)

// SyncState names the phase a sync run is in. Every run walks all phases in
// order, even when a phase has nothing to do.
type SyncState string

const (
	StateIdle        SyncState = "idle"
	StateFetching    SyncState = "fetching"
	StateEmbedding   SyncState = "embedding"
	StateUpserting   SyncState = "upserting"
	StateSummarizing SyncState = "summarizing"
)

// SyncSummary is what a completed run hands back to the caller.
type SyncSummary struct {
	Run   models.SyncRun
	Stats *models.IndexStats
	// Truncated is set when a page error stopped the fetch before the
	// catalog was exhausted.
	Truncated bool
}

// Indexer drives one catalog sync: fetch, fingerprint, upsert, summarize.
// Per-item failures are counted, never escalated; the run only fails outright
// when the catalog is unreachable before the first item or the item and
// fingerprint lists fall out of step.
type Indexer struct {
	catalog   CatalogSource
	embedder  Fingerprinter
	writer    *IndexWriter
	store     VectorIndex
	downloads *http.Client
	workers   int

	mu    sync.Mutex
	state SyncState
}

func NewIndexer(catalog CatalogSource, embedder Fingerprinter, writer *IndexWriter, store VectorIndex, workers int) *Indexer {
	if workers <= 0 {
		workers = 4
	}
	return &Indexer{
		catalog:  catalog,
		embedder: embedder,
		writer:   writer,
		store:    store,
		downloads: &http.Client{
			Timeout: 10 * time.Second,
		},
		workers: workers,
		state:   StateIdle,
	}
}

// State reports the current phase.
func (ix *Indexer) State() SyncState {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.state
}

func (ix *Indexer) setState(s SyncState) {
	ix.mu.Lock()
	ix.state = s
	ix.mu.Unlock()
}

// Run executes one sync. maxProducts <= 0 indexes the whole catalog.
func (ix *Indexer) Run(ctx context.Context, maxProducts int) (*SyncSummary, error) {
	run := models.SyncRun{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	defer ix.setState(StateIdle)

	ix.setState(StateFetching)
	items, skipped, fetchErr := ix.catalog.FetchProducts(ctx, maxProducts)
	run.Fetched = len(items)
	run.Skipped = skipped
	truncated := false
	if fetchErr != nil {
		if len(items) == 0 {
			return nil, fmt.Errorf("catalog fetch produced no items: %w", fetchErr)
		}
		// Partial results are usable; the summary tells the caller the
		// catalog was not exhausted.
		logger.Warn("Catalog fetch truncated", "run_id", run.RunID, "fetched", len(items), "error", fetchErr)
		truncated = true
	}

	return ix.complete(ctx, run, items, truncated)
}

// IndexItems runs the embed, upsert and summarize phases on items fetched by
// the caller. Used by the standalone page-indexing tool.
func (ix *Indexer) IndexItems(ctx context.Context, items []models.CatalogItem) (*SyncSummary, error) {
	run := models.SyncRun{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Fetched:   len(items),
	}
	defer ix.setState(StateIdle)
	return ix.complete(ctx, run, items, false)
}

func (ix *Indexer) complete(ctx context.Context, run models.SyncRun, items []models.CatalogItem, truncated bool) (*SyncSummary, error) {
	ix.setState(StateEmbedding)
	valid, fingerprints, failed := ix.embedAll(ctx, items)
	run.Embedded = len(valid)
	run.Failed = failed

	ix.setState(StateUpserting)
	upserted, failedChunks, err := ix.writer.Upsert(ctx, valid, fingerprints)
	if err != nil {
		return nil, err
	}
	run.Upserted = upserted
	run.FailedChunks = failedChunks

	ix.setState(StateSummarizing)
	var stats *models.IndexStats
	if s, err := ix.store.DescribeStats(ctx); err != nil {
		// Stats are best-effort; their absence does not fail the run
		logger.Warn("Index stats unavailable", "run_id", run.RunID, "error", err)
	} else {
		stats = s
	}

	run.Duration = time.Since(run.StartedAt)
	logger.Info("Sync run complete",
		"run_id", run.RunID,
		"fetched", run.Fetched,
		"skipped", run.Skipped,
		"embedded", run.Embedded,
		"failed", run.Failed,
		"upserted", run.Upserted,
		"failed_chunks", run.FailedChunks,
		"duration", run.Duration.String(),
	)

	return &SyncSummary{Run: run, Stats: stats, Truncated: truncated}, nil
}

// embedAll downloads and fingerprints every item with a bounded worker pool.
// Results are written into a slice indexed by item position, so item-to-vector
// correspondence survives concurrency; failed slots stay nil and are
// compacted afterwards.
func (ix *Indexer) embedAll(ctx context.Context, items []models.CatalogItem) ([]models.CatalogItem, [][]float32, int) {
	results := make([][]float32, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i := range items {
		g.Go(func() error {
			item := items[i]

			img, err := ix.downloadImage(gctx, item.ImageURL)
			if err != nil {
				logger.Warn("Image download failed", "product_id", item.ID, "cause", "download", "error", err)
				return nil
			}

			vec, err := ix.embedder.Fingerprint(gctx, img)
			if err != nil {
				cause := "embed"
				if ai.IsDecodeError(err) {
					cause = "decode"
				}
				logger.Warn("Fingerprint failed", "product_id", item.ID, "cause", cause, "error", err)
				return nil
			}

			results[i] = vec
			return nil
		})
	}
	g.Wait()

	var valid []models.CatalogItem
	var fingerprints [][]float32
	for i := range items {
		if results[i] == nil {
			continue
		}
		valid = append(valid, items[i])
		fingerprints = append(fingerprints, results[i])
	}

	return valid, fingerprints, len(items) - len(valid)
}

func (ix *Indexer) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := ix.downloads.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image returned status %d", resp.StatusCode)
	}

	// Product photos should never be this large
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	return data, nil
}
