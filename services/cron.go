package services

import (
	"context"
	"time"

	"visual-search-platform/internal/logger"
)

// ReindexScheduler re-runs the catalog sync on a fixed interval so the index
// tracks catalog changes without operator involvement. Upserts overwrite by
// id, so overlapping state between runs is harmless.
type ReindexScheduler struct {
	indexer  *Indexer
	interval time.Duration
	stopChan chan struct{}
}

func NewReindexScheduler(indexer *Indexer, interval time.Duration) *ReindexScheduler {
	return &ReindexScheduler{
		indexer:  indexer,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *ReindexScheduler) Start() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("Starting reindex scheduler", "interval", s.interval.String())

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			if _, err := s.indexer.Run(ctx, 0); err != nil {
				logger.Error("Scheduled reindex failed", "error", err)
			}
			cancel()

		case <-s.stopChan:
			logger.Info("Stopping reindex scheduler")
			return
		}
	}
}

func (s *ReindexScheduler) Stop() {
	close(s.stopChan)
}
