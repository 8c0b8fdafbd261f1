package models

import "time"

// CatalogItem is one product normalized from the remote catalog API.
// Items that reach the indexing pipeline always carry a non-empty ImageURL;
// records without a resolvable image are dropped during fetch.
type CatalogItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price,omitempty"`
	ImageURL    string `json:"image_url"`
	Permalink   string `json:"permalink,omitempty"`
	Description string `json:"description"`
}

// MatchResult is a single hit returned by a scan. Never persisted in the
// vector store; built from query match metadata.
type MatchResult struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Price           string  `json:"price"`
	ImageURL        string  `json:"image_url"`
	Permalink       string  `json:"permalink"`
	Description     string  `json:"description"`
	SimilarityScore float64 `json:"similarity_score"`
}

// SyncRun aggregates the counters of one indexing run. It lives only for the
// duration of the run and is returned to the caller.
type SyncRun struct {
	RunID        string        `json:"run_id"`
	Fetched      int           `json:"fetched"`
	Skipped      int           `json:"skipped"`
	Embedded     int           `json:"embedded"`
	Failed       int           `json:"failed"`
	Upserted     int           `json:"upserted"`
	FailedChunks int           `json:"failed_chunks"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"-"`
}

// IndexStats mirrors the vector store's describe-stats response.
type IndexStats struct {
	TotalVectors  int     `json:"total_vectors"`
	Dimension     int     `json:"dimension"`
	IndexFullness float64 `json:"index_fullness"`
}
