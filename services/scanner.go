package services

import (
	"context"

	"visual-search-platform/internal/vectorstore"
	"visual-search-platform/models"
)

// Scanner answers "which products look like this photo". It fingerprints the
// query image, asks the store for the top-k nearest vectors and drops
// everything below the similarity floor. The store returns matches ordered by
// similarity, so filtering in place preserves the ranking.
type Scanner struct {
	embedder Fingerprinter
	store    VectorIndex
	topK     int
	minScore float64
}

func NewScanner(embedder Fingerprinter, store VectorIndex, topK int, minScore float64) *Scanner {
	if topK <= 0 {
		topK = 5
	}
	return &Scanner{
		embedder: embedder,
		store:    store,
		topK:     topK,
		minScore: minScore,
	}
}

// Scan returns the matching products for one image, highest similarity
// first. Fewer than top-k results, down to none, is a valid outcome.
func (s *Scanner) Scan(ctx context.Context, image []byte) ([]models.MatchResult, error) {
	vec, err := s.embedder.Fingerprint(ctx, image)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.Query(ctx, vec, s.topK, true)
	if err != nil {
		return nil, err
	}

	results := make([]models.MatchResult, 0, len(matches))
	for _, m := range matches {
		if m.Score < s.minScore {
			continue
		}
		results = append(results, matchToResult(m))
	}

	return results, nil
}

func matchToResult(m vectorstore.Match) models.MatchResult {
	id := m.Metadata["product_id"]
	if id == "" {
		id = m.ID
	}
	return models.MatchResult{
		ID:              id,
		Name:            m.Metadata["name"],
		Price:           m.Metadata["price"],
		ImageURL:        m.Metadata["image_url"],
		Permalink:       m.Metadata["permalink"],
		Description:     m.Metadata["description"],
		SimilarityScore: m.Score,
	}
}
