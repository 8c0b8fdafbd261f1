package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"visual-search-platform/models"
)

// HistoryService persists completed photo scans so clients can review past
// matches. The service is optional; without a Mongo connection the scan path
// simply skips persistence.
type HistoryService struct {
	scansCollection *mongo.Collection
}

func NewHistoryService(db *mongo.Database) *HistoryService {
	return &HistoryService{
		scansCollection: db.Collection("scan_results"),
	}
}

// SaveScan stores one scan and its matches.
func (s *HistoryService) SaveScan(ctx context.Context, matches []models.MatchResult) (*models.ScanResult, error) {
	recommendations := make([]models.Recommendation, len(matches))
	for i, m := range matches {
		recommendations[i] = models.Recommendation{
			ProductID:       m.ID,
			Name:            m.Name,
			Price:           m.Price,
			ImageURL:        m.ImageURL,
			Permalink:       m.Permalink,
			SimilarityScore: m.SimilarityScore,
		}
	}

	scan := &models.ScanResult{
		MatchesFound:    len(matches),
		Recommendations: recommendations,
		ScannedAt:       time.Now(),
	}

	result, err := s.scansCollection.InsertOne(ctx, scan)
	if err != nil {
		return nil, err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		scan.ID = oid
	}
	return scan, nil
}

// ListScans returns a page of scan history, newest first, plus the total
// number of stored scans.
func (s *HistoryService) ListScans(ctx context.Context, page, limit int) ([]models.ScanResult, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	total, err := s.scansCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "scanned_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.scansCollection.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var scans []models.ScanResult
	if err := cursor.All(ctx, &scans); err != nil {
		return nil, 0, err
	}

	return scans, total, nil
}
