package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Recommendation is the slice of a MatchResult we keep in scan history.
type Recommendation struct {
	ProductID       string  `bson:"product_id" json:"product_id"`
	Name            string  `bson:"name" json:"name"`
	Price           string  `bson:"price,omitempty" json:"price,omitempty"`
	ImageURL        string  `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Permalink       string  `bson:"permalink,omitempty" json:"permalink,omitempty"`
	SimilarityScore float64 `bson:"similarity_score" json:"similarity_score"`
}

// ScanResult records one photo scan and the products it matched.
type ScanResult struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MatchesFound    int                `bson:"matches_found" json:"matches_found"`
	Recommendations []Recommendation   `bson:"recommendations" json:"recommendations"`
	ScannedAt       time.Time          `bson:"scanned_at" json:"scanned_at"`
}
