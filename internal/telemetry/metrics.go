package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	ScansTotal     metric.Int64Counter
	ScanDuration   metric.Float64Histogram
	SyncRunsTotal  metric.Int64Counter
	SyncDuration   metric.Float64Histogram
	UpsertFailures metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("visual-search-platform")

	scansTotal, err := meter.Int64Counter(
		"scan.requests.total",
		metric.WithDescription("Total photo scans served"),
	)
	if err != nil {
		return nil, err
	}

	scanDuration, err := meter.Float64Histogram(
		"scan.request.duration",
		metric.WithDescription("Photo scan duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	syncRunsTotal, err := meter.Int64Counter(
		"sync.runs.total",
		metric.WithDescription("Total catalog sync runs"),
	)
	if err != nil {
		return nil, err
	}

	syncDuration, err := meter.Float64Histogram(
		"sync.run.duration",
		metric.WithDescription("Catalog sync duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	upsertFailures, err := meter.Int64Counter(
		"sync.upsert.failures",
		metric.WithDescription("Upsert chunks that failed during sync"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ScansTotal:     scansTotal,
		ScanDuration:   scanDuration,
		SyncRunsTotal:  syncRunsTotal,
		SyncDuration:   syncDuration,
		UpsertFailures: upsertFailures,
	}, nil
}
