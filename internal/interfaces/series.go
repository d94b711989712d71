package interfaces

import (
	"context"

	"findash/internal/concepts"
	"findash/internal/series"
)

// SeriesExtractor builds quarterly fundamentals from a company-facts payload
type SeriesExtractor interface {
	// Extract returns up to limit quarter bundles, newest first
	Extract(ctx context.Context, ticker string, payload any, limit int) (series.SeriesResult, error)

	// Metric returns the full history of one abstract metric
	Metric(ctx context.Context, ticker string, payload any, key string) (concepts.MetricSeries, error)
}
