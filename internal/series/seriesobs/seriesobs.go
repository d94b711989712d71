package seriesobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"findash/internal/concepts"
	"findash/internal/interfaces"
	"findash/internal/logger"
	"findash/internal/series"
	"findash/internal/trace"
)

// QualitySink receives the warnings of every extraction
type QualitySink interface {
	Record(ctx context.Context, result series.SeriesResult) error
}

// Option configures the observable extractor
type Option func(*observableExtractor)

// WithQualitySink appends every extraction's warnings to sink
func WithQualitySink(sink QualitySink) Option {
	return func(o *observableExtractor) {
		o.sink = sink
	}
}

// WithRequestIDs overrides request id generation
func WithRequestIDs(next func() string) Option {
	return func(o *observableExtractor) {
		o.newID = next
	}
}

// observableExtractor wraps SeriesExtractor with logging and tracing
type observableExtractor struct {
	inner interfaces.SeriesExtractor
	sink  QualitySink
	newID func() string
}

// Wrap wraps a SeriesExtractor with observability middleware. Each result is
// stamped with a request id.
func Wrap(extractor interfaces.SeriesExtractor, opts ...Option) interfaces.SeriesExtractor {
	o := &observableExtractor{inner: extractor, newID: uuid.NewString}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extract wraps the Extract method with logging and tracing
func (o *observableExtractor) Extract(ctx context.Context, ticker string, payload any, limit int) (series.SeriesResult, error) {
	ctx, span := trace.StartSpan(ctx, "series.Extract")
	defer span.End()

	requestID := o.newID()
	fields := trace.GetTraceFields(ctx)
	fields["ticker"] = ticker
	fields["limit"] = limit
	fields["request_id"] = requestID

	logger.DebugSkip(ctx, 1, "Starting series extraction", fields)
	start := time.Now()

	result, err := o.inner.Extract(ctx, ticker, payload, limit)

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Series extraction failed", err, fields)
		trace.Fail(span, err)
		return result, err
	}

	result.Debug.RequestID = requestID

	fields["periods_found"] = result.Debug.PeriodsFound
	fields["fiscal_year_end_month"] = result.Debug.FiscalYearEndMonth
	fields["latest_end_all"] = result.Debug.LatestEndAll
	for w, n := range result.Debug.WarningCounts {
		fields["warn_"+w] = n
	}

	if result.Empty() {
		logger.WarnSkip(ctx, 1, "No quarterly anchors found", fields)
	} else {
		logger.InfoSkip(ctx, 1, "Series extraction completed", fields)
	}

	for _, b := range result.Series {
		for _, w := range b.Warnings {
			logger.Quality(ctx, result.Ticker, b.PeriodEnd, w, "request_id", requestID)
		}
	}

	if o.sink != nil {
		if err := o.sink.Record(ctx, result); err != nil {
			logger.ErrorWithErr(ctx, "Failed to record quality warnings", err, "ticker", ticker)
		}
	}

	return result, nil
}

// Metric wraps the Metric method with logging and tracing
func (o *observableExtractor) Metric(ctx context.Context, ticker string, payload any, key string) (concepts.MetricSeries, error) {
	ctx, span := trace.StartSpan(ctx, "series.Metric")
	defer span.End()

	fields := trace.GetTraceFields(ctx)
	fields["ticker"] = ticker
	fields["metric"] = key

	start := time.Now()
	m, err := o.inner.Metric(ctx, ticker, payload, key)
	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Metric extraction failed", err, fields)
		trace.Fail(span, err)
		return m, err
	}

	fields["concept"] = m.Concept
	fields["points"] = len(m.Points)
	logger.DebugSkip(ctx, 1, "Metric extraction completed", fields)

	return m, nil
}
