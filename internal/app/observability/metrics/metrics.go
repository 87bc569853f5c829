package metrics

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal    metric.Int64Counter
	HTTPRequestDuration  metric.Float64Histogram
	AuthRequestsTotal    metric.Int64Counter
	SearchRequestsTotal  metric.Int64Counter
	FavoriteTogglesTotal metric.Int64Counter
	VisitorMergesTotal   metric.Int64Counter
	MergedFavoritesTotal metric.Int64Counter
	DBQueryErrorsTotal   metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	initErr    error
	once       sync.Once
)

// InitAppMetrics creates the instruments once, from the global MeterProvider.
// Call it after the provider is configured so the instruments are exported.
func InitAppMetrics() error {
	once.Do(func() {
		appMetrics, initErr = newAppMetrics(otel.GetMeterProvider().Meter("loongo-api"))
	})
	return initErr
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var err error
	m := &AppMetrics{}

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests completed"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: http_requests_total: %w", err)
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("metrics: http_request_duration_seconds: %w", err)
	}

	if m.AuthRequestsTotal, err = meter.Int64Counter(
		"auth_requests_total",
		metric.WithDescription("Total number of register and login attempts"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: auth_requests_total: %w", err)
	}

	if m.SearchRequestsTotal, err = meter.Int64Counter(
		"search_requests_total",
		metric.WithDescription("Total number of city and POI searches"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: search_requests_total: %w", err)
	}

	if m.FavoriteTogglesTotal, err = meter.Int64Counter(
		"favorite_toggles_total",
		metric.WithDescription("Total number of favorite toggles"),
		metric.WithUnit("{toggle}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: favorite_toggles_total: %w", err)
	}

	if m.VisitorMergesTotal, err = meter.Int64Counter(
		"visitor_merges_total",
		metric.WithDescription("Total number of visitor to user favorite merges"),
		metric.WithUnit("{merge}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: visitor_merges_total: %w", err)
	}

	if m.MergedFavoritesTotal, err = meter.Int64Counter(
		"merged_favorites_total",
		metric.WithDescription("Favorites moved or dropped while merging visitors"),
		metric.WithUnit("{favorite}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: merged_favorites_total: %w", err)
	}

	if m.DBQueryErrorsTotal, err = meter.Int64Counter(
		"db_query_errors_total",
		metric.WithDescription("Total number of database query errors"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: db_query_errors_total: %w", err)
	}

	return m, nil
}

// Get returns the global instruments, creating them on first use. Before the
// MeterProvider is configured they record into the otel no-op provider.
func Get() *AppMetrics {
	if err := InitAppMetrics(); err != nil || appMetrics == nil {
		m, _ := newAppMetrics(otel.GetMeterProvider().Meter("loongo-api"))
		return m
	}
	return appMetrics
}

// RecordDBError counts a failed statement against the repository that ran it.
func RecordDBError(ctx context.Context, repository, operation string) {
	Get().DBQueryErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repository),
		attribute.String("operation", operation),
	))
}
