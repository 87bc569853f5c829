package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewAppMetricsRecords(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newAppMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.FavoriteTogglesTotal.Add(ctx, 2, metric.WithAttributes(attribute.String("item_type", "city")))
	m.VisitorMergesTotal.Add(ctx, 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		names[md.Name] = true
	}
	assert.True(t, names["favorite_toggles_total"])
	assert.True(t, names["visitor_merges_total"])
}

func TestGetNeverNil(t *testing.T) {
	m := Get()
	require.NotNil(t, m)
	assert.NotPanics(t, func() {
		m.SearchRequestsTotal.Add(context.Background(), 1)
	})
}

func TestRecordDBError(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordDBError(context.Background(), "favorites", "toggle")
	})
}
