package observability

import (
	"context"
	"testing"
	"time"

	"skillwizard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m.Data
		}
	}
	return found
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecordWizardEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newMetrics(provider.Meter("test"), defaultCustomMetrics())
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAction(ctx, "generate_test", "success", 250*time.Millisecond)
	m.RecordAction(ctx, "generate_test", "failure", time.Second)
	m.RecordStaleResponse(ctx, "generate_test")
	m.RecordValidationFailure(ctx, 0)
	m.RecordSessionStarted(ctx)
	m.RecordRateLimitHit(ctx, "/test/generate")

	found := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, found["skillwizard_actions_total"]))
	assert.Equal(t, int64(1), sumOf(t, found["skillwizard_stale_responses_total"]))
	assert.Equal(t, int64(1), sumOf(t, found["skillwizard_validation_failures_total"]))
	assert.Equal(t, int64(1), sumOf(t, found["skillwizard_sessions_started_total"]))
	assert.Equal(t, int64(1), sumOf(t, found["skillwizard_rate_limit_hits_total"]))

	hist, ok := found["skillwizard_action_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestDisabledMetricGroupsRecordNothing(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newMetrics(provider.Meter("test"), config.CustomMetricsConfig{
		Actions: config.ActionMetricsConfig{Enabled: true, TrackDuration: false},
	})
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAction(ctx, "recommend_jobs", "success", time.Second)
	m.RecordValidationFailure(ctx, 2)
	m.RecordRateLimitHit(ctx, "/jobs")

	found := collect(t, reader)
	assert.Contains(t, found, "skillwizard_actions_total")
	assert.NotContains(t, found, "skillwizard_action_duration_seconds")
	assert.NotContains(t, found, "skillwizard_validation_failures_total")
	assert.NotContains(t, found, "skillwizard_rate_limit_hits_total")
}

func TestZeroMetricsIsSafe(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false}, nil)
	require.NoError(t, err)

	m := om.GetMetrics()
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordAction(ctx, "submit_resume", "success", time.Millisecond)
		m.RecordStaleResponse(ctx, "submit_resume")
		m.RecordValidationFailure(ctx, 1)
		m.RecordSessionStarted(ctx)
		m.RecordRateLimitHit(ctx, "/resume")
	})
	assert.NoError(t, om.Shutdown(ctx))
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.ServiceName = "skillwizard"
	cfg.Observability.Enabled = true
	cfg.Observability.Prometheus.Port = "9191"

	obs := GetObservabilityConfig(cfg, "1.2.3")
	assert.Equal(t, "skillwizard", obs.ServiceName)
	assert.Equal(t, "1.2.3", obs.ServiceVersion)
	assert.Equal(t, "9191", obs.Prometheus.Port)

	fallback := GetObservabilityConfig(nil, "dev")
	assert.Equal(t, "skillwizard", fallback.ServiceName)
	assert.Equal(t, "/metrics", fallback.Prometheus.Endpoint)
}
