package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestCountersAreSafeWithoutSDK(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Err())
	assert.NotPanics(t, func() {
		JobClaimed(ctx, "run_generation_graph")
		JobCompleted(ctx, "run_generation_graph")
		JobFailed(ctx, "run_generation_graph", "handler")
		JobsSwept(ctx, 0)
		SectionGenerated(ctx, "openai")
		LLMInvoked(ctx, "openai", true)
	})
}

// failedByReason sums folio.jobs.failed by its reason attribute.
func failedByReason(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "folio.jobs.failed" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				reason, _ := dp.Attributes.Value("reason")
				out[reason.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestJobsSweptRecordsCount(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	otel.SetMeterProvider(provider)

	ctx := context.Background()
	JobsSwept(ctx, 3)
	JobsSwept(ctx, 0)
	JobFailed(ctx, "run_generation_graph", "unknown_type")

	got := failedByReason(t, reader)
	assert.Equal(t, int64(3), got["shutdown"])
	assert.Equal(t, int64(1), got["unknown_type"])
}
