// Package telemetry records folio's OpenTelemetry counters on the global
// meter provider. Nothing is exported unless the embedding process installs
// an SDK meter provider; until then every call is a no-op.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/mesh-intelligence/folio"

var (
	metricsOnce    sync.Once
	metricsInitErr error

	jobsClaimed       otelmetric.Int64Counter
	jobsCompleted     otelmetric.Int64Counter
	jobsFailed        otelmetric.Int64Counter
	sectionsGenerated otelmetric.Int64Counter
	llmInvocations    otelmetric.Int64Counter
)

func initMetrics() {
	meter := otel.Meter(meterName)
	counters := []struct {
		dst  *otelmetric.Int64Counter
		name string
		desc string
	}{
		{&jobsClaimed, "folio.jobs.claimed", "Jobs claimed by a worker"},
		{&jobsCompleted, "folio.jobs.completed", "Jobs whose handler returned normally"},
		{&jobsFailed, "folio.jobs.failed", "Jobs marked failed"},
		{&sectionsGenerated, "folio.sections.generated", "Section outputs produced by the generation runner"},
		{&llmInvocations, "folio.llm.invocations", "Model invocations"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, otelmetric.WithDescription(c.desc))
		if err != nil {
			metricsInitErr = err
			return
		}
		*c.dst = counter
	}
}

// Err reports whether the counters failed to register.
func Err() error {
	metricsOnce.Do(initMetrics)
	return metricsInitErr
}

func add(ctx context.Context, c *otelmetric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	metricsOnce.Do(initMetrics)
	if metricsInitErr != nil || *c == nil || n <= 0 {
		return
	}
	(*c).Add(ctx, n, otelmetric.WithAttributes(attrs...))
}

// JobClaimed counts a claim.
func JobClaimed(ctx context.Context, jobType string) {
	add(ctx, &jobsClaimed, 1, attribute.String("job_type", jobType))
}

// JobCompleted counts a successful job.
func JobCompleted(ctx context.Context, jobType string) {
	add(ctx, &jobsCompleted, 1, attribute.String("job_type", jobType))
}

// JobFailed counts a failed job. reason is a short cause such as
// "handler" or "unknown_type".
func JobFailed(ctx context.Context, jobType, reason string) {
	add(ctx, &jobsFailed, 1, attribute.String("job_type", jobType), attribute.String("reason", reason))
}

// JobsSwept counts n jobs failed by the shutdown sweep.
func JobsSwept(ctx context.Context, n int64) {
	add(ctx, &jobsFailed, n, attribute.String("reason", "shutdown"))
}

// SectionGenerated counts one generated section.
func SectionGenerated(ctx context.Context, provider string) {
	add(ctx, &sectionsGenerated, 1, attribute.String("provider", provider))
}

// LLMInvoked counts one model call and whether it succeeded.
func LLMInvoked(ctx context.Context, provider string, ok bool) {
	add(ctx, &llmInvocations, 1, attribute.String("provider", provider), attribute.Bool("ok", ok))
}
