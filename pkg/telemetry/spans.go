package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// JobAttributes names the structured attributes attached to job-lifecycle
// spans.
type JobAttributes struct {
	MovieID string
	JobID   string
	RateKey string
	Attempt int
}

// StartJobSpan starts a span named name for one job's lifecycle stage,
// carrying movie/job/rate-key/attempt attributes plus any Settings.Metadata.
func StartJobSpan(ctx context.Context, settings *Settings, name string, attrs JobAttributes) (context.Context, trace.Span) {
	tracer := GetTracer(settings)
	kvs := append(GetJobAttributes(attrs.MovieID, attrs.JobID, attrs.RateKey, settings), attribute.Int("attempt", attrs.Attempt))
	return tracer.Start(ctx, name, trace.WithAttributes(kvs...))
}

// StartCompileSpan starts a span named name carrying only the movie.id
// attribute; Runner.Run uses it for the span around a whole run.
func StartCompileSpan(ctx context.Context, settings *Settings, name, movieID string) (context.Context, trace.Span) {
	tracer := GetTracer(settings)
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("movie.id", movieID)))
}
