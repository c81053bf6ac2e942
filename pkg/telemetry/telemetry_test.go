package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/reelforge/reelforge/pkg/telemetry"
)

func TestGetTracerReturnsNoopWhenDisabled(t *testing.T) {
	t.Parallel()
	tracer := telemetry.GetTracer(nil)
	_, span := tracer.Start(context.Background(), "op")
	if span.SpanContext().IsValid() {
		t.Fatalf("expected a no-op span when settings is nil")
	}
}

func TestGetTracerUsesCustomTracer(t *testing.T) {
	t.Parallel()
	custom := noop.NewTracerProvider().Tracer("custom")
	settings := telemetry.DefaultSettings().WithEnabled(true).WithTracer(custom)

	got := telemetry.GetTracer(settings)
	if got != custom {
		t.Fatalf("expected custom tracer to be returned")
	}
}

func TestSettingsBuildersDoNotMutateOriginal(t *testing.T) {
	t.Parallel()
	base := telemetry.DefaultSettings()
	derived := base.WithEnabled(true).WithFunctionID("movie-1").WithRecordInputs(false)

	if base.IsEnabled || base.FunctionID != "" || !base.RecordInputs {
		t.Fatalf("expected base settings unmodified, got %+v", base)
	}
	if !derived.IsEnabled || derived.FunctionID != "movie-1" || derived.RecordInputs {
		t.Fatalf("got %+v", derived)
	}
}

func TestRecordSpanPropagatesError(t *testing.T) {
	t.Parallel()
	tracer := noop.NewTracerProvider().Tracer("test")
	wantErr := errors.New("boom")

	_, err := telemetry.RecordSpan(context.Background(), tracer, telemetry.SpanOptions{Name: "op"},
		func(ctx context.Context, span trace.Span) (int, error) {
			return 0, wantErr
		})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected RecordSpan to propagate the error, got %v", err)
	}
}

func TestGetJobAttributesIncludesMetadata(t *testing.T) {
	t.Parallel()
	settings := telemetry.DefaultSettings().WithFunctionID("movie-1")

	attrs := telemetry.GetJobAttributes("movie-1", "job-1", "openai:gpt-4o", settings)
	if len(attrs) < 4 {
		t.Fatalf("expected at least movie/job/rate/functionId attributes, got %+v", attrs)
	}
}
