package runner

import (
	"context"
	"encoding/json"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/reelforge/reelforge/pkg/eventlog"
	"github.com/reelforge/reelforge/pkg/handler"
	"github.com/reelforge/reelforge/pkg/manifest"
	"github.com/reelforge/reelforge/pkg/planner"
	"github.com/reelforge/reelforge/pkg/ratelimit"
	"github.com/reelforge/reelforge/pkg/storage"
	"github.com/reelforge/reelforge/pkg/telemetry"
)

// Runner executes an ExecutionPlan's layers in order, dispatching each
// job through Handlers and persisting outcomes via Events, Storage, and
// Manifests.
type Runner struct {
	Storage   storage.Context
	Events    eventlog.Log
	Manifests manifest.Service
	Handlers  *handler.Registry
	Limiter   *ratelimit.Keyed
	Opts      Options

	warmOnce sync.Once
	warmErr  error
}

// New returns a Runner. limiter admits jobs per rate key (the default
// one-in-flight-per-key policy is the caller's responsibility to configure
// via ratelimit.New); opts.withDefaults fills in a zero MaxAttemptsPerJob,
// RetryBackoff, Logger and Now.
func New(store storage.Context, events eventlog.Log, manifests manifest.Service, handlers *handler.Registry, limiter *ratelimit.Keyed, opts Options) *Runner {
	return &Runner{
		Storage:   store,
		Events:    events,
		Manifests: manifests,
		Handlers:  handlers,
		Limiter:   limiter,
		Opts:      opts.withDefaults(),
	}
}

// Run executes plan's layers strictly in order against movieID, waiting
// for every job in a layer to reach a terminal state before advancing to
// the next. The manifest is committed once at the end, over whichever
// jobs succeeded or were skipped, so progress survives a partially failed
// or cancelled run.
func (r *Runner) Run(ctx context.Context, movieID string, plan planner.ExecutionPlan, inputs map[string]json.RawMessage) (RunResult, error) {
	ctx, span := telemetry.StartCompileSpan(ctx, r.Opts.Telemetry, "runner.run", movieID)
	defer span.End()

	// Warm handlers once per Runner, before the first job can dispatch.
	r.warmOnce.Do(func() {
		r.warmErr = r.Handlers.WarmStartAll(ctx, r.Opts.Logger)
	})
	if r.warmErr != nil {
		telemetry.RecordErrorOnSpan(span, r.warmErr)
		return RunResult{}, r.warmErr
	}

	startedAt := r.Opts.Now()

	base, err := r.Manifests.LoadLatest(ctx, movieID)
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		return RunResult{}, err
	}

	var allResults []JobResult
	var allEvents []eventlog.ArtefactEvent

	for _, layer := range plan.Layers {
		results, events := r.runLayer(ctx, movieID, plan.Revision, layer, inputs)
		allResults = append(allResults, results...)
		allEvents = append(allEvents, events...)
	}

	// Commit whatever progress was made even if ctx was cancelled
	// mid-run: the manifest and event log are the durability boundary the
	// next run's cache check depends on.
	commitCtx := context.WithoutCancel(ctx)
	_, err = telemetry.RecordSpan(commitCtx, telemetry.GetTracer(r.Opts.Telemetry),
		telemetry.SpanOptions{Name: "runner.commit", EndWhenDone: true},
		func(ctx context.Context, _ trace.Span) (manifest.Manifest, error) {
			m, err := r.Manifests.BuildFromEvents(ctx, movieID, plan.Revision, base, allEvents, inputs)
			if err != nil {
				return manifest.Manifest{}, err
			}
			return m, r.Manifests.Commit(ctx, movieID, m)
		})
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		return RunResult{}, err
	}

	status := RunSucceeded
	counts := map[JobStatus]int{}
	for _, res := range allResults {
		counts[res.Status]++
		if res.Status == JobFailed {
			status = RunFailed
		}
	}

	runEvent := eventlog.RunEvent{
		Revision:      plan.Revision,
		Status:        string(status),
		StartedAt:     startedAt,
		FinishedAt:    r.Opts.Now(),
		JobsTotal:     len(allResults),
		JobsSucceeded: counts[JobSucceeded],
		JobsSkipped:   counts[JobSkipped],
		JobsFailed:    counts[JobFailed],
	}
	if err := r.Events.AppendRun(commitCtx, movieID, runEvent); err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		return RunResult{}, err
	}

	return RunResult{Revision: plan.Revision, Status: status, Jobs: allResults}, nil
}

// runLayer runs every job in layer concurrently, bounded by
// Opts.MaxConcurrency via errgroup.SetLimit.
// A job's failure never cancels its siblings: g.Go always
// returns nil so the group's own error-triggered cancellation never
// fires from job outcomes, only from ctx's own cancellation.
func (r *Runner) runLayer(ctx context.Context, movieID, revision string, layer planner.Layer, inputs map[string]json.RawMessage) ([]JobResult, []eventlog.ArtefactEvent) {
	results := make([]JobResult, len(layer.Jobs))
	events := make([][]eventlog.ArtefactEvent, len(layer.Jobs))

	g, gctx := errgroup.WithContext(ctx)
	if r.Opts.MaxConcurrency > 0 {
		g.SetLimit(r.Opts.MaxConcurrency)
	}

	for i, job := range layer.Jobs {
		i, job := i, job
		g.Go(func() error {
			res, evs := r.runJob(gctx, movieID, revision, job, inputs)
			results[i] = res
			events[i] = evs
			return nil
		})
	}
	_ = g.Wait()

	var flat []eventlog.ArtefactEvent
	for _, evs := range events {
		flat = append(flat, evs...)
	}
	return results, flat
}
