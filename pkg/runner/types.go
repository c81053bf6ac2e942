// Package runner executes a planner.ExecutionPlan against a movie's event
// log, blob store, and manifest, dispatching each job to its declared
// handler with bounded per-layer concurrency and per-rate-key admission
// control.
package runner

import (
	"log"
	"time"

	"github.com/reelforge/reelforge/pkg/internal/retry"
	"github.com/reelforge/reelforge/pkg/telemetry"
)

// JobStatus is a job's terminal disposition within one Run.
type JobStatus string

const (
	JobSucceeded JobStatus = "succeeded"
	JobSkipped   JobStatus = "skipped" // cache hit: every produced artefact already matched inputsHash
	JobFailed    JobStatus = "failed"
)

// JobResult reports one job's outcome.
type JobResult struct {
	JobID      string
	ProducerID string
	Status     JobStatus
	// Attempt is the 1-based number of the attempt that produced the
	// final outcome.
	Attempt int
	Err      error
}

// RunStatus is a Run's aggregate disposition.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunResult is what Run returns: the committed revision plus every job's
// individual outcome, so a caller can distinguish "which jobs need
// attention" from the coarse succeeded/failed aggregate.
type RunResult struct {
	Revision string
	Status   RunStatus
	Jobs     []JobResult
}

// Options configures a Runner's concurrency and retry behaviour. New fills
// a zero MaxAttemptsPerJob, RetryBackoff, Logger and Now with defaults;
// NewOptions returns the full default set, including MaxConcurrency.
type Options struct {
	// MaxConcurrency bounds simultaneous in-flight jobs within one layer.
	// Zero means unbounded.
	MaxConcurrency int
	// MaxAttemptsPerJob bounds the total attempts (same-variant retries
	// plus fallback variants) for one job, regardless of how many variants
	// the producer declares.
	MaxAttemptsPerJob int
	// RetryBackoff configures the delay before each attempt after the
	// first (same-variant retry or fallback variant) when the previous
	// error carries no explicit RetryAfterSeconds (grounded on
	// pkg/internal/retry's exponential backoff shape).
	RetryBackoff retry.Config
	// HandlerTimeout bounds a single Handler.Invoke call. Zero means no
	// timeout is applied.
	HandlerTimeout time.Duration
	// Telemetry configures the OpenTelemetry spans emitted around job
	// dispatch. Nil disables telemetry.
	Telemetry *telemetry.Settings
	// Logger receives handler warm-start diagnostics.
	Logger *log.Logger
	// Now returns the current time; overridable for deterministic tests.
	Now func() time.Time
}

// NewOptions returns Options with sensible defaults: concurrency 1 per
// rate key is enforced by the ratelimit.Keyed the caller supplies
// separately, so MaxConcurrency here is the coarser global cap.
func NewOptions() Options {
	return Options{
		MaxConcurrency:    8,
		MaxAttemptsPerJob: 4,
		RetryBackoff:      retry.DefaultConfig(),
		Logger:            log.Default(),
		Now:               time.Now,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxAttemptsPerJob <= 0 {
		o.MaxAttemptsPerJob = 4
	}
	if o.RetryBackoff.MaxRetries == 0 && o.RetryBackoff.InitialDelay == 0 {
		o.RetryBackoff = retry.DefaultConfig()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
