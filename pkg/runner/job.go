package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reelforge/reelforge/pkg/blueprint"
	"github.com/reelforge/reelforge/pkg/eventlog"
	"github.com/reelforge/reelforge/pkg/handler"
	"github.com/reelforge/reelforge/pkg/internal/fileutil"
	"github.com/reelforge/reelforge/pkg/internal/retry"
	"github.com/reelforge/reelforge/pkg/pipelineerrors"
	"github.com/reelforge/reelforge/pkg/planner"
	"github.com/reelforge/reelforge/pkg/schema"
	"github.com/reelforge/reelforge/pkg/storage"
	"github.com/reelforge/reelforge/pkg/telemetry"
)

// runJob executes one job to a terminal outcome: resolve inputs, check the
// cache, dispatch through the variant/fallback chain, and persist every
// attempt's ArtefactEvents. It never returns an error itself; a failure
// to resolve inputs or invoke a handler is recorded as a failed JobResult
// so the caller's layer can keep making progress on independent jobs.
func (r *Runner) runJob(ctx context.Context, movieID, revision string, job planner.JobDescriptor, inputs map[string]json.RawMessage) (JobResult, []eventlog.ArtefactEvent) {
	ctx, span := telemetry.StartJobSpan(ctx, r.Opts.Telemetry, "runner.job", telemetry.JobAttributes{
		MovieID: movieID, JobID: job.JobID, RateKey: job.RateKey,
	})
	defer span.End()
	if r.Opts.Telemetry != nil && r.Opts.Telemetry.RecordInputs {
		telemetry.AddSettingsAttributes(span, "producer.config", job.Variant.Config)
	}

	resolved, fanIns, err := r.resolveJobInputs(ctx, movieID, job, inputs)
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		handlerErr := pipelineerrors.NewHandlerError(pipelineerrors.CodeMissingInput, err.Error(), err)
		events := r.recordAttempt(ctx, movieID, revision, job, "", 0, handlerErr)
		return JobResult{JobID: job.JobID, ProducerID: job.ProducerID, Status: JobFailed, Err: handlerErr}, events
	}

	inputsHash, err := computeInputsHash(job, resolved, fanIns, job.Variant)
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		handlerErr := pipelineerrors.NewHandlerError(pipelineerrors.CodeUnknown, err.Error(), err)
		events := r.recordAttempt(ctx, movieID, revision, job, "", 0, handlerErr)
		return JobResult{JobID: job.JobID, ProducerID: job.ProducerID, Status: JobFailed, Err: handlerErr}, events
	}

	if r.isCacheHit(ctx, movieID, job, inputsHash) {
		return JobResult{JobID: job.JobID, ProducerID: job.ProducerID, Status: JobSkipped}, nil
	}

	return r.dispatch(ctx, movieID, revision, job, inputsHash, resolved, fanIns)
}

// isCacheHit reports whether every artefact this job produces already has
// a succeeded event recording this exact inputsHash.
func (r *Runner) isCacheHit(ctx context.Context, movieID string, job planner.JobDescriptor, inputsHash string) bool {
	if len(job.Produces) == 0 {
		return false
	}
	for _, artifactID := range job.Produces {
		ev, ok, err := r.Events.LatestArtefact(ctx, movieID, artifactID)
		if err != nil || !ok {
			return false
		}
		if ev.Status != eventlog.StatusSucceeded || ev.InputsHash != inputsHash {
			return false
		}
	}
	return true
}

// dispatch walks job.Variants in order, invoking the resolved handler
// until one attempt succeeds, a user-action error stops the chain, or the
// attempt budget is exhausted. A retryable failure
// (rate limit, transient provider error) re-attempts the same variant; a
// non-retryable one advances to the next fallback variant. Every attempt,
// either way, counts against MaxAttemptsPerJob.
func (r *Runner) dispatch(ctx context.Context, movieID, revision string, job planner.JobDescriptor, inputsHash string, resolved map[string]handler.ResolvedInput, fanIns map[string]handler.FanInValue) (JobResult, []eventlog.ArtefactEvent) {
	var allEvents []eventlog.ArtefactEvent
	var lastErr error

	attempt := 0
	variantIdx := 0
	for variantIdx < len(job.Variants) {
		attempt++
		if attempt > r.Opts.MaxAttemptsPerJob {
			attempt-- // report the last attempt that actually ran
			break
		}
		variant := job.Variants[variantIdx]
		if attempt > 1 {
			if err := sleepBackoff(ctx, r.Opts.RetryBackoff, attempt, retryAfter(lastErr)); err != nil {
				events := r.recordAttempt(ctx, movieID, revision, job, inputsHash, attempt, pipelineerrors.NewCancelledError(job.JobID, err))
				allEvents = append(allEvents, events...)
				return JobResult{JobID: job.JobID, ProducerID: job.ProducerID, Status: JobFailed, Attempt: attempt, Err: err}, allEvents
			}
		}

		release, err := r.Limiter.Acquire(ctx, job.RateKey)
		if err != nil {
			cancelErr := pipelineerrors.NewCancelledError(job.JobID, err)
			events := r.recordAttempt(ctx, movieID, revision, job, inputsHash, attempt, cancelErr)
			allEvents = append(allEvents, events...)
			return JobResult{JobID: job.JobID, ProducerID: job.ProducerID, Status: JobFailed, Attempt: attempt, Err: cancelErr}, allEvents
		}

		result, invokeErr := r.invokeVariant(ctx, movieID, revision, job, variant, attempt, resolved, fanIns)
		release()

		if invokeErr != nil {
			lastErr = invokeErr
			events := r.recordAttempt(ctx, movieID, revision, job, inputsHash, attempt, invokeErr)
			allEvents = append(allEvents, events...)
			he := pipelineerrors.AsHandlerError(invokeErr)
			if he != nil && he.UserActionRequired {
				return JobResult{JobID: job.JobID, ProducerID: job.ProducerID, Status: JobFailed, Attempt: attempt, Err: invokeErr}, allEvents
			}
			if he == nil || !he.IsRetryable {
				variantIdx++
			}
			continue
		}

		if err := validateResponseSchema(variant, result); err != nil {
			lastErr = err
			events := r.recordAttempt(ctx, movieID, revision, job, inputsHash, attempt, err)
			allEvents = append(allEvents, events...)
			variantIdx++ // a schema violation is deterministic for this variant
			continue
		}

		events, succeeded, failErr := r.persistOutputs(ctx, movieID, revision, job, inputsHash, attempt, variant, result, parentRefs(allEvents))
		allEvents = append(allEvents, events...)
		if succeeded {
			return JobResult{JobID: job.JobID, ProducerID: job.ProducerID, Status: JobSucceeded, Attempt: attempt}, allEvents
		}
		lastErr = failErr
		he := pipelineerrors.AsHandlerError(failErr)
		if he != nil && he.UserActionRequired {
			return JobResult{JobID: job.JobID, ProducerID: job.ProducerID, Status: JobFailed, Attempt: attempt, Err: failErr}, allEvents
		}
		if he == nil || !he.IsRetryable {
			variantIdx++
		}
	}

	return JobResult{JobID: job.JobID, ProducerID: job.ProducerID, Status: JobFailed, Attempt: attempt, Err: lastErr}, allEvents
}

func (r *Runner) invokeVariant(ctx context.Context, movieID, revision string, job planner.JobDescriptor, variant blueprint.ProducerVariant, attempt int, resolved map[string]handler.ResolvedInput, fanIns map[string]handler.FanInValue) (handler.ProduceResult, error) {
	h, err := r.Handlers.Resolve(string(variant.Provider) + ":" + variant.ProviderModel)
	if err != nil {
		return handler.ProduceResult{}, pipelineerrors.NewHandlerError(pipelineerrors.CodeProviderFailure, err.Error(), err)
	}

	invokeCtx := ctx
	var cancel context.CancelFunc
	if r.Opts.HandlerTimeout > 0 {
		invokeCtx, cancel = context.WithTimeout(ctx, r.Opts.HandlerTimeout)
		defer cancel()
	}

	configRaw, err := json.Marshal(variant.Config)
	if err != nil {
		return handler.ProduceResult{}, pipelineerrors.NewHandlerError(pipelineerrors.CodeUnknown, "encoding variant config", err)
	}

	systemPrompt, userPrompt, err := renderVariantPrompts(variant, resolved)
	if err != nil {
		return handler.ProduceResult{}, pipelineerrors.NewHandlerError(pipelineerrors.CodeMissingInput, err.Error(), err)
	}

	artifactName := ""
	if len(job.Produces) > 0 {
		artifactName = job.Produces[0]
	}

	jobCtx := handler.ProviderJobContext{
		Context:        invokeCtx,
		JobID:          job.JobID,
		ProducerID:     job.ProducerID,
		ProviderModel:  variant.ProviderModel,
		ResolvedInputs: resolved,
		FanInInputs:    fanIns,
		ProviderConfig: configRaw,
		SystemPrompt:   systemPrompt,
		UserPrompt:     userPrompt,
		Planner: handler.PlannerContext{
			Namespace:    job.Context.Namespace,
			Indices:      job.Context.Indices,
			MovieID:      movieID,
			Revision:     revision,
			Attempt:      attempt,
			ArtifactName: artifactName,
		},
	}

	result, err := h.Invoke(jobCtx)
	if err != nil {
		if he := pipelineerrors.AsHandlerError(err); he != nil {
			return handler.ProduceResult{}, he
		}
		return handler.ProduceResult{}, pipelineerrors.NewHandlerError(pipelineerrors.CodeUnknown, err.Error(), err)
	}
	return result, nil
}

// validateResponseSchema checks every inline succeeded artefact against
// variant.ResponseSchema, when declared, before the result is persisted.
// A violation is treated as a provider failure eligible for fallback to
// the next variant, the same as any other handler error.
func validateResponseSchema(variant blueprint.ProducerVariant, result handler.ProduceResult) error {
	if len(variant.ResponseSchema) == 0 {
		return nil
	}
	validator := schema.NewJSONSchema(variant.ResponseSchema)
	for _, out := range result.Artifacts {
		if !out.Succeeded || out.IsBlob {
			continue
		}
		var decoded any
		if err := json.Unmarshal(out.Inline, &decoded); err != nil {
			return pipelineerrors.NewHandlerError(pipelineerrors.CodeProviderFailure, "decoding response for schema validation: "+err.Error(), err)
		}
		if err := validator.Validate(decoded); err != nil {
			return pipelineerrors.NewHandlerError(pipelineerrors.CodeProviderFailure, err.Error(), err)
		}
	}
	return nil
}

// parentRefs maps each artefact id to references for the failed events
// earlier attempts of the same job already appended, in the form
// "<artifactId>@attempt=<n>". A fallback attempt's succeeded event carries
// these in its Provenance so the chain it supersedes stays traceable.
func parentRefs(prior []eventlog.ArtefactEvent) map[string][]string {
	var refs map[string][]string
	for _, ev := range prior {
		if ev.Status != eventlog.StatusFailed {
			continue
		}
		if refs == nil {
			refs = make(map[string][]string)
		}
		refs[ev.ArtifactID] = append(refs[ev.ArtifactID], fmt.Sprintf("%s@attempt=%d", ev.ArtifactID, ev.Attempt))
	}
	return refs
}

// persistOutputs writes every succeeded artefact's blob (if any) and
// appends an ArtefactEvent per produced artefact, succeeded or failed.
// succeeded reports whether every artefact in result succeeded.
func (r *Runner) persistOutputs(ctx context.Context, movieID, revision string, job planner.JobDescriptor, inputsHash string, attempt int, variant blueprint.ProducerVariant, result handler.ProduceResult, parents map[string][]string) ([]eventlog.ArtefactEvent, bool, error) {
	now := r.Opts.Now()
	var events []eventlog.ArtefactEvent
	succeeded := true
	var firstErr error

	for _, out := range result.Artifacts {
		ev := eventlog.ArtefactEvent{
			ArtifactID: out.ArtifactID,
			Revision:   revision,
			InputsHash: inputsHash,
			ProducedBy: job.ProducerID,
			Timestamp:  now,
			Attempt:    attempt,
		}

		if !out.Succeeded {
			succeeded = false
			he := out.Err
			if he == nil {
				he = pipelineerrors.NewHandlerError(pipelineerrors.CodeUnknown, "handler reported failure with no detail", nil)
			}
			if firstErr == nil {
				firstErr = he
			}
			ev.Status = eventlog.StatusFailed
			ev.Diagnostics = &eventlog.Diagnostics{
				Code:               string(he.Code),
				Message:            he.Message,
				UserActionRequired: he.UserActionRequired,
			}
			if he.Cause != nil {
				ev.Diagnostics.Cause = he.Cause.Error()
			}
			if err := r.Events.AppendArtefact(ctx, movieID, ev); err != nil {
				return events, false, pipelineerrors.NewStorageError(storage.EventLogPath(movieID), "appending failed artefact event", err)
			}
			events = append(events, ev)
			continue
		}

		if out.IsBlob {
			mimeType := out.MimeType
			if mimeType == "" {
				mimeType = fileutil.DetectMediaType(out.Blob).MimeType
			}
			hash := storage.HashBytes(out.Blob)
			path := storage.BlobPath(movieID, hash, mimeType)
			if err := r.Storage.Write(ctx, path, out.Blob, storage.WriteOptions{MimeType: mimeType}); err != nil {
				storageErr := pipelineerrors.NewStorageError(path, "writing blob output", err)
				succeeded = false
				firstErr = storageErr
				ev.Status = eventlog.StatusFailed
				ev.Diagnostics = &eventlog.Diagnostics{Code: string(pipelineerrors.CodeUnknown), Message: storageErr.Error()}
				_ = r.Events.AppendArtefact(ctx, movieID, ev)
				events = append(events, ev)
				continue
			}
			ev.Output = eventlog.Output{Kind: eventlog.OutputBlob, Blob: &eventlog.BlobRef{Hash: hash, Size: int64(len(out.Blob)), MimeType: mimeType}}
		} else {
			ev.Output = eventlog.Output{Kind: eventlog.OutputInline, Inline: out.Inline}
		}
		ev.Status = eventlog.StatusSucceeded
		ev.Provenance = &eventlog.Provenance{
			GeneratedBy: string(variant.Provider) + ":" + variant.ProviderModel,
			GeneratedAt: now,
			Parents:     parents[out.ArtifactID],
		}

		if err := r.Events.AppendArtefact(ctx, movieID, ev); err != nil {
			return events, false, pipelineerrors.NewStorageError(storage.EventLogPath(movieID), "appending succeeded artefact event", err)
		}
		events = append(events, ev)
	}

	return events, succeeded, firstErr
}

// recordAttempt appends a failed ArtefactEvent for every artefact job
// produces, used when the job could not even be dispatched (missing
// input, cancellation mid-wait) or when its handler failed as a whole
// rather than reporting per-artefact outcomes itself.
func (r *Runner) recordAttempt(ctx context.Context, movieID, revision string, job planner.JobDescriptor, inputsHash string, attempt int, cause error) []eventlog.ArtefactEvent {
	now := r.Opts.Now()
	diag := &eventlog.Diagnostics{Code: string(pipelineerrors.CodeUnknown), Message: cause.Error()}
	if he := pipelineerrors.AsHandlerError(cause); he != nil {
		diag = &eventlog.Diagnostics{
			Code:               string(he.Code),
			Message:            he.Message,
			UserActionRequired: he.UserActionRequired,
		}
	} else if pipelineerrors.IsCancelledError(cause) {
		diag = &eventlog.Diagnostics{Code: "cancelled", Message: cause.Error()}
	}

	var events []eventlog.ArtefactEvent
	for _, artifactID := range job.Produces {
		ev := eventlog.ArtefactEvent{
			ArtifactID:  artifactID,
			Revision:    revision,
			InputsHash:  inputsHash,
			Status:      eventlog.StatusFailed,
			ProducedBy:  job.ProducerID,
			Timestamp:   now,
			Attempt:     attempt,
			Diagnostics: diag,
		}
		if cerr := r.Events.AppendArtefact(ctx, movieID, ev); cerr == nil {
			events = append(events, ev)
		}
	}
	return events
}

func retryAfter(err error) *int {
	if he := pipelineerrors.AsHandlerError(err); he != nil {
		return he.RetryAfterSeconds
	}
	return nil
}

// sleepBackoff waits before each attempt after the first (same-variant
// retry or fallback variant): a handler-specified
// RetryAfterSeconds takes priority, otherwise the exponential schedule
// cfg describes (attempt is the 1-based number of the attempt about to
// run, so attempt 2 waits the schedule's first delay).
func sleepBackoff(ctx context.Context, cfg retry.Config, attempt int, retryAfterSeconds *int) error {
	var delay time.Duration
	if retryAfterSeconds != nil {
		delay = time.Duration(*retryAfterSeconds) * time.Second
	} else {
		delay = cfg.Delay(attempt - 1)
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
