// Package handler defines the producer handler contract: the boundary
// the runner calls across to invoke a provider, and the constructed
// (non-singleton) registry resolving canonical provider:model strings to
// a Handler.
package handler

import (
	"context"
	"encoding/json"
	"log"

	"github.com/reelforge/reelforge/pkg/pipelineerrors"
)

// ResolvedInput is one input value as bound for a job: either a scalar/
// structured JSON value, or bytes loaded from the blob store for an
// upstream blob-carrying artefact.
type ResolvedInput struct {
	Value json.RawMessage
	Bytes []byte
	// MimeType is set when Bytes is populated.
	MimeType string
}

// FanInGroup is one aggregated group materialised for a fan-in input,
// ordered per the declared orderBy.
type FanInGroup struct {
	GroupKey string
	Members  []ResolvedInput
}

// FanInValue is the `{groupBy, orderBy?, groups[][]}` shape exposed under
// an aliased fan-in input name.
type FanInValue struct {
	GroupBy string
	OrderBy string
	Groups  []FanInGroup
}

// PlannerContext carries the namespace path and fan-out index assignments
// for the job being invoked.
type PlannerContext struct {
	Namespace    []string
	Indices      map[string]int
	MovieID      string
	Revision     string
	Attempt      int
	ArtifactName string
}

// ProviderJobContext is the full argument passed to Handler.Invoke.
type ProviderJobContext struct {
	Context context.Context

	JobID         string
	ProducerID    string
	ProviderModel string

	ResolvedInputs map[string]ResolvedInput
	FanInInputs    map[string]FanInValue

	ProviderConfig json.RawMessage
	SystemPrompt   string
	UserPrompt     string

	Planner PlannerContext
}

// ArtifactOutput is one produced artefact's output, tagged blob vs inline
// exactly as ArtefactEvent.Output is.
type ArtifactOutput struct {
	ArtifactID string

	IsBlob   bool
	Blob     []byte
	MimeType string
	Inline   json.RawMessage

	Succeeded bool
	Err       *pipelineerrors.HandlerError
}

// ProduceResult is a handler's response to one Invoke call: per-artefact
// succeeded/failed outcomes.
type ProduceResult struct {
	Artifacts []ArtifactOutput
}

// Handler is the producer-side contract. Handlers never touch the blob
// store, manifest, or event log directly.
type Handler interface {
	// WarmStart validates credentials and initialises clients. Called once
	// per handler instance before any Invoke; a no-op implementation is
	// valid.
	WarmStart(ctx context.Context, logger *log.Logger) error

	// Invoke executes one job and returns its per-artefact outcomes.
	Invoke(jobCtx ProviderJobContext) (ProduceResult, error)

	// SupportedEnvironments names deployment environments this handler is
	// valid in (e.g. "server", "edge"); empty means unrestricted.
	SupportedEnvironments() []string
}
