// Package planner transforms a parsed blueprint tree into a layered
// ExecutionPlan: topologically ordered jobs with resolved input bindings,
// fan-in grouping, and rate keys.
package planner

import (
	"time"

	"github.com/reelforge/reelforge/pkg/blueprint"
)

// InputBinding maps a producer's declared input alias to the canonical id
// it resolves to.
type InputBinding struct {
	Alias       string
	CanonicalID string
}

// FanInMember is one artefact instance contributing to a fan-in group.
type FanInMember struct {
	CanonicalID string
	Group       int
	Order       int
}

// FanInDescriptor describes one fan-in input: grouped, optionally ordered,
// members.
type FanInDescriptor struct {
	Alias   string
	GroupBy string
	OrderBy string
	Members []FanInMember
}

// JobContext carries the namespace path, fan-out index assignments, input
// bindings, and fan-in descriptors for one job.
type JobContext struct {
	Namespace     []string
	Indices       map[string]int
	InputBindings []InputBinding
	FanIn         []FanInDescriptor
}

// JobDescriptor is one execution unit.
type JobDescriptor struct {
	JobID string

	ProducerID string // canonical producer id string
	Inputs     []string
	Produces   []string

	Provider      blueprint.Provider
	ProviderModel string
	RateKey       string

	// Variant is the default (main) variant chosen for this job.
	Variant blueprint.ProducerVariant
	// Variants is the full attempt chain: Variant first, then declared
	// fallback variants in order.
	Variants []blueprint.ProducerVariant
	Context  JobContext
}

// Layer is a set of jobs with no dependency among them, safe to run
// concurrently once the prior layer has reached a terminal state for
// every job.
type Layer struct {
	Index int
	Jobs  []JobDescriptor
}

// ExecutionPlan is a revision's full ordered set of layers.
type ExecutionPlan struct {
	Revision         string
	BaseManifestHash string
	Layers           []Layer
	CreatedAt        time.Time
	// PlanHash is the deterministic fingerprint over the layered job set.
	PlanHash string
}

// AllJobs flattens every layer's jobs in layer order.
func (p ExecutionPlan) AllJobs() []JobDescriptor {
	var out []JobDescriptor
	for _, l := range p.Layers {
		out = append(out, l.Jobs...)
	}
	return out
}
