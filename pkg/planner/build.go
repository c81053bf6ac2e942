package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/pkg/blueprint"
	"github.com/reelforge/reelforge/pkg/canonical"
	"github.com/reelforge/reelforge/pkg/pipelineerrors"
)

// planError tags err as a *pipelineerrors.PlanError unless it already is
// one, so every failure out of Build carries the taxonomy callers switch on.
func planError(reason string, err error) error {
	if pipelineerrors.IsPlanError(err) {
		return err
	}
	return pipelineerrors.NewPlanError(reason, err.Error(), err)
}

// RateKeyOverride looks up a catalog override for a provider+model pair,
// returning ("", false) to fall back to the default `<provider>:<model>`
// rate key.
type RateKeyOverride func(provider blueprint.Provider, providerModel string) (string, bool)

// Build compiles root's (already sub-blueprint-expanded) tree into an
// ExecutionPlan: instantiate artefacts and producers, bind every producer
// instance's inputs, then Kahn-sort the resulting jobs into layers.
func Build(root *blueprint.Node, revision, baseManifestHash string, countOf CountResolver, rateKeys RateKeyOverride) (ExecutionPlan, error) {
	var allArtifacts []ArtifactInstance
	var allProducers []ProducerInstance
	var allInputIDs []canonical.ID

	var walkErr error
	root.Walk(func(n *blueprint.Node) {
		if walkErr != nil {
			return
		}
		for _, in := range n.Inputs {
			allInputIDs = append(allInputIDs, canonical.FormatInputID(n.Namespace, in.Name))
		}
		arts, err := InstantiateArtifacts(n, countOf)
		if err != nil {
			walkErr = err
			return
		}
		allArtifacts = append(allArtifacts, arts...)

		prods, err := InstantiateProducers(n, countOf)
		if err != nil {
			walkErr = err
			return
		}
		allProducers = append(allProducers, prods...)

		for _, p := range prods {
			for _, in := range p.Decl.Inputs {
				if in.Source != blueprint.SourceInput {
					continue
				}
				allInputIDs = append(allInputIDs, canonical.FormatProducerScopedInputID(n.Qualify(p.Decl.Name), in.Ref))
			}
		}
	})
	if walkErr != nil {
		return ExecutionPlan{}, planError("instantiation", walkErr)
	}

	catalog := NewArtifactCatalog(allArtifacts)
	inputResolver := canonical.NewResolver(allInputIDs)
	binder := NewBindingResolver(catalog, inputResolver)

	producedBy := make(map[string]int) // artefact canonical id -> job index
	jobs := make([]JobDescriptor, 0, len(allProducers))

	for _, p := range allProducers {
		variant, ok := p.Decl.DefaultVariant()
		if !ok {
			return ExecutionPlan{}, pipelineerrors.NewPlanError("unknown_producer", fmt.Sprintf("producer %q declares no variants", p.Decl.Name), nil)
		}

		ctx, inputIDs, err := binder.Bind(p)
		if err != nil {
			return ExecutionPlan{}, planError("dangling_reference", err)
		}

		var produces []string
		for _, name := range p.Decl.Produces {
			qualified, err := catalog.Resolve(name)
			if err != nil {
				return ExecutionPlan{}, pipelineerrors.NewPlanError("dangling_reference", fmt.Sprintf("producer %q produces unresolvable artefact %q", p.Decl.Name, name), err)
			}
			for _, inst := range catalog.Instances(qualified) {
				if sharesIndexKeys(p.ID.Indices, inst.ID.Indices) {
					produces = append(produces, inst.ID.String())
				}
			}
		}

		rateKey := string(variant.Provider) + ":" + variant.ProviderModel
		if rateKeys != nil {
			if override, ok := rateKeys(variant.Provider, variant.ProviderModel); ok {
				rateKey = override
			}
		}

		variants := append([]blueprint.ProducerVariant{variant}, p.Decl.FallbackVariants()...)

		job := JobDescriptor{
			JobID:         uuid.NewString(),
			ProducerID:    p.ID.String(),
			Inputs:        inputIDs,
			Produces:      produces,
			Provider:      variant.Provider,
			ProviderModel: variant.ProviderModel,
			RateKey:       rateKey,
			Variant:       variant,
			Variants:      variants,
			Context:       ctx,
		}
		idx := len(jobs)
		jobs = append(jobs, job)
		for _, artID := range produces {
			producedBy[artID] = idx
		}
	}

	layers, err := layerJobs(jobs, producedBy)
	if err != nil {
		return ExecutionPlan{}, planError("cycle", err)
	}

	plan := ExecutionPlan{
		Revision:         revision,
		BaseManifestHash: baseManifestHash,
		Layers:           layers,
		CreatedAt:        time.Now().UTC(),
	}
	hash, err := ComputeHash(plan)
	if err != nil {
		return ExecutionPlan{}, err
	}
	plan.PlanHash = hash
	if plan.Revision == "" {
		// Revision defaults to the plan fingerprint, so identical inputs
		// always replan under the same revision id.
		plan.Revision = hash
	}
	return plan, nil
}

// layerJobs Kahn-sorts jobs into layers: layer k holds every job whose
// artefact-sourced inputs are all produced in an earlier layer. Within a
// layer, order is stable by canonical producer id.
func layerJobs(jobs []JobDescriptor, producedBy map[string]int) ([]Layer, error) {
	n := len(jobs)
	deps := make([][]int, n) // job -> jobs it depends on
	for i, job := range jobs {
		seen := make(map[int]bool)
		for _, inputID := range job.Inputs {
			producerIdx, ok := producedBy[inputID]
			if !ok || producerIdx == i || seen[producerIdx] {
				continue
			}
			seen[producerIdx] = true
			deps[i] = append(deps[i], producerIdx)
		}
	}

	resolved := make([]bool, n)
	remaining := n
	layerIndex := 0
	var layers []Layer

	for remaining > 0 {
		var ready []int
		for i := 0; i < n; i++ {
			if resolved[i] {
				continue
			}
			ok := true
			for _, d := range deps[i] {
				if !resolved[d] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, i)
			}
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("planner: cycle detected among producer jobs")
		}

		sort.Slice(ready, func(a, b int) bool { return jobs[ready[a]].ProducerID < jobs[ready[b]].ProducerID })

		var layerJobs []JobDescriptor
		for _, idx := range ready {
			resolved[idx] = true
			layerJobs = append(layerJobs, jobs[idx])
		}
		layers = append(layers, Layer{Index: layerIndex, Jobs: layerJobs})
		remaining -= len(ready)
		layerIndex++
	}
	return layers, nil
}
