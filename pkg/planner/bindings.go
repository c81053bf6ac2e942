package planner

import (
	"fmt"
	"sort"

	"github.com/reelforge/reelforge/pkg/blueprint"
	"github.com/reelforge/reelforge/pkg/canonical"
)

// ArtifactCatalog indexes every instantiated artefact by its declared
// (pre-index) qualified name, supporting the same exact/base-name
// resolution rules as canonical.Resolver but without collapsing distinct
// fan-out instances of the same declaration into an ambiguity error.
type ArtifactCatalog struct {
	byQualified  map[string][]ArtifactInstance
	byBase       map[string][]string
	knownDeclare map[string]bool
}

// NewArtifactCatalog builds a catalog over every instantiated artefact.
func NewArtifactCatalog(instances []ArtifactInstance) *ArtifactCatalog {
	c := &ArtifactCatalog{
		byQualified:  make(map[string][]ArtifactInstance),
		byBase:       make(map[string][]string),
		knownDeclare: make(map[string]bool),
	}
	for _, inst := range instances {
		q := inst.ID.Qualified
		c.byQualified[q] = append(c.byQualified[q], inst)
		if !c.knownDeclare[q] {
			c.knownDeclare[q] = true
			base := inst.ID.BaseName()
			c.byBase[base] = append(c.byBase[base], q)
		}
	}
	return c
}

// Resolve maps a producer's declared Ref (qualified or base artefact name)
// to the single declared qualified name it denotes.
func (c *ArtifactCatalog) Resolve(ref string) (string, error) {
	if c.knownDeclare[ref] {
		return ref, nil
	}
	if qs, ok := c.byBase[ref]; ok {
		if len(qs) == 1 {
			return qs[0], nil
		}
		return "", fmt.Errorf("planner: ambiguous artefact reference %q: candidates %v", ref, qs)
	}
	return "", fmt.Errorf("planner: unknown artefact reference %q", ref)
}

// Instances returns every instantiated artefact declared under qualified.
func (c *ArtifactCatalog) Instances(qualified string) []ArtifactInstance {
	return c.byQualified[qualified]
}

// BindingResolver resolves a producer instance's declared inputs to
// concrete canonical ids and fan-in descriptors.
type BindingResolver struct {
	artifacts *ArtifactCatalog
	inputs    *canonical.Resolver
}

// NewBindingResolver builds a BindingResolver over the full set of
// instantiated artefacts and the known input catalogue.
func NewBindingResolver(artifacts *ArtifactCatalog, inputs *canonical.Resolver) *BindingResolver {
	return &BindingResolver{artifacts: artifacts, inputs: inputs}
}

// sharesIndexKeys reports whether a and b agree on every index key they
// both declare.
func sharesIndexKeys(a, b []canonical.Index) bool {
	av := make(map[string]int, len(a))
	for _, idx := range a {
		av[idx.Key] = idx.Value
	}
	for _, idx := range b {
		if v, ok := av[idx.Key]; ok && v != idx.Value {
			return false
		}
	}
	return true
}

// Bind resolves every declared input of producer into an InputBinding or
// FanInDescriptor, returning the job's context and the ordered list of
// canonical input ids referenced (for layering).
func (br *BindingResolver) Bind(producer ProducerInstance) (JobContext, []string, error) {
	ctx := JobContext{
		Namespace: producer.Node.Namespace,
		Indices:   make(map[string]int, len(producer.ID.Indices)),
	}
	for _, idx := range producer.ID.Indices {
		ctx.Indices[idx.Key] = idx.Value
	}

	var inputIDs []string
	for _, decl := range producer.Decl.Inputs {
		switch decl.Source {
		case blueprint.SourceInput:
			id, err := br.bindInput(producer, decl)
			if err != nil {
				return JobContext{}, nil, err
			}
			ctx.InputBindings = append(ctx.InputBindings, InputBinding{Alias: decl.Alias, CanonicalID: id})
			inputIDs = append(inputIDs, id)

		case blueprint.SourceArtifact:
			id, err := br.bindArtifact(producer, decl)
			if err != nil {
				return JobContext{}, nil, err
			}
			ctx.InputBindings = append(ctx.InputBindings, InputBinding{Alias: decl.Alias, CanonicalID: id})
			inputIDs = append(inputIDs, id)

		case blueprint.SourceFanIn:
			fanIn, members, err := br.bindFanIn(producer, decl)
			if err != nil {
				return JobContext{}, nil, err
			}
			ctx.FanIn = append(ctx.FanIn, fanIn)
			inputIDs = append(inputIDs, members...)

		default:
			return JobContext{}, nil, fmt.Errorf("planner: producer %q input %q has unknown source %q", producer.Decl.Name, decl.Alias, decl.Source)
		}
	}
	return ctx, inputIDs, nil
}

func (br *BindingResolver) bindInput(producer ProducerInstance, decl blueprint.ProducerInputDecl) (string, error) {
	producerScoped := canonical.FormatProducerScopedInputID(producer.Node.Qualify(producer.Decl.Name), decl.Ref)
	if _, err := br.inputs.Resolve(producerScoped.String()); err == nil {
		return producerScoped.String(), nil
	}

	id, err := br.inputs.ResolveInput(decl.Ref)
	if err != nil {
		return "", fmt.Errorf("planner: producer %q binding input %q: %w", producer.Decl.Name, decl.Alias, err)
	}
	return id.String(), nil
}

func (br *BindingResolver) bindArtifact(producer ProducerInstance, decl blueprint.ProducerInputDecl) (string, error) {
	qualified, err := br.artifacts.Resolve(decl.Ref)
	if err != nil {
		return "", fmt.Errorf("planner: producer %q binding artefact %q: %w", producer.Decl.Name, decl.Alias, err)
	}
	instances := br.artifacts.Instances(qualified)

	var matches []ArtifactInstance
	for _, inst := range instances {
		if len(inst.ID.Indices) <= len(producer.ID.Indices) && sharesIndexKeys(producer.ID.Indices, inst.ID.Indices) {
			matches = append(matches, inst)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("planner: producer %q input %q: no artefact instance of %q matches its index assignment", producer.Decl.Name, decl.Alias, qualified)
	case 1:
		return matches[0].ID.String(), nil
	default:
		return "", fmt.Errorf("planner: producer %q input %q: artefact %q is ambiguous across %d instances (declare a fan-in instead)", producer.Decl.Name, decl.Alias, qualified, len(matches))
	}
}

func (br *BindingResolver) bindFanIn(producer ProducerInstance, decl blueprint.ProducerInputDecl) (FanInDescriptor, []string, error) {
	qualified, err := br.artifacts.Resolve(decl.Ref)
	if err != nil {
		return FanInDescriptor{}, nil, fmt.Errorf("planner: producer %q binding fan-in %q: %w", producer.Decl.Name, decl.Alias, err)
	}
	instances := br.artifacts.Instances(qualified)

	fanIn := FanInDescriptor{Alias: decl.Alias, GroupBy: decl.GroupBy, OrderBy: decl.OrderBy}
	var memberIDs []string
	for _, inst := range instances {
		if !sharesIndexKeys(producer.ID.Indices, inst.ID.Indices) {
			continue
		}
		groupVal, ok := inst.ID.IndexValue(decl.GroupBy)
		if !ok {
			continue
		}
		orderVal := 0
		if decl.OrderBy != "" {
			if v, ok := inst.ID.IndexValue(decl.OrderBy); ok {
				orderVal = v
			}
		}
		fanIn.Members = append(fanIn.Members, FanInMember{CanonicalID: inst.ID.String(), Group: groupVal, Order: orderVal})
		memberIDs = append(memberIDs, inst.ID.String())
	}

	sort.Slice(fanIn.Members, func(i, j int) bool {
		if fanIn.Members[i].Group != fanIn.Members[j].Group {
			return fanIn.Members[i].Group < fanIn.Members[j].Group
		}
		return fanIn.Members[i].Order < fanIn.Members[j].Order
	})

	if len(fanIn.Members) == 0 {
		return FanInDescriptor{}, nil, fmt.Errorf("planner: producer %q fan-in %q matched no artefact instances of %q", producer.Decl.Name, decl.Alias, qualified)
	}
	return fanIn, memberIDs, nil
}
