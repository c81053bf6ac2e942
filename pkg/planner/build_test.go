package planner_test

import (
	"testing"

	"github.com/reelforge/reelforge/pkg/blueprint"
	"github.com/reelforge/reelforge/pkg/pipelineerrors"
	"github.com/reelforge/reelforge/pkg/planner"
)

func simpleTwoLayerBlueprint() *blueprint.Node {
	return &blueprint.Node{
		Inputs: []blueprint.InputDecl{
			{Name: "Topic", Type: blueprint.TypeText, Required: true},
		},
		Artifacts: []blueprint.ArtifactDecl{
			{Name: "Script", Type: blueprint.TypeText},
			{Name: "Narration", Type: blueprint.TypeAudio},
		},
		Producers: []blueprint.ProducerDecl{
			{
				Name:     "ScriptGeneration",
				Produces: []string{"Script"},
				Inputs: []blueprint.ProducerInputDecl{
					{Alias: "Topic", Source: blueprint.SourceInput, Ref: "Topic"},
				},
				Variants: []blueprint.ProducerVariant{
					{Provider: blueprint.ProviderCustom, ProviderModel: "gpt-4o", Priority: blueprint.PriorityMain},
				},
			},
			{
				Name:     "NarrationGeneration",
				Produces: []string{"Narration"},
				Inputs: []blueprint.ProducerInputDecl{
					{Alias: "Script", Source: blueprint.SourceArtifact, Ref: "Script"},
				},
				Variants: []blueprint.ProducerVariant{
					{Provider: blueprint.ProviderCustom, ProviderModel: "tts-1", Priority: blueprint.PriorityMain},
				},
			},
		},
	}
}

func TestBuildOrdersDependentLayers(t *testing.T) {
	t.Parallel()
	root := simpleTwoLayerBlueprint()

	plan, err := planner.Build(root, "rev-1", "", func(string) (int, error) { return 0, nil }, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(plan.Layers) != 2 {
		t.Fatalf("expected 2 layers, got %d: %+v", len(plan.Layers), plan.Layers)
	}
	if plan.Layers[0].Jobs[0].ProducerID != "Producer:ScriptGeneration" {
		t.Fatalf("expected ScriptGeneration first, got %+v", plan.Layers[0].Jobs)
	}
	if plan.Layers[1].Jobs[0].ProducerID != "Producer:NarrationGeneration" {
		t.Fatalf("expected NarrationGeneration second, got %+v", plan.Layers[1].Jobs)
	}
	if plan.Layers[1].Jobs[0].Inputs[0] != "Artifact:Script" {
		t.Fatalf("expected NarrationGeneration to bind Artifact:Script, got %+v", plan.Layers[1].Jobs[0].Inputs)
	}
	if plan.PlanHash == "" {
		t.Fatalf("expected non-empty plan hash")
	}
}

func TestBuildAssignsDefaultRateKey(t *testing.T) {
	t.Parallel()
	root := simpleTwoLayerBlueprint()
	plan, err := planner.Build(root, "rev-1", "", func(string) (int, error) { return 0, nil }, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.Layers[0].Jobs[0].RateKey != "custom:gpt-4o" {
		t.Fatalf("got %q", plan.Layers[0].Jobs[0].RateKey)
	}
}

func TestBuildHashIsDeterministic(t *testing.T) {
	t.Parallel()
	countOf := func(string) (int, error) { return 0, nil }

	plan1, err := planner.Build(simpleTwoLayerBlueprint(), "rev-1", "base-hash", countOf, nil)
	if err != nil {
		t.Fatal(err)
	}
	plan2, err := planner.Build(simpleTwoLayerBlueprint(), "rev-1", "base-hash", countOf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan1.PlanHash != plan2.PlanHash {
		t.Fatalf("expected identical plan hash for identical inputs, got %q vs %q", plan1.PlanHash, plan2.PlanHash)
	}
}

func TestBuildHashChangesWithBaseManifestHash(t *testing.T) {
	t.Parallel()
	countOf := func(string) (int, error) { return 0, nil }

	plan1, err := planner.Build(simpleTwoLayerBlueprint(), "rev-1", "base-a", countOf, nil)
	if err != nil {
		t.Fatal(err)
	}
	plan2, err := planner.Build(simpleTwoLayerBlueprint(), "rev-1", "base-b", countOf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan1.PlanHash == plan2.PlanHash {
		t.Fatalf("expected different base manifest hash to change the plan hash")
	}
}

func TestBuildRateKeyOverride(t *testing.T) {
	t.Parallel()
	root := simpleTwoLayerBlueprint()
	override := func(provider blueprint.Provider, model string) (string, bool) {
		if model == "gpt-4o" {
			return "shared-pool", true
		}
		return "", false
	}

	plan, err := planner.Build(root, "rev-1", "", func(string) (int, error) { return 0, nil }, override)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.Layers[0].Jobs[0].RateKey != "shared-pool" {
		t.Fatalf("got %q", plan.Layers[0].Jobs[0].RateKey)
	}
}

func TestBuildDetectsProducerCycle(t *testing.T) {
	t.Parallel()
	root := &blueprint.Node{
		Artifacts: []blueprint.ArtifactDecl{
			{Name: "A", Type: blueprint.TypeText},
			{Name: "B", Type: blueprint.TypeText},
		},
		Producers: []blueprint.ProducerDecl{
			{
				Name:     "MakeA",
				Produces: []string{"A"},
				Inputs: []blueprint.ProducerInputDecl{
					{Alias: "B", Source: blueprint.SourceArtifact, Ref: "B"},
				},
				Variants: []blueprint.ProducerVariant{
					{Provider: blueprint.ProviderCustom, ProviderModel: "m", Priority: blueprint.PriorityMain},
				},
			},
			{
				Name:     "MakeB",
				Produces: []string{"B"},
				Inputs: []blueprint.ProducerInputDecl{
					{Alias: "A", Source: blueprint.SourceArtifact, Ref: "A"},
				},
				Variants: []blueprint.ProducerVariant{
					{Provider: blueprint.ProviderCustom, ProviderModel: "m", Priority: blueprint.PriorityMain},
				},
			},
		},
	}

	_, err := planner.Build(root, "rev-1", "", func(string) (int, error) { return 0, nil }, nil)
	if err == nil {
		t.Fatal("expected Build to reject a cyclic producer graph")
	}
	if !pipelineerrors.IsPlanError(err) {
		t.Fatalf("expected a PlanError, got %T: %v", err, err)
	}
}

func TestBuildFanOutAndFanIn(t *testing.T) {
	t.Parallel()
	root := &blueprint.Node{
		Inputs: []blueprint.InputDecl{
			{Name: "SegmentCount", Type: blueprint.TypeJSON, Required: true},
		},
		Artifacts: []blueprint.ArtifactDecl{
			{
				Name:      "Segment",
				Type:      blueprint.TypeVideo,
				CountDims: []blueprint.FanOutDim{{IndexKey: "segment", CountInput: "SegmentCount"}},
			},
			{Name: "Montage", Type: blueprint.TypeVideo},
		},
		Producers: []blueprint.ProducerDecl{
			{
				Name:     "SegmentGeneration",
				Produces: []string{"Segment"},
				Variants: []blueprint.ProducerVariant{
					{Provider: blueprint.ProviderCustom, ProviderModel: "video-1", Priority: blueprint.PriorityMain},
				},
			},
			{
				Name:     "MontageAssembly",
				Produces: []string{"Montage"},
				Inputs: []blueprint.ProducerInputDecl{
					{Alias: "Segments", Source: blueprint.SourceFanIn, Ref: "Segment", GroupBy: "segment"},
				},
				Variants: []blueprint.ProducerVariant{
					{Provider: blueprint.ProviderInternal, ProviderModel: "assembler", Priority: blueprint.PriorityMain},
				},
			},
		},
	}

	plan, err := planner.Build(root, "rev-1", "", func(string) (int, error) { return 3, nil }, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(plan.Layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(plan.Layers))
	}
	if len(plan.Layers[0].Jobs) != 3 {
		t.Fatalf("expected 3 fanned-out SegmentGeneration jobs, got %d", len(plan.Layers[0].Jobs))
	}
	montage := plan.Layers[1].Jobs[0]
	if montage.Context.FanIn == nil || len(montage.Context.FanIn[0].Members) != 3 {
		t.Fatalf("expected montage fan-in to collect 3 members, got %+v", montage.Context.FanIn)
	}
	if len(montage.Inputs) != 3 {
		t.Fatalf("expected montage job inputs to list all 3 fan-in members, got %+v", montage.Inputs)
	}
}
