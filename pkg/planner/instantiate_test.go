package planner_test

import (
	"testing"

	"github.com/reelforge/reelforge/pkg/blueprint"
	"github.com/reelforge/reelforge/pkg/planner"
)

func TestInstantiateArtifactsNoFanOut(t *testing.T) {
	t.Parallel()
	node := &blueprint.Node{
		Artifacts: []blueprint.ArtifactDecl{{Name: "Narration", Type: blueprint.TypeText}},
	}

	got, err := planner.InstantiateArtifacts(node, func(string) (int, error) { return 0, nil })
	if err != nil {
		t.Fatalf("InstantiateArtifacts: %v", err)
	}
	if len(got) != 1 || len(got[0].ID.Indices) != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestInstantiateArtifactsSingleDimFanOut(t *testing.T) {
	t.Parallel()
	node := &blueprint.Node{
		Artifacts: []blueprint.ArtifactDecl{{
			Name: "Segment",
			Type: blueprint.TypeVideo,
			CountDims: []blueprint.FanOutDim{
				{IndexKey: "segment", CountInput: "SegmentCount"},
			},
		}},
	}

	got, err := planner.InstantiateArtifacts(node, func(id string) (int, error) { return 3, nil })
	if err != nil {
		t.Fatalf("InstantiateArtifacts: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(got))
	}
	for i, inst := range got {
		v, ok := inst.ID.IndexValue("segment")
		if !ok || v != i {
			t.Fatalf("instance %d: got index %v", i, inst.ID.Indices)
		}
	}
}

func TestInstantiateArtifactsNestedDimsDeclaredOrder(t *testing.T) {
	t.Parallel()
	node := &blueprint.Node{
		Artifacts: []blueprint.ArtifactDecl{{
			Name: "Frame",
			Type: blueprint.TypeImage,
			CountDims: []blueprint.FanOutDim{
				{IndexKey: "segment", CountInput: "SegmentCount"},
				{IndexKey: "image", CountInput: "ImagesPerSegment"},
			},
		}},
	}

	counts := map[string]int{"Input:SegmentCount": 2, "Input:ImagesPerSegment": 2}
	got, err := planner.InstantiateArtifacts(node, func(id string) (int, error) { return counts[id], nil })
	if err != nil {
		t.Fatalf("InstantiateArtifacts: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 instances, got %d", len(got))
	}
	if got[0].ID.String() != "Artifact:Frame[segment=0][image=0]" {
		t.Fatalf("expected declared bracket order segment-then-image, got %s", got[0].ID.String())
	}
	if got[len(got)-1].ID.String() != "Artifact:Frame[segment=1][image=1]" {
		t.Fatalf("got %s", got[len(got)-1].ID.String())
	}
}

func TestInstantiateProducersSharesArtifactDims(t *testing.T) {
	t.Parallel()
	node := &blueprint.Node{
		Artifacts: []blueprint.ArtifactDecl{{
			Name:      "Segment",
			Type:      blueprint.TypeVideo,
			CountDims: []blueprint.FanOutDim{{IndexKey: "segment", CountInput: "SegmentCount"}},
		}},
		Producers: []blueprint.ProducerDecl{{
			Name:     "SegmentGeneration",
			Produces: []string{"Segment"},
			Variants: []blueprint.ProducerVariant{{Provider: blueprint.ProviderCustom, ProviderModel: "m", Priority: blueprint.PriorityMain}},
		}},
	}

	got, err := planner.InstantiateProducers(node, func(string) (int, error) { return 2, nil })
	if err != nil {
		t.Fatalf("InstantiateProducers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 producer instances, got %d", len(got))
	}
}
