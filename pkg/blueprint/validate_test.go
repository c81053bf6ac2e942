package blueprint

import "testing"

func TestValidateRejectsDuplicateIdentifiers(t *testing.T) {
	t.Parallel()

	n := &Node{
		Inputs:    []InputDecl{{Name: "Foo"}},
		Artifacts: []ArtifactDecl{{Name: "Foo"}},
	}
	if err := n.Validate(); err == nil {
		t.Fatal("expected error for duplicate identifier across kinds")
	}
}

func TestValidateRejectsProducerWithNoVariants(t *testing.T) {
	t.Parallel()

	n := &Node{
		Producers: []ProducerDecl{{Name: "P"}},
	}
	if err := n.Validate(); err == nil {
		t.Fatal("expected error for producer with no variants")
	}
}

func TestValidateRejectsDanglingProduces(t *testing.T) {
	t.Parallel()

	n := &Node{
		Producers: []ProducerDecl{{
			Name:     "P",
			Variants: []ProducerVariant{{Provider: ProviderCustom, ProviderModel: "m", Priority: PriorityMain}},
			Produces: []string{"NoSuchArtifact"},
		}},
	}
	if err := n.Validate(); err == nil {
		t.Fatal("expected error for dangling Produces reference")
	}
}

func TestValidateRejectsFanInWithoutGroupBy(t *testing.T) {
	t.Parallel()

	n := &Node{
		Artifacts: []ArtifactDecl{{Name: "A"}},
		Producers: []ProducerDecl{{
			Name:     "P",
			Variants: []ProducerVariant{{Provider: ProviderCustom, ProviderModel: "m", Priority: PriorityMain}},
			Produces: []string{"A"},
			Inputs:   []ProducerInputDecl{{Alias: "x", Source: SourceFanIn}},
		}},
	}
	if err := n.Validate(); err == nil {
		t.Fatal("expected error for fan-in input missing groupBy")
	}
}

func TestValidateAcceptsWellFormedNode(t *testing.T) {
	t.Parallel()

	n := &Node{
		Inputs:    []InputDecl{{Name: "Count", Type: TypeJSON, Required: true}},
		Artifacts: []ArtifactDecl{{Name: "Script", Type: TypeText}},
		Producers: []ProducerDecl{{
			Name:     "ScriptGeneration",
			Variants: []ProducerVariant{{Provider: ProviderCustom, ProviderModel: "m", Priority: PriorityMain}},
			Produces: []string{"Script"},
			Inputs:   []ProducerInputDecl{{Alias: "count", Source: SourceInput, Ref: "Count"}},
		}},
	}
	if err := n.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultVariantPrefersMain(t *testing.T) {
	t.Parallel()

	p := ProducerDecl{
		Variants: []ProducerVariant{
			{Provider: ProviderCustom, ProviderModel: "fallback-model", Priority: PriorityFallback},
			{Provider: ProviderCustom, ProviderModel: "main-model", Priority: PriorityMain},
		},
	}
	def, ok := p.DefaultVariant()
	if !ok || def.ProviderModel != "main-model" {
		t.Fatalf("DefaultVariant() = %+v, %v", def, ok)
	}
	fallbacks := p.FallbackVariants()
	if len(fallbacks) != 1 || fallbacks[0].ProviderModel != "fallback-model" {
		t.Fatalf("FallbackVariants() = %+v", fallbacks)
	}
}

func TestWalkVisitsChildren(t *testing.T) {
	t.Parallel()

	child := &Node{Namespace: []string{"Child"}}
	root := &Node{Children: []*Node{child}}

	var visited []string
	root.Walk(func(n *Node) { visited = append(visited, n.Qualify("")) })

	if len(visited) != 2 {
		t.Fatalf("expected 2 visited nodes, got %d", len(visited))
	}
}
