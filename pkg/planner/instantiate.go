package planner

import (
	"fmt"

	"github.com/reelforge/reelforge/pkg/blueprint"
	"github.com/reelforge/reelforge/pkg/canonical"
)

// CountResolver returns the fan-out cardinality for a countInput's
// canonical input id, e.g. the length of an array-valued input.
type CountResolver func(countInputCanonicalID string) (int, error)

// ArtifactInstance is one concrete (possibly indexed) artefact produced by
// instantiating an ArtifactDecl's declared fan-out dimensions.
type ArtifactInstance struct {
	Node *blueprint.Node
	Decl blueprint.ArtifactDecl
	ID   canonical.ID
}

// ProducerInstance is one concrete (possibly indexed) producer produced by
// instantiating a ProducerDecl over its produced artefacts' fan-out
// dimensions.
type ProducerInstance struct {
	Node *blueprint.Node
	Decl blueprint.ProducerDecl
	ID   canonical.ID
}

// combinations returns the cartesian product of index assignments for dims,
// in declared (outer-to-inner) order: the first dimension is the outermost
// loop, the last the innermost, matching the "[segment=0][image=2]"-style
// bracket ordering of canonical ids.
func combinations(node *blueprint.Node, dims []blueprint.FanOutDim, countOf CountResolver) ([][]canonical.Index, error) {
	if len(dims) == 0 {
		return [][]canonical.Index{nil}, nil
	}

	counts := make([]int, len(dims))
	for i, d := range dims {
		countInputID := canonical.FormatInputID(node.Namespace, d.CountInput).String()
		n, err := countOf(countInputID)
		if err != nil {
			return nil, fmt.Errorf("planner: resolving fan-out count for %q: %w", countInputID, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("planner: fan-out count for %q is negative (%d)", countInputID, n)
		}
		counts[i] = n
	}

	total := 1
	for _, c := range counts {
		total *= c
	}
	out := make([][]canonical.Index, 0, total)

	var recurse func(depth int, acc []canonical.Index)
	recurse = func(depth int, acc []canonical.Index) {
		if depth == len(dims) {
			out = append(out, append([]canonical.Index(nil), acc...))
			return
		}
		for v := 0; v < counts[depth]; v++ {
			recurse(depth+1, append(acc, canonical.Index{Key: dims[depth].IndexKey, Value: v}))
		}
	}
	recurse(0, nil)
	return out, nil
}

// InstantiateArtifacts expands every ArtifactDecl on node into its concrete
// (indexed) instances.
func InstantiateArtifacts(node *blueprint.Node, countOf CountResolver) ([]ArtifactInstance, error) {
	var out []ArtifactInstance
	for _, decl := range node.Artifacts {
		combos, err := combinations(node, decl.CountDims, countOf)
		if err != nil {
			return nil, fmt.Errorf("planner: instantiating artefact %q: %w", decl.Name, err)
		}
		for _, indices := range combos {
			out = append(out, ArtifactInstance{
				Node: node,
				Decl: decl,
				ID:   canonical.FormatArtifactID(node.Namespace, decl.Name, indices...),
			})
		}
	}
	return out, nil
}

// InstantiateProducers expands every ProducerDecl on node into its concrete
// (indexed) instances, using the fan-out dimensions declared on its first
// produced artefact (a producer's outputs share its index set).
func InstantiateProducers(node *blueprint.Node, countOf CountResolver) ([]ProducerInstance, error) {
	artifactsByName := make(map[string]blueprint.ArtifactDecl, len(node.Artifacts))
	for _, a := range node.Artifacts {
		artifactsByName[a.Name] = a
	}

	var out []ProducerInstance
	for _, decl := range node.Producers {
		var dims []blueprint.FanOutDim
		if len(decl.Produces) > 0 {
			if a, ok := artifactsByName[decl.Produces[0]]; ok {
				dims = a.CountDims
			}
		}
		combos, err := combinations(node, dims, countOf)
		if err != nil {
			return nil, fmt.Errorf("planner: instantiating producer %q: %w", decl.Name, err)
		}
		for _, indices := range combos {
			out = append(out, ProducerInstance{
				Node: node,
				Decl: decl,
				ID:   canonical.FormatProducerID(node.Namespace, decl.Name, indices...),
			})
		}
	}
	return out, nil
}
