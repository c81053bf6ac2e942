package parser

import "github.com/reelforge/reelforge/pkg/blueprint"

// Library resolves a sub-blueprint reference name to its (unexpanded)
// template node. Templates may themselves declare SubBlueprints, expanded
// transitively.
type Library map[string]*blueprint.Node

// ExpandSubBlueprints returns a copy of root with every SubBlueprintRef
// (transitively) resolved against library: each reference creates a child
// node whose namespace path is parent+alias. Detects cycles in the
// reference graph; the planner separately detects cycles among producer
// jobs once artefacts and producers are instantiated.
func ExpandSubBlueprints(root *blueprint.Node, library Library) (*blueprint.Node, error) {
	return expand(root, library, nil)
}

func expand(n *blueprint.Node, library Library, visiting []string) (*blueprint.Node, error) {
	out := &blueprint.Node{
		Namespace: append([]string(nil), n.Namespace...),
		Inputs:    append([]blueprint.InputDecl(nil), n.Inputs...),
		Artifacts: append([]blueprint.ArtifactDecl(nil), n.Artifacts...),
		Producers: append([]blueprint.ProducerDecl(nil), n.Producers...),
	}

	for _, ref := range n.SubBlueprints {
		for _, v := range visiting {
			if v == ref.Ref {
				return nil, cycleError(append(visiting, ref.Ref))
			}
		}

		tmpl, ok := library[ref.Ref]
		if !ok {
			return nil, unknownRefError(ref.Ref)
		}

		child := &blueprint.Node{
			Namespace:     append(append([]string(nil), out.Namespace...), ref.Alias),
			Inputs:        tmpl.Inputs,
			Artifacts:     tmpl.Artifacts,
			Producers:     tmpl.Producers,
			SubBlueprints: tmpl.SubBlueprints,
		}
		expandedChild, err := expand(child, library, append(visiting, ref.Ref))
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, expandedChild)
	}

	for _, c := range n.Children {
		expandedChild, err := expand(c, library, visiting)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, expandedChild)
	}

	return out, nil
}

type cycleErr struct{ path []string }

func (e *cycleErr) Error() string {
	msg := "blueprint: cyclic sub-blueprint reference: "
	for i, p := range e.path {
		if i > 0 {
			msg += " -> "
		}
		msg += p
	}
	return msg
}

func cycleError(path []string) error { return &cycleErr{path: path} }

type unknownRefErr struct{ ref string }

func (e *unknownRefErr) Error() string {
	return "blueprint: sub-blueprint reference " + e.ref + " not found in library"
}

func unknownRefError(ref string) error { return &unknownRefErr{ref: ref} }
