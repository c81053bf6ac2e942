package blueprint

import "fmt"

// Validate checks a single node's structural invariants:
// identifiers unique within the node, and every producer's Produces list
// refers to a declared artefact. Cross-node concerns (sub-blueprint
// resolution, cycle detection) are the parser's job once it has access to
// the module library.
func (n *Node) Validate() error {
	seen := make(map[string]string, len(n.Inputs)+len(n.Artifacts)+len(n.Producers))
	check := func(kind, name string) error {
		if prior, ok := seen[name]; ok {
			return fmt.Errorf("blueprint: duplicate identifier %q in namespace %q (declared as %s, redeclared as %s)",
				name, n.Qualify(""), prior, kind)
		}
		seen[name] = kind
		return nil
	}

	for _, in := range n.Inputs {
		if err := check("input", in.Name); err != nil {
			return err
		}
	}
	artifactNames := make(map[string]struct{}, len(n.Artifacts))
	for _, a := range n.Artifacts {
		if err := check("artifact", a.Name); err != nil {
			return err
		}
		artifactNames[a.Name] = struct{}{}
	}
	for _, p := range n.Producers {
		if err := check("producer", p.Name); err != nil {
			return err
		}
		if len(p.Variants) == 0 {
			return fmt.Errorf("blueprint: producer %q in namespace %q declares no variants", p.Name, n.Qualify(""))
		}
		for _, produced := range p.Produces {
			if _, ok := artifactNames[produced]; !ok {
				return fmt.Errorf("blueprint: producer %q references undeclared artefact %q", p.Name, produced)
			}
		}
		for _, in := range p.Inputs {
			if in.Source == SourceFanIn && in.GroupBy == "" {
				return fmt.Errorf("blueprint: producer %q input %q is fan-in but declares no groupBy", p.Name, in.Alias)
			}
		}
	}

	aliases := make(map[string]struct{}, len(n.SubBlueprints))
	for _, ref := range n.SubBlueprints {
		if _, ok := aliases[ref.Alias]; ok {
			return fmt.Errorf("blueprint: duplicate sub-blueprint alias %q in namespace %q", ref.Alias, n.Qualify(""))
		}
		if err := check("sub-blueprint", ref.Alias); err != nil {
			return err
		}
		aliases[ref.Alias] = struct{}{}
	}

	return nil
}

// ValidateTree validates n and every already-expanded descendant.
func (n *Node) ValidateTree() error {
	var first error
	n.Walk(func(node *Node) {
		if first != nil {
			return
		}
		if err := node.Validate(); err != nil {
			first = err
		}
	})
	return first
}
