// Package blueprint defines the declarative tree of namespaces, inputs,
// artefacts, and producers a project is authored as.
package blueprint

import "strings"

// TypeTag loosely classifies an input or artefact's payload; the set is
// open-ended (handlers and config decide what a tag actually constrains).
type TypeTag string

const (
	TypeText  TypeTag = "text"
	TypeImage TypeTag = "image"
	TypeAudio TypeTag = "audio"
	TypeVideo TypeTag = "video"
	TypeJSON  TypeTag = "json"
)

// Provider identifies the generation backend a ProducerVariant targets.
// The enum is closed except for the custom/internal escape hatches.
type Provider string

const (
	ProviderCustom   Provider = "custom"
	ProviderInternal Provider = "internal"
)

// Priority distinguishes a producer's primary model choice from its
// fallbacks.
type Priority string

const (
	PriorityMain     Priority = "main"
	PriorityFallback Priority = "fallback"
)

// InputDecl declares one input slot on a node.
type InputDecl struct {
	Name     string
	Type     TypeTag
	Required bool
	Default  any
}

// FanOutDim is one `countInput`-driven index dimension an artefact
// instantiates along. Declared order is outermost-first, matching the
// bracket order of the canonical id.
type FanOutDim struct {
	IndexKey   string
	CountInput string
}

// ArtifactDecl declares one artefact slot on a node. An artefact with no
// CountDims exists as a single index-free instance; one with CountDims is
// fanned out over the cartesian product of its dimensions' cardinalities.
type ArtifactDecl struct {
	Name      string
	Type      TypeTag
	CountDims []FanOutDim
}

// ProducerVariant is one provider+model choice available to a producer,
// carrying its own prompt templates and optional response contract.
type ProducerVariant struct {
	Provider       Provider
	ProviderModel  string
	Config         map[string]any
	SystemPrompt   string
	UserPrompt     string
	Variables      []string
	ResponseSchema map[string]any
	TextFormat     string
	Priority       Priority
}

// InputSourceKind discriminates how a ProducerInputDecl is bound during
// planning.
type InputSourceKind string

const (
	SourceInput    InputSourceKind = "input"
	SourceArtifact InputSourceKind = "artifact"
	SourceFanIn    InputSourceKind = "fanin"
)

// ProducerInputDecl declares one named input a producer consumes, and how
// the planner should resolve it.
type ProducerInputDecl struct {
	Alias   string
	Source  InputSourceKind
	Ref     string // Input/Artifact name this binds to (qualified or base)
	GroupBy string // required when Source == SourceFanIn
	OrderBy string // optional when Source == SourceFanIn
}

// ProducerDecl declares one producer slot on a node: the artefacts it
// emits, the inputs it consumes, and its ordered model variants (the first
// with Priority == PriorityMain is the default choice).
type ProducerDecl struct {
	Name     string
	Variants []ProducerVariant
	Produces []string
	Inputs   []ProducerInputDecl
}

// DefaultVariant returns the producer's main variant, falling back to the
// first declared variant if none is explicitly marked main.
func (p ProducerDecl) DefaultVariant() (ProducerVariant, bool) {
	for _, v := range p.Variants {
		if v.Priority == PriorityMain {
			return v, true
		}
	}
	if len(p.Variants) > 0 {
		return p.Variants[0], true
	}
	return ProducerVariant{}, false
}

// FallbackVariants returns the producer's variants in fallback order,
// excluding the default one already attempted.
func (p ProducerDecl) FallbackVariants() []ProducerVariant {
	def, ok := p.DefaultVariant()
	out := make([]ProducerVariant, 0, len(p.Variants))
	for _, v := range p.Variants {
		if ok && v.Provider == def.Provider && v.ProviderModel == def.ProviderModel && v.Priority == def.Priority {
			continue
		}
		out = append(out, v)
	}
	return out
}

// SubBlueprintRef names a child blueprint to inline under this node's
// namespace, aliased by a local segment.
type SubBlueprintRef struct {
	Alias string
	Ref   string
}

// Node is one namespace in the blueprint tree.
type Node struct {
	Namespace     []string
	Inputs        []InputDecl
	Artifacts     []ArtifactDecl
	Producers     []ProducerDecl
	SubBlueprints []SubBlueprintRef
	Children      []*Node // populated by sub-blueprint expansion
}

// Qualify returns name prefixed with this node's namespace path.
func (n *Node) Qualify(name string) string {
	if len(n.Namespace) == 0 {
		return name
	}
	return strings.Join(n.Namespace, ".") + "." + name
}

// Walk visits n and every descendant (post sub-blueprint expansion) in
// namespace order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}
