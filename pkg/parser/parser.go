// Package parser loads a rooted blueprint tree and an inputs document into
// the normalised shape the planner consumes: a fully sub-blueprint-expanded
// *blueprint.Node plus a LoadedInputs carrying canonicalised input values
// and resolved model selections. Reading the blueprint/inputs files off
// disk (YAML/TOML/JSON decoding) is an external loader's job; this package
// only takes already-decoded documents and does the canonicalisation,
// expansion, and resolution.
package parser

import (
	"encoding/json"
	"fmt"

	"github.com/reelforge/reelforge/pkg/blueprint"
	"github.com/reelforge/reelforge/pkg/canonical"
	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/pipelineerrors"
)

// InquiryPromptInputName is the magic top-level inputs-document key that
// bypasses normal resolution and is always injected at
// Input:InquiryPrompt.
const InquiryPromptInputName = "InquiryPrompt"

// LoadedInputs is the parser's output: every resolved input value keyed by
// canonical id string, plus the merged model-selection list.
type LoadedInputs struct {
	Values          map[string]json.RawMessage
	ModelSelections []ModelSelection
}

// Load expands root's sub-blueprint references against library, validates
// the resulting tree, resolves inputsDoc against it, merges model
// selections, and injects selection config and the InquiryPrompt override
// back into the returned input map. All errors are fatal ParseErrors.
func Load(root *blueprint.Node, library Library, inputsDoc config.InputsDocument) (*blueprint.Node, LoadedInputs, error) {
	expanded, err := ExpandSubBlueprints(root, library)
	if err != nil {
		return nil, LoadedInputs{}, pipelineerrors.NewParseError("blueprint", "expanding sub-blueprints", err)
	}
	if err := expanded.ValidateTree(); err != nil {
		return nil, LoadedInputs{}, pipelineerrors.NewParseError("blueprint", "validating expanded tree", err)
	}

	producers := NewProducerCatalog(expanded)

	selections, plainInputs, err := mergeModelSelections(inputsDoc, producers)
	if err != nil {
		return nil, LoadedInputs{}, pipelineerrors.NewParseError("inputs", "resolving model selections", err)
	}

	values, err := resolveInputValues(expanded, plainInputs)
	if err != nil {
		return nil, LoadedInputs{}, pipelineerrors.NewParseError("inputs", "canonicalising input values", err)
	}

	for _, sel := range selections {
		for k, v := range sel.FlattenedConfig() {
			id := canonical.FormatProducerScopedInputID(sel.ProducerQualified, k)
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, LoadedInputs{}, pipelineerrors.NewParseError("inputs", fmt.Sprintf("encoding selection config %s", id.String()), err)
			}
			values[id.String()] = raw
		}
	}

	if raw, ok := plainInputs[InquiryPromptInputName]; ok {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, LoadedInputs{}, pipelineerrors.NewParseError("inputs", "encoding InquiryPrompt override", err)
		}
		values[canonical.FormatInputID(nil, InquiryPromptInputName).String()] = b
	}

	return expanded, LoadedInputs{Values: values, ModelSelections: selections}, nil
}

// resolveInputValues runs every key of plainInputs through the tree's input
// resolver, rejecting unknown/ambiguous keys and two distinct document keys
// that resolve to the same canonical id. Missing-but-required inputs
// without a default fail here too.
func resolveInputValues(root *blueprint.Node, plainInputs map[string]any) (map[string]json.RawMessage, error) {
	var allInputIDs []canonical.ID
	required := make(map[string]blueprint.InputDecl)
	root.Walk(func(n *blueprint.Node) {
		for _, in := range n.Inputs {
			id := canonical.FormatInputID(n.Namespace, in.Name)
			allInputIDs = append(allInputIDs, id)
			if in.Required && in.Default == nil {
				required[id.String()] = in
			} else if in.Default != nil {
				required[id.String()] = in // tracked so we can fall back to Default below
			}
		}
	})
	resolver := canonical.NewResolver(allInputIDs)

	values := make(map[string]json.RawMessage, len(plainInputs))
	resolvedFrom := make(map[string]string, len(plainInputs)) // canonical id -> first doc key that produced it

	for key, val := range plainInputs {
		if key == InquiryPromptInputName {
			continue // handled separately by the caller
		}
		id, err := resolver.ResolveInput(key)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", key, err)
		}
		if prior, ok := resolvedFrom[id.String()]; ok {
			return nil, fmt.Errorf("input %q: duplicate of %q, both resolve to %s", key, prior, id.String())
		}
		resolvedFrom[id.String()] = key

		raw, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("input %q: encoding value: %w", key, err)
		}
		values[id.String()] = raw
	}

	for id, decl := range required {
		if _, ok := values[id]; ok {
			continue
		}
		if decl.Default != nil {
			raw, err := json.Marshal(decl.Default)
			if err != nil {
				return nil, fmt.Errorf("input %s: encoding default: %w", id, err)
			}
			values[id] = raw
			continue
		}
		if decl.Required {
			return nil, fmt.Errorf("required input %s has no value and no default", id)
		}
	}

	return values, nil
}
