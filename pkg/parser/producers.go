package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reelforge/reelforge/pkg/blueprint"
	"github.com/reelforge/reelforge/pkg/config"
)

// ProducerCatalog resolves a (possibly ambiguous) short producer name to the
// one declared producer it denotes, the same exact/base-name rule
// canonical.Resolver applies to inputs; an ambiguous name fails with a
// listing of candidates.
type ProducerCatalog struct {
	byQualified map[string]*producerEntry
	byBase      map[string][]string
}

type producerEntry struct {
	node *blueprint.Node
	decl blueprint.ProducerDecl
}

// NewProducerCatalog indexes every producer declared anywhere in root's
// (already-expanded) tree.
func NewProducerCatalog(root *blueprint.Node) *ProducerCatalog {
	c := &ProducerCatalog{byQualified: make(map[string]*producerEntry), byBase: make(map[string][]string)}
	root.Walk(func(n *blueprint.Node) {
		for _, p := range n.Producers {
			q := n.Qualify(p.Name)
			c.byQualified[q] = &producerEntry{node: n, decl: p}
			c.byBase[p.Name] = append(c.byBase[p.Name], q)
		}
	})
	return c
}

// Resolve maps name (qualified or base) to the single producer it denotes.
func (c *ProducerCatalog) Resolve(name string) (qualified string, err error) {
	if _, ok := c.byQualified[name]; ok {
		return name, nil
	}
	if qs, ok := c.byBase[name]; ok {
		if len(qs) == 1 {
			return qs[0], nil
		}
		sorted := append([]string(nil), qs...)
		sort.Strings(sorted)
		return "", fmt.Errorf("ambiguous producer name %q: candidates %v", name, sorted)
	}
	return "", fmt.Errorf("unknown producer %q", name)
}

// ModelSelection is a fully resolved provider+model choice for one producer,
// merged from the inputs document's top-level `models` section and any
// `<producer>.provider`/`<producer>.model` keys.
type ModelSelection struct {
	ProducerQualified string
	Provider          blueprint.Provider
	ProviderModel     string
	Config            map[string]any
}

// FlattenedConfig flattens nested Config keys with "." so they can be
// injected as producer-scoped canonical inputs.
func (m ModelSelection) FlattenedConfig() map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", m.Config)
	return out
}

func flattenInto(out map[string]any, prefix string, v map[string]any) {
	for k, val := range v {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = val
	}
}

// mergeModelSelections extracts model selections from inputsDoc.Models and
// any `<producer>.provider`/`<producer>.model` keys in inputsDoc.Inputs,
// resolving each producer name against catalog. The returned map is
// inputsDoc.Inputs with every consumed `<producer>.provider`/`.model` key
// removed, ready to be passed through ordinary input resolution.
func mergeModelSelections(inputsDoc config.InputsDocument, catalog *ProducerCatalog) ([]ModelSelection, map[string]any, error) {
	plain := make(map[string]any, len(inputsDoc.Inputs))
	inline := make(map[string]*ModelSelection) // producer qualified name -> in-progress selection
	for k, v := range inputsDoc.Inputs {
		producerKey, field, ok := splitInlineModelKey(k)
		if !ok {
			plain[k] = v
			continue
		}
		qualified, err := catalog.Resolve(producerKey)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving inline model selection %q: %w", k, err)
		}
		sel := inline[qualified]
		if sel == nil {
			sel = &ModelSelection{ProducerQualified: qualified}
			inline[qualified] = sel
		}
		switch field {
		case "provider":
			s, _ := v.(string)
			sel.Provider = blueprint.Provider(s)
		case "model":
			s, _ := v.(string)
			sel.ProviderModel = s
		}
	}

	merged := make(map[string]*ModelSelection, len(inline))
	for q, sel := range inline {
		merged[q] = sel
	}

	for _, entry := range inputsDoc.Models {
		qualified, err := catalog.Resolve(entry.ProducerID)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving models[] entry %q: %w", entry.ProducerID, err)
		}
		sel := merged[qualified]
		if sel == nil {
			sel = &ModelSelection{ProducerQualified: qualified}
			merged[qualified] = sel
		}
		if entry.Provider != "" {
			sel.Provider = blueprint.Provider(entry.Provider)
		}
		if entry.Model != "" {
			sel.ProviderModel = entry.Model
		}
		if entry.Config != nil {
			if sel.Config == nil {
				sel.Config = make(map[string]any, len(entry.Config))
			}
			for k, v := range entry.Config {
				sel.Config[k] = v
			}
		}
	}

	out := make([]ModelSelection, 0, len(merged))
	for _, sel := range merged {
		out = append(out, *sel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProducerQualified < out[j].ProducerQualified })

	return out, plain, nil
}

// splitInlineModelKey reports whether key is of the form
// "<producer>.provider" or "<producer>.model".
func splitInlineModelKey(key string) (producer, field string, ok bool) {
	for _, suffix := range []string{".provider", ".model"} {
		if strings.HasSuffix(key, suffix) && len(key) > len(suffix) {
			return key[:len(key)-len(suffix)], suffix[1:], true
		}
	}
	return "", "", false
}

// ApplySelections overrides each named producer's default variant with the
// resolved provider+model+config, demoting the previously-default variant
// to a fallback, so the override never discards the declared fallback
// chain. Producers with no matching selection are untouched.
func ApplySelections(root *blueprint.Node, selections []ModelSelection) {
	byQualified := make(map[string]ModelSelection, len(selections))
	for _, s := range selections {
		if s.Provider == "" && s.ProviderModel == "" {
			continue
		}
		byQualified[s.ProducerQualified] = s
	}
	if len(byQualified) == 0 {
		return
	}

	root.Walk(func(n *blueprint.Node) {
		for i, p := range n.Producers {
			sel, ok := byQualified[n.Qualify(p.Name)]
			if !ok {
				continue
			}
			n.Producers[i] = applySelectionToDecl(p, sel)
		}
	})
}

func applySelectionToDecl(decl blueprint.ProducerDecl, sel ModelSelection) blueprint.ProducerDecl {
	def, hasDefault := decl.DefaultVariant()

	override := def
	if sel.Provider != "" {
		override.Provider = sel.Provider
	}
	if sel.ProviderModel != "" {
		override.ProviderModel = sel.ProviderModel
	}
	override.Priority = blueprint.PriorityMain
	cfg := make(map[string]any, len(def.Config)+len(sel.Config))
	for k, v := range def.Config {
		cfg[k] = v
	}
	for k, v := range sel.Config {
		cfg[k] = v
	}
	override.Config = cfg

	variants := make([]blueprint.ProducerVariant, 0, len(decl.Variants)+1)
	variants = append(variants, override)
	for _, v := range decl.Variants {
		if hasDefault && v.Provider == def.Provider && v.ProviderModel == def.ProviderModel && v.Priority == def.Priority {
			v.Priority = blueprint.PriorityFallback
		}
		if v.Provider == override.Provider && v.ProviderModel == override.ProviderModel {
			continue // don't duplicate the now-default variant
		}
		variants = append(variants, v)
	}

	decl.Variants = variants
	return decl
}
