package runner

import (
	"encoding/json"
	"fmt"

	"github.com/reelforge/reelforge/pkg/blueprint"
	"github.com/reelforge/reelforge/pkg/handler"
	"github.com/reelforge/reelforge/pkg/prompt"
)

// renderVariantPrompts substitutes a variant's declared prompt templates
// with its resolved inputs, checking every name in variant.Variables is
// present before rendering.
func renderVariantPrompts(variant blueprint.ProducerVariant, resolved map[string]handler.ResolvedInput) (system, user string, err error) {
	vars := make(prompt.Variables, len(resolved))
	for alias, in := range resolved {
		vars[alias] = resolvedInputToString(in)
	}

	if err := prompt.RequireDeclared(variant.Variables, vars); err != nil {
		return "", "", err
	}

	system, err = prompt.Render(variant.SystemPrompt, vars)
	if err != nil {
		return "", "", err
	}
	user, err = prompt.Render(variant.UserPrompt, vars)
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

// resolvedInputToString renders one ResolvedInput as prompt-substitutable
// text: a blob input contributes a reference (handlers read the bytes
// directly, never the prompt text), and a JSON string value is unquoted so
// `{{Topic}}` yields `ocean life`, not `"ocean life"`.
func resolvedInputToString(in handler.ResolvedInput) string {
	if in.Bytes != nil {
		return fmt.Sprintf("[blob %s, %d bytes]", in.MimeType, len(in.Bytes))
	}
	var s string
	if err := json.Unmarshal(in.Value, &s); err == nil {
		return s
	}
	return string(in.Value)
}
