// Package prompt resolves a producer variant's system/user prompt templates
// by substituting `{{Variable}}` placeholders with resolved input values.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// MissingVariableError reports a `{{Variable}}` placeholder with no
// resolved value, surfaced to the runner as handler_error{code: missing_input}.
type MissingVariableError struct {
	Variable string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("prompt: missing value for variable %q", e.Variable)
}

// Variables maps a declared variable name to its rendered string form.
type Variables map[string]string

// Render substitutes every `{{Variable}}` placeholder in template with the
// corresponding entry from vars. A placeholder with no entry in vars is a
// MissingVariableError; callers must resolve every declared variable
// before rendering, so this is always a programming error if it fires,
// never a user-facing omission.
func Render(template string, vars Variables) (string, error) {
	var missing *MissingVariableError
	out := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		val, ok := vars[name]
		if !ok {
			if missing == nil {
				missing = &MissingVariableError{Variable: name}
			}
			return match
		}
		return val
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// Placeholders returns the distinct variable names referenced by template,
// in first-occurrence order.
func Placeholders(template string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// RequireDeclared returns a MissingVariableError for the first declared
// variable name absent from vars, matching them case-sensitively against
// a producer's declared variable list.
func RequireDeclared(declared []string, vars Variables) error {
	for _, name := range declared {
		if _, ok := vars[name]; !ok {
			return &MissingVariableError{Variable: name}
		}
	}
	return nil
}

// HasPlaceholder reports whether template contains the opening `{{` of a
// placeholder; it does not check that a well-formed `{{Name}}` follows.
func HasPlaceholder(template string) bool {
	return strings.Contains(template, "{{")
}
