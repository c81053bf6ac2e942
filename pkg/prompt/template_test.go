package prompt_test

import (
	"errors"
	"testing"

	"github.com/reelforge/reelforge/pkg/prompt"
)

func TestRenderSubstitutesVariables(t *testing.T) {
	t.Parallel()
	got, err := prompt.Render("Write a {{Tone}} story about {{Subject}}.", prompt.Variables{
		"Tone":    "whimsical",
		"Subject": "a lighthouse",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "Write a whimsical story about a lighthouse."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderReturnsMissingVariableError(t *testing.T) {
	t.Parallel()
	_, err := prompt.Render("Hello {{Name}}", prompt.Variables{})
	var missing *prompt.MissingVariableError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingVariableError, got %v", err)
	}
	if missing.Variable != "Name" {
		t.Fatalf("got %+v", missing)
	}
}

func TestPlaceholdersReturnsDistinctNamesInOrder(t *testing.T) {
	t.Parallel()
	got := prompt.Placeholders("{{A}} and {{B}} and {{A}} again")
	want := []string{"A", "B"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRequireDeclaredReportsFirstMissing(t *testing.T) {
	t.Parallel()
	err := prompt.RequireDeclared([]string{"A", "B"}, prompt.Variables{"A": "1"})
	var missing *prompt.MissingVariableError
	if !errors.As(err, &missing) || missing.Variable != "B" {
		t.Fatalf("got %v", err)
	}
}

func TestHasPlaceholder(t *testing.T) {
	t.Parallel()
	if !prompt.HasPlaceholder("{{X}}") {
		t.Fatalf("expected true")
	}
	if prompt.HasPlaceholder("plain text") {
		t.Fatalf("expected false")
	}
}
