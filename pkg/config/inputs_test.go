package config

import "testing"

func TestDecodeInputsYAML(t *testing.T) {
	t.Parallel()

	doc, err := DecodeInputsYAML([]byte(`
inputs:
  Topic: ocean life
  Style: documentary
models:
  - producerId: Script
    provider: custom
    model: gpt-4o
`))
	if err != nil {
		t.Fatalf("DecodeInputsYAML: %v", err)
	}
	if doc.Inputs["Topic"] != "ocean life" {
		t.Fatalf("got inputs %+v", doc.Inputs)
	}
	if len(doc.Models) != 1 || doc.Models[0].ProducerID != "Script" {
		t.Fatalf("got models %+v", doc.Models)
	}
}

func TestDecodeInputsYAMLRejectsMalformed(t *testing.T) {
	t.Parallel()

	if _, err := DecodeInputsYAML([]byte("inputs: [this, is, a, list, not, a, map]")); err == nil {
		t.Fatal("expected error decoding malformed inputs document")
	}
}
