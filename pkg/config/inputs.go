package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// InputsDocument is the top-level shape of the Inputs file.
type InputsDocument struct {
	Inputs map[string]any        `yaml:"inputs" json:"inputs"`
	Models []ModelSelectionEntry `yaml:"models,omitempty" json:"models,omitempty"`
}

// ModelSelectionEntry drives a producer's model selection, merged with any
// `<producer>.provider`/`<producer>.model` keys found directly in Inputs.
type ModelSelectionEntry struct {
	ProducerID string         `yaml:"producerId" json:"producerId"`
	Provider   string         `yaml:"provider" json:"provider"`
	Model      string         `yaml:"model" json:"model"`
	Config     map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// DecodeInputsYAML decodes an already-read Inputs file body into an
// InputsDocument. Reading the file itself is the caller's job;
// this is the one decoding step this package owns, since InputsDocument's
// field shape is authored here.
func DecodeInputsYAML(data []byte) (InputsDocument, error) {
	var doc InputsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return InputsDocument{}, fmt.Errorf("config: decoding inputs YAML: %w", err)
	}
	return doc, nil
}
