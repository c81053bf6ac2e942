// Package schema validates a producer variant's declared response schema
// against the structured value a handler returns.
package schema

import (
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates data against a schema.
type Validator interface {
	// Validate validates data against the schema. Returns an error if
	// validation fails.
	Validate(data interface{}) error

	// JSONSchema returns the JSON Schema representation of this validator.
	JSONSchema() map[string]interface{}
}

// Schema represents a validation schema.
type Schema interface {
	// Validator returns the validator for this schema.
	Validator() Validator
}

// JSONSchemaValidator validates using a JSON Schema document.
type JSONSchemaValidator struct {
	schema map[string]interface{}
}

// NewJSONSchema creates a new JSON Schema validator.
func NewJSONSchema(schema map[string]interface{}) *JSONSchemaValidator {
	return &JSONSchemaValidator{schema: schema}
}

// Validate validates data against the JSON Schema, compiling the schema
// fresh on every call since ProducerVariant.ResponseSchema documents are
// compiled rarely (once per handler invocation) relative to runner
// throughput.
func (v *JSONSchemaValidator) Validate(data interface{}) error {
	compiler := jsonschema.NewCompiler()
	const resourceURL = "reelforge://producer-response-schema"
	if err := compiler.AddResource(resourceURL, v.schema); err != nil {
		return fmt.Errorf("schema: compiling response schema: %w", err)
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return fmt.Errorf("schema: compiling response schema: %w", err)
	}

	// jsonschema/v6 validates decoded JSON values (map[string]interface{},
	// []interface{}, and friends), so round-trip Go data through
	// encoding/json rather than feeding it structs/pointers directly.
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("schema: encoding value for validation: %w", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("schema: decoding value for validation: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("schema: response did not match declared schema: %w", err)
	}
	return nil
}

// JSONSchema returns the underlying JSON Schema document.
func (v *JSONSchemaValidator) JSONSchema() map[string]interface{} {
	return v.schema
}

// SimpleJSONSchema is a Schema backed directly by a JSON Schema document.
type SimpleJSONSchema struct {
	validator *JSONSchemaValidator
}

// NewSimpleJSONSchema creates a Schema from a JSON Schema document.
func NewSimpleJSONSchema(schema map[string]interface{}) *SimpleJSONSchema {
	return &SimpleJSONSchema{
		validator: NewJSONSchema(schema),
	}
}

// Validator returns the validator.
func (s *SimpleJSONSchema) Validator() Validator {
	return s.validator
}
