package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema validates a value on behalf of the caller. Structured requests
// declare one schema for the input (checked before any network call) and one
// for the parsed output (checked after).
type Schema interface {
	Validate(v any) error
}

// SchemaFunc adapts a plain function to the Schema interface.
type SchemaFunc func(v any) error

// Validate invokes the function.
func (f SchemaFunc) Validate(v any) error {
	return f(v)
}

// JSONSchema validates values against a compiled JSON Schema document.
type JSONSchema struct {
	schema *jsonschema.Schema
}

// CompileJSONSchema compiles a JSON Schema from its source text.
func CompileJSONSchema(src string) (*JSONSchema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &JSONSchema{schema: schema}, nil
}

// MustJSONSchema compiles a schema and panics on failure. Intended for
// package-level schema declarations.
func MustJSONSchema(src string) *JSONSchema {
	s, err := CompileJSONSchema(src)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks v against the schema. Arbitrary Go values are round-tripped
// through JSON so struct inputs validate the same way their wire form would.
func (s *JSONSchema) Validate(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal value for validation: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode value for validation: %w", err)
	}
	return s.schema.Validate(doc)
}
