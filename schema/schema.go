// Package schema builds JSON Schemas and validates documents
// against them. The config package uses it to check YAML config
// files before decoding them.
//
// # Quick Start
//
//	s := schema.MustCompile(schema.Object(map[string]*schema.Property{
//	    "token_model": schema.String("Tokenizer model").MinLength(1),
//	    "strategy": schema.Nested("Compaction strategy", map[string]*schema.Property{
//	        "type": schema.String("Strategy tag").Enum("keep_last", "summary"),
//	        "n":    schema.Integer("Messages to keep").Min(0),
//	    }, "type").When("type", "keep_last", "n"),
//	}, "token_model", "strategy"))
//
//	err := s.ValidateJSON(doc)
//
// See [Object], [Property], and the builder functions for details.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a JSON Schema definition: the raw map (for printing
// and documentation) and its compiled validator.
type Schema struct {
	raw      map[string]any
	compiled *jsonschema.Schema
}

// Raw returns the underlying map[string]any representation.
func (s *Schema) Raw() map[string]any {
	if s == nil {
		return nil
	}
	return s.raw
}

// Validate validates a decoded JSON value against the schema.
// Numbers must be float64 or json.Number, as produced by
// encoding/json. A nil Schema accepts everything.
func (s *Schema) Validate(data any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	if err := s.compiled.Validate(data); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ValidateJSON decodes a JSON document and validates it.
func (s *Schema) ValidateJSON(doc []byte) error {
	data, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	return s.Validate(data)
}

// ValidationError wraps a JSON Schema validation error with a cleaner message.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Compile compiles a raw schema map into a Schema with a compiled validator.
// Returns an error if the schema is invalid.
func Compile(raw map[string]any) (*Schema, error) {
	if raw == nil {
		return nil, nil
	}

	schemaJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	schemaData, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Schema{
		raw:      raw,
		compiled: compiled,
	}, nil
}

// MustCompile is like Compile but panics on error.
// Use this for schemas defined at init time.
func MustCompile(raw map[string]any) *Schema {
	s, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// -----------------------------------------------------------------------------
// Schema Builders
// -----------------------------------------------------------------------------

// Object creates a closed object schema with the given properties:
// unknown keys are rejected, so typos in config files fail loudly.
// Pass property names as variadic arguments to mark them as
// required.
//
// Example:
//
//	schema.Object(map[string]*schema.Property{
//	    "provider": schema.String("Model provider").Enum("openai", "github"),
//	    "name":     schema.String("Model name"),
//	}, "provider", "name")
func Object(properties map[string]*Property, required ...string) map[string]any {
	return Nested("", properties, required...).build()
}

// Property represents a property in an object schema.
type Property struct {
	typ         string
	description string
	enum        []any
	minimum     *float64
	minLength   *int
	items       map[string]any
	properties  map[string]*Property
	required    []string
	rules       []any
	def         any
}

func (p *Property) build() map[string]any {
	m := map[string]any{}

	if p.typ != "" {
		m["type"] = p.typ
	}
	if p.description != "" {
		m["description"] = p.description
	}
	if len(p.enum) > 0 {
		m["enum"] = p.enum
	}
	if p.minimum != nil {
		m["minimum"] = *p.minimum
	}
	if p.minLength != nil {
		m["minLength"] = *p.minLength
	}
	if p.items != nil {
		m["items"] = p.items
	}
	if p.properties != nil {
		props := make(map[string]any, len(p.properties))
		for name, prop := range p.properties {
			props[name] = prop.build()
		}
		m["properties"] = props
		m["additionalProperties"] = false
	}
	if len(p.required) > 0 {
		m["required"] = p.required
	}
	if len(p.rules) > 0 {
		m["allOf"] = p.rules
	}
	if p.def != nil {
		m["default"] = p.def
	}

	return m
}

// String creates a string property.
//
// Example:
//
//	schema.String("Tokenizer model").MinLength(1)
//	schema.String("Strategy tag").Enum("keep_last", "summary")
func String(description string) *Property {
	return &Property{typ: "string", description: description}
}

// Integer creates an integer property.
//
// Example:
//
//	schema.Integer("Messages to keep").Min(0)
//	schema.Integer("Token cache size").Default(4096)
func Integer(description string) *Property {
	return &Property{typ: "integer", description: description}
}

// Boolean creates a boolean property.
func Boolean(description string) *Property {
	return &Property{typ: "boolean", description: description}
}

// Array creates an array property with the given item schema.
//
// Example:
//
//	schema.Array("Compressible tools", map[string]any{"type": "string"})
func Array(description string, items map[string]any) *Property {
	return &Property{typ: "array", description: description, items: items}
}

// Nested creates an object property, closed like [Object].
func Nested(
	description string,
	properties map[string]*Property,
	required ...string,
) *Property {
	return &Property{
		typ:         "object",
		description: description,
		properties:  properties,
		required:    required,
	}
}

// When adds a conditional requirement to an object property: when
// field equals value, the listed properties are required. Use it
// for tagged unions whose parameters depend on the tag.
//
// Example:
//
//	schema.Nested("Strategy", props, "type").
//	    When("type", "keep_last", "n").
//	    When("type", "adaptive_window", "token_budget")
func (p *Property) When(field string, value any, required ...string) *Property {
	p.rules = append(p.rules, map[string]any{
		"if": map[string]any{
			"properties": map[string]any{
				field: map[string]any{"const": value},
			},
			"required": []string{field},
		},
		"then": map[string]any{"required": required},
	})
	return p
}

// Enum sets allowed values for the property.
func (p *Property) Enum(values ...any) *Property {
	p.enum = values
	return p
}

// Min sets the minimum value for integer properties.
func (p *Property) Min(min float64) *Property {
	p.minimum = &min
	return p
}

// MinLength sets the minimum length for string properties.
func (p *Property) MinLength(min int) *Property {
	p.minLength = &min
	return p
}

// Default documents the default value for the property. It is not
// applied during validation.
func (p *Property) Default(value any) *Property {
	p.def = value
	return p
}
