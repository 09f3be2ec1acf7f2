// Package schema is the validation gate around tool execution. Declared
// input/output schemas are compiled once when the registry is built; each
// invocation validates its JSON value against the compiled form.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a compiled JSON Schema. A nil *Schema means "no constraint":
// Validate on a nil receiver accepts any value.
type Schema struct {
	rawJSON  json.RawMessage
	compiled *jsonschema.Schema
}

// ValidationError reports a value that does not match its declared schema.
type ValidationError struct {
	Path    string // instance location of the deepest violation, e.g. "/user/age"
	Message string
	cause   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.cause }

// Compile builds a Schema from a raw schema mapping, as parsed from the
// tool configuration. A nil or empty mapping compiles to nil (no constraint).
func Compile(raw map[string]any) (*Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Schema{rawJSON: data, compiled: compiled}, nil
}

// RawJSON returns the JSON encoding of the declared schema, suitable for
// advertising on tools/list.
func (s *Schema) RawJSON() json.RawMessage {
	if s == nil {
		return nil
	}
	return s.rawJSON
}

// Validate checks value against the schema. value must be a decoded JSON
// tree (map[string]any, []any, string, float64, bool, nil). Returns a
// *ValidationError naming the failing instance path, or nil.
func (s *Schema) Validate(value any) error {
	if s == nil {
		return nil
	}
	err := s.compiled.Validate(value)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &ValidationError{Path: "/", Message: err.Error(), cause: err}
	}
	leaf := deepest(verr)
	return &ValidationError{
		Path:    instancePath(leaf.InstanceLocation),
		Message: strings.TrimSpace(leaf.Error()),
		cause:   err,
	}
}

// deepest follows Causes to the most specific violation.
func deepest(v *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(v.Causes) > 0 {
		v = v.Causes[0]
	}
	return v
}

func instancePath(loc []string) string {
	if len(loc) == 0 {
		return "/"
	}
	return "/" + strings.Join(loc, "/")
}
