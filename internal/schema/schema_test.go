package schema

import (
	"errors"
	"strings"
	"testing"
)

func compile(t *testing.T, raw map[string]any) *Schema {
	t.Helper()
	s, err := Compile(raw)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return s
}

func objectSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city":  map[string]any{"type": "string", "description": "city name"},
			"count": map[string]any{"type": "number"},
			"flags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"user": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"age": map[string]any{"type": "number"},
				},
				"required": []any{"age"},
			},
		},
		"required": []any{"city"},
	}
}

func TestNilSchemaAcceptsAnything(t *testing.T) {
	var s *Schema
	for _, v := range []any{nil, "text", float64(3), map[string]any{"x": 1}, []any{1, 2}} {
		if err := s.Validate(v); err != nil {
			t.Errorf("nil schema rejected %v: %v", v, err)
		}
	}
	if s := compile(t, nil); s != nil {
		t.Error("Compile(nil) should return nil schema")
	}
}

func TestValidObjectPasses(t *testing.T) {
	s := compile(t, objectSchema())
	value := map[string]any{
		"city":  "Paris",
		"count": float64(2),
		"flags": []any{"a", "b"},
		"user":  map[string]any{"age": float64(30)},
	}
	if err := s.Validate(value); err != nil {
		t.Fatalf("valid value rejected: %v", err)
	}
	// Optional fields may be absent.
	if err := s.Validate(map[string]any{"city": "Oslo"}); err != nil {
		t.Fatalf("minimal valid value rejected: %v", err)
	}
}

func TestMissingRequiredFieldFails(t *testing.T) {
	s := compile(t, objectSchema())
	err := s.Validate(map[string]any{"count": float64(1)})
	if err == nil {
		t.Fatal("missing required field accepted")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !strings.Contains(verr.Message, "city") {
		t.Errorf("error does not name the missing field: %v", verr)
	}
}

func TestTypeMismatchFailsWithPath(t *testing.T) {
	s := compile(t, objectSchema())
	err := s.Validate(map[string]any{"city": "Paris", "user": map[string]any{"age": "old"}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Path, "user") || !strings.Contains(verr.Path, "age") {
		t.Errorf("path %q does not point into user/age", verr.Path)
	}
}

func TestArrayElementValidation(t *testing.T) {
	s := compile(t, objectSchema())
	err := s.Validate(map[string]any{"city": "x", "flags": []any{"ok", float64(7)}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError for bad array element, got %v", err)
	}
	if !strings.Contains(verr.Path, "flags") {
		t.Errorf("path %q does not point into flags", verr.Path)
	}
}

func TestCompileRejectsMalformedSchema(t *testing.T) {
	_, err := Compile(map[string]any{"type": 12345})
	if err == nil {
		t.Fatal("expected compile error for malformed schema")
	}
}

func TestRawRoundTrip(t *testing.T) {
	s := compile(t, objectSchema())
	if len(s.RawJSON()) == 0 {
		t.Fatal("compiled schema lost its raw form")
	}
	if !strings.Contains(string(s.RawJSON()), `"required"`) {
		t.Errorf("raw JSON missing declared keywords: %s", s.RawJSON())
	}
	var nilSchema *Schema
	if nilSchema.RawJSON() != nil {
		t.Error("nil schema should have no raw form")
	}
}
