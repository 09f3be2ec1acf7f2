// Package executor turns a rendered tool definition into a live external
// action. Two implementations exist, one per tool kind: HTTP and Command.
// Both follow the same pipeline: validate input against the declared schema,
// render templates against the input, perform the action under a deadline,
// parse the output, validate it against the output schema.
//
// Executors hold no mutable state across invocations; concurrent Execute
// calls on the same executor are safe.
package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bobmcallan/toolbridge/internal/schema"
)

// Result is the successful outcome of one invocation. Value is the parsed
// JSON output when the raw text parses, otherwise the raw text itself.
type Result struct {
	Value any
	Raw   string
}

// Executor is the invocation contract shared by both tool kinds.
// The input is the caller-supplied argument object for one call; it is
// addressed in templates under the root symbol "input".
type Executor interface {
	Execute(ctx context.Context, input map[string]any) (*Result, error)
}

// checkInput validates the invocation input before any side effect.
func checkInput(in *schema.Schema, input map[string]any) *InvocationError {
	err := in.Validate(normalizeInput(input))
	if err == nil {
		return nil
	}
	ierr := &InvocationError{Kind: KindSchema, Message: fmt.Sprintf("input: %v", err), Err: err}
	if verr, ok := err.(*schema.ValidationError); ok {
		ierr.Path = verr.Path
	}
	return ierr
}

// normalizeInput maps a nil argument object to an empty one so tools that
// declare an object schema with no required fields accept a bare call.
func normalizeInput(input map[string]any) any {
	if input == nil {
		return map[string]any{}
	}
	return input
}

// finish parses raw output and applies the output schema gate. On a schema
// failure the raw output rides along on the error for diagnostics.
func finish(raw string, out *schema.Schema) (*Result, error) {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		// Not JSON — degrade to the raw text.
		value = raw
	}

	if err := out.Validate(value); err != nil {
		ierr := &InvocationError{
			Kind:    KindSchema,
			Message: fmt.Sprintf("output: %v", err),
			Raw:     raw,
			Err:     err,
		}
		if verr, ok := err.(*schema.ValidationError); ok {
			ierr.Path = verr.Path
		}
		return nil, ierr
	}

	return &Result{Value: value, Raw: raw}, nil
}
