package executor

import "fmt"

// Kind classifies an invocation failure. Every kind is scoped to one
// invocation: the server keeps serving, other sessions are unaffected.
type Kind string

const (
	// KindRender: a template expression could not be resolved.
	KindRender Kind = "render_error"
	// KindSchema: input or output did not match its declared schema.
	KindSchema Kind = "schema_validation_failed"
	// KindExecution: network or process level failure, including non-2xx
	// responses and non-zero exit codes.
	KindExecution Kind = "executor_failed"
	// KindTimeout: the invocation exceeded its execution bound.
	KindTimeout Kind = "timeout"
)

// InvocationError is the structured failure of a single tool invocation.
type InvocationError struct {
	Kind     Kind
	Message  string
	Path     string // schema violation path, when Kind is KindSchema
	ExitCode int    // command exit code, when the child exited non-zero
	Stderr   string // captured stderr, for command failures
	Raw      string // raw output attached on output-schema failures
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *InvocationError) Unwrap() error { return e.Err }

func renderFailed(stage string, err error) *InvocationError {
	return &InvocationError{
		Kind:    KindRender,
		Message: fmt.Sprintf("rendering %s: %v", stage, err),
		Err:     err,
	}
}

func executionFailed(message string, err error) *InvocationError {
	return &InvocationError{Kind: KindExecution, Message: message, Err: err}
}

func timedOut(message string, err error) *InvocationError {
	return &InvocationError{Kind: KindTimeout, Message: message, Err: err}
}
