package retry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Violation is one human-readable business rule failure. Messages are sent
// back to the model verbatim inside the correction turn.
type Violation struct {
	Message string
}

// Rule is a pure check over a decoded stage result. Check must not mutate
// its input; Name labels the rule in logs and metrics.
type Rule[T any] struct {
	Name  string
	Check func(T) []Violation
}

func Violationf(format string, args ...any) Violation {
	return Violation{Message: fmt.Sprintf(format, args...)}
}

func joinViolations(vs []Violation) string {
	if len(vs) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(vs))
	for _, v := range vs {
		msgs = append(msgs, "- "+v.Message)
	}
	return strings.Join(msgs, "\n")
}

// ModelInvocationError wraps a failed model call: transport errors, provider
// errors, or output that could not be decoded against the stage schema.
type ModelInvocationError struct {
	Err error
}

func (e *ModelInvocationError) Error() string {
	if e == nil || e.Err == nil {
		return "model invocation failed"
	}
	return "model invocation failed: " + e.Err.Error()
}

func (e *ModelInvocationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MaxRetriesExceededError is the terminal failure of a validated generation:
// the attempt budget ran out with violations still outstanding.
type MaxRetriesExceededError struct {
	Stage      string
	Attempts   int
	Violations []Violation
	LastRaw    json.RawMessage
	LastErr    error
}

func (e *MaxRetriesExceededError) Error() string {
	if e == nil {
		return "validation retries exceeded"
	}
	return fmt.Sprintf("stage %s: validation failed after %d attempts: %s",
		e.Stage, e.Attempts, joinViolations(e.Violations))
}

func (e *MaxRetriesExceededError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.LastErr
}
