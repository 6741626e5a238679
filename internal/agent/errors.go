package agent

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a tool invocation failed, matching the error
// taxonomy every ToolError exposes to callers and, serialized, back to the
// model as a tool-result message.
type ErrorKind string

const (
	ErrKindMissingRequired ErrorKind = "missing_required"
	ErrKindInvalidParam    ErrorKind = "invalid_parameter"
	ErrKindExecutionFailed ErrorKind = "execution_failed"
	ErrKindNotFound        ErrorKind = "not_found"
)

// Sentinel errors returned by the loop itself, independent of any one tool.
var (
	ErrStepBudgetExhausted = errors.New("agent: step budget exhausted")
	ErrNoProvider          = errors.New("agent: no provider configured")
	ErrEmptyToolCall       = errors.New("agent: tool call had no name")
)

// ToolError is returned by Registry.Invoke and carries enough structure for
// callers to classify the failure without parsing Error().
type ToolError struct {
	Kind     ErrorKind
	ToolName string
	Message  string
	Cause    error
}

func (e *ToolError) Error() string {
	if e.ToolName != "" {
		return fmt.Sprintf("tool %q: %s: %s", e.ToolName, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Cause }

func newToolError(kind ErrorKind, toolName, message string, cause error) *ToolError {
	return &ToolError{Kind: kind, ToolName: toolName, Message: message, Cause: cause}
}

// IsToolError reports whether err (or something it wraps) is a *ToolError,
// and returns it.
func IsToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// LoopPhase names the state of the agent loop's internal phase machine.
type LoopPhase string

const (
	PhaseAssemble     LoopPhase = "assemble"
	PhaseGenerate     LoopPhase = "generate"
	PhaseParse        LoopPhase = "parse"
	PhaseDispatch     LoopPhase = "dispatch"
	PhaseComplete     LoopPhase = "complete"
)

// LoopError wraps a failure that occurred during a specific phase of a
// specific iteration, preserving enough context for diagnostics.
type LoopError struct {
	Phase     LoopPhase
	Iteration int
	Message   string
	Cause     error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("agent loop: phase=%s iteration=%d: %s", e.Phase, e.Iteration, e.Message)
}

func (e *LoopError) Unwrap() error { return e.Cause }

func newLoopError(phase LoopPhase, iteration int, message string, cause error) *LoopError {
	return &LoopError{Phase: phase, Iteration: iteration, Message: message, Cause: cause}
}
