package core

import (
	"fmt"
)

// InputError reports a request rejected before a run starts.
type InputError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
}

// ModelInvocationError reports a failed Model Client call made on behalf of an
// agent. The failure is retryable from the caller's perspective; the engine
// itself never retries.
type ModelInvocationError struct {
	Agent string
	Err   error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed for agent %s: %v", e.Agent, e.Err)
}

// Unwrap returns the underlying model error.
func (e *ModelInvocationError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed.
func (e *ModelInvocationError) Retryable() bool { return true }

// UnknownToolError reports a tool call naming a tool that is not registered.
type UnknownToolError struct {
	Tool   string
	CallID string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (call %s)", e.Tool, e.CallID)
}

// ToolExecutionError reports a registered tool that failed.
type ToolExecutionError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed (call %s): %v", e.Tool, e.CallID, e.Err)
}

// Unwrap returns the tool's error.
func (e *ToolExecutionError) Unwrap() error { return e.Err }

// RecursionLimitError reports a run that exhausted its step budget without
// reaching the end node. Messages holds the partial log for diagnostics.
type RecursionLimitError struct {
	Limit    int
	Steps    int
	Messages []Message
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit of %d steps exceeded", e.Limit)
}

// TimeoutError reports a run abandoned because its context expired or was
// cancelled. Err is the context error.
type TimeoutError struct {
	Steps int
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run aborted after %d steps: %v", e.Steps, e.Err)
}

// Unwrap returns the context error.
func (e *TimeoutError) Unwrap() error { return e.Err }

// RoutingError reports a route label for which the current node has no edge.
type RoutingError struct {
	From  string
	Label string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no edge from %s for label %q", e.From, e.Label)
}

// GraphError reports an invalid graph detected at construction time.
type GraphError struct {
	Reason string
}

func (e *GraphError) Error() string {
	return "invalid graph: " + e.Reason
}
