// Package tool implements the tool calling subsystem: the Tool contract, schema
// validated function tools, a name keyed registry and the dispatcher that turns
// the tool calls of an agent message into tool result messages.
package tool

import (
	"context"
	"fmt"
)

// Error codes used by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// Tool is a named capability an agent may request through a tool call.
//
// Implementations must be safe for concurrent use: the same registry serves
// every run of an engine.
type Tool interface {
	// Name returns the unique identifier models use to address the tool.
	Name() string

	// Description is shown to models to explain when to use the tool.
	Description() string

	// Parameters returns the JSON schema of the argument object.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError returns a ToolError for the named tool with a message and code.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
