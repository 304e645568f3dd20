package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks execute synchronously on the run's goroutine. A callback that
// returns an error aborts the run with that error.
type CallbackType string

const (
	// CallbackBeforeNode is triggered before a node is invoked.
	CallbackBeforeNode CallbackType = "before_node"

	// CallbackAfterNode is triggered after a node produced its messages.
	CallbackAfterNode CallbackType = "after_node"

	// CallbackBeforeTool is triggered before each tool call a ToolNode executes.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool is triggered after each tool call, successful or not.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackOnRoute is triggered once the next node has been resolved.
	CallbackOnRoute CallbackType = "on_route"

	// CallbackOnError is triggered when a step fails.
	CallbackOnError CallbackType = "on_error"

	// CallbackAfterRun is triggered once per run, on success and on failure.
	CallbackAfterRun CallbackType = "after_run"
)

// CallbackContext carries the event data handed to callbacks. Fields that do
// not apply to a callback type are left zero.
type CallbackContext struct {
	CallbackType CallbackType

	// RunID is copied from the context, see WithRunID.
	RunID string

	// Node is the node the event relates to.
	Node NodeID

	// Step is the 1-based step number.
	Step int

	// State is the canonical state at the time of the event.
	State core.State

	// Messages holds the node output (after_node).
	Messages []core.Message

	// ToolCall and ToolResult describe a tool execution (before_tool, after_tool).
	ToolCall   *core.ToolCall
	ToolResult *core.Message

	// Label and Target describe a transition (on_route).
	Label  Label
	Target NodeID

	// Duration of the node, tool call or run.
	Duration time.Duration

	// Err is the failure (on_error, after_tool, after_run).
	Err error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for execution lifecycle hooks.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic. Returning an error aborts the run.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackBeforeNode,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("step %d: %s", cc.Step, cc.Node)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks by type and executes them in registration
// order. It is safe for concurrent use; a single manager is shared by all
// runs of an Executor.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all callbacks registered for callbackType. The
// first error stops execution and is returned. A nil manager is a no-op.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	if len(callbacks) == 0 {
		return nil
	}

	callbackCtx.CallbackType = callbackType
	if callbackCtx.RunID == "" {
		callbackCtx.RunID = RunIDFromContext(ctx)
	}

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes one structured log line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logging.OrNoOp(logger),
	}
}

// RegisterLogging registers a LoggingCallback for every callback type.
func RegisterLogging(cm *CallbackManager, logger logging.Logger) {
	for _, t := range []CallbackType{
		CallbackBeforeNode, CallbackAfterNode,
		CallbackBeforeTool, CallbackAfterTool,
		CallbackOnRoute, CallbackOnError, CallbackAfterRun,
	} {
		cm.RegisterCallback(NewLoggingCallback(t, logger))
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{"run_id", cc.RunID, "node", string(cc.Node), "step", cc.Step}

	switch cc.CallbackType {
	case CallbackAfterNode:
		args = append(args, "messages", len(cc.Messages), "duration_ms", cc.Duration.Milliseconds())
	case CallbackBeforeTool, CallbackAfterTool:
		if cc.ToolCall != nil {
			args = append(args, "tool", cc.ToolCall.Name, "call_id", cc.ToolCall.ID)
		}
	case CallbackOnRoute:
		args = append(args, "label", string(cc.Label), "target", string(cc.Target))
	case CallbackAfterRun:
		args = append(args, "duration_ms", cc.Duration.Milliseconds())
	}

	if cc.Err != nil {
		c.logger.Warn("engine.callback."+string(cc.CallbackType), append(args, "error", cc.Err.Error())...)
		return nil
	}

	c.logger.Debug("engine.callback."+string(cc.CallbackType), args...)
	return nil
}

type runIDKey struct{}

// WithRunID attaches a run id to ctx. Callbacks receive it as RunID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id attached to ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
