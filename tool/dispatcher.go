package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
)

// DispatcherOptions configure a Dispatcher.
type DispatcherOptions struct {
	Logger logging.Logger
}

// Dispatcher executes the tool calls of an agent message against a Registry.
// It keeps no state between invocations.
type Dispatcher struct {
	registry *Registry
	opts     DispatcherOptions
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *Registry, optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Dispatcher{registry: registry, opts: opts}
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// InvokeOptions hook into each call of a Dispatcher.Invoke batch.
type InvokeOptions struct {
	// BeforeCall runs before a call is dispatched. An error aborts the batch.
	BeforeCall func(ctx context.Context, call core.ToolCall) error
	// AfterCall runs after a call with its result (nil on failure), the
	// elapsed time and the dispatch error. Its error aborts the batch only
	// when the dispatch itself succeeded.
	AfterCall func(ctx context.Context, call core.ToolCall, result *core.Message, elapsed time.Duration, err error) error
}

// Invoke executes every tool call of the last message of state, in order, and
// returns one tool message per call. The first failing call aborts the batch.
func (d *Dispatcher) Invoke(ctx context.Context, state core.State, optFns ...func(o *InvokeOptions)) ([]core.Message, error) {
	var opts InvokeOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	last, ok := state.Last()
	if !ok || !last.HasToolCalls() {
		return nil, nil
	}

	out := make([]core.Message, 0, len(last.ToolCalls))
	for _, call := range last.ToolCalls {
		if opts.BeforeCall != nil {
			if err := opts.BeforeCall(ctx, call); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		msg, err := d.Dispatch(ctx, call)

		if opts.AfterCall != nil {
			var result *core.Message
			if err == nil {
				result = &msg
			}
			if hookErr := opts.AfterCall(ctx, call, result, time.Since(start), err); hookErr != nil && err == nil {
				return nil, hookErr
			}
		}

		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}

	return out, nil
}

// Dispatch executes a single tool call.
//
// An unregistered name yields *core.UnknownToolError. Malformed arguments or a
// failing tool yield *core.ToolExecutionError. String results are used verbatim
// as message content; any other result is JSON encoded.
func (d *Dispatcher) Dispatch(ctx context.Context, call core.ToolCall) (core.Message, error) {
	logger := d.opts.Logger

	t, ok := d.registry.Lookup(call.Name)
	if !ok {
		logger.Error("tool.call.unknown", "tool", call.Name, "call_id", call.ID)
		return core.Message{}, &core.UnknownToolError{Tool: call.Name, CallID: call.ID}
	}

	args, err := decodeArguments(call.Arguments)
	if err != nil {
		logger.Warn("tool.call.bad_arguments", "tool", call.Name, "call_id", call.ID, "error", err.Error())
		return core.Message{}, &core.ToolExecutionError{Tool: call.Name, CallID: call.ID, Err: err}
	}

	start := time.Now()
	logger.Debug("tool.call.start", "tool", call.Name, "call_id", call.ID)

	result, err := t.Call(ctx, args)
	if err != nil {
		logger.Error("tool.call.error", "tool", call.Name, "call_id", call.ID, "error", err.Error())
		return core.Message{}, &core.ToolExecutionError{Tool: call.Name, CallID: call.ID, Err: err}
	}

	content, err := serializeResult(result)
	if err != nil {
		return core.Message{}, &core.ToolExecutionError{Tool: call.Name, CallID: call.ID, Err: err}
	}

	logger.Info("tool.call.success", "tool", call.Name, "call_id", call.ID, "duration_ms", time.Since(start).Milliseconds())

	return core.NewToolMessage(call.Name, call.ID, content), nil
}

func decodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}

	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}

func serializeResult(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	return string(data), nil
}
