package engine

import (
	"context"
	"time"

	"github.com/hupe1980/ragmesh/agent"
	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/tool"
)

// Node is a unit of work in a Graph. It receives the canonical state and
// returns the messages to append. Nodes must not retain the state.
type Node interface {
	Invoke(ctx context.Context, state core.State) ([]core.Message, error)
}

// NodeFunc adapts a function to the Node interface.
type NodeFunc func(ctx context.Context, state core.State) ([]core.Message, error)

// Invoke calls f.
func (f NodeFunc) Invoke(ctx context.Context, state core.State) ([]core.Message, error) {
	return f(ctx, state)
}

// AgentNode runs an agent over the canonical state or, when a view predicate
// is set, over a filtered copy of it.
type AgentNode struct {
	agent *agent.Agent
	view  core.Predicate
}

// NewAgentNode creates an AgentNode. A nil view passes the full state.
func NewAgentNode(a *agent.Agent, view core.Predicate) *AgentNode {
	return &AgentNode{agent: a, view: view}
}

// Agent returns the wrapped agent.
func (n *AgentNode) Agent() *agent.Agent { return n.agent }

// Invoke implements Node.
func (n *AgentNode) Invoke(ctx context.Context, state core.State) ([]core.Message, error) {
	input := state
	if n.view != nil {
		input = state.Filtered(n.view)
	}

	msg, err := n.agent.Invoke(ctx, input)
	if err != nil {
		return nil, err
	}

	return []core.Message{msg}, nil
}

// ToolNode executes the tool calls of the last message through a
// tool.Dispatcher, one call at a time and in order. before_tool and after_tool
// callbacks fire around every call.
type ToolNode struct {
	dispatcher *tool.Dispatcher
}

// NewToolNode creates a ToolNode.
func NewToolNode(d *tool.Dispatcher) *ToolNode {
	return &ToolNode{dispatcher: d}
}

// Invoke implements Node. Each call fires CallbackBeforeTool and
// CallbackAfterTool around its dispatch.
func (n *ToolNode) Invoke(ctx context.Context, state core.State) ([]core.Message, error) {
	step := stepFromContext(ctx)

	return n.dispatcher.Invoke(ctx, state, func(o *tool.InvokeOptions) {
		o.BeforeCall = func(ctx context.Context, call core.ToolCall) error {
			return step.fire(ctx, CallbackBeforeTool, &CallbackContext{ToolCall: &call, State: state})
		}
		o.AfterCall = func(ctx context.Context, call core.ToolCall, result *core.Message, elapsed time.Duration, err error) error {
			return step.fire(ctx, CallbackAfterTool, &CallbackContext{
				ToolCall:   &call,
				ToolResult: result,
				State:      state,
				Duration:   elapsed,
				Err:        err,
			})
		}
	})
}

// stepInfo is the per-step data the Executor makes available to nodes.
type stepInfo struct {
	callbacks *CallbackManager
	node      NodeID
	step      int
}

type stepKey struct{}

func withStep(ctx context.Context, s stepInfo) context.Context {
	return context.WithValue(ctx, stepKey{}, s)
}

func stepFromContext(ctx context.Context) stepInfo {
	s, _ := ctx.Value(stepKey{}).(stepInfo)
	return s
}

func (s stepInfo) fire(ctx context.Context, t CallbackType, cc *CallbackContext) error {
	cc.Node = s.node
	cc.Step = s.step
	return s.callbacks.ExecuteCallbacks(ctx, t, cc)
}
