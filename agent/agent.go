package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/internal/util"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/model"
	"github.com/hupe1980/ragmesh/tool"
)

// Options configures an Agent.
type Options struct {
	// Instruction is rendered with the template data {{.name}}, {{.tool_names}}
	// and every entry of Data.
	Instruction Instruction
	// Tools is the catalogue advertised to the model. The agent never executes
	// tools itself.
	Tools []tool.Tool
	// Data holds extra template values for the instruction.
	Data   map[string]any
	Logger logging.Logger
}

// Agent is a model-backed participant of an orchestration graph.
type Agent struct {
	name string
	llm  model.Model
	opts Options
}

// New creates an Agent named name that generates with llm.
func New(name string, llm model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction: NewInstructionFromText("You are {{.name}}, a helpful AI assistant."),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Agent{name: name, llm: llm, opts: opts}
}

// Name returns the agent's name. Messages produced by the agent carry it.
func (a *Agent) Name() string { return a.name }

// Model returns the underlying model.
func (a *Agent) Model() model.Model { return a.llm }

// ToolNames returns the names of the advertised tools in order.
func (a *Agent) ToolNames() []string {
	names := make([]string, 0, len(a.opts.Tools))
	for _, t := range a.opts.Tools {
		names = append(names, t.Name())
	}
	return names
}

// Invoke performs exactly one model call over state and returns the resulting
// assistant message, attributed to the agent whether or not it requests tools.
//
// Any model failure is returned as *core.ModelInvocationError.
func (a *Agent) Invoke(ctx context.Context, state core.State) (core.Message, error) {
	logger := a.opts.Logger
	start := time.Now()

	instructions, err := a.instructions(ctx, state)
	if err != nil {
		logger.Error("agent.invoke.error", "agent", a.name, "error", err.Error())
		return core.Message{}, &core.ModelInvocationError{Agent: a.name, Err: err}
	}

	logger.Debug("agent.invoke.start", "agent", a.name, "messages", state.Len())

	resp, err := a.llm.Generate(ctx, model.Request{
		Agent:        a.name,
		Instructions: instructions,
		Messages:     state.Messages(),
		Tools:        tool.Definitions(a.opts.Tools...),
	})
	if err == nil && resp == nil {
		err = errors.New("model returned no response")
	}
	if err != nil {
		logger.Error("agent.invoke.error", "agent", a.name, "error", err.Error())
		return core.Message{}, &core.ModelInvocationError{Agent: a.name, Err: err}
	}

	msg := resp.Message
	msg.Role = core.RoleAssistant
	msg.Name = a.name
	msg.ToolCallID = ""

	logger.Info("agent.invoke.done",
		"agent", a.name,
		"tool_calls", len(msg.ToolCalls),
		"finish_reason", resp.FinishReason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return msg, nil
}

func (a *Agent) instructions(ctx context.Context, state core.State) (string, error) {
	text, err := a.opts.Instruction.Resolve(ctx, state)
	if err != nil {
		return "", fmt.Errorf("resolve instruction: %w", err)
	}

	data := make(map[string]any, len(a.opts.Data)+2)
	for k, v := range a.opts.Data {
		data[k] = v
	}
	data["name"] = a.name
	data["tool_names"] = strings.Join(a.ToolNames(), ", ")

	rendered, err := util.RenderTemplate(text, data)
	if err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}

	return rendered, nil
}
