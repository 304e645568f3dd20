package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/ragmesh/core"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
//
// Responses are produced in this order of precedence:
//  1. the next scripted step queued via Enqueue / EnqueueError
//  2. a canned completion registered via AddResponse for the last message
//  3. an echo of the last message ("Mock response to: ...")
//
// Every request is recorded and can be inspected via Requests. MockModel is
// safe for concurrent use.
type MockModel struct {
	info Info

	mu        sync.Mutex
	script    []mockStep
	responses map[string]string
	requests  []Request
}

type mockStep struct {
	msg core.Message
	err error
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted completions. Each Generate call consumes one.
func (m *MockModel) Enqueue(msgs ...core.Message) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.script = append(m.script, mockStep{msg: msg})
	}
	return m
}

// EnqueueText is a shorthand for Enqueue with a plain textual answer.
func (m *MockModel) EnqueueText(texts ...string) *MockModel {
	for _, t := range texts {
		m.Enqueue(core.Message{Role: core.RoleAssistant, Content: t})
	}
	return m
}

// EnqueueToolCall scripts a completion requesting a single tool call.
func (m *MockModel) EnqueueToolCall(id, name, arguments string) *MockModel {
	return m.Enqueue(core.Message{
		Role:      core.RoleAssistant,
		ToolCalls: []core.ToolCall{{ID: id, Name: name, Arguments: arguments}},
	})
}

// EnqueueError scripts a failing Generate call.
func (m *MockModel) EnqueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockStep{err: err})
	return m
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.script) > 0 {
		step := m.script[0]
		m.script = m.script[1:]
		if step.err != nil {
			return nil, step.err
		}
		msg := step.msg
		msg.Role = core.RoleAssistant
		return &Response{Message: msg, FinishReason: finishReason(msg)}, nil
	}

	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}

	input := req.Messages[len(req.Messages)-1].Content
	full := m.responses[input]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}

	return &Response{
		Message:      core.Message{Role: core.RoleAssistant, Content: full},
		FinishReason: "stop",
	}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

func finishReason(msg core.Message) string {
	if msg.HasToolCalls() {
		return "tool_calls"
	}
	return "stop"
}
