package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/ragmesh/core"
)

// OfflineOptions configure an OfflineModel.
type OfflineOptions struct {
	// Sentinel prefixes the merged answer.
	Sentinel string
	// Sections maps specialist agent names to the heading their answer is
	// merged under, in order.
	Sections []Section
}

// Section is one heading of a merged answer.
type Section struct {
	Agent   string
	Heading string
}

// OfflineModel is a deterministic Model that needs no provider. A request
// with tools calls the first tool with the question and then reports the
// tool result. A request without tools waits until every configured
// specialist has answered and then merges their answers behind the sentinel.
type OfflineModel struct {
	opts  OfflineOptions
	calls atomic.Int64
}

// NewOfflineModel creates an OfflineModel.
func NewOfflineModel(optFns ...func(o *OfflineOptions)) *OfflineModel {
	opts := OfflineOptions{Sentinel: "FINAL ANSWER"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &OfflineModel{opts: opts}
}

// Generate implements Model.
func (m *OfflineModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}

	question := firstQuestion(req.Messages)
	last := req.Messages[len(req.Messages)-1]

	var msg core.Message
	switch {
	case last.Role == core.RoleTool:
		msg = core.Message{Content: summarize(last.Content)}
	case len(req.Tools) > 0:
		args, err := json.Marshal(map[string]string{"query": question})
		if err != nil {
			return nil, err
		}
		msg = core.Message{ToolCalls: []core.ToolCall{{
			ID:        fmt.Sprintf("offline_%d", m.calls.Add(1)),
			Name:      req.Tools[0].Name,
			Arguments: string(args),
		}}}
	default:
		msg = core.Message{Content: m.merge(req.Messages, question)}
	}

	msg.Role = core.RoleAssistant

	return &Response{Message: msg, FinishReason: finishReason(msg)}, nil
}

func (m *OfflineModel) merge(history []core.Message, question string) string {
	answers := make(map[string]string, len(m.opts.Sections))
	for _, msg := range history {
		if msg.Role == core.RoleAssistant && !msg.HasToolCalls() {
			answers[msg.Name] = msg.Content
		}
	}

	var b strings.Builder
	b.WriteString(m.opts.Sentinel)
	for _, s := range m.opts.Sections {
		answer, ok := answers[s.Agent]
		if !ok {
			return "Consulting the specialists about: " + question
		}
		fmt.Fprintf(&b, "\n\n%s:\n%s", s.Heading, answer)
	}

	return b.String()
}

// Info implements Model.
func (m *OfflineModel) Info() Info {
	return Info{Name: "offline", Provider: "mock", SupportsTools: true}
}

func firstQuestion(history []core.Message) string {
	for _, msg := range history {
		if msg.Role == core.RoleUser {
			return msg.Content
		}
	}
	return ""
}

func summarize(result string) string {
	result = strings.TrimSpace(result)
	if result == "" || result == "[]" || result == "null" {
		return "No relevant information found."
	}

	const maxRunes = 500
	if r := []rune(result); len(r) > maxRunes {
		return string(r[:maxRunes]) + "..."
	}

	return result
}
