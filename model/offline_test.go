package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/core"
)

func newOffline() *OfflineModel {
	return NewOfflineModel(func(o *OfflineOptions) {
		o.Sections = []Section{{Agent: "Rag", Heading: "Documents"}, {Agent: "Tavily", Heading: "Web"}}
	})
}

func TestOfflineModel_CallsFirstTool(t *testing.T) {
	m := newOffline()

	resp, err := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewUserMessage("capital of France?")},
		Tools:    []ToolDefinition{{Name: "knowledge_search"}, {Name: "other"}},
	})
	require.NoError(t, err)

	require.Len(t, resp.Message.ToolCalls, 1)
	call := resp.Message.ToolCalls[0]
	assert.Equal(t, "knowledge_search", call.Name)
	assert.JSONEq(t, `{"query":"capital of France?"}`, call.Arguments)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, core.RoleAssistant, resp.Message.Role)
}

func TestOfflineModel_ReportsToolResult(t *testing.T) {
	m := newOffline()

	resp, err := m.Generate(context.Background(), Request{
		Messages: []core.Message{
			core.NewUserMessage("q"),
			core.NewToolMessage("web_search", "c1", "Paris"),
		},
		Tools: []ToolDefinition{{Name: "web_search"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris", resp.Message.Content)

	resp, err = m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewUserMessage("q"), core.NewToolMessage("knowledge_search", "c1", "[]")},
	})
	require.NoError(t, err)
	assert.Equal(t, "No relevant information found.", resp.Message.Content)
}

func TestOfflineModel_MergesOnceSpecialistsAnswered(t *testing.T) {
	m := newOffline()
	history := []core.Message{core.NewUserMessage("capital of France?")}

	resp, err := m.Generate(context.Background(), Request{Messages: history})
	require.NoError(t, err)
	assert.Equal(t, "Consulting the specialists about: capital of France?", resp.Message.Content)

	history = append(history,
		core.NewAssistantMessage("Coordinator", resp.Message.Content),
		core.NewAssistantMessage("Rag", "", core.ToolCall{ID: "c1", Name: "knowledge_search"}),
		core.NewToolMessage("knowledge_search", "c1", "[]"),
		core.NewAssistantMessage("Rag", "No relevant information found."),
		core.NewAssistantMessage("Tavily", "Paris"),
	)

	resp, err = m.Generate(context.Background(), Request{Messages: history})
	require.NoError(t, err)
	assert.Equal(t, "FINAL ANSWER\n\nDocuments:\nNo relevant information found.\n\nWeb:\nParis", resp.Message.Content)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestOfflineModel_Errors(t *testing.T) {
	m := newOffline()

	_, err := m.Generate(context.Background(), Request{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Generate(ctx, Request{Messages: []core.Message{core.NewUserMessage("q")}})
	assert.ErrorIs(t, err, context.Canceled)
}
