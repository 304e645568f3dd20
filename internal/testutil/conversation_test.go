package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/core"
)

func TestConversationBuilder(t *testing.T) {
	state := NewConversation("capital of France?").
		Call("Tavily", "c1", "web_search", `{"query":"capital of France"}`).
		Result("web_search", "c1", "Paris").
		Say("Tavily", "Paris").
		Build()

	msgs := state.Messages()
	require.Len(t, msgs, 4)

	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "capital of France?", msgs[0].Content)
	assert.True(t, msgs[1].CallsTool("web_search"))
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, "Tavily", state.Sender())
}
