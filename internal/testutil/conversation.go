package testutil

import (
	"github.com/hupe1980/ragmesh/core"
)

// ConversationBuilder helps construct conversation states with fluent
// chaining for tests.
// Example:
//
//	state := NewConversation("q").Call("Rag", "c1", "knowledge_search", `{"query":"q"}`).Result("knowledge_search", "c1", "[]").Say("Rag", "nothing").Build()
type ConversationBuilder struct {
	question string
	messages []core.Message
}

// NewConversation starts a conversation with the user's question.
func NewConversation(question string) *ConversationBuilder {
	return &ConversationBuilder{question: question}
}

// Say appends a plain answer by agent (chainable).
func (b *ConversationBuilder) Say(agent, content string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(agent, content))
	return b
}

// Call appends a message by agent requesting one tool call (chainable).
func (b *ConversationBuilder) Call(agent, callID, toolName, arguments string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(agent, "", core.ToolCall{
		ID:        callID,
		Name:      toolName,
		Arguments: arguments,
	}))
	return b
}

// Result appends the result of a tool call (chainable).
func (b *ConversationBuilder) Result(toolName, callID, content string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewToolMessage(toolName, callID, content))
	return b
}

// Message appends arbitrary messages (chainable).
func (b *ConversationBuilder) Message(msgs ...core.Message) *ConversationBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// Build returns the state.
func (b *ConversationBuilder) Build() core.State {
	return core.NewState(b.question).Append(b.messages...)
}
