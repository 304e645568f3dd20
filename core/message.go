package core

// Role identifies the author class of a Message.
type Role string

const (
	// RoleSystem marks instruction messages.
	RoleSystem Role = "system"
	// RoleUser marks messages from the asking party.
	RoleUser Role = "user"
	// RoleAssistant marks messages produced by an agent.
	RoleAssistant Role = "assistant"
	// RoleTool marks tool results produced by the tool dispatcher.
	RoleTool Role = "tool"
)

// ToolCall describes a tool invocation requested by a model.
type ToolCall struct {
	ID        string `json:"id"`                  // Correlates the call with its result message
	Name      string `json:"name"`                // Registered tool name
	Arguments string `json:"arguments,omitempty"` // Serialized JSON argument object
}

// Message is one immutable entry of a conversation log.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`         // Producing agent or tool
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // Pending tool requests (assistant only)
	ToolCallID string     `json:"tool_call_id,omitempty"` // Originating call (tool only)
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Name: "user"}
}

// NewAssistantMessage creates an assistant message attributed to name.
func NewAssistantMessage(name, content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Name: name, Content: content, ToolCalls: calls}
}

// NewToolMessage creates a tool result message correlated with callID.
func NewToolMessage(toolName, callID, content string) Message {
	return Message{Role: RoleTool, Name: toolName, ToolCallID: callID, Content: content}
}

// HasToolCalls reports whether the message requests at least one tool call.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// CallsTool reports whether any of the message's tool calls targets name.
func (m Message) CallsTool(name string) bool {
	for _, c := range m.ToolCalls {
		if c.Name == name {
			return true
		}
	}
	return false
}

// clone returns a copy that shares no slices with m.
func (m Message) clone() Message {
	if m.ToolCalls != nil {
		calls := make([]ToolCall, len(m.ToolCalls))
		copy(calls, m.ToolCalls)
		m.ToolCalls = calls
	}
	return m
}
