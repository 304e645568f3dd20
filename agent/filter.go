package agent

import "github.com/hupe1980/ragmesh/core"

// ExcludeSource returns a predicate that hides everything agentName
// contributed through toolName: messages authored by agentName, messages
// requesting toolName and the tool results named toolName.
func ExcludeSource(agentName, toolName string) core.Predicate {
	return func(m core.Message) bool {
		if m.Role != core.RoleTool && m.Name == agentName {
			return false
		}
		if m.CallsTool(toolName) {
			return false
		}
		if m.Role == core.RoleTool && m.Name == toolName {
			return false
		}
		return true
	}
}

// All is the predicate that keeps every message.
func All(core.Message) bool { return true }
