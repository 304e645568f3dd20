package engine

import (
	"strings"

	"github.com/hupe1980/ragmesh/core"
)

// DefaultSentinel marks a synthesized final answer.
const DefaultSentinel = "FINAL ANSWER"

// Router derives the label of the edge to follow after from has run.
type Router func(from NodeID, state core.State) Label

// Route applies the routing rules to the last message of state:
//
//  1. any tool call -> LabelCallTool
//  2. content containing sentinel -> LabelEnd
//  3. otherwise -> LabelContinue
//
// Tool calls take precedence over the sentinel. An empty state continues.
func Route(state core.State, sentinel string) Label {
	last, ok := state.Last()
	if !ok {
		return LabelContinue
	}

	if last.HasToolCalls() {
		return LabelCallTool
	}

	if sentinel != "" && strings.Contains(last.Content, sentinel) {
		return LabelEnd
	}

	return LabelContinue
}

// NewRouter returns a Router using sentinel. The node id is not consulted;
// only the edge table distinguishes where a label leads.
func NewRouter(sentinel string) Router {
	return func(_ NodeID, state core.State) Label {
		return Route(state, sentinel)
	}
}
