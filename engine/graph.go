package engine

import (
	"fmt"
	"sort"

	"github.com/hupe1980/ragmesh/core"
)

// NodeID identifies a node in a Graph.
type NodeID string

// Pseudo nodes.
const (
	// Start is the implicit entry marker. A fixed edge from Start sets the entry node.
	Start NodeID = "__start__"
	// End terminates a run.
	End NodeID = "__end__"
	// Sender resolves to the node that authored the most recent non-tool message.
	Sender NodeID = "__sender__"
)

// Label names an edge leaving a node.
type Label string

// Route labels produced by the Router.
const (
	LabelContinue Label = "continue"
	LabelCallTool Label = "call_tool"
	LabelEnd      Label = "end"
)

// Graph is the node registry and edge table of an orchestration. Build it
// once, then hand it to NewExecutor; the Executor validates it and never
// changes it afterwards.
type Graph struct {
	nodes       map[NodeID]Node
	order       []NodeID
	entry       NodeID
	conditional map[NodeID]map[Label]NodeID
	fixed       map[NodeID]NodeID
	errs        []string
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:       make(map[NodeID]Node),
		conditional: make(map[NodeID]map[Label]NodeID),
		fixed:       make(map[NodeID]NodeID),
	}
}

// AddNode registers n under id.
func (g *Graph) AddNode(id NodeID, n Node) *Graph {
	switch {
	case id == "":
		g.errs = append(g.errs, "node id must not be empty")
	case id == Start || id == End || id == Sender:
		g.errs = append(g.errs, fmt.Sprintf("node id %q is reserved", id))
	case n == nil:
		g.errs = append(g.errs, fmt.Sprintf("node %q is nil", id))
	default:
		if _, exists := g.nodes[id]; exists {
			g.errs = append(g.errs, fmt.Sprintf("duplicate node %q", id))
			return g
		}
		g.nodes[id] = n
		g.order = append(g.order, id)
	}
	return g
}

// SetEntry sets the node a run starts at.
func (g *Graph) SetEntry(id NodeID) *Graph {
	g.entry = id
	return g
}

// AddEdges adds conditional edges leaving from. Repeated calls merge routes.
func (g *Graph) AddEdges(from NodeID, routes map[Label]NodeID) *Graph {
	if from == Start {
		g.errs = append(g.errs, "conditional edges cannot leave the start node")
		return g
	}

	m, ok := g.conditional[from]
	if !ok {
		m = make(map[Label]NodeID, len(routes))
		g.conditional[from] = m
	}
	for label, to := range routes {
		m[label] = to
	}
	return g
}

// AddFixedEdge adds an unconditional edge. A fixed edge from Start sets the
// entry node.
func (g *Graph) AddFixedEdge(from, to NodeID) *Graph {
	if from == Start {
		return g.SetEntry(to)
	}
	g.fixed[from] = to
	return g
}

// Nodes returns the registered node ids in registration order.
func (g *Graph) Nodes() []NodeID {
	out := make([]NodeID, len(g.order))
	copy(out, g.order)
	return out
}

// Entry returns the entry node.
func (g *Graph) Entry() NodeID { return g.entry }

// Validate checks that the graph is complete: the entry node exists, every
// edge leaves a registered node and targets a registered node, End or Sender,
// and every node has exactly one kind of outgoing edge.
func (g *Graph) Validate() error {
	if len(g.errs) > 0 {
		return &core.GraphError{Reason: g.errs[0]}
	}

	if g.entry == "" {
		return &core.GraphError{Reason: "no entry node"}
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return &core.GraphError{Reason: fmt.Sprintf("entry node %q is not registered", g.entry)}
	}

	for _, id := range g.order {
		_, hasFixed := g.fixed[id]
		routes, hasConditional := g.conditional[id]

		if !hasFixed && !hasConditional {
			return &core.GraphError{Reason: fmt.Sprintf("node %q has no outgoing edge", id)}
		}
		if hasFixed && hasConditional {
			return &core.GraphError{Reason: fmt.Sprintf("node %q has both fixed and conditional edges", id)}
		}
		if hasConditional && len(routes) == 0 {
			return &core.GraphError{Reason: fmt.Sprintf("node %q has an empty route table", id)}
		}
	}

	for _, from := range sortedKeys(g.fixed) {
		if err := g.checkEdge(from, "", g.fixed[from]); err != nil {
			return err
		}
	}

	for _, from := range sortedKeys(g.conditional) {
		routes := g.conditional[from]
		labels := make([]string, 0, len(routes))
		for label := range routes {
			labels = append(labels, string(label))
		}
		sort.Strings(labels)

		for _, label := range labels {
			if err := g.checkEdge(from, Label(label), routes[Label(label)]); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *Graph) checkEdge(from NodeID, label Label, to NodeID) error {
	if _, ok := g.nodes[from]; !ok {
		return &core.GraphError{Reason: fmt.Sprintf("edge source %q is not registered", from)}
	}
	if label == "" && to == "" {
		return &core.GraphError{Reason: fmt.Sprintf("fixed edge from %q has no target", from)}
	}
	if to == End || to == Sender {
		return nil
	}
	if _, ok := g.nodes[to]; !ok {
		if label == "" {
			return &core.GraphError{Reason: fmt.Sprintf("edge %s -> %s targets an unknown node", from, to)}
		}
		return &core.GraphError{Reason: fmt.Sprintf("edge %s -[%s]-> %s targets an unknown node", from, label, to)}
	}
	return nil
}

// next resolves the raw edge target. The bool reports whether from has a
// fixed edge, in which case label is ignored.
func (g *Graph) next(from NodeID, label Label) (to NodeID, fixed bool, ok bool) {
	if to, ok := g.fixed[from]; ok {
		return to, true, true
	}
	to, ok = g.conditional[from][label]
	return to, false, ok
}

func (g *Graph) hasFixedEdge(from NodeID) bool {
	_, ok := g.fixed[from]
	return ok
}

func sortedKeys[V any](m map[NodeID]V) []NodeID {
	keys := make([]NodeID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
