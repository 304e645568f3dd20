// Package engine implements the orchestration state machine: a typed graph of
// nodes connected by labelled edges, a pure Router that derives the next edge
// label from the conversation state, and an Executor that drives a run from
// the entry node to End under a hard step budget.
//
// # Graph
//
// Nodes are registered under a NodeID. Each node has either a fixed edge (one
// unconditional successor) or a set of conditional edges keyed by Label. Two
// pseudo targets exist besides real nodes: End terminates the run and Sender
// resolves at run time to the node that authored the most recent non-tool
// message. The graph is validated once, when the Executor is built.
//
// # Execution
//
// A run is strictly sequential. Every step:
//
//  1. checks the context (expiry yields *core.TimeoutError)
//  2. consumes one unit of the step budget (exhaustion yields *core.RecursionLimitError)
//  3. invokes the current node with the canonical state
//  4. appends the produced messages
//  5. resolves the next node through the edge table
//
// Any node failure aborts the run. The Executor never retries.
//
// # Callbacks
//
// A CallbackManager observes node, tool, routing and run lifecycle events.
// Callback errors abort the run.
package engine
