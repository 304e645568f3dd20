// Package agent adapts a language model to a graph node: it renders the
// agent's instruction, sends the (optionally filtered) conversation together
// with the agent's tool catalogue to the model and returns exactly one
// assistant message attributed to the agent.
//
// Agents are stateless between invocations. Everything an agent knows about a
// run comes from the core.State it is handed, so a single Agent can serve any
// number of concurrent runs.
//
// Views:
//   - ExcludeSource builds a predicate that hides one agent's contribution,
//     including its tool calls and their results, from another agent.
package agent
