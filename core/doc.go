// Package core provides the foundational domain types shared by every ragmesh
// package:
//
//   - Message and ToolCall (one entry of a conversation log)
//   - State (an immutable, append-only conversation log plus its sender)
//   - the typed error taxonomy surfaced by a run
//   - StepLimiter (the bounded step budget of a run)
//   - SearchResult (a scored hit returned by knowledge retrieval)
//
// The package intentionally keeps orchestration and provider concerns out of
// scope so that engine, agents, tools and model adapters can depend on it
// without introducing cycles.
package core
