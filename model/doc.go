// Package model defines the provider-agnostic Model Client contract used by
// ragmesh agents.
//
// Core goals:
//   - One blocking call per completion (Generate) honoring context cancellation
//   - Normalized tool catalogue (ToolDefinition) and tool calls (core.ToolCall)
//   - Request/response shapes that stay independent of vendor SDKs
//   - Lightweight, scriptable mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement Model in sub-packages so higher
// layers remain decoupled from vendor SDKs. Retry policy belongs to the
// provider client, never to the engine.
package model
