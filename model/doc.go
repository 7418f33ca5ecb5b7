// Package model defines the provider agnostic abstractions for invoking
// language models inside agentgraph.
//
// Core goals:
//   - One interface (Model) for every provider; nodes never import vendor SDKs
//   - Normalized tool definitions and tool calls (core.FunctionCall)
//   - Forced tool choice so structured output (the leader's route decision)
//     works the same way on every provider
//   - A provider Registry that turns a member's provider/model/temperature
//     triple into a Model at graph compile time
//   - Lightweight scripted models for tests (ScriptedModel)
//
// Providers (see the openai and anthropic subpackages) implement Model so the
// node runtime stays decoupled from vendor SDKs.
package model
