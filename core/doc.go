// Package core provides the shared vocabulary of agentgraph: chat messages,
// function (tool) calls, retrieved documents and the per-run step limiter.
//
// Every other package speaks in these types. Messages are plain, JSON
// friendly values so that a run's working memory can be checkpointed and
// restored verbatim by any checkpoint backend.
package core
