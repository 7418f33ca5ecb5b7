// Package runner implements the run driver of agentgraph.
//
// A Driver compiles a persisted team, drives one execution turn of its
// graph and streams normalized events to the caller. It serves three kinds
// of requests:
//
//   - a new turn: the task runs from the graph's entry node
//   - a resume: a decision answers the human node the thread is suspended at
//   - a continuation: a decision for a thread that stopped between nodes is
//     added to the history and the run continues where it stopped
//
// # Events
//
// Every message a node produces becomes an "ai" or "tool" event. A turn ends
// with at most one terminal event: "interrupt" when the run suspended at a
// human node, "stop" after a cooperative stop, or "error". EncodeSSE frames
// events as Server-Sent-Event data lines.
//
// # Cancellation
//
// Stopping is cooperative. Before each event is emitted the driver asks its
// StopSignal whether a stop was requested for the (user, thread) pair; if so
// it emits "stop" and halts after the current node's checkpoint. An in-flight
// tool call is allowed to finish.
package runner
