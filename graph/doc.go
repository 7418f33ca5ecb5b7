// Package graph is the execution engine for compiled team graphs.
//
// A graph is a set of named nodes joined by static edges and conditional
// routers. Every node implements Node: it receives a snapshot of the run
// State and returns a Result holding a partial Update, an optional Interrupt
// and an optional explicit jump. The executor applies the update using the
// per-field merge policies of State, picks the next node, checkpoints, and
// repeats until a terminal node or a suspension point is reached.
//
// Suspension is an explicit return value. A node that needs a human decision
// returns an Interrupt; the executor persists the state with the pending
// interrupt and the node's name as the only next node. Resume loads that
// checkpoint and hands the decision to the suspended node's Resume method,
// then continues from the node the resume result points to.
//
// Sub-teams are compiled into their own ExecutableGraph and embedded through
// SubgraphNode, which translates parent state to child state and back and
// checkpoints the child under its own namespace.
package graph
