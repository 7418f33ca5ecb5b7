// Package compiler turns persisted team members into executable graphs.
//
// Three topologies are supported:
//
//   - HIERARCHICAL: a leader delegates to members and sub-team leaders until
//     it decides FINISH, then a finalize node writes the answer. Sub-teams
//     are compiled into their own graphs and embedded as single nodes.
//   - SEQUENTIAL: members run in chain order, each after the previous one
//     completed its tool cycle. The last member ends the run.
//   - CHATBOT, RAGBOT, SEARCHBOT: the sequential case with exactly one member.
//
// Every member with tools gets a "{member}-tools" node. Members flagged for
// interrupt route their tool calls through a "{member}-tool-review" human
// node first. Members holding the ask-human pseudo tool get a
// "{member}-ask-human-tool" human node for free-form context input.
package compiler
