package graph

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
)

// RunConfig carries per-invocation settings to every node.
type RunConfig struct {
	ThreadID string
	UserID   string
	// Namespace identifies the (sub)graph being executed. The top level graph
	// uses the empty namespace.
	Namespace string
	Logger    logging.Logger
	// Emit receives an Event after each node commits. Returning an error
	// halts the run after the current checkpoint.
	Emit func(Event) error
}

func (c RunConfig) logger() logging.Logger { return logging.OrNoOp(c.Logger) }

// Child returns the config used for the subgraph embedded as node name.
func (c RunConfig) Child(name string) RunConfig {
	child := c
	if c.Namespace == "" {
		child.Namespace = name
	} else {
		child.Namespace = c.Namespace + "/" + name
	}
	return child
}

// Event reports the messages a node produced.
type Event struct {
	Namespace string
	Node      string
	Messages  []core.Message
}

// Result is what a node hands back to the executor.
type Result struct {
	Update Update
	// Goto overrides edge routing. It may name End.
	Goto string
	// Interrupt suspends the run at this node.
	Interrupt *Interrupt
	// Terminate ends the run after Update is applied.
	Terminate bool
}

// Node is a unit of work in a graph.
type Node interface {
	Work(ctx context.Context, s State, cfg RunConfig) (Result, error)
}

// Resumable is implemented by nodes that can suspend.
type Resumable interface {
	Node
	Resume(ctx context.Context, s State, cfg RunConfig, cmd Command) (Result, error)
}

// NodeFunc adapts a function to Node.
type NodeFunc func(ctx context.Context, s State, cfg RunConfig) (Result, error)

// Work implements Node.
func (f NodeFunc) Work(ctx context.Context, s State, cfg RunConfig) (Result, error) {
	return f(ctx, s, cfg)
}

// NodeError wraps a failure raised inside a node.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string { return fmt.Sprintf("node %s: %v", e.Node, e.Err) }

func (e *NodeError) Unwrap() error { return e.Err }
