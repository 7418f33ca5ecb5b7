package graph

import (
	"context"
	"fmt"
)

// SubgraphNode embeds a compiled graph as a single node of a parent graph.
// The child runs under its own checkpoint namespace (parent namespace plus
// the node name), so a child suspension survives restarts like any other.
type SubgraphNode struct {
	Name  string
	Graph *ExecutableGraph
	// Enter derives the child's initial state from the parent state.
	Enter func(parent State) State
	// Exit translates the finished child state into a parent update.
	Exit func(parent, child State) Update
}

// Work runs the child graph from its entry node.
func (n *SubgraphNode) Work(ctx context.Context, s State, cfg RunConfig) (Result, error) {
	child := s
	if n.Enter != nil {
		child = n.Enter(s)
	}

	out, err := n.Graph.Invoke(ctx, child, cfg.Child(n.Name))
	if err != nil {
		return Result{}, err
	}

	return n.finish(s, out), nil
}

// Resume forwards cmd to the child graph's suspended node.
func (n *SubgraphNode) Resume(ctx context.Context, s State, cfg RunConfig, cmd Command) (Result, error) {
	out, err := n.Graph.Resume(ctx, cfg.Child(n.Name), cmd)
	if err != nil {
		return Result{}, err
	}

	return n.finish(s, out), nil
}

func (n *SubgraphNode) finish(parent, child State) Result {
	if child.Pending != nil {
		in := *child.Pending
		in.Node = fmt.Sprintf("%s/%s", n.Name, in.Node)
		return Result{Interrupt: &in}
	}

	if n.Exit == nil {
		return Result{}
	}
	return Result{Update: n.Exit(parent, child)}
}
