package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/metrics"
)

// DefaultMaxSteps bounds node executions per invocation.
const DefaultMaxSteps = 100

// Options configure an ExecutableGraph.
type Options struct {
	Checkpointer Checkpointer
	// MaxSteps bounds node executions per Invoke, Resume or Continue call.
	MaxSteps int
	Metrics  *metrics.Metrics
}

// ExecutableGraph is a compiled graph. It holds no per-run state and may be
// shared by concurrent runs on different threads.
type ExecutableGraph struct {
	name     string
	nodes    map[string]Node
	order    []string
	edges    map[string]string
	branches map[string]branch
	entry    string
	opts     Options
}

// Name returns the graph name.
func (g *ExecutableGraph) Name() string { return g.name }

// Entry returns the entry node name.
func (g *ExecutableGraph) Entry() string { return g.entry }

// Node returns the node registered as name.
func (g *ExecutableGraph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns every node name sorted. Nodes of embedded subgraphs are
// included as "parent/child" paths.
func (g *ExecutableGraph) Nodes() []string {
	var out []string
	for _, name := range g.order {
		out = append(out, name)
		if sg, ok := g.nodes[name].(*SubgraphNode); ok {
			for _, child := range sg.Graph.Nodes() {
				out = append(out, name+"/"+child)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Routes returns the routing table sorted by source node, including subgraph
// routes under "parent/child" paths.
func (g *ExecutableGraph) Routes() []Route {
	var out []Route
	for _, name := range g.order {
		if to, ok := g.edges[name]; ok {
			out = append(out, Route{From: name, Targets: []string{to}})
		}
		if br, ok := g.branches[name]; ok {
			out = append(out, Route{From: name, Conditional: true, Targets: slices.Clone(br.targets)})
		}
		if sg, ok := g.nodes[name].(*SubgraphNode); ok {
			for _, r := range sg.Graph.Routes() {
				r.From = name + "/" + r.From
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// GetState returns the latest checkpoint for the config's thread and namespace.
func (g *ExecutableGraph) GetState(ctx context.Context, cfg RunConfig) (*Checkpoint, error) {
	return g.opts.Checkpointer.GetState(ctx, checkpointConfig(cfg))
}

// Invoke runs the graph from its entry node with initial as the starting
// state. It returns when the run terminates or suspends; a suspended run has
// a non-nil Pending interrupt.
func (g *ExecutableGraph) Invoke(ctx context.Context, initial State, cfg RunConfig) (State, error) {
	s := initial.Clone()
	s.Pending = nil
	s.Interrupted = false
	s.Next = g.entry

	return g.run(ctx, s, g.entry, cfg)
}

// Resume hands cmd to the suspended node and continues from where its result
// routes. An *InvalidInterruptResponseError leaves the checkpoint unchanged.
func (g *ExecutableGraph) Resume(ctx context.Context, cfg RunConfig, cmd Command) (State, error) {
	cp, err := g.GetState(ctx, cfg)
	if err != nil {
		return State{}, err
	}
	if cp.Values.Pending == nil || len(cp.Next) == 0 {
		return cp.Values, ErrNotSuspended
	}

	current := cp.Next[0]
	n, ok := g.nodes[current]
	if !ok {
		return cp.Values, fmt.Errorf("checkpoint points to unknown node %q", current)
	}
	rn, ok := n.(Resumable)
	if !ok {
		return cp.Values, fmt.Errorf("node %q cannot resume", current)
	}

	s := cp.Values.Clone()

	cfg.logger().Info("graph.resume", "graph", g.name, "node", current, "action", cmd.Action)

	res, err := rn.Resume(ctx, s, cfg, cmd)
	if err != nil {
		var invalid *InvalidInterruptResponseError
		if errors.As(err, &invalid) && invalid.Node == "" {
			invalid.Node = cp.Values.Pending.Node
		}
		return cp.Values, err
	}

	s.Pending = nil
	s.Interrupted = false

	next, done, err := g.commit(ctx, &s, current, res, cfg)
	if err != nil || done {
		return s, err
	}

	return g.run(ctx, s, next, cfg)
}

// Continue resumes a run that stopped between nodes (for example after a
// cooperative stop). override is applied before the checkpointed node runs.
func (g *ExecutableGraph) Continue(ctx context.Context, cfg RunConfig, override Update) (State, error) {
	cp, err := g.GetState(ctx, cfg)
	if err != nil {
		return State{}, err
	}
	if cp.Values.Pending != nil {
		return cp.Values, fmt.Errorf("run is suspended at %s: resume it instead", cp.Values.Pending.Node)
	}
	if len(cp.Next) == 0 {
		return cp.Values, ErrNothingToContinue
	}

	s := cp.Values.Clone()
	s.Apply(override)

	return g.run(ctx, s, cp.Next[0], cfg)
}

func (g *ExecutableGraph) run(ctx context.Context, s State, current string, cfg RunConfig) (State, error) {
	limiter := core.NewStepLimiter(g.opts.MaxSteps)
	log := cfg.logger()

	for current != End {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if err := limiter.Increment(); err != nil {
			return s, fmt.Errorf("graph %s: %w", g.name, err)
		}

		n, ok := g.nodes[current]
		if !ok {
			return s, fmt.Errorf("graph %s: unknown node %q", g.name, current)
		}

		log.Debug("graph.node.start", "graph", g.name, "node", current, "step", limiter.Count())
		start := time.Now()

		res, err := n.Work(ctx, s.Clone(), cfg)

		dur := time.Since(start)
		g.opts.Metrics.ObserveNode(current, dur)
		logging.Node(log, current, dur, err)

		if err != nil {
			var nodeErr *NodeError
			if errors.As(err, &nodeErr) {
				return s, err
			}
			return s, &NodeError{Node: current, Err: err}
		}

		next, done, err := g.commit(ctx, &s, current, res, cfg)
		if err != nil || done {
			return s, err
		}
		current = next
	}

	return s, nil
}

// commit applies res, checkpoints, and emits the node's messages. done is
// true when the run suspended at current.
func (g *ExecutableGraph) commit(ctx context.Context, s *State, current string, res Result, cfg RunConfig) (string, bool, error) {
	produced := g.produced(current, *s, res.Update)
	s.Apply(res.Update)

	if res.Interrupt != nil {
		in := *res.Interrupt
		if in.Node == "" {
			in.Node = current
		}
		s.Pending = &in
		s.Interrupted = true
		s.Next = current

		if err := g.put(ctx, cfg, *s, []string{current}); err != nil {
			return "", true, err
		}

		cfg.logger().Info("graph.suspended", "graph", g.name, "node", in.Node, "type", string(in.Type))

		return current, true, g.emit(cfg, current, produced)
	}

	next, err := g.route(current, *s, res)
	if err != nil {
		return "", true, err
	}
	s.Next = next

	var pending []string
	if next != End {
		pending = []string{next}
	}
	if err := g.put(ctx, cfg, *s, pending); err != nil {
		return "", true, err
	}

	if err := g.emit(cfg, current, produced); err != nil {
		return next, true, err
	}

	return next, next == End, nil
}

func (g *ExecutableGraph) route(current string, s State, res Result) (string, error) {
	switch {
	case res.Terminate:
		return End, nil
	case res.Goto != "":
		if _, ok := g.nodes[res.Goto]; !ok && res.Goto != End {
			return "", fmt.Errorf("node %q jumped to unknown node %q", current, res.Goto)
		}
		return res.Goto, nil
	}

	if br, ok := g.branches[current]; ok {
		d := br.router(s)
		if d.Kind == RouteTerminate {
			return End, nil
		}
		if !slices.Contains(br.targets, d.Target) {
			return "", fmt.Errorf("router of %q returned undeclared target %q", current, d.Target)
		}
		return d.Target, nil
	}

	if to, ok := g.edges[current]; ok {
		return to, nil
	}

	return End, nil
}

func (g *ExecutableGraph) put(ctx context.Context, cfg RunConfig, s State, next []string) error {
	if next == nil {
		next = []string{}
	}
	if err := g.opts.Checkpointer.Put(ctx, checkpointConfig(cfg), Checkpoint{Values: s, Next: next}); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (g *ExecutableGraph) emit(cfg RunConfig, node string, msgs []core.Message) error {
	if cfg.Emit == nil || len(msgs) == 0 {
		return nil
	}
	return cfg.Emit(Event{Namespace: cfg.Namespace, Node: node, Messages: msgs})
}

// produced returns the messages u introduces that prev does not hold yet,
// each once. Subgraph nodes report nothing; their children already emitted.
func (g *ExecutableGraph) produced(node string, prev State, u Update) []core.Message {
	if _, ok := g.nodes[node].(*SubgraphNode); ok {
		return nil
	}

	seen := make(map[string]bool)
	for _, list := range [][]core.Message{prev.Messages, prev.History, prev.AllMessages} {
		for _, m := range list {
			seen[m.ID] = true
		}
	}

	var out []core.Message
	add := func(msgs []core.Message) {
		for _, m := range msgs {
			if m.ID != "" && seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
		}
	}

	if u.Messages != nil {
		add(*u.Messages)
	}
	add(u.History)
	add(u.AllMessages)

	return out
}

func checkpointConfig(cfg RunConfig) CheckpointConfig {
	return CheckpointConfig{ThreadID: cfg.ThreadID, Namespace: cfg.Namespace}
}
