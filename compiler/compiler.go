package compiler

import (
	"fmt"
	"slices"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/metrics"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/node"
	"github.com/hupe1980/agentgraph/team"
	"github.com/hupe1980/agentgraph/tool"
)

// FinalizeNode is the summariser node of a hierarchical team.
const FinalizeNode = "finalize"

// Node name suffixes.
const (
	ToolsSuffix        = "-tools"
	ToolReviewSuffix   = "-tool-review"
	AskHumanSuffix     = "-ask-human-tool"
	OutputReviewSuffix = "-output-review"
)

// Options configure a Compiler.
type Options struct {
	Checkpointer graph.Checkpointer
	// MaxSteps bounds node executions per invocation of each (sub)graph.
	MaxSteps int
	// OutputReview lists members whose final answers need human approval.
	OutputReview []string
	// TerminateOnReject ends the run when a tool review is rejected.
	TerminateOnReject bool
	// ToolErrorsAsResults reports tool failures to the member instead of
	// failing the run.
	ToolErrorsAsResults bool
	// ToolParallelism bounds concurrent tool calls per batch. Zero is unbounded.
	ToolParallelism int
	Logger          logging.Logger
	Metrics         *metrics.Metrics
}

// WithOutputReview inserts output review nodes after the named members.
func WithOutputReview(members ...string) func(o *Options) {
	return func(o *Options) { o.OutputReview = append(o.OutputReview, members...) }
}

// WithCheckpointer sets the checkpoint store of compiled graphs.
func WithCheckpointer(cp graph.Checkpointer) func(o *Options) {
	return func(o *Options) { o.Checkpointer = cp }
}

// WithMaxSteps sets the per-invocation step limit.
func WithMaxSteps(n int) func(o *Options) {
	return func(o *Options) { o.MaxSteps = n }
}

// Compiler builds executable graphs from member rows. It is safe for
// concurrent use; compiled graphs share the model factory and tool source.
type Compiler struct {
	models model.Factory
	tools  node.ToolSource
	opts   Options
}

// New creates a Compiler. tools resolves member tool references at
// execution time, typically a *resolver.Resolver.
func New(models model.Factory, tools node.ToolSource, optFns ...func(o *Options)) *Compiler {
	opts := Options{MaxSteps: graph.DefaultMaxSteps}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Compiler{models: models, tools: tools, opts: opts}
}

// Graph is a compiled team.
type Graph struct {
	*graph.ExecutableGraph
	Team     *team.GraphTeam
	Topology team.Topology
}

// NewState returns the initial state of a run. history is the prior
// conversation; task becomes the main task every node works towards.
func (g *Graph) NewState(history []core.Message, task string) graph.State {
	return graph.State{
		Team:     g.Team,
		MainTask: task,
		History:  graph.Transcript(nil).Append(history...),
	}
}

// Compile builds the graph for members under topology. userID owns skills
// and uploads that do not name a user themselves. Every failure is a
// *ConfigError.
func (c *Compiler) Compile(members []team.Member, topology team.Topology, userID string) (*Graph, error) {
	var (
		t   *team.GraphTeam
		err error
	)

	switch {
	case topology == team.TopologyHierarchical:
		t, err = team.BuildHierarchical(members, userID)
	case topology == team.TopologySequential:
		t, err = team.BuildSequential(members, userID)
	case topology.IsSingleBot():
		t, err = team.BuildSingle(members, userID)
	default:
		err = fmt.Errorf("unknown topology %q", topology)
	}
	if err != nil {
		return nil, &ConfigError{Topology: topology, Err: err}
	}

	var g *graph.ExecutableGraph
	if topology == team.TopologyHierarchical {
		g, err = c.compileHierarchical(t)
	} else {
		g, err = c.compileChain(t)
	}
	if err != nil {
		return nil, &ConfigError{Topology: topology, Err: err}
	}

	c.opts.Logger.Debug("compiler.compiled", "team", t.Name, "topology", string(topology), "nodes", len(g.Nodes()))

	return &Graph{ExecutableGraph: g, Team: t, Topology: topology}, nil
}

func (c *Compiler) compileHierarchical(t *team.GraphTeam) (*graph.ExecutableGraph, error) {
	if len(t.Members) == 0 {
		return nil, fmt.Errorf("leader %q has no members", t.Name)
	}
	if err := reserved(t.Name); err != nil {
		return nil, err
	}

	leaderModel, err := c.models.Model(t.Provider, t.Model, t.Temperature)
	if err != nil {
		return nil, fmt.Errorf("model for leader %q: %w", t.Name, err)
	}

	b := graph.NewBuilder(t.Name)
	names := t.MemberNames()

	b.AddNode(t.Name, node.NewLeader(t, leaderModel, c.nodeOptions()...))
	b.AddNode(FinalizeNode, node.NewSummariser(t, leaderModel, c.nodeOptions()...))
	b.AddConditionalEdges(t.Name, leaderRouter(names), append(slices.Clone(names), FinalizeNode)...)
	b.SetEntry(t.Name)

	for _, name := range names {
		p, _ := t.Lookup(name)
		if err := reserved(name); err != nil {
			return nil, err
		}

		switch v := p.(type) {
		case *team.GraphMember:
			if err := c.addMember(b, v, t.Name); err != nil {
				return nil, err
			}
		case *team.GraphLeader:
			sub, err := c.compileHierarchical(v.Team)
			if err != nil {
				return nil, fmt.Errorf("sub-team %q: %w", v.Name, err)
			}
			b.AddNode(v.Name, &graph.SubgraphNode{
				Name:  v.Name,
				Graph: sub,
				Enter: enterSubTeam(v.Team),
				Exit:  exitSubTeam,
			})
			b.AddEdge(v.Name, t.Name)
		}
	}

	return b.Compile(c.graphOptions)
}

func (c *Compiler) compileChain(t *team.GraphTeam) (*graph.ExecutableGraph, error) {
	b := graph.NewBuilder(t.Name)
	names := t.MemberNames()
	b.SetEntry(names[0])

	for i, name := range names {
		p, _ := t.Lookup(name)
		m, ok := p.(*team.GraphMember)
		if !ok {
			return nil, fmt.Errorf("member %q cannot lead a sub-team outside a hierarchical team", name)
		}
		if err := reserved(name); err != nil {
			return nil, err
		}

		after := graph.End
		if i+1 < len(names) {
			after = names[i+1]
		}
		if err := c.addMember(b, m, after); err != nil {
			return nil, err
		}
	}

	return b.Compile(c.graphOptions)
}

// addMember adds the nodes of one tool-using member. after is where the
// member continues once its turn is complete.
func (c *Compiler) addMember(b *graph.Builder, m *team.GraphMember, after string) error {
	mdl, err := c.models.Model(m.Provider, m.Model, m.Temperature)
	if err != nil {
		return fmt.Errorf("model for member %q: %w", m.Name, err)
	}

	opts := c.nodeOptions()
	b.AddNode(m.Name, node.NewWorker(m, mdl, c.tools, opts...))

	if slices.Contains(c.opts.OutputReview, m.Name) {
		review := m.Name + OutputReviewSuffix
		routes := map[string]string{
			graph.ActionApproved: after,
			graph.ActionReview:   m.Name,
			graph.ActionEdit:     m.Name,
		}
		b.AddNode(review, node.NewHuman(graph.OutputReview, m.Name, routes, opts...))
		b.AddConditionalEdges(review, humanRouter(routes[graph.ActionApproved]), routeTargets(routes)...)
		after = review
	}

	var toolTarget, askTarget string
	targets := []string{after}

	if len(m.ExecutableTools()) > 0 {
		tools := m.Name + ToolsSuffix
		b.AddNode(tools, node.NewToolNode(m, c.tools, after, opts...))
		b.AddEdge(tools, m.Name)
		toolTarget = tools

		if m.Interrupt {
			review := m.Name + ToolReviewSuffix
			routes := map[string]string{
				graph.ActionApproved: tools,
				graph.ActionUpdate:   tools,
				graph.ActionRejected: m.Name,
			}
			if c.opts.TerminateOnReject {
				routes[graph.ActionRejected] = graph.End
			}
			b.AddNode(review, node.NewHuman(graph.ToolReview, m.Name, routes, opts...))
			b.AddConditionalEdges(review, humanRouter(tools), routeTargets(routes)...)
			toolTarget = review
		}
		targets = append(targets, toolTarget)
	}

	if m.HasAskHuman() {
		ask := m.Name + AskHumanSuffix
		routes := map[string]string{graph.ActionContinue: m.Name}
		b.AddNode(ask, node.NewHuman(graph.ContextInput, m.Name, routes, opts...))
		b.AddConditionalEdges(ask, humanRouter(m.Name), m.Name)
		askTarget = ask
		targets = append(targets, ask)
	}

	b.AddConditionalEdges(m.Name, memberRouter(toolTarget, askTarget, after), targets...)
	return nil
}

func (c *Compiler) nodeOptions() []func(o *node.Options) {
	opts := []func(o *node.Options){
		node.WithLogger(c.opts.Logger),
		node.WithMetrics(c.opts.Metrics),
		node.WithParallelism(c.opts.ToolParallelism),
	}
	if c.opts.TerminateOnReject {
		opts = append(opts, node.WithTerminateOnReject())
	}
	if c.opts.ToolErrorsAsResults {
		opts = append(opts, node.WithToolErrorsAsResults())
	}
	return opts
}

func (c *Compiler) graphOptions(o *graph.Options) {
	o.Checkpointer = c.opts.Checkpointer
	o.MaxSteps = c.opts.MaxSteps
	o.Metrics = c.opts.Metrics
}

// memberRouter sends a reply with an ask-human call to the human input
// node, other tool calls to the tool (or review) node, and everything else
// to the member's continuation.
func memberRouter(toolTarget, askTarget, after string) graph.Router {
	return func(s graph.State) graph.RouteDecision {
		if last, ok := s.Messages.Last(); ok && last.HasFunctionCalls() {
			if _, asked := last.CallNamed(tool.AskHumanName); asked && askTarget != "" {
				return graph.CallHuman(askTarget)
			}
			if toolTarget != "" {
				return graph.CallTool(toolTarget)
			}
		}
		if after == graph.End {
			return graph.Terminate()
		}
		return graph.Continue(after)
	}
}

// leaderRouter follows the leader's decision. FINISH and anything that is not
// a member go to the finalize node.
func leaderRouter(members []string) graph.Router {
	return func(s graph.State) graph.RouteDecision {
		if slices.Contains(members, s.Next) {
			return graph.Continue(s.Next)
		}
		return graph.Continue(FinalizeNode)
	}
}

// humanRouter is the static fallback of a human node. Resumes always name
// their target, so it only documents the routing table.
func humanRouter(fallback string) graph.Router {
	return func(graph.State) graph.RouteDecision {
		if fallback == graph.End {
			return graph.Terminate()
		}
		return graph.Continue(fallback)
	}
}

func routeTargets(routes map[string]string) []string {
	out := make([]string, 0, len(routes))
	for _, to := range routes {
		out = append(out, to)
	}
	return out
}

func enterSubTeam(t *team.GraphTeam) func(parent graph.State) graph.State {
	return func(parent graph.State) graph.State {
		task := parent.Task
		if task == "" {
			task = parent.MainTask
		}
		return graph.State{
			Team:     t,
			MainTask: task,
			History:  parent.History,
		}
	}
}

// exitSubTeam hands the sub-team's transcript and final answer to the parent.
func exitSubTeam(parent, child graph.State) graph.Update {
	u := graph.Update{
		AllMessages: child.AllMessages,
		Messages:    graph.SetMessages(),
		NodeOutputs: child.NodeOutputs,
	}
	if n := len(child.History); n > 0 {
		u.History = []core.Message{child.History[n-1]}
	}
	return u
}

func reserved(name string) error {
	if name == FinalizeNode || name == graph.End {
		return fmt.Errorf("member name %q is reserved", name)
	}
	return nil
}
