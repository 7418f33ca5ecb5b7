// Package agentgraph provides a high-level façade over the graph compiler and
// the run driver, enabling rapid construction of multi-agent teams with
// human-in-the-loop review. Most applications interact with this package by:
//  1. Creating an AgentGraph via New() with a model factory and a tool source
//  2. Running turns of a team asynchronously (Run) or synchronously (RunSync)
//  3. Answering interrupts by running again with a Decision
//
// All defaults are safe for local development and testing: runs checkpoint
// to memory and log nowhere. Production deployments supply a durable
// checkpointer and a structured logger.
package agentgraph

import (
	"context"
	"errors"

	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/compiler"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/metrics"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/node"
	"github.com/hupe1980/agentgraph/runner"
	"github.com/hupe1980/agentgraph/team"
)

// Options configures the AgentGraph instance.
type Options struct {
	// Checkpointer persists run state between turns. Defaults to memory.
	Checkpointer graph.Checkpointer

	// MaxSteps bounds node executions per turn of each (sub)graph.
	MaxSteps int

	// OutputReview names members whose final answers wait for approval.
	OutputReview []string

	// TerminateOnReject ends the turn when a tool review is rejected instead
	// of handing the rejection back to the member.
	TerminateOnReject bool

	// ToolErrorsAsResults hands tool failures back to the model as tool
	// messages. By default a failing tool ends the turn with an error event.
	ToolErrorsAsResults bool

	// ToolParallelism bounds concurrent tool calls per batch. Zero is
	// unbounded.
	ToolParallelism int

	// EventBufferSize sets the channel buffer size of Run.
	EventBufferSize int

	// Stops is polled before each event; defaults to a StopRegistry.
	Stops runner.StopSignal

	// Logger (defaults to NoOp logger if nil)
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// AgentGraph is the high-level façade aggregating the compiler and driver.
type AgentGraph struct {
	opts     Options
	compiler *compiler.Compiler
	driver   *runner.Driver
}

// New creates a new AgentGraph. models builds the model of every member and
// leader; tools resolves member tool references, typically a
// *resolver.Resolver.
func New(models model.Factory, tools node.ToolSource, optFns ...func(o *Options)) *AgentGraph {
	opts := Options{
		Checkpointer:    checkpoint.NewMemory(),
		MaxSteps:        graph.DefaultMaxSteps,
		EventBufferSize: 100,
		Stops:           runner.NewStopRegistry(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	c := compiler.New(models, tools, func(o *compiler.Options) {
		o.Checkpointer = opts.Checkpointer
		o.MaxSteps = opts.MaxSteps
		o.OutputReview = opts.OutputReview
		o.TerminateOnReject = opts.TerminateOnReject
		o.ToolErrorsAsResults = opts.ToolErrorsAsResults
		o.ToolParallelism = opts.ToolParallelism
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	d := runner.New(c, func(o *runner.Options) {
		o.EventBufferSize = opts.EventBufferSize
		o.Stops = opts.Stops
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	return &AgentGraph{opts: opts, compiler: c, driver: d}
}

// Compile builds the graph of t without running it.
func (a *AgentGraph) Compile(t team.Team) (*compiler.Graph, error) {
	return a.compiler.Compile(t.Members, t.Topology, t.UserID)
}

// Run starts an asynchronous turn. The channel is closed when the turn ends.
func (a *AgentGraph) Run(ctx context.Context, in runner.Input) <-chan runner.StreamEvent {
	return a.driver.Run(ctx, in)
}

// Stop requests a cooperative stop of the thread's active turn. It returns
// false when the configured StopSignal does not accept requests.
func (a *AgentGraph) Stop(userID, threadID string) bool {
	r, ok := a.opts.Stops.(interface{ Request(userID, threadID string) })
	if !ok {
		return false
	}
	r.Request(userID, threadID)
	return true
}

// RunSync is a synchronous helper that drains Run and returns every event.
// A terminal error event is also returned as error.
func (a *AgentGraph) RunSync(ctx context.Context, in runner.Input) ([]runner.StreamEvent, error) {
	var events []runner.StreamEvent

	for ev := range a.driver.Run(ctx, in) {
		events = append(events, ev)
	}

	if err := ctx.Err(); err != nil {
		return events, err
	}

	if n := len(events); n > 0 && events[n-1].Type == runner.EventError {
		return events, errors.New(events[n-1].Content)
	}

	return events, nil
}
