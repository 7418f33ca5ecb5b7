package node

import (
	"context"

	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/metrics"
	"github.com/hupe1980/agentgraph/team"
	"github.com/hupe1980/agentgraph/tool"
)

// ToolSource resolves a member's tool references at execution time.
// *resolver.Resolver implements it.
type ToolSource interface {
	ResolveAll(ctx context.Context, refs []team.ToolRef) ([]tool.Tool, error)
}

// StaticTools serves a fixed tool list regardless of the references.
type StaticTools []tool.Tool

// ResolveAll implements ToolSource.
func (s StaticTools) ResolveAll(context.Context, []team.ToolRef) ([]tool.Tool, error) {
	return s, nil
}

// Options are shared by all node constructors.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics
	// Parallelism bounds concurrent calls within one tool node batch. Zero
	// or less means unbounded.
	Parallelism int
	// TerminateOnReject ends the run when a tool review is rejected instead
	// of handing the rejection back to the member.
	TerminateOnReject bool
	// ToolErrorsAsResults hands tool failures back to the member as
	// "Error: ..." tool messages instead of failing the run.
	ToolErrorsAsResults bool
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) func(o *Options) {
	return func(o *Options) { o.Metrics = m }
}

// WithParallelism bounds tool fan-out.
func WithParallelism(n int) func(o *Options) {
	return func(o *Options) { o.Parallelism = n }
}

// WithTerminateOnReject selects the terminate-on-reject tool review variant.
func WithTerminateOnReject() func(o *Options) {
	return func(o *Options) { o.TerminateOnReject = true }
}

// WithToolErrorsAsResults reports tool failures to the model instead of
// failing the run.
func WithToolErrorsAsResults() func(o *Options) {
	return func(o *Options) { o.ToolErrorsAsResults = true }
}

func buildOptions(optFns []func(o *Options)) Options {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return opts
}
