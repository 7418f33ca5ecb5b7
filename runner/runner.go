package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentgraph/compiler"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/metrics"
	"github.com/hupe1980/agentgraph/team"
)

// Run outcomes recorded in metrics.
const (
	OutcomeCompleted   = "completed"
	OutcomeInterrupted = "interrupted"
	OutcomeStopped     = "stopped"
	OutcomeError       = "error"
)

var errStopped = errors.New("run stopped")

// Compiler builds the graph of a team. *compiler.Compiler implements it.
type Compiler interface {
	Compile(members []team.Member, topology team.Topology, userID string) (*compiler.Graph, error)
}

// Input describes one execution turn.
type Input struct {
	ThreadID string
	UserID   string
	Team     team.Team
	// History is the conversation before this turn.
	History []core.Message
	// Task is the new user request. It is ignored when Decision is set.
	Task string
	// Decision answers a suspended run, or continues a stopped one.
	Decision *graph.Command
}

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// Stops is polled before each emitted event.
	Stops   StopSignal
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Driver drives graph turns and streams their events. Public methods are
// safe for concurrent use; runs on different threads are independent.
type Driver struct {
	compiler        Compiler
	eventBufferSize int
	stops           StopSignal
	logger          logging.Logger
	metrics         *metrics.Metrics

	activeRuns map[string]*activeRun
	mu         sync.Mutex
}

type activeRun struct {
	cancel context.CancelFunc
}

type stopClearer interface {
	Clear(userID, threadID string)
}

// New constructs a Driver with optional overrides.
func New(c Compiler, optFns ...func(o *Options)) *Driver {
	opts := Options{
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Stops == nil {
		opts.Stops = NewStopRegistry()
	}

	return &Driver{
		compiler:        c,
		eventBufferSize: opts.EventBufferSize,
		stops:           opts.Stops,
		logger:          logging.OrNoOp(opts.Logger),
		metrics:         opts.Metrics,
		activeRuns:      make(map[string]*activeRun),
	}
}

// Stops returns the stop signal the driver polls.
func (d *Driver) Stops() StopSignal { return d.stops }

// Run starts an asynchronous turn. The returned channel is closed when the
// turn ends; the last event is terminal unless the run completed.
func (d *Driver) Run(ctx context.Context, in Input) <-chan StreamEvent {
	out := make(chan StreamEvent, d.eventBufferSize)

	ctx, cancel := context.WithCancel(ctx)
	run := &activeRun{cancel: cancel}
	d.mu.Lock()
	if prev, ok := d.activeRuns[in.ThreadID]; ok {
		prev.cancel()
	}
	d.activeRuns[in.ThreadID] = run
	d.mu.Unlock()

	go func() {
		defer func() {
			close(out)
			cancel()
			d.mu.Lock()
			if d.activeRuns[in.ThreadID] == run {
				delete(d.activeRuns, in.ThreadID)
			}
			d.mu.Unlock()
		}()

		outcome := d.drive(ctx, in, out)
		d.metrics.RunFinished(outcome)
		d.logger.Info("runner.run.finished", "thread_id", in.ThreadID, "user_id", in.UserID, "outcome", outcome)
	}()

	return out
}

// Cancel aborts the active run of threadID without waiting for a node
// boundary. Prefer a cooperative stop through the StopSignal.
func (d *Driver) Cancel(threadID string) error {
	d.mu.Lock()
	run, exists := d.activeRuns[threadID]
	d.mu.Unlock()

	if !exists {
		return fmt.Errorf("run on thread %s not found", threadID)
	}

	run.cancel()

	return nil
}

func (d *Driver) drive(ctx context.Context, in Input, out chan<- StreamEvent) string {
	logger := d.logger
	if gl, ok := logger.(*logging.GraphLogger); ok {
		logger = gl.WithRun(in.ThreadID, in.UserID)
	}

	// A stop requested between turns never carries over into the next one.
	if c, ok := d.stops.(stopClearer); ok {
		c.Clear(in.UserID, in.ThreadID)
	}

	g, err := d.compiler.Compile(in.Team.Members, in.Team.Topology, in.UserID)
	if err != nil {
		return d.fail(ctx, out, logger, err)
	}

	cfg := graph.RunConfig{
		ThreadID: in.ThreadID,
		UserID:   in.UserID,
		Logger:   logger,
	}
	cfg.Emit = func(ev graph.Event) error {
		for _, m := range ev.Messages {
			se, ok := fromMessage(m)
			if !ok {
				continue
			}
			if d.stops.IsStopRequested(in.UserID, in.ThreadID) {
				return errStopped
			}
			if err := d.send(ctx, out, se); err != nil {
				return err
			}
		}
		return nil
	}

	var s graph.State
	if in.Decision != nil {
		s, err = d.decide(ctx, g, cfg, *in.Decision, logger)
	} else {
		logger.Info("runner.run.start", "team", g.Team.Name, "topology", string(g.Topology))
		s, err = g.Invoke(ctx, g.NewState(in.History, in.Task), cfg)
	}

	switch {
	case errors.Is(err, errStopped):
		if c, ok := d.stops.(stopClearer); ok {
			c.Clear(in.UserID, in.ThreadID)
		}
		logger.Info("runner.run.stopped", "next", s.Next)
		_ = d.send(ctx, out, stopEvent())
		return OutcomeStopped
	case err != nil:
		return d.fail(ctx, out, logger, err)
	case s.Pending != nil:
		logger.Info("runner.run.interrupted", "node", s.Pending.Node, "type", string(s.Pending.Type))
		if err := d.send(ctx, out, interruptEvent(s.Pending)); err != nil {
			return OutcomeError
		}
		return OutcomeInterrupted
	default:
		return OutcomeCompleted
	}
}

// decide resumes a suspended run, or continues a stopped one with the
// decision added as a human turn.
func (d *Driver) decide(ctx context.Context, g *compiler.Graph, cfg graph.RunConfig, cmd graph.Command, logger logging.Logger) (graph.State, error) {
	cp, err := g.GetState(ctx, cfg)
	if err != nil {
		return graph.State{}, fmt.Errorf("load thread %s: %w", cfg.ThreadID, err)
	}

	if cp.Values.Pending != nil {
		logger.Info("runner.run.resume", "node", cp.Values.Pending.Node, "action", cmd.Action)
		return g.Resume(ctx, cfg, cmd)
	}

	text := decisionText(cmd)
	var override graph.Update
	if text != "" {
		msg := core.NewUserMessage("", text)
		override.History = []core.Message{msg}
		override.AllMessages = []core.Message{msg}
	}

	logger.Info("runner.run.continue", "next", cp.Next)
	return g.Continue(ctx, cfg, override)
}

func (d *Driver) fail(ctx context.Context, out chan<- StreamEvent, logger logging.Logger, err error) string {
	logger.Error("runner.run.failed", "error", err.Error())
	_ = d.send(ctx, out, errorEvent(err))
	return OutcomeError
}

func (d *Driver) send(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- ev:
		d.metrics.EventEmitted(string(ev.Type))
		return nil
	}
}

// decisionText extracts free text from a continuation decision: a plain
// string payload or its "text" field. The action alone carries no text.
func decisionText(cmd graph.Command) string {
	switch v := cmd.Data.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case map[string]any:
		if s, ok := v["text"].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
