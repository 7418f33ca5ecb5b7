package node

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/team"
	"github.com/hupe1980/agentgraph/tool"
)

// Tool call outcomes recorded in metrics.
const (
	statusOK      = "ok"
	statusError   = "error"
	statusDropped = "dropped"
)

// ToolNode executes the pending tool calls of one member.
type ToolNode struct {
	member *team.GraphMember
	tools  ToolSource
	// after is where the member's turn continues once a return-direct tool
	// has produced the answer.
	after string
	opts  Options
}

// NewToolNode creates the tool node for member. after names the node that
// follows the member in its topology; graph.End terminates the run.
func NewToolNode(member *team.GraphMember, tools ToolSource, after string, optFns ...func(o *Options)) *ToolNode {
	return &ToolNode{member: member, tools: tools, after: after, opts: buildOptions(optFns)}
}

type pendingCall struct {
	call core.FunctionCall
	args map[string]any
	tool tool.Tool
}

type callOutcome struct {
	msg    *core.Message
	direct bool
	err    error
}

// Work implements graph.Node. Calls run concurrently. Results are appended to
// the buffer in call order once every call has finished. Calls naming an
// unknown tool or carrying malformed arguments are dropped. A failing or
// panicking tool fails the node with the first error in call order unless
// WithToolErrorsAsResults is set.
func (n *ToolNode) Work(ctx context.Context, s graph.State, cfg graph.RunConfig) (graph.Result, error) {
	calls := s.ToolCalls
	if len(calls) == 0 {
		return graph.Result{}, nil
	}

	resolved, err := n.tools.ResolveAll(ctx, n.member.ExecutableTools())
	if err != nil {
		return graph.Result{}, fmt.Errorf("resolve tools for %s: %w", n.member.Name, err)
	}
	byName := make(map[string]tool.Tool, len(resolved))
	for _, t := range resolved {
		byName[t.Name()] = t
	}

	logger := n.opts.Logger
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	var pending []pendingCall
	for _, call := range calls {
		if call.Name == tool.AskHumanName {
			continue
		}
		t, ok := byName[call.Name]
		if !ok {
			logger.Warn("tool.call.dropped", "member", n.member.Name, "tool", call.Name, "call_id", call.ID, "reason", "no matching tool")
			n.opts.Metrics.ToolCalled(call.Name, statusDropped)
			continue
		}
		args, err := tool.ParseArgs(call.Arguments)
		if err != nil {
			logger.Warn("tool.call.dropped", "member", n.member.Name, "tool", call.Name, "call_id", call.ID, "reason", err.Error())
			n.opts.Metrics.ToolCalled(call.Name, statusDropped)
			continue
		}
		pending = append(pending, pendingCall{call: call, args: args, tool: t})
	}

	outcomes := make([]callOutcome, len(pending))
	var g errgroup.Group
	if n.opts.Parallelism > 0 {
		g.SetLimit(n.opts.Parallelism)
	}
	for i, pc := range pending {
		g.Go(func() error {
			outcomes[i] = n.invoke(ctx, pc, cfg, logger)
			return nil
		})
	}
	_ = g.Wait()

	if !n.opts.ToolErrorsAsResults {
		for _, o := range outcomes {
			if o.err != nil {
				return graph.Result{}, o.err
			}
		}
	}

	var (
		results []core.Message
		answer  *core.Message
	)
	for _, o := range outcomes {
		if o.msg == nil {
			continue
		}
		results = append(results, *o.msg)
		if o.direct && answer == nil {
			a := core.NewAssistantMessage(n.member.Name, o.msg.Content)
			answer = &a
		}
	}

	all := make([]core.Message, 0, len(results)+2)
	if last, ok := s.Messages.Last(); ok && last.HasFunctionCalls() {
		all = append(all, last)
	}
	all = append(all, results...)

	if answer != nil {
		logger.Info("tool.return_direct", "member", n.member.Name, "next", n.after)
		return graph.Result{
			Update: graph.Update{
				AllMessages: append(all, *answer),
				History:     []core.Message{*answer},
				Messages:    graph.SetMessages(),
				NodeOutputs: graph.NodeOutputs{n.member.Name: answer.Content},
			},
			Goto: n.after,
		}, nil
	}

	buf := make([]core.Message, 0, len(s.Messages)+len(results))
	buf = append(buf, s.Messages...)
	buf = append(buf, results...)

	return graph.Result{Update: graph.Update{
		AllMessages: all,
		Messages:    graph.SetMessages(buf...),
	}}, nil
}

func (n *ToolNode) invoke(ctx context.Context, pc pendingCall, cfg graph.RunConfig, logger logging.Logger) (out callOutcome) {
	name := pc.call.Name
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool.call.panic", "tool", name, "call_id", pc.call.ID, "panic", fmt.Sprint(r))
			n.opts.Metrics.ToolCalled(name, statusError)
			err := fmt.Errorf("tool %s panicked: %v", name, r)
			msg := core.NewToolMessage(pc.call.ID, name, "Error: "+err.Error())
			out = callOutcome{msg: &msg, err: err}
		}
	}()

	ctx = tool.WithCallInfo(ctx, tool.CallInfo{
		CallID:   pc.call.ID,
		ThreadID: cfg.ThreadID,
		UserID:   cfg.UserID,
		Logger:   logger,
	})

	result, err := pc.tool.Call(ctx, pc.args)
	dur := time.Since(start)
	if err != nil {
		logging.ToolCall(logger, name, dur, err)
		n.opts.Metrics.ToolCalled(name, statusError)
		msg := core.NewToolMessage(pc.call.ID, name, "Error: "+err.Error())
		return callOutcome{msg: &msg, err: fmt.Errorf("call %s (%s): %w", name, pc.call.ID, err)}
	}

	logging.ToolCall(logger, name, dur, nil)
	n.opts.Metrics.ToolCalled(name, statusOK)

	if result == nil {
		return callOutcome{}
	}

	msg := core.NewToolMessage(pc.call.ID, name, "")
	switch v := result.(type) {
	case string:
		msg.Content = v
	case tool.Result:
		msg.Content = v.Content
		msg.Documents = v.Documents
	case *tool.Result:
		msg.Content = v.Content
		msg.Documents = v.Documents
	case fmt.Stringer:
		msg.Content = v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			msg.Content = fmt.Sprint(v)
		} else {
			msg.Content = string(b)
		}
	}
	return callOutcome{msg: &msg, direct: tool.IsReturnDirect(pc.tool)}
}
