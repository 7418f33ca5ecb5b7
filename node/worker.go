package node

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/team"
	"github.com/hupe1980/agentgraph/tool"
)

// WorkerNode runs one turn of a tool-using member.
type WorkerNode struct {
	member *team.GraphMember
	model  model.Model
	tools  ToolSource
	opts   Options
}

// NewWorker creates the node for member. tools may be nil for members
// without tools.
func NewWorker(member *team.GraphMember, m model.Model, tools ToolSource, optFns ...func(o *Options)) *WorkerNode {
	return &WorkerNode{member: member, model: m, tools: tools, opts: buildOptions(optFns)}
}

// Member returns the participant this node acts for.
func (w *WorkerNode) Member() *team.GraphMember { return w.member }

// Work implements graph.Node. A reply with tool calls is only placed in the
// buffer. A plain reply completes the turn.
func (w *WorkerNode) Work(ctx context.Context, s graph.State, cfg graph.RunConfig) (graph.Result, error) {
	defs, err := w.bindTools(ctx)
	if err != nil {
		return graph.Result{}, err
	}

	instructions, err := util.Execute(workerPrompt, w.member)
	if err != nil {
		return graph.Result{}, fmt.Errorf("render prompt: %w", err)
	}

	task := s.Task
	if task == "" {
		task = s.MainTask
	}

	msgs := make([]core.Message, 0, len(s.History)+len(s.Messages)+1)
	msgs = append(msgs, s.History...)
	if task != "" {
		msgs = append(msgs, core.NewUserMessage("", task))
	}
	msgs = append(msgs, s.Messages...)

	start := time.Now()
	resp, err := model.Invoke(ctx, w.model, model.Request{
		Instructions: instructions,
		Messages:     msgs,
		Tools:        defs,
	})
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	logging.ModelCall(w.opts.Logger, w.model.Info().Name, tokens, time.Since(start), err)
	if err != nil {
		return graph.Result{}, fmt.Errorf("invoke model for %s: %w", w.member.Name, err)
	}

	reply := resp.Message
	if reply.ID == "" {
		reply.ID = core.NewID()
	}
	reply.Role = core.RoleAssistant
	reply.Name = w.member.Name

	if reply.HasFunctionCalls() {
		return graph.Result{Update: graph.Update{Messages: graph.SetMessages(reply)}}, nil
	}

	return graph.Result{Update: graph.Update{
		History:     []core.Message{reply},
		AllMessages: []core.Message{reply},
		Messages:    graph.SetMessages(),
		NodeOutputs: graph.NodeOutputs{w.member.Name: reply.Content},
	}}, nil
}

func (w *WorkerNode) bindTools(ctx context.Context) ([]model.ToolDefinition, error) {
	var defs []model.ToolDefinition
	if w.tools != nil {
		tools, err := w.tools.ResolveAll(ctx, w.member.ExecutableTools())
		if err != nil {
			return nil, fmt.Errorf("resolve tools for %s: %w", w.member.Name, err)
		}
		for _, t := range tools {
			defs = append(defs, tool.Definition(t))
		}
	}
	if w.member.HasAskHuman() {
		defs = append(defs, tool.AskHumanDefinition())
	}
	return defs, nil
}
