package node

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/team"
)

// SummariserNode writes the externally visible answer of a hierarchical team.
// It always terminates the graph.
type SummariserNode struct {
	team  *team.GraphTeam
	model model.Model
	opts  Options
}

// NewSummariser creates the finalize node for t.
func NewSummariser(t *team.GraphTeam, m model.Model, optFns ...func(o *Options)) *SummariserNode {
	return &SummariserNode{team: t, model: m, opts: buildOptions(optFns)}
}

// Work implements graph.Node.
func (n *SummariserNode) Work(ctx context.Context, s graph.State, cfg graph.RunConfig) (graph.Result, error) {
	instructions, err := util.Execute(summaryPrompt, map[string]any{
		"Name": n.team.Name,
		"Role": n.team.Role,
		"Task": s.MainTask,
	})
	if err != nil {
		return graph.Result{}, fmt.Errorf("render prompt: %w", err)
	}

	resp, err := model.Invoke(ctx, n.model, model.Request{
		Instructions: instructions,
		Messages:     []core.Message{core.NewUserMessage("", core.Transcript(s.History))},
	})
	if err != nil {
		return graph.Result{}, fmt.Errorf("summarise for %s: %w", n.team.Name, err)
	}

	answer := core.NewAssistantMessage(n.team.Name, resp.Message.Content)
	if resp.Message.ID != "" {
		answer.ID = resp.Message.ID
	}

	return graph.Result{
		Update: graph.Update{
			History:     []core.Message{answer},
			AllMessages: []core.Message{answer},
			Messages:    graph.SetMessages(),
			Next:        graph.Ref(graph.End),
			NodeOutputs: graph.NodeOutputs{n.team.Name: answer.Content},
		},
		Terminate: true,
	}, nil
}
