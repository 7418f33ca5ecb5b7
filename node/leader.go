package node

import (
	"context"
	"slices"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/team"
	"github.com/hupe1980/agentgraph/tool"
)

// RouteToolName is the structured output function the leader is forced to call.
const RouteToolName = "route"

// ErrorTask is the task recorded when delegation fails.
const ErrorTask = "Task completed due to error."

// LeaderNode decides which team member acts next.
type LeaderNode struct {
	team  *team.GraphTeam
	model model.Model
	opts  Options
}

// NewLeader creates the delegation node for t.
func NewLeader(t *team.GraphTeam, m model.Model, optFns ...func(o *Options)) *LeaderNode {
	return &LeaderNode{team: t, model: m, opts: buildOptions(optFns)}
}

// Choices returns the decisions the leader may produce.
func (l *LeaderNode) Choices() []string {
	return append(l.team.MemberNames(), graph.Finish)
}

// Work implements graph.Node. It never fails: an invocation error or an
// unknown decision becomes FINISH.
func (l *LeaderNode) Work(ctx context.Context, s graph.State, cfg graph.RunConfig) (graph.Result, error) {
	next, task := l.delegate(ctx, s)
	l.opts.Logger.Info("node.leader.route", "team", l.team.Name, "next", next)

	u := graph.Update{Next: graph.Ref(next), Messages: graph.SetMessages()}
	if task != "" {
		u.Task = graph.Ref(task)
	}
	return graph.Result{Update: u}, nil
}

func (l *LeaderNode) delegate(ctx context.Context, s graph.State) (string, string) {
	members := l.team.MemberNames()
	roster := make([]rosterEntry, 0, len(members))
	for _, name := range members {
		p, _ := l.team.Lookup(name)
		roster = append(roster, rosterEntry{Name: name, Role: participantRole(p)})
	}

	instructions, err := util.Execute(leaderPrompt, map[string]any{
		"Name":      l.team.Name,
		"Role":      l.team.Role,
		"Backstory": l.team.Backstory,
		"Members":   roster,
	})
	if err != nil {
		l.opts.Logger.Error("node.leader.prompt", "team", l.team.Name, "error", err)
		return graph.Finish, ErrorTask
	}

	msgs := make([]core.Message, 0, len(s.History)+1)
	if s.MainTask != "" {
		msgs = append(msgs, core.NewUserMessage("", s.MainTask))
	}
	msgs = append(msgs, s.History...)

	resp, err := model.Invoke(ctx, l.model, model.Request{
		Instructions: instructions,
		Messages:     msgs,
		Tools:        []model.ToolDefinition{l.routeDefinition()},
		ToolChoice:   RouteToolName,
	})
	if err != nil {
		l.opts.Logger.Warn("node.leader.error", "team", l.team.Name, "error", err)
		return graph.Finish, ErrorTask
	}

	call, ok := resp.Message.CallNamed(RouteToolName)
	if !ok {
		l.opts.Logger.Warn("node.leader.no_route", "team", l.team.Name)
		return graph.Finish, ErrorTask
	}
	args, err := tool.ParseArgs(call.Arguments)
	if err != nil {
		l.opts.Logger.Warn("node.leader.bad_route", "team", l.team.Name, "error", err)
		return graph.Finish, ErrorTask
	}

	next, _ := args["next"].(string)
	task, _ := args["task"].(string)
	if !slices.Contains(members, next) {
		if next != graph.Finish {
			l.opts.Logger.Warn("node.leader.unknown_member", "team", l.team.Name, "next", next)
		}
		return graph.Finish, task
	}
	return next, task
}

func (l *LeaderNode) routeDefinition() model.ToolDefinition {
	return model.NewToolDefinition(RouteToolName, "Select the next team member to act, or FINISH.", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"next": map[string]any{
				"type":        "string",
				"enum":        l.Choices(),
				"description": "The member to act next, or FINISH when done.",
			},
			"task": map[string]any{
				"type":        "string",
				"description": "Precise instruction for the selected member.",
			},
		},
		"required": []string{"next", "task"},
	})
}

func participantRole(p team.Participant) string {
	switch v := p.(type) {
	case *team.GraphMember:
		return v.Role
	case *team.GraphLeader:
		return v.Role
	default:
		return ""
	}
}
