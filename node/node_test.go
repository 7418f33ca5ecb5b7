package node_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/internal/testutil"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/node"
	"github.com/hupe1980/agentgraph/team"
	"github.com/hupe1980/agentgraph/tool"
)

var cityParams = map[string]any{
	"type":       "object",
	"properties": map[string]any{"city": map[string]any{"type": "string"}},
	"required":   []string{"city"},
}

func weatherTool(calls *atomic.Int32) tool.Tool {
	return tool.NewFunctionTool("get_weather", "Weather for a city", cityParams,
		func(ctx context.Context, args map[string]any) (any, error) {
			if calls != nil {
				calls.Add(1)
			}
			return "sunny in " + args["city"].(string), nil
		})
}

func member(name string, tools ...string) *team.GraphMember {
	m := &team.GraphMember{Name: name, Role: "helper"}
	for _, t := range tools {
		m.Tools = append(m.Tools, team.GraphSkill{Name: t, Strategy: team.GlobalTools})
	}
	return m
}

func pendingState(calls ...core.FunctionCall) graph.State {
	var s graph.State
	s.Apply(graph.Update{Messages: graph.SetMessages(core.NewAssistantMessage("weather", "", calls...))})
	return s
}

func TestWorker_ToolCallsStayInBuffer(t *testing.T) {
	m := model.NewScriptedModel("m").ReplyCalls(testutil.Call("c1", "get_weather", map[string]any{"city": "Berlin"}))
	w := node.NewWorker(member("weather", "get_weather"), m, node.StaticTools{weatherTool(nil)})

	s := graph.State{MainTask: "weather in Berlin?"}
	res, err := w.Work(context.Background(), s, graph.RunConfig{})
	require.NoError(t, err)

	require.NotNil(t, res.Update.Messages)
	require.Len(t, *res.Update.Messages, 1)
	reply := (*res.Update.Messages)[0]
	assert.Equal(t, "weather", reply.Name)
	assert.True(t, reply.HasFunctionCalls())
	assert.Empty(t, res.Update.History)
	assert.Empty(t, res.Update.AllMessages)

	req := m.Requests()[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "get_weather", req.Tools[0].Function.Name)
	assert.Contains(t, req.Instructions, "You are weather.")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "weather in Berlin?", req.Messages[0].Content)
}

func TestWorker_PlainReplyCompletesTurn(t *testing.T) {
	m := model.NewScriptedModel("m").ReplyText("It is sunny.")
	w := node.NewWorker(member("weather"), m, nil)

	prior := core.NewUserMessage("", "earlier")
	s := graph.State{Task: "report", MainTask: "main", History: graph.Transcript{prior}}
	res, err := w.Work(context.Background(), s, graph.RunConfig{})
	require.NoError(t, err)

	require.Len(t, res.Update.History, 1)
	require.Len(t, res.Update.AllMessages, 1)
	assert.Equal(t, "It is sunny.", res.Update.History[0].Content)
	require.NotNil(t, res.Update.Messages)
	assert.Empty(t, *res.Update.Messages)
	assert.Equal(t, "It is sunny.", res.Update.NodeOutputs["weather"])

	req := m.Requests()[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "earlier", req.Messages[0].Content)
	assert.Equal(t, "report", req.Messages[1].Content)
	assert.Empty(t, req.Tools)
}

func TestWorker_BindsAskHuman(t *testing.T) {
	m := model.NewScriptedModel("m").ReplyText("ok")
	w := node.NewWorker(member("weather", tool.AskHumanName), m, node.StaticTools{})

	_, err := w.Work(context.Background(), graph.State{MainTask: "x"}, graph.RunConfig{})
	require.NoError(t, err)

	req := m.Requests()[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, tool.AskHumanName, req.Tools[0].Function.Name)
}

func TestWorker_ModelErrorIsFatal(t *testing.T) {
	m := model.NewScriptedModel("m").Fail(errors.New("boom"))
	w := node.NewWorker(member("weather"), m, nil)

	_, err := w.Work(context.Background(), graph.State{MainTask: "x"}, graph.RunConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func leaderTeam() *team.GraphTeam {
	return &team.GraphTeam{
		Name: "root",
		Members: map[string]team.Participant{
			"researcher": &team.GraphMember{Name: "researcher", Role: "finds facts"},
			"writer":     &team.GraphMember{Name: "writer"},
		},
		Order: []string{"researcher", "writer"},
	}
}

func TestLeader_Delegates(t *testing.T) {
	m := model.NewScriptedModel("m").ReplyCalls(testutil.Route("writer", "write it up"))
	l := node.NewLeader(leaderTeam(), m)

	res, err := l.Work(context.Background(), graph.State{MainTask: "report"}, graph.RunConfig{})
	require.NoError(t, err)
	require.NotNil(t, res.Update.Next)
	assert.Equal(t, "writer", *res.Update.Next)
	require.NotNil(t, res.Update.Task)
	assert.Equal(t, "write it up", *res.Update.Task)

	req := m.Requests()[0]
	assert.Equal(t, node.RouteToolName, req.ToolChoice)
	assert.Contains(t, req.Instructions, "- researcher: finds facts")
	props := req.Tools[0].Function.Parameters["properties"].(map[string]any)
	assert.Equal(t, []string{"researcher", "writer", graph.Finish}, props["next"].(map[string]any)["enum"])
}

func TestLeader_UnknownMemberFinishes(t *testing.T) {
	m := model.NewScriptedModel("m").ReplyCalls(testutil.Route("intern", "coffee"))
	l := node.NewLeader(leaderTeam(), m)

	res, err := l.Work(context.Background(), graph.State{}, graph.RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, graph.Finish, *res.Update.Next)
}

func TestLeader_ErrorFinishes(t *testing.T) {
	for name, m := range map[string]*model.ScriptedModel{
		"model error": model.NewScriptedModel("m").Fail(errors.New("rate limited")),
		"no call":     model.NewScriptedModel("m").ReplyText("I think the writer"),
		"bad args":    model.NewScriptedModel("m").ReplyCalls(core.FunctionCall{ID: "1", Name: node.RouteToolName, Arguments: "{nope"}),
	} {
		t.Run(name, func(t *testing.T) {
			res, err := node.NewLeader(leaderTeam(), m).Work(context.Background(), graph.State{}, graph.RunConfig{})
			require.NoError(t, err)
			assert.Equal(t, graph.Finish, *res.Update.Next)
			assert.Equal(t, node.ErrorTask, *res.Update.Task)
		})
	}
}

func TestSummariser_Terminates(t *testing.T) {
	m := model.NewScriptedModel("m").ReplyText("Berlin is sunny.")
	n := node.NewSummariser(leaderTeam(), m)

	s := graph.State{MainTask: "weather?", History: graph.Transcript{core.NewAssistantMessage("researcher", "sunny")}}
	res, err := n.Work(context.Background(), s, graph.RunConfig{})
	require.NoError(t, err)
	assert.True(t, res.Terminate)
	require.Len(t, res.Update.History, 1)
	assert.Equal(t, "root", res.Update.History[0].Name)
	assert.Equal(t, "Berlin is sunny.", res.Update.History[0].Content)

	req := m.Requests()[0]
	assert.Contains(t, req.Instructions, "Task: weather?")
	assert.Contains(t, req.Messages[0].Content, "assistant(researcher): sunny")
}

func TestToolNode_DropsUnmatchedAndMalformed(t *testing.T) {
	var calls atomic.Int32
	n := node.NewToolNode(member("weather", "get_weather"), node.StaticTools{weatherTool(&calls)}, "root")

	s := pendingState(
		testutil.Call("c1", "get_weather", map[string]any{"city": "Berlin"}),
		testutil.Call("c2", "launch_rockets", map[string]any{}),
		core.FunctionCall{ID: "c3", Name: "get_weather", Arguments: "{broken"},
	)
	res, err := n.Work(context.Background(), s, graph.RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	buf := *res.Update.Messages
	require.Len(t, buf, 2)
	assert.Equal(t, core.RoleTool, buf[1].Role)
	assert.Equal(t, "c1", buf[1].ToolCallID)
	assert.Equal(t, "sunny in Berlin", buf[1].Content)
	assert.Empty(t, res.Goto)
	assert.Len(t, res.Update.AllMessages, 2)
}

func TestToolNode_KeepsCallOrder(t *testing.T) {
	slow := tool.NewFunctionTool("slow", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		time.Sleep(30 * time.Millisecond)
		return "slow", nil
	})
	fast := tool.NewFunctionTool("fast", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return "fast", nil
	})
	n := node.NewToolNode(member("w", "slow", "fast"), node.StaticTools{slow, fast}, "root", node.WithParallelism(2))

	res, err := n.Work(context.Background(), pendingState(
		core.FunctionCall{ID: "a", Name: "slow"},
		core.FunctionCall{ID: "b", Name: "fast"},
	), graph.RunConfig{})
	require.NoError(t, err)

	buf := *res.Update.Messages
	require.Len(t, buf, 3)
	assert.Equal(t, "slow", buf[1].Content)
	assert.Equal(t, "fast", buf[2].Content)
}

func failingTools() node.StaticTools {
	panicky := tool.NewFunctionTool("panicky", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		panic("kaboom")
	})
	failing := tool.NewFunctionTool("failing", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("upstream down")
	})
	silent := tool.NewFunctionTool("silent", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})
	return node.StaticTools{panicky, failing, silent}
}

func TestToolNode_ErrorFailsNode(t *testing.T) {
	n := node.NewToolNode(member("w"), failingTools(), "root")

	_, err := n.Work(context.Background(), pendingState(
		core.FunctionCall{ID: "b", Name: "failing"},
		core.FunctionCall{ID: "c", Name: "silent"},
	), graph.RunConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeExecution, toolErr.Code)

	_, err = n.Work(context.Background(), pendingState(
		core.FunctionCall{ID: "a", Name: "panicky"},
		core.FunctionCall{ID: "b", Name: "failing"},
	), graph.RunConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestToolNode_ErrorsAsResults(t *testing.T) {
	n := node.NewToolNode(member("w"), failingTools(), "root", node.WithToolErrorsAsResults())

	res, err := n.Work(context.Background(), pendingState(
		core.FunctionCall{ID: "a", Name: "panicky"},
		core.FunctionCall{ID: "b", Name: "failing"},
		core.FunctionCall{ID: "c", Name: "silent"},
	), graph.RunConfig{})
	require.NoError(t, err)

	buf := *res.Update.Messages
	require.Len(t, buf, 3)
	assert.Contains(t, buf[1].Content, "kaboom")
	assert.Contains(t, buf[2].Content, "upstream down")
	assert.Contains(t, buf[2].Content, tool.CodeExecution)
}

func TestToolNode_ReturnDirect(t *testing.T) {
	answer := tool.NewFunctionTool("answer", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return "42", nil
	}, func(o *tool.FunctionOptions) { o.ReturnDirect = true })
	n := node.NewToolNode(member("w"), node.StaticTools{answer}, graph.End)

	res, err := n.Work(context.Background(), pendingState(core.FunctionCall{ID: "a", Name: "answer"}), graph.RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, graph.End, res.Goto)
	require.Len(t, res.Update.History, 1)
	assert.Equal(t, "42", res.Update.History[0].Content)
	assert.Equal(t, "w", res.Update.History[0].Name)
	assert.Empty(t, *res.Update.Messages)
}

func TestToolNode_Documents(t *testing.T) {
	docs := tool.NewFunctionTool("docs", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return tool.Result{Content: "found", Documents: []core.Document{{ID: "d1", Content: "chunk"}}}, nil
	})
	n := node.NewToolNode(member("w"), node.StaticTools{docs}, "root")

	res, err := n.Work(context.Background(), pendingState(core.FunctionCall{ID: "a", Name: "docs"}), graph.RunConfig{})
	require.NoError(t, err)
	buf := *res.Update.Messages
	require.Len(t, buf, 2)
	assert.Equal(t, "found", buf[1].Content)
	require.Len(t, buf[1].Documents, 1)
	assert.Equal(t, "d1", buf[1].Documents[0].ID)
}
