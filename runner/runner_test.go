package runner_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/compiler"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/internal/testutil"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/node"
	"github.com/hupe1980/agentgraph/runner"
	"github.com/hupe1980/agentgraph/team"
	"github.com/hupe1980/agentgraph/tool"
)

func scripted(fn func(req model.Request) (core.Message, error)) *model.ScriptedModel {
	m := model.NewScriptedModel("scripted")
	m.Handler = fn
	return m
}

func weatherWorker() *model.ScriptedModel {
	return scripted(func(req model.Request) (core.Message, error) {
		if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == core.RoleTool {
			return core.NewAssistantMessage("", "done: "+req.Messages[n-1].Content), nil
		}
		return core.NewAssistantMessage("", "", testutil.Call("c1", "get_weather", map[string]any{"city": "Berlin"})), nil
	})
}

func weatherLeader() *model.ScriptedModel {
	return scripted(func(req model.Request) (core.Message, error) {
		if len(req.Tools) == 0 {
			return core.NewAssistantMessage("", "It is sunny in Berlin."), nil
		}
		for _, m := range req.Messages {
			if m.Name == "weather" && !m.HasFunctionCalls() {
				return core.NewAssistantMessage("", "", testutil.Route(graph.Finish, "")), nil
			}
		}
		return core.NewAssistantMessage("", "", testutil.Route("weather", "get the weather")), nil
	})
}

func weatherTool(onCall func()) tool.Tool {
	return tool.NewFunctionTool("get_weather", "Weather for a city", nil, func(ctx context.Context, args map[string]any) (any, error) {
		if onCall != nil {
			onCall()
		}
		return fmt.Sprintf("sunny in %v", args["city"]), nil
	})
}

func newDriver(t *testing.T, models map[string]*model.ScriptedModel, tools node.StaticTools, optFns ...func(o *runner.Options)) *runner.Driver {
	t.Helper()
	factory := model.FactoryFunc(func(provider, name string, temperature float64) (model.Model, error) {
		m, ok := models[name]
		if !ok {
			return nil, fmt.Errorf("no model %q", name)
		}
		return m, nil
	})
	c := compiler.New(factory, tools, compiler.WithCheckpointer(checkpoint.NewMemory()))
	return runner.New(c, optFns...)
}

func collect(ch <-chan runner.StreamEvent) []runner.StreamEvent {
	var out []runner.StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func types(events []runner.StreamEvent) []runner.EventType {
	out := make([]runner.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestDriver_HierarchicalScenario(t *testing.T) {
	d := newDriver(t, map[string]*model.ScriptedModel{"boss": weatherLeader(), "weather": weatherWorker()}, node.StaticTools{weatherTool(nil)})

	events := collect(d.Run(context.Background(), runner.Input{
		ThreadID: "t1",
		UserID:   "u1",
		Task:     "get the weather",
		Team: team.Team{
			Name:     "weather team",
			Topology: team.TopologyHierarchical,
			Members: []team.Member{
				testutil.NewMember("boss").Root().Model("s", "boss").Build(),
				testutil.NewMember("weather").Worker("boss").Model("s", "weather").GlobalSkill("get_weather").Build(),
			},
		},
	}))

	assert.Equal(t, []runner.EventType{runner.EventAI, runner.EventTool, runner.EventAI, runner.EventAI}, types(events))
	assert.NotContains(t, types(events), runner.EventInterrupt)

	toolEv := events[1]
	assert.Equal(t, "c1", toolEv.ID)
	assert.Equal(t, "get_weather", toolEv.Name)
	assert.Equal(t, "sunny in Berlin", toolEv.ToolOutput)

	last := events[len(events)-1]
	assert.Equal(t, runner.EventAI, last.Type)
	assert.Equal(t, "It is sunny in Berlin.", last.Content)
}

func reviewedTeam() team.Team {
	return team.Team{
		Topology: team.TopologyChatbot,
		Members: []team.Member{
			testutil.NewMember("weather").Type(team.MemberChatbot).Model("s", "weather").GlobalSkill("get_weather").Interrupt().Build(),
		},
	}
}

func TestDriver_InterruptAndResume(t *testing.T) {
	calls := 0
	d := newDriver(t, map[string]*model.ScriptedModel{"weather": weatherWorker()}, node.StaticTools{weatherTool(func() { calls++ })})

	events := collect(d.Run(context.Background(), runner.Input{ThreadID: "t1", UserID: "u1", Task: "weather?", Team: reviewedTeam()}))
	require.Len(t, events, 2)
	assert.Equal(t, runner.EventAI, events[0].Type)
	ev := events[1]
	assert.Equal(t, runner.EventInterrupt, ev.Type)
	assert.Equal(t, string(graph.ToolReview), ev.Name)
	require.Len(t, ev.ToolCalls, 1)
	assert.Equal(t, "get_weather", ev.ToolCalls[0].Name)
	assert.Equal(t, 0, calls)

	events = collect(d.Run(context.Background(), runner.Input{
		ThreadID: "t1",
		UserID:   "u1",
		Team:     reviewedTeam(),
		Decision: &graph.Command{Action: "bogus"},
	}))
	require.Len(t, events, 1)
	assert.Equal(t, runner.EventError, events[0].Type)
	assert.Contains(t, events[0].Content, "bogus")

	events = collect(d.Run(context.Background(), runner.Input{
		ThreadID: "t1",
		UserID:   "u1",
		Team:     reviewedTeam(),
		Decision: &graph.Command{Action: graph.ActionApproved},
	}))
	assert.Equal(t, []runner.EventType{runner.EventTool, runner.EventAI}, types(events))
	assert.Equal(t, "done: sunny in Berlin", events[1].Content)
	assert.Equal(t, 1, calls)
}

func TestDriver_StopAndContinue(t *testing.T) {
	stops := runner.NewStopRegistry()
	tm := team.Team{
		Topology: team.TopologyChatbot,
		Members: []team.Member{
			testutil.NewMember("weather").Type(team.MemberChatbot).Model("s", "weather").GlobalSkill("get_weather").Build(),
		},
	}
	d := newDriver(t,
		map[string]*model.ScriptedModel{"weather": weatherWorker()},
		node.StaticTools{weatherTool(func() { stops.Request("u1", "t1") })},
		func(o *runner.Options) { o.Stops = stops },
	)

	events := collect(d.Run(context.Background(), runner.Input{ThreadID: "t1", UserID: "u1", Task: "weather?", Team: tm}))
	assert.Equal(t, []runner.EventType{runner.EventAI, runner.EventStop}, types(events))
	assert.False(t, stops.IsStopRequested("u1", "t1"))

	events = collect(d.Run(context.Background(), runner.Input{
		ThreadID: "t1",
		UserID:   "u1",
		Team:     tm,
		Decision: &graph.Command{Action: "continue", Data: "go on"},
	}))
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, runner.EventAI, last.Type)
	assert.Equal(t, "done: sunny in Berlin", last.Content)
}

func TestDriver_StopWhileSuspended(t *testing.T) {
	stops := runner.NewStopRegistry()
	calls := 0
	d := newDriver(t,
		map[string]*model.ScriptedModel{"weather": weatherWorker()},
		node.StaticTools{weatherTool(func() { calls++ })},
		func(o *runner.Options) { o.Stops = stops },
	)

	events := collect(d.Run(context.Background(), runner.Input{ThreadID: "t1", UserID: "u1", Task: "weather?", Team: reviewedTeam()}))
	assert.Equal(t, []runner.EventType{runner.EventAI, runner.EventInterrupt}, types(events))

	// Arrives while the run waits for review.
	stops.Request("u1", "t1")

	events = collect(d.Run(context.Background(), runner.Input{
		ThreadID: "t1",
		UserID:   "u1",
		Team:     reviewedTeam(),
		Decision: &graph.Command{Action: graph.ActionApproved},
	}))
	assert.Equal(t, []runner.EventType{runner.EventTool, runner.EventAI}, types(events))
	assert.Equal(t, "done: sunny in Berlin", events[1].Content)
	assert.Equal(t, 1, calls)
	assert.False(t, stops.IsStopRequested("u1", "t1"))
}

func TestDriver_ContinueWithoutText(t *testing.T) {
	stops := runner.NewStopRegistry()
	worker := weatherWorker()
	tm := team.Team{
		Topology: team.TopologyChatbot,
		Members: []team.Member{
			testutil.NewMember("weather").Type(team.MemberChatbot).Model("s", "weather").GlobalSkill("get_weather").Build(),
		},
	}
	d := newDriver(t,
		map[string]*model.ScriptedModel{"weather": worker},
		node.StaticTools{weatherTool(func() { stops.Request("u1", "t1") })},
		func(o *runner.Options) { o.Stops = stops },
	)

	events := collect(d.Run(context.Background(), runner.Input{ThreadID: "t1", UserID: "u1", Task: "weather?", Team: tm}))
	assert.Equal(t, []runner.EventType{runner.EventAI, runner.EventStop}, types(events))

	events = collect(d.Run(context.Background(), runner.Input{
		ThreadID: "t1",
		UserID:   "u1",
		Team:     tm,
		Decision: &graph.Command{Action: graph.ActionApproved},
	}))
	require.NotEmpty(t, events)
	assert.Equal(t, runner.EventAI, events[len(events)-1].Type)

	reqs := worker.Requests()
	require.NotEmpty(t, reqs)
	for _, m := range reqs[len(reqs)-1].Messages {
		if m.Role == core.RoleUser {
			assert.NotEqual(t, graph.ActionApproved, m.Content)
		}
	}
}

func TestDriver_Errors(t *testing.T) {
	d := newDriver(t, map[string]*model.ScriptedModel{}, node.StaticTools{})

	events := collect(d.Run(context.Background(), runner.Input{ThreadID: "t1", Team: team.Team{Topology: "MESH"}}))
	require.Len(t, events, 1)
	assert.Equal(t, runner.EventError, events[0].Type)
	assert.Contains(t, events[0].Content, "unknown topology")

	d = newDriver(t, map[string]*model.ScriptedModel{"weather": weatherWorker()}, node.StaticTools{weatherTool(nil)})
	events = collect(d.Run(context.Background(), runner.Input{
		ThreadID: "never-ran",
		Team:     reviewedTeam(),
		Decision: &graph.Command{Action: graph.ActionApproved},
	}))
	require.Len(t, events, 1)
	assert.Equal(t, runner.EventError, events[0].Type)
	assert.Contains(t, events[0].Content, "checkpoint not found")
}

func TestStopRegistry(t *testing.T) {
	r := runner.NewStopRegistry()
	assert.False(t, r.IsStopRequested("u", "t"))

	r.Request("u", "t")
	assert.True(t, r.IsStopRequested("u", "t"))
	assert.False(t, r.IsStopRequested("other", "t"))

	r.Clear("u", "t")
	assert.False(t, r.IsStopRequested("u", "t"))
}

func TestEncodeSSE(t *testing.T) {
	var buf bytes.Buffer
	err := runner.EncodeSSE(&buf, runner.StreamEvent{Type: runner.EventAI, ID: "m1", Name: "weather", Content: "hi"})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "data: {"))
	assert.True(t, strings.HasSuffix(out, "}\n\n"))
	assert.JSONEq(t, `{"type":"ai","id":"m1","name":"weather","content":"hi"}`, strings.TrimSpace(strings.TrimPrefix(out, "data: ")))
}
