package openai

import (
	"testing"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessages(t *testing.T) {
	req := model.Request{
		Instructions: "be helpful",
		Messages: []core.Message{
			core.NewUserMessage("", "weather?"),
			core.NewAssistantMessage("alice", "", core.FunctionCall{ID: "c1", Name: "weather"}),
			core.NewToolMessage("c1", "weather", "sunny"),
			core.NewAssistantMessage("alice", "It is sunny."),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "{}", msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestBuildParamsForcedToolChoice(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test"; o.Model = "gpt-test" })
	params := m.buildParams(model.Request{
		Tools:      []model.ToolDefinition{model.NewToolDefinition("route", "pick", map[string]any{"type": "object"})},
		ToolChoice: "route",
	})

	require.Len(t, params.Tools, 1)
	assert.Equal(t, "route", params.Tools[0].Function.Name)
	require.NotNil(t, params.ToolChoice.OfChatCompletionNamedToolChoice)
	assert.Equal(t, "route", params.ToolChoice.OfChatCompletionNamedToolChoice.Function.Name)
	assert.Equal(t, "gpt-test", m.Info().Name)
}

func TestConstructor(t *testing.T) {
	m, err := Constructor("key")("gpt-4o", 0.2)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.Info().Name)
	assert.Equal(t, "openai", m.Info().Provider)
}
