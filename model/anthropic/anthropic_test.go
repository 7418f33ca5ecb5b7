package anthropic

import (
	"testing"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessagesFoldsToolResults(t *testing.T) {
	msgs := buildMessages([]core.Message{
		core.NewSystemMessage("ignored here"),
		core.NewUserMessage("", "compare"),
		core.NewAssistantMessage("bob", "", core.FunctionCall{ID: "a", Name: "t1", Arguments: `{"x":1}`},
			core.FunctionCall{ID: "b", Name: "t2"}),
		core.NewToolMessage("a", "t1", "one"),
		core.NewToolMessage("b", "t2", "two"),
		core.NewAssistantMessage("bob", "done"),
	})

	require.Len(t, msgs, 4)
	assert.Len(t, msgs[1].Content, 2)
	assert.Len(t, msgs[2].Content, 2)
}

func TestBuildParams(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	params := m.buildParams(model.Request{
		Instructions: "route work",
		Tools: []model.ToolDefinition{model.NewToolDefinition("route", "pick next", map[string]any{
			"type":       "object",
			"properties": map[string]any{"next": map[string]any{"type": "string"}},
			"required":   []string{"next"},
		})},
		ToolChoice: "route",
	})

	require.Len(t, params.System, 1)
	require.Len(t, params.Tools, 1)
	require.NotNil(t, params.Tools[0].OfTool)
	assert.Equal(t, []string{"next"}, params.Tools[0].OfTool.InputSchema.Required)
	require.NotNil(t, params.ToolChoice.OfTool)
	assert.Equal(t, "route", params.ToolChoice.OfTool.Name)
}

func TestConstructor(t *testing.T) {
	m, err := Constructor("key")("claude-test", 0)
	require.NoError(t, err)
	assert.Equal(t, "claude-test", m.Info().Name)
}
