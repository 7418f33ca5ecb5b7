// Package anthropic provides a model wrapper for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Constructor returns a model.Constructor suitable for model.Registry.
func Constructor(apiKey string) model.Constructor {
	return func(name string, temperature float64) (model.Model, error) {
		return NewModel(func(o *Options) {
			if name != "" {
				o.Model = anthropic.Model(name)
			}
			o.Temperature = temperature
			o.APIKey = apiKey
		}), nil
	}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Generate implements model.Model with a single non-streaming Messages call.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := m.client.Messages.New(ctx, m.buildParams(req))
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		msg := core.NewAssistantMessage("", "")
		var text strings.Builder
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text.WriteString(block.AsText().Text)
			case "tool_use":
				use := block.AsToolUse()
				args := "{}"
				if raw, err := json.Marshal(use.Input); err == nil {
					args = string(raw)
				}
				msg.FunctionCalls = append(msg.FunctionCalls, core.FunctionCall{
					ID:        use.ID,
					Name:      use.Name,
					Arguments: args,
				})
			}
		}
		msg.Content = text.String()

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			Message:      msg,
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}

	var system []anthropic.TextBlockParam
	if req.Instructions != "" {
		system = append(system, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, msg := range req.Messages {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	if len(system) > 0 {
		params.System = system
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
		if req.ToolChoice != "" {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{
				OfTool: &anthropic.ToolChoiceToolParam{Name: req.ToolChoice},
			}
		}
	}

	return params
}

// buildMessages converts the transcript into Anthropic messages. Consecutive
// tool results are folded into a single user turn as the API requires.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var (
		messages    []anthropic.MessageParam
		toolResults []anthropic.ContentBlockParamUnion
	)

	flushResults := func() {
		if len(toolResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResults...))
			toolResults = nil
		}
	}

	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleTool:
			toolResults = append(toolResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		case core.RoleAssistant:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, fc := range msg.FunctionCalls {
				var input any = map[string]any{}
				if fc.Arguments != "" {
					if err := json.Unmarshal([]byte(fc.Arguments), &input); err != nil {
						input = fc.Arguments
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(fc.ID, input, fc.Name))
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flushResults()
			if msg.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	flushResults()

	return messages
}

// buildTools converts tool definitions to Anthropic tool params.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, tdef := range tools {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if p := tdef.Function.Parameters; p != nil {
			if props, ok := p["properties"]; ok {
				schema.Properties = props
			}
			schema.Required = util.RequiredFields(p)
		}

		out[i] = anthropic.ToolUnionParamOfTool(schema, tdef.Function.Name)
		if out[i].OfTool != nil && tdef.Function.Description != "" {
			out[i].OfTool.Description = anthropic.String(tdef.Function.Description)
		}
	}

	return out
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
