package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition is a shorthand for a "function" typed ToolDefinition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type:     "function",
		Function: FunctionDefinition{Name: name, Description: description, Parameters: parameters},
	}
}

// Request captures the normalized model input produced by nodes.
type Request struct {
	// Instructions is rendered as the leading system message.
	Instructions string `json:"instructions"`
	// Messages is the conversation after the instructions.
	Messages []core.Message `json:"messages"`
	// Tools are the functions the model may call.
	Tools []ToolDefinition `json:"tools,omitempty"`
	// ToolChoice forces a call to the named tool when non-empty. This is how
	// structured output is requested.
	ToolChoice string `json:"tool_choice,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	Partial      bool         `json:"partial"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by nodes to drive generation.
//
// Generate must close both channels when done. At most one error is sent.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoResponse is returned by Invoke when a model closes its stream without
// producing a final response.
var ErrNoResponse = errors.New("model returned no final response")

// Invoke drains a Generate call and returns the final (non-partial) response.
func Invoke(ctx context.Context, m Model, req Request) (Response, error) {
	out, errCh := m.Generate(ctx, req)

	var (
		final Response
		found bool
	)
	for out != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			if !r.Partial {
				final, found = r, true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, fmt.Errorf("%s: %w", m.Info().Name, err)
			}
		}
	}

	if !found {
		return Response{}, ErrNoResponse
	}
	return final, nil
}
