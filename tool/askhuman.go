package tool

import "github.com/hupe1980/agentgraph/model"

// AskHumanName is the pseudo tool a member calls to request free-form context
// from a human. It is never executed by a tool node; the graph routes the
// call to a human input node instead.
const AskHumanName = "ask-human"

// AskHumanDefinition is the definition bound to members that may ask a human.
func AskHumanDefinition() model.ToolDefinition {
	return model.NewToolDefinition(
		AskHumanName,
		"Ask the human a question when you need more context or a decision only they can make.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The question to ask the human.",
				},
			},
			"required": []string{"question"},
		},
	)
}
