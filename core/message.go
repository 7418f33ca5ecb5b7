package core

import (
	"strings"

	"github.com/google/uuid"
)

// Role identifies the author class of a Message.
type Role string

const (
	// RoleSystem marks instructions rendered for the model.
	RoleSystem Role = "system"
	// RoleUser marks human input (including human review feedback).
	RoleUser Role = "user"
	// RoleAssistant marks model output.
	RoleAssistant Role = "assistant"
	// RoleTool marks a tool result correlated to a FunctionCall by ToolCallID.
	RoleTool Role = "tool"
)

// FunctionCall describes a tool invocation requested by a model.
//
// Arguments keeps the raw JSON emitted by the provider. It is parsed and
// sanitized lazily (see tool.ParseArgs) so a malformed payload only affects
// the call it belongs to.
type FunctionCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Document is a retrieved chunk surfaced alongside a tool result.
type Document struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Score    float32           `json:"score,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Message is a single transcript entry.
type Message struct {
	ID            string         `json:"id"`
	Role          Role           `json:"role"`
	Name          string         `json:"name,omitempty"` // authoring member or tool name
	Content       string         `json:"content,omitempty"`
	FunctionCalls []FunctionCall `json:"tool_calls,omitempty"`
	ToolCallID    string         `json:"tool_call_id,omitempty"`
	Documents     []Document     `json:"documents,omitempty"`
}

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(text string) Message {
	return Message{ID: NewID(), Role: RoleSystem, Content: text}
}

// NewUserMessage creates a human authored message. name may be empty.
func NewUserMessage(name, text string) Message {
	return Message{ID: NewID(), Role: RoleUser, Name: name, Content: text}
}

// NewAssistantMessage creates a model authored message with optional calls.
func NewAssistantMessage(name, text string, calls ...FunctionCall) Message {
	return Message{ID: NewID(), Role: RoleAssistant, Name: name, Content: text, FunctionCalls: calls}
}

// NewToolMessage creates a tool result message answering callID.
func NewToolMessage(callID, toolName, content string) Message {
	return Message{ID: NewID(), Role: RoleTool, Name: toolName, Content: content, ToolCallID: callID}
}

// HasFunctionCalls reports whether the message requests at least one tool call.
func (m Message) HasFunctionCalls() bool { return len(m.FunctionCalls) > 0 }

// CallNamed returns the first function call with the given tool name.
func (m Message) CallNamed(name string) (FunctionCall, bool) {
	for _, fc := range m.FunctionCalls {
		if fc.Name == name {
			return fc, true
		}
	}
	return FunctionCall{}, false
}

// Clone returns a deep copy safe for independent mutation.
func (m Message) Clone() Message {
	c := m
	if m.FunctionCalls != nil {
		c.FunctionCalls = append([]FunctionCall(nil), m.FunctionCalls...)
	}
	if m.Documents != nil {
		c.Documents = make([]Document, len(m.Documents))
		for i, d := range m.Documents {
			c.Documents[i] = d
			if d.Metadata != nil {
				md := make(map[string]string, len(d.Metadata))
				for k, v := range d.Metadata {
					md[k] = v
				}
				c.Documents[i].Metadata = md
			}
		}
	}
	return c
}

// Transcript renders messages as "role(name): content" lines. Used when a
// prompt needs the conversation inlined as text.
func Transcript(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		b.WriteString(string(m.Role))
		if m.Name != "" {
			b.WriteString("(" + m.Name + ")")
		}
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// NewID generates a new unique identifier for messages, runs and calls.
func NewID() string { return uuid.NewString() }
