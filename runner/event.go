package runner

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
)

// EventType tags a StreamEvent.
type EventType string

const (
	EventAI        EventType = "ai"
	EventTool      EventType = "tool"
	EventInterrupt EventType = "interrupt"
	EventStop      EventType = "stop"
	EventError     EventType = "error"
)

// StreamEvent is the wire shape of one streamed event.
type StreamEvent struct {
	Type       EventType           `json:"type"`
	ID         string              `json:"id"`
	Name       string              `json:"name,omitempty"`
	Content    string              `json:"content,omitempty"`
	ToolCalls  []core.FunctionCall `json:"tool_calls,omitempty"`
	ToolOutput string              `json:"tool_output,omitempty"`
	Documents  []core.Document     `json:"documents,omitempty"`
}

// IsTerminal reports whether the event ends a turn.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventInterrupt || e.Type == EventStop || e.Type == EventError
}

// EncodeSSE writes ev as a single "data:" line followed by a blank line.
func EncodeSSE(w io.Writer, ev StreamEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

// fromMessage translates a committed message. Human input and system
// messages are not streamed.
func fromMessage(m core.Message) (StreamEvent, bool) {
	switch m.Role {
	case core.RoleAssistant:
		return StreamEvent{
			Type:      EventAI,
			ID:        m.ID,
			Name:      m.Name,
			Content:   m.Content,
			ToolCalls: m.FunctionCalls,
		}, true
	case core.RoleTool:
		return StreamEvent{
			Type:       EventTool,
			ID:         m.ToolCallID,
			Name:       m.Name,
			ToolOutput: m.Content,
			Documents:  m.Documents,
		}, true
	default:
		return StreamEvent{}, false
	}
}

func interruptEvent(in *graph.Interrupt) StreamEvent {
	ev := StreamEvent{Type: EventInterrupt, ID: core.NewID(), Name: string(in.Type)}
	if in.Type == graph.ToolReview {
		ev.ToolCalls = in.ToolCalls
	} else {
		ev.Content = in.Content
	}
	return ev
}

func errorEvent(err error) StreamEvent {
	return StreamEvent{Type: EventError, ID: core.NewID(), Name: "error", Content: err.Error()}
}

func stopEvent() StreamEvent {
	return StreamEvent{Type: EventStop, ID: core.NewID(), Name: "stop", Content: "Run stopped."}
}
