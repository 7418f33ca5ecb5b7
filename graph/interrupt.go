package graph

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
)

// InteractionType tells the caller what kind of human input a suspended run needs.
type InteractionType string

const (
	ToolReview   InteractionType = "TOOL_REVIEW"
	OutputReview InteractionType = "OUTPUT_REVIEW"
	ContextInput InteractionType = "CONTEXT_INPUT"
)

// Resume actions.
const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
	ActionUpdate   = "update"
	ActionReview   = "review"
	ActionEdit     = "edit"
	ActionContinue = "continue"
)

// Interrupt is the payload a suspended run exposes.
type Interrupt struct {
	// Node is the path of the suspended node. Nodes inside sub-teams are
	// prefixed with the sub-team node names, separated by '/'.
	Node      string              `json:"node"`
	Type      InteractionType     `json:"type"`
	ToolCalls []core.FunctionCall `json:"tool_calls,omitempty"`
	Content   string              `json:"content,omitempty"`
}

// Command is the external decision that resumes a suspended run.
type Command struct {
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

// InvalidInterruptResponseError is returned when a Command does not fit the
// pending interrupt. The run stays suspended at the same point.
type InvalidInterruptResponseError struct {
	Node   string
	Type   InteractionType
	Action string
	Reason string
}

func (e *InvalidInterruptResponseError) Error() string {
	return fmt.Sprintf("invalid %s response %q at %s: %s", e.Type, e.Action, e.Node, e.Reason)
}

var (
	// ErrNotSuspended is returned by Resume when the thread has no pending interrupt.
	ErrNotSuspended = errors.New("run is not suspended")
	// ErrNothingToContinue is returned by Continue when the thread has already finished.
	ErrNothingToContinue = errors.New("run has no pending node")
)
