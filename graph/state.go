package graph

import (
	"maps"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/team"
)

// End is the terminal routing target.
const End = "__end__"

// Finish is the leader decision that ends delegation.
const Finish = "FINISH"

// Transcript is an append-only message list.
type Transcript []core.Message

// Append returns t with msgs added at the end. The receiver is never modified in place.
func (t Transcript) Append(msgs ...core.Message) Transcript {
	if len(msgs) == 0 {
		return t
	}
	out := make(Transcript, 0, len(t)+len(msgs))
	out = append(out, t...)
	return append(out, msgs...)
}

// Buffer is the node-to-node working buffer. A write replaces its content.
type Buffer []core.Message

// Replace returns the new buffer content. An empty write clears the buffer.
func (Buffer) Replace(msgs []core.Message) Buffer {
	if len(msgs) == 0 {
		return Buffer{}
	}
	return append(Buffer(nil), msgs...)
}

// Last returns the final message of the buffer.
func (b Buffer) Last() (core.Message, bool) {
	if len(b) == 0 {
		return core.Message{}, false
	}
	return b[len(b)-1], true
}

// NodeOutputs maps node ids to their latest output.
type NodeOutputs map[string]string

// Merge overlays other onto o. An empty other leaves o untouched.
func (o NodeOutputs) Merge(other NodeOutputs) NodeOutputs {
	if len(other) == 0 {
		return o
	}
	out := make(NodeOutputs, len(o)+len(other))
	maps.Copy(out, o)
	maps.Copy(out, other)
	return out
}

// State is the working memory of one graph invocation.
type State struct {
	AllMessages Transcript          `json:"all_messages"`
	History     Transcript          `json:"history"`
	Messages    Buffer              `json:"messages"`
	Team        *team.GraphTeam     `json:"team,omitempty"`
	Next        string              `json:"next"`
	Task        string              `json:"task,omitempty"`
	MainTask    string              `json:"main_task,omitempty"`
	ToolCalls   []core.FunctionCall `json:"tool_calls,omitempty"`
	Interrupted bool                `json:"interrupted"`
	NodeOutputs NodeOutputs         `json:"node_outputs,omitempty"`
	Pending     *Interrupt          `json:"pending,omitempty"`
}

// Update is a partial state write returned by a node. Nil pointer fields and
// empty slices leave the corresponding state field alone, except Messages,
// where a non-nil pointer to an empty buffer clears it.
type Update struct {
	AllMessages []core.Message
	History     []core.Message
	Messages    *Buffer
	Next        *string
	Task        *string
	MainTask    *string
	Interrupted *bool
	NodeOutputs NodeOutputs
}

// Ref returns a pointer to v. It keeps Update literals short.
func Ref[T any](v T) *T { return &v }

// SetMessages returns an Update field value that replaces the buffer with msgs.
func SetMessages(msgs ...core.Message) *Buffer {
	b := Buffer(nil).Replace(msgs)
	return &b
}

// IsZero reports whether u writes nothing.
func (u Update) IsZero() bool {
	return len(u.AllMessages) == 0 && len(u.History) == 0 && u.Messages == nil &&
		u.Next == nil && u.Task == nil && u.MainTask == nil && u.Interrupted == nil &&
		len(u.NodeOutputs) == 0
}

// Apply merges u into s using each field's policy.
func (s *State) Apply(u Update) {
	s.AllMessages = s.AllMessages.Append(u.AllMessages...)
	s.History = s.History.Append(u.History...)

	if u.Messages != nil {
		s.Messages = s.Messages.Replace(*u.Messages)
		s.ToolCalls = nil
		if last, ok := s.Messages.Last(); ok && last.HasFunctionCalls() {
			s.ToolCalls = append([]core.FunctionCall(nil), last.FunctionCalls...)
		}
	}

	if u.Next != nil {
		s.Next = *u.Next
	}
	if u.Task != nil {
		s.Task = *u.Task
	}
	if u.MainTask != nil {
		s.MainTask = *u.MainTask
	}
	if u.Interrupted != nil {
		s.Interrupted = *u.Interrupted
	}

	s.NodeOutputs = s.NodeOutputs.Merge(u.NodeOutputs)
}

// Clone returns a deep copy of the message fields so nodes cannot alias the
// executor's state. Team is shared; it is read-only during a run.
func (s State) Clone() State {
	out := s
	out.AllMessages = cloneMessages(s.AllMessages)
	out.History = cloneMessages(s.History)
	out.Messages = Buffer(cloneMessages(s.Messages))
	out.ToolCalls = append([]core.FunctionCall(nil), s.ToolCalls...)
	out.NodeOutputs = maps.Clone(s.NodeOutputs)
	if s.Pending != nil {
		p := *s.Pending
		p.ToolCalls = append([]core.FunctionCall(nil), s.Pending.ToolCalls...)
		out.Pending = &p
	}
	return out
}

func cloneMessages[S ~[]core.Message](in S) S {
	if in == nil {
		return nil
	}
	out := make(S, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
