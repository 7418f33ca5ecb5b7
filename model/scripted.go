package model

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentgraph/core"
)

// ErrScriptExhausted is returned when a ScriptedModel has no queued replies.
var ErrScriptExhausted = errors.New("scripted model: no more replies")

// ScriptedModel is an in-memory Model that replays queued replies in order.
// It records every request so tests can assert on prompts and bound tools.
// A Handler, when set, takes precedence over the queue.
type ScriptedModel struct {
	mu       sync.Mutex
	name     string
	replies  []scriptedReply
	requests []Request

	// Handler computes a reply from the request.
	Handler func(req Request) (core.Message, error)
}

type scriptedReply struct {
	msg core.Message
	err error
}

// NewScriptedModel constructs an empty ScriptedModel.
func NewScriptedModel(name string) *ScriptedModel {
	return &ScriptedModel{name: name}
}

// Reply queues assistant messages to be returned by subsequent calls.
func (m *ScriptedModel) Reply(msgs ...core.Message) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.replies = append(m.replies, scriptedReply{msg: msg})
	}
	return m
}

// ReplyText queues a plain text assistant reply.
func (m *ScriptedModel) ReplyText(text string) *ScriptedModel {
	return m.Reply(core.NewAssistantMessage("", text))
}

// ReplyCalls queues an assistant reply requesting the given tool calls.
func (m *ScriptedModel) ReplyCalls(calls ...core.FunctionCall) *ScriptedModel {
	return m.Reply(core.NewAssistantMessage("", "", calls...))
}

// Fail queues an error reply.
func (m *ScriptedModel) Fail(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, scriptedReply{err: err})
	return m
}

// Requests returns a copy of all recorded requests.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Remaining reports how many queued replies are left.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)
	defer close(out)
	defer close(errCh)

	if err := ctx.Err(); err != nil {
		errCh <- err
		return out, errCh
	}

	msg, err := m.next(req)
	if err != nil {
		errCh <- err
		return out, errCh
	}

	reason := "stop"
	if msg.HasFunctionCalls() {
		reason = "tool_calls"
	}
	out <- Response{Message: msg, FinishReason: reason}
	return out, errCh
}

func (m *ScriptedModel) next(req Request) (core.Message, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	handler := m.Handler
	if handler != nil {
		m.mu.Unlock()
		return handler(req)
	}
	defer m.mu.Unlock()

	if len(m.replies) == 0 {
		return core.Message{}, ErrScriptExhausted
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	if r.err != nil {
		return core.Message{}, r.err
	}

	msg := r.msg.Clone()
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	msg.Role = core.RoleAssistant
	return msg, nil
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: m.name, Provider: "scripted", SupportsTools: true}
}
