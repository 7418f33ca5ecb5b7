package node

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/tool"
)

const (
	rejectedContent = "Tool call rejected by user."
	skippedContent  = "Tool call skipped while waiting for human input."
)

var allowedActions = map[graph.InteractionType][]string{
	graph.ToolReview:   {graph.ActionApproved, graph.ActionRejected, graph.ActionUpdate},
	graph.OutputReview: {graph.ActionApproved, graph.ActionReview, graph.ActionEdit},
	graph.ContextInput: {graph.ActionContinue},
}

// HumanNode suspends the run until an external decision arrives. Routes maps
// each accepted action to the node the run continues at.
type HumanNode struct {
	kind   graph.InteractionType
	member string
	routes map[string]string
	opts   Options
}

// NewHuman creates a human node of the given interaction type for member.
func NewHuman(kind graph.InteractionType, member string, routes map[string]string, optFns ...func(o *Options)) *HumanNode {
	return &HumanNode{kind: kind, member: member, routes: maps.Clone(routes), opts: buildOptions(optFns)}
}

// Type returns the interaction type.
func (h *HumanNode) Type() graph.InteractionType { return h.kind }

// Routes returns a copy of the decision routes.
func (h *HumanNode) Routes() map[string]string { return maps.Clone(h.routes) }

// Work implements graph.Node. It always suspends.
func (h *HumanNode) Work(ctx context.Context, s graph.State, cfg graph.RunConfig) (graph.Result, error) {
	in := &graph.Interrupt{Type: h.kind}

	switch h.kind {
	case graph.ToolReview:
		in.ToolCalls = reviewableCalls(s.ToolCalls)
	case graph.OutputReview:
		in.Content = lastOutput(s, h.member)
	case graph.ContextInput:
		in.Content = h.question(s)
	default:
		return graph.Result{}, fmt.Errorf("unknown interaction type %q", h.kind)
	}

	h.opts.Logger.Info("node.human.suspend", "member", h.member, "type", h.kind)
	return graph.Result{Interrupt: in}, nil
}

// Resume implements graph.Resumable.
func (h *HumanNode) Resume(ctx context.Context, s graph.State, cfg graph.RunConfig, cmd graph.Command) (graph.Result, error) {
	action := strings.ToLower(strings.TrimSpace(cmd.Action))
	if !slices.Contains(allowedActions[h.kind], action) {
		return graph.Result{}, h.invalid(cmd.Action, fmt.Sprintf("expected one of %s", strings.Join(allowedActions[h.kind], ", ")))
	}
	target, ok := h.routes[action]
	if !ok {
		return graph.Result{}, h.invalid(action, "no route for action")
	}

	h.opts.Logger.Info("node.human.resume", "member", h.member, "type", h.kind, "action", action, "next", target)

	switch h.kind {
	case graph.ToolReview:
		return h.resumeToolReview(s, action, cmd.Data, target)
	case graph.OutputReview:
		return h.resumeOutputReview(action, cmd.Data, target)
	default:
		return h.resumeContextInput(s, action, cmd.Data, target)
	}
}

func (h *HumanNode) resumeToolReview(s graph.State, action string, data any, target string) (graph.Result, error) {
	last, ok := s.Messages.Last()
	calls := reviewableCalls(s.ToolCalls)
	if !ok || len(calls) == 0 {
		return graph.Result{}, h.invalid(action, "no pending tool calls")
	}

	switch action {
	case graph.ActionApproved:
		return graph.Result{Goto: target}, nil

	case graph.ActionRejected:
		reason, err := textField(data, "reason", "text")
		if err != nil {
			return graph.Result{}, h.invalid(action, err.Error())
		}
		content := rejectedContent
		if reason != "" {
			content += " Reason: " + reason
		}
		rejections := make([]core.Message, 0, len(calls))
		for _, c := range calls {
			rejections = append(rejections, core.NewToolMessage(c.ID, c.Name, content))
		}
		buf := append(append([]core.Message(nil), s.Messages...), rejections...)
		res := graph.Result{
			Update: graph.Update{
				AllMessages: append([]core.Message{last}, rejections...),
				Messages:    graph.SetMessages(buf...),
			},
			Goto: target,
		}
		if h.opts.TerminateOnReject {
			res.Update.Messages = graph.SetMessages()
			res.Goto = ""
			res.Terminate = true
		}
		return res, nil

	default:
		updated, err := h.applyArgs(last, calls, data)
		if err != nil {
			return graph.Result{}, h.invalid(action, err.Error())
		}
		buf := append(append([]core.Message(nil), s.Messages[:len(s.Messages)-1]...), updated)
		return graph.Result{Update: graph.Update{Messages: graph.SetMessages(buf...)}, Goto: target}, nil
	}
}

// applyArgs returns last with replaced arguments. With a single pending call
// data is the new argument object. Otherwise data maps call ids to argument
// objects and calls it does not name keep their arguments.
func (h *HumanNode) applyArgs(last core.Message, calls []core.FunctionCall, data any) (core.Message, error) {
	obj, err := asObject(data)
	if err != nil {
		return core.Message{}, err
	}

	replacements := make(map[string]map[string]any)
	_, keyed := obj[calls[0].ID]
	if len(calls) == 1 && !keyed {
		replacements[calls[0].ID] = obj
	} else {
		known := make(map[string]bool, len(calls))
		for _, c := range calls {
			known[c.ID] = true
		}
		for id, v := range obj {
			if !known[id] {
				return core.Message{}, fmt.Errorf("unknown tool call id %q", id)
			}
			args, err := asObject(v)
			if err != nil {
				return core.Message{}, fmt.Errorf("tool call %s: %w", id, err)
			}
			replacements[id] = args
		}
	}

	out := last.Clone()
	for i, c := range out.FunctionCalls {
		args, ok := replacements[c.ID]
		if !ok {
			continue
		}
		raw, err := json.Marshal(tool.SanitizeArgs(args))
		if err != nil {
			return core.Message{}, fmt.Errorf("encode arguments for %s: %w", c.ID, err)
		}
		out.FunctionCalls[i].Arguments = string(raw)
	}
	return out, nil
}

func (h *HumanNode) resumeOutputReview(action string, data any, target string) (graph.Result, error) {
	if action == graph.ActionApproved {
		return graph.Result{Goto: target}, nil
	}

	text, err := textField(data, "text", "feedback", "content")
	if err != nil {
		return graph.Result{}, h.invalid(action, err.Error())
	}
	if text == "" {
		return graph.Result{}, h.invalid(action, "feedback text is required")
	}

	msg := core.NewUserMessage("", text)
	return graph.Result{
		Update: graph.Update{
			History:     []core.Message{msg},
			AllMessages: []core.Message{msg},
			Messages:    graph.SetMessages(),
		},
		Goto: target,
	}, nil
}

func (h *HumanNode) resumeContextInput(s graph.State, action string, data any, target string) (graph.Result, error) {
	text, err := textField(data, "text", "content", "answer")
	if err != nil {
		return graph.Result{}, h.invalid(action, err.Error())
	}
	if text == "" {
		return graph.Result{}, h.invalid(action, "input text is required")
	}

	last, ok := s.Messages.Last()
	if ok {
		if _, asked := last.CallNamed(tool.AskHumanName); asked {
			answers := make([]core.Message, 0, len(last.FunctionCalls))
			for _, c := range last.FunctionCalls {
				content := skippedContent
				if c.Name == tool.AskHumanName {
					content = text
				}
				answers = append(answers, core.NewToolMessage(c.ID, c.Name, content))
			}
			buf := append(append([]core.Message(nil), s.Messages...), answers...)
			return graph.Result{
				Update: graph.Update{
					AllMessages: append([]core.Message{last}, answers...),
					Messages:    graph.SetMessages(buf...),
				},
				Goto: target,
			}, nil
		}
	}

	msg := core.NewUserMessage("", text)
	return graph.Result{
		Update: graph.Update{
			History:     []core.Message{msg},
			AllMessages: []core.Message{msg},
		},
		Goto: target,
	}, nil
}

func (h *HumanNode) question(s graph.State) string {
	if last, ok := s.Messages.Last(); ok {
		if call, asked := last.CallNamed(tool.AskHumanName); asked {
			if args, err := tool.ParseArgs(call.Arguments); err == nil {
				if q, ok := args["question"].(string); ok && q != "" {
					return q
				}
			}
			if last.Content != "" {
				return last.Content
			}
		}
	}
	return lastOutput(s, h.member)
}

func (h *HumanNode) invalid(action, reason string) error {
	return &graph.InvalidInterruptResponseError{Type: h.kind, Action: action, Reason: reason}
}

func reviewableCalls(calls []core.FunctionCall) []core.FunctionCall {
	out := make([]core.FunctionCall, 0, len(calls))
	for _, c := range calls {
		if c.Name != tool.AskHumanName {
			out = append(out, c)
		}
	}
	return out
}

// lastOutput returns the latest history entry written by member, falling
// back to the latest history entry.
func lastOutput(s graph.State, member string) string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if m := s.History[i]; m.Role == core.RoleAssistant && m.Name == member {
			return m.Content
		}
	}
	if n := len(s.History); n > 0 {
		return s.History[n-1].Content
	}
	return ""
}

// textField accepts a plain string or an object carrying the text under one
// of keys. A nil payload yields the empty string.
func textField(data any, keys ...string) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case map[string]any:
		for _, k := range keys {
			raw, ok := v[k]
			if !ok || raw == nil {
				continue
			}
			s, ok := raw.(string)
			if !ok {
				return "", fmt.Errorf("field %q must be a string", k)
			}
			return strings.TrimSpace(s), nil
		}
		return "", nil
	default:
		return "", fmt.Errorf("expected a string or an object, got %T", data)
	}
}

func asObject(data any) (map[string]any, error) {
	switch v := data.(type) {
	case nil:
		return nil, fmt.Errorf("an argument object is required")
	case map[string]any:
		return v, nil
	case string:
		return tool.ParseArgs(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("expected an argument object: %w", err)
		}
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("expected an argument object, got %T", data)
		}
		return obj, nil
	}
}
