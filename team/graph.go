package team

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hupe1980/agentgraph/tool"
)

// ToolRef is a lazy reference to a tool, resolved at execution time.
// It is implemented by GraphSkill and GraphUpload only.
type ToolRef interface {
	RefName() string
	toolRef()
}

// GraphSkill holds enough data to resolve a skill lazily.
type GraphSkill struct {
	SkillID     string          `json:"skill_id"`
	MemberID    string          `json:"member_id"`
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name,omitempty"`
	Description string          `json:"description,omitempty"`
	Strategy    StorageStrategy `json:"strategy"`
	ToolKey     string          `json:"tool_key,omitempty"`
	Definition  map[string]any  `json:"definition,omitempty"`
}

func (s GraphSkill) RefName() string { return s.Name }
func (GraphSkill) toolRef()          {}

// Key returns the personal cache key of the skill.
func (s GraphSkill) Key() string {
	if s.ToolKey != "" {
		return s.ToolKey
	}
	return s.Name
}

// IsAskHuman reports whether the skill is the ask-human pseudo tool.
func (s GraphSkill) IsAskHuman() bool { return s.Name == tool.AskHumanName }

// GraphUpload references an upload's vector partition.
type GraphUpload struct {
	UploadID    string `json:"upload_id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (u GraphUpload) RefName() string { return u.Name }
func (GraphUpload) toolRef()          {}

// Participant is a team entry: a *GraphMember or a *GraphLeader.
type Participant interface {
	ParticipantName() string
	participant()
}

// GraphMember is a tool-using participant.
type GraphMember struct {
	Name        string    `json:"name"`
	Role        string    `json:"role,omitempty"`
	Backstory   string    `json:"backstory,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Interrupt   bool      `json:"interrupt,omitempty"`
	Tools       []ToolRef `json:"-"`
}

func (m *GraphMember) ParticipantName() string { return m.Name }
func (*GraphMember) participant()              {}

// HasAskHuman reports whether the ask-human pseudo tool is among the member's tools.
func (m *GraphMember) HasAskHuman() bool {
	for _, ref := range m.Tools {
		if s, ok := ref.(GraphSkill); ok && s.IsAskHuman() {
			return true
		}
	}
	return false
}

// ExecutableTools returns the tool references a tool node can run, which
// excludes the ask-human pseudo tool.
func (m *GraphMember) ExecutableTools() []ToolRef {
	out := make([]ToolRef, 0, len(m.Tools))
	for _, ref := range m.Tools {
		if s, ok := ref.(GraphSkill); ok && s.IsAskHuman() {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// GraphLeader is a delegation point for a sub-team. It has no tools.
type GraphLeader struct {
	Name        string     `json:"name"`
	Role        string     `json:"role,omitempty"`
	Backstory   string     `json:"backstory,omitempty"`
	Provider    string     `json:"provider,omitempty"`
	Model       string     `json:"model,omitempty"`
	Temperature float64    `json:"temperature,omitempty"`
	Team        *GraphTeam `json:"team,omitempty"`
}

func (l *GraphLeader) ParticipantName() string { return l.Name }
func (*GraphLeader) participant()              {}

// GraphTeam is the in-memory team a graph is compiled from.
type GraphTeam struct {
	Name        string                 `json:"name"`
	Role        string                 `json:"role,omitempty"`
	Backstory   string                 `json:"backstory,omitempty"`
	Provider    string                 `json:"provider,omitempty"`
	Model       string                 `json:"model,omitempty"`
	Temperature float64                `json:"temperature,omitempty"`
	Members     map[string]Participant `json:"-"`
	// Order lists member names in topology order (delegation order for
	// hierarchical teams, chain order for sequential teams).
	Order []string `json:"order,omitempty"`
}

// Lookup returns the participant named name.
func (t *GraphTeam) Lookup(name string) (Participant, bool) {
	p, ok := t.Members[name]
	return p, ok
}

// MemberNames returns the participant names in topology order.
func (t *GraphTeam) MemberNames() []string {
	if len(t.Order) == len(t.Members) {
		return append([]string(nil), t.Order...)
	}
	names := make([]string, 0, len(t.Members))
	for n := range t.Members {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type wireRef struct {
	Kind   string       `json:"kind"`
	Skill  *GraphSkill  `json:"skill,omitempty"`
	Upload *GraphUpload `json:"upload,omitempty"`
}

type wireParticipant struct {
	Kind   string       `json:"kind"`
	Member *GraphMember `json:"member,omitempty"`
	Tools  []wireRef    `json:"tools,omitempty"`
	Leader *GraphLeader `json:"leader,omitempty"`
}

type wireTeam struct {
	graphTeamAlias
	Members map[string]wireParticipant `json:"members"`
}

type graphTeamAlias GraphTeam

// MarshalJSON encodes the sealed participant and tool reference unions with a kind tag.
func (t *GraphTeam) MarshalJSON() ([]byte, error) {
	w := wireTeam{graphTeamAlias: graphTeamAlias(*t), Members: make(map[string]wireParticipant, len(t.Members))}
	for name, p := range t.Members {
		switch v := p.(type) {
		case *GraphMember:
			wp := wireParticipant{Kind: "member", Member: v}
			for _, ref := range v.Tools {
				switch r := ref.(type) {
				case GraphSkill:
					wp.Tools = append(wp.Tools, wireRef{Kind: "skill", Skill: &r})
				case GraphUpload:
					wp.Tools = append(wp.Tools, wireRef{Kind: "upload", Upload: &r})
				}
			}
			w.Members[name] = wp
		case *GraphLeader:
			w.Members[name] = wireParticipant{Kind: "leader", Leader: v}
		default:
			return nil, fmt.Errorf("unknown participant type %T", p)
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the representation written by MarshalJSON.
func (t *GraphTeam) UnmarshalJSON(data []byte) error {
	var w wireTeam
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*t = GraphTeam(w.graphTeamAlias)
	t.Members = make(map[string]Participant, len(w.Members))

	for name, wp := range w.Members {
		switch wp.Kind {
		case "member":
			if wp.Member == nil {
				return fmt.Errorf("participant %q: missing member body", name)
			}
			m := wp.Member
			for _, r := range wp.Tools {
				switch {
				case r.Kind == "skill" && r.Skill != nil:
					m.Tools = append(m.Tools, *r.Skill)
				case r.Kind == "upload" && r.Upload != nil:
					m.Tools = append(m.Tools, *r.Upload)
				default:
					return fmt.Errorf("participant %q: unknown tool reference %q", name, r.Kind)
				}
			}
			t.Members[name] = m
		case "leader":
			if wp.Leader == nil {
				return fmt.Errorf("participant %q: missing leader body", name)
			}
			t.Members[name] = wp.Leader
		default:
			return fmt.Errorf("participant %q: unknown kind %q", name, wp.Kind)
		}
	}

	return nil
}
