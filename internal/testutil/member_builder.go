package testutil

import (
	"encoding/json"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/team"
	"github.com/hupe1980/agentgraph/tool"
)

// MemberBuilder provides a fluent helper for constructing member rows.
// Example:
//
//	m := NewMember("weather").Worker("root").GlobalSkill("get_weather").Interrupt().Build()
//
// The member id defaults to its name so Source can reference names directly.
type MemberBuilder struct {
	m team.Member
}

// NewMember creates a builder for a worker named name.
func NewMember(name string) *MemberBuilder {
	return &MemberBuilder{m: team.Member{ID: name, Name: name, Type: team.MemberWorker}}
}

// Root marks the member as the team root.
func (b *MemberBuilder) Root() *MemberBuilder {
	b.m.Type = team.MemberRoot
	b.m.Source = ""
	return b
}

// FreelancerRoot marks the member as the anchor of a sequential team.
func (b *MemberBuilder) FreelancerRoot() *MemberBuilder {
	b.m.Type = team.MemberFreelancerRoot
	b.m.Source = ""
	return b
}

// Leader marks the member as a sub-team leader delegated to by source.
func (b *MemberBuilder) Leader(source string) *MemberBuilder {
	b.m.Type = team.MemberLeader
	b.m.Source = source
	return b
}

// Worker marks the member as a worker delegated to by source.
func (b *MemberBuilder) Worker(source string) *MemberBuilder {
	b.m.Type = team.MemberWorker
	b.m.Source = source
	return b
}

// Type overrides the member type (chainable).
func (b *MemberBuilder) Type(t team.MemberType) *MemberBuilder { b.m.Type = t; return b }

// ID overrides the id (chainable).
func (b *MemberBuilder) ID(id string) *MemberBuilder { b.m.ID = id; return b }

// Role sets the role (chainable).
func (b *MemberBuilder) Role(r string) *MemberBuilder { b.m.Role = r; return b }

// Model sets provider and model (chainable).
func (b *MemberBuilder) Model(provider, name string) *MemberBuilder {
	b.m.Provider, b.m.Model = provider, name
	return b
}

// Interrupt requires human review of the member's tool calls (chainable).
func (b *MemberBuilder) Interrupt() *MemberBuilder { b.m.Interrupt = true; return b }

// GlobalSkill adds a skill resolved from the global registry (chainable).
func (b *MemberBuilder) GlobalSkill(name string) *MemberBuilder {
	b.m.Skills = append(b.m.Skills, team.Skill{ID: b.m.Name + ":" + name, Name: name, Strategy: team.GlobalTools})
	return b
}

// PersonalSkill adds a skill resolved from the personal tool cache (chainable).
func (b *MemberBuilder) PersonalSkill(name, key string) *MemberBuilder {
	b.m.Skills = append(b.m.Skills, team.Skill{ID: b.m.Name + ":" + name, Name: name, ToolKey: key, Strategy: team.PersonalToolCache})
	return b
}

// AskHuman adds the ask-human pseudo tool (chainable).
func (b *MemberBuilder) AskHuman() *MemberBuilder {
	return b.GlobalSkill(tool.AskHumanName)
}

// Upload adds an upload reference (chainable).
func (b *MemberBuilder) Upload(id, name string) *MemberBuilder {
	b.m.Uploads = append(b.m.Uploads, team.Upload{ID: id, Name: name})
	return b
}

// Build returns the member row.
func (b *MemberBuilder) Build() team.Member {
	m := b.m
	m.Skills = append([]team.Skill(nil), b.m.Skills...)
	m.Uploads = append([]team.Upload(nil), b.m.Uploads...)
	return m
}

// Call returns a function call with args encoded as JSON.
func Call(id, name string, args map[string]any) core.FunctionCall {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return core.FunctionCall{ID: id, Name: name, Arguments: string(raw)}
}

// Route returns the forced leader decision call.
func Route(next, task string) core.FunctionCall {
	return Call(core.NewID(), "route", map[string]any{"next": next, "task": task})
}
