// Package team defines the persisted member model and the in-memory team
// representation a graph is compiled from.
package team

import (
	"fmt"
	"strings"
)

// MemberType classifies a persisted member.
type MemberType string

const (
	MemberRoot           MemberType = "root"
	MemberLeader         MemberType = "leader"
	MemberWorker         MemberType = "worker"
	MemberFreelancerRoot MemberType = "freelancer_root"
	MemberChatbot        MemberType = "chatbot"
	MemberRagbot         MemberType = "ragbot"
	MemberSearchbot      MemberType = "searchbot"
	MemberWorkflow       MemberType = "workflow"
)

// IsLeader reports whether members of this type delegate to others.
func (t MemberType) IsLeader() bool { return t == MemberRoot || t == MemberLeader }

// Topology is the delegation shape of a team.
type Topology string

const (
	TopologyHierarchical Topology = "HIERARCHICAL"
	TopologySequential   Topology = "SEQUENTIAL"
	TopologyChatbot      Topology = "CHATBOT"
	TopologyRagbot       Topology = "RAGBOT"
	TopologySearchbot    Topology = "SEARCHBOT"
)

// IsSingleBot reports whether the topology runs exactly one member.
func (t Topology) IsSingleBot() bool {
	return t == TopologyChatbot || t == TopologyRagbot || t == TopologySearchbot
}

// ParseTopology accepts topology names case-insensitively.
func ParseTopology(s string) (Topology, error) {
	t := Topology(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TopologyHierarchical, TopologySequential, TopologyChatbot, TopologyRagbot, TopologySearchbot:
		return t, nil
	}
	return "", fmt.Errorf("unknown topology %q", s)
}

// StorageStrategy tells the resolver where a skill's tool lives.
type StorageStrategy string

const (
	GlobalTools       StorageStrategy = "GLOBAL_TOOLS"
	PersonalToolCache StorageStrategy = "PERSONAL_TOOL_CACHE"
	Definition        StorageStrategy = "DEFINITION"
)

// Skill is a persisted reference to a tool capability.
type Skill struct {
	ID          string          `json:"id" yaml:"id"`
	UserID      string          `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Name        string          `json:"name" yaml:"name"`
	DisplayName string          `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Strategy    StorageStrategy `json:"strategy" yaml:"strategy"`
	// ToolKey identifies a personal tool inside the user's cache. Defaults to Name.
	ToolKey    string         `json:"tool_key,omitempty" yaml:"tool_key,omitempty"`
	Definition map[string]any `json:"definition,omitempty" yaml:"definition,omitempty"`
}

// Upload is a persisted reference to an ingested document collection.
type Upload struct {
	ID          string `json:"id" yaml:"id"`
	UserID      string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Position is UI layout data. The orchestration core ignores it.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Member is a persisted team member row.
type Member struct {
	ID          string     `json:"id" yaml:"id"`
	TeamID      string     `json:"team_id,omitempty" yaml:"team_id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Type        MemberType `json:"type" yaml:"type"`
	Source      string     `json:"source,omitempty" yaml:"source,omitempty"` // id of the delegating member, empty for the root
	Role        string     `json:"role,omitempty" yaml:"role,omitempty"`
	Backstory   string     `json:"backstory,omitempty" yaml:"backstory,omitempty"`
	Provider    string     `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model       string     `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64    `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Interrupt   bool       `json:"interrupt,omitempty" yaml:"interrupt,omitempty"`
	Position    *Position  `json:"position,omitempty" yaml:"position,omitempty"`
	Skills      []Skill    `json:"skills,omitempty" yaml:"skills,omitempty"`
	Uploads     []Upload   `json:"uploads,omitempty" yaml:"uploads,omitempty"`
}

// Team is the persisted team the members belong to.
type Team struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Topology Topology `json:"topology" yaml:"topology"`
	UserID   string   `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Members  []Member `json:"members" yaml:"members"`
}
