package team

import (
	"errors"
	"fmt"
)

// ErrNoRoot is returned when no member qualifies as the team root.
var ErrNoRoot = errors.New("no root member found")

// BuildHierarchical turns member rows into a nested GraphTeam. The single
// member without a source is the top leader; leader-typed descendants become
// sub-teams. userID owns skills and uploads that carry no user of their own.
func BuildHierarchical(members []Member, userID string) (*GraphTeam, error) {
	idx, err := index(members)
	if err != nil {
		return nil, err
	}

	root, err := singleRoot(members)
	if err != nil {
		return nil, err
	}
	if !root.Type.IsLeader() {
		return nil, fmt.Errorf("root member %q has type %q, want a leader", root.Name, root.Type)
	}

	visited := map[string]bool{root.ID: true}
	t := buildSubTeam(root, idx, userID, visited)

	if len(visited) != len(members) {
		return nil, fmt.Errorf("%d member(s) not reachable from root %q", len(members)-len(visited), root.Name)
	}

	return t, nil
}

func buildSubTeam(leader Member, idx *memberIndex, userID string, visited map[string]bool) *GraphTeam {
	t := &GraphTeam{
		Name:        leader.Name,
		Role:        leader.Role,
		Backstory:   leader.Backstory,
		Provider:    leader.Provider,
		Model:       leader.Model,
		Temperature: leader.Temperature,
		Members:     make(map[string]Participant),
	}

	for _, child := range idx.children[leader.ID] {
		if visited[child.ID] {
			continue
		}
		visited[child.ID] = true

		if child.Type.IsLeader() {
			t.Members[child.Name] = &GraphLeader{
				Name:        child.Name,
				Role:        child.Role,
				Backstory:   child.Backstory,
				Provider:    child.Provider,
				Model:       child.Model,
				Temperature: child.Temperature,
				Team:        buildSubTeam(child, idx, userID, visited),
			}
		} else {
			t.Members[child.Name] = NewGraphMember(child, userID)
		}
		t.Order = append(t.Order, child.Name)
	}

	return t
}

// BuildSequential turns member rows into a flat GraphTeam whose Order is the
// chain hanging off the freelancer_root anchor. Branching is rejected.
func BuildSequential(members []Member, userID string) (*GraphTeam, error) {
	idx, err := index(members)
	if err != nil {
		return nil, err
	}

	anchor, err := singleRoot(members)
	if err != nil {
		return nil, err
	}
	if anchor.Type != MemberFreelancerRoot {
		return nil, fmt.Errorf("sequential team must start at a %s member, got %q (%s)", MemberFreelancerRoot, anchor.Name, anchor.Type)
	}

	t := &GraphTeam{
		Name:        anchor.Name,
		Role:        anchor.Role,
		Backstory:   anchor.Backstory,
		Provider:    anchor.Provider,
		Model:       anchor.Model,
		Temperature: anchor.Temperature,
		Members:     make(map[string]Participant),
	}

	current := anchor
	for {
		next := idx.children[current.ID]
		if len(next) == 0 {
			break
		}
		if len(next) > 1 {
			return nil, fmt.Errorf("member %q has %d successors; sequential teams must form a single chain", current.Name, len(next))
		}
		current = next[0]
		if _, seen := t.Members[current.Name]; seen {
			return nil, fmt.Errorf("cycle detected at member %q", current.Name)
		}
		t.Members[current.Name] = NewGraphMember(current, userID)
		t.Order = append(t.Order, current.Name)
	}

	if len(t.Order) == 0 {
		return nil, errors.New("sequential team has no members")
	}
	if len(t.Order)+1 != len(members) {
		return nil, fmt.Errorf("%d member(s) not part of the chain", len(members)-len(t.Order)-1)
	}

	return t, nil
}

// BuildSingle builds the team of a single-bot topology. Anchor rows (root and
// freelancer_root) are ignored; exactly one other member must remain.
func BuildSingle(members []Member, userID string) (*GraphTeam, error) {
	var bots []Member
	for _, m := range members {
		if m.Type == MemberRoot || m.Type == MemberFreelancerRoot {
			continue
		}
		bots = append(bots, m)
	}

	if len(bots) != 1 {
		return nil, fmt.Errorf("single-bot team needs exactly one member, got %d", len(bots))
	}

	bot := bots[0]

	return &GraphTeam{
		Name:        bot.Name,
		Role:        bot.Role,
		Backstory:   bot.Backstory,
		Provider:    bot.Provider,
		Model:       bot.Model,
		Temperature: bot.Temperature,
		Members:     map[string]Participant{bot.Name: NewGraphMember(bot, userID)},
		Order:       []string{bot.Name},
	}, nil
}

// NewGraphMember materializes a member row with lazy tool references.
func NewGraphMember(m Member, userID string) *GraphMember {
	gm := &GraphMember{
		Name:        m.Name,
		Role:        m.Role,
		Backstory:   m.Backstory,
		Provider:    m.Provider,
		Model:       m.Model,
		Temperature: m.Temperature,
		Interrupt:   m.Interrupt,
	}

	for _, s := range m.Skills {
		gm.Tools = append(gm.Tools, GraphSkill{
			SkillID:     s.ID,
			MemberID:    m.ID,
			UserID:      firstNonEmpty(s.UserID, userID),
			Name:        s.Name,
			DisplayName: s.DisplayName,
			Description: s.Description,
			Strategy:    s.Strategy,
			ToolKey:     s.ToolKey,
			Definition:  s.Definition,
		})
	}

	for _, u := range m.Uploads {
		gm.Tools = append(gm.Tools, GraphUpload{
			UploadID:    u.ID,
			UserID:      firstNonEmpty(u.UserID, userID),
			Name:        u.Name,
			Description: u.Description,
		})
	}

	return gm
}

type memberIndex struct {
	byID     map[string]Member
	children map[string][]Member
}

func index(members []Member) (*memberIndex, error) {
	idx := &memberIndex{
		byID:     make(map[string]Member, len(members)),
		children: make(map[string][]Member),
	}

	names := make(map[string]bool, len(members))
	for _, m := range members {
		if m.ID == "" {
			return nil, fmt.Errorf("member %q has no id", m.Name)
		}
		if _, dup := idx.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate member id %q", m.ID)
		}
		if names[m.Name] {
			return nil, fmt.Errorf("duplicate member name %q", m.Name)
		}
		names[m.Name] = true
		idx.byID[m.ID] = m
	}

	for _, m := range members {
		if m.Source == "" {
			continue
		}
		if _, ok := idx.byID[m.Source]; !ok {
			return nil, fmt.Errorf("member %q references unknown source %q", m.Name, m.Source)
		}
		idx.children[m.Source] = append(idx.children[m.Source], m)
	}

	return idx, nil
}

func singleRoot(members []Member) (Member, error) {
	var roots []Member
	for _, m := range members {
		if m.Source == "" {
			roots = append(roots, m)
		}
	}

	switch len(roots) {
	case 0:
		return Member{}, ErrNoRoot
	case 1:
		return roots[0], nil
	default:
		return Member{}, fmt.Errorf("found %d root members, want exactly one", len(roots))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
