package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type branch struct {
	router  Router
	targets []string
}

// Builder assembles an ExecutableGraph. Errors are collected and reported by Compile.
type Builder struct {
	name     string
	nodes    map[string]Node
	order    []string
	edges    map[string]string
	branches map[string]branch
	entry    string
	errs     []error
}

// NewBuilder starts a graph called name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:     name,
		nodes:    make(map[string]Node),
		edges:    make(map[string]string),
		branches: make(map[string]branch),
	}
}

// AddNode registers n under name.
func (b *Builder) AddNode(name string, n Node) *Builder {
	switch {
	case name == "" || name == End:
		b.errs = append(b.errs, fmt.Errorf("invalid node name %q", name))
	case strings.Contains(name, "/"):
		b.errs = append(b.errs, fmt.Errorf("node name %q must not contain '/'", name))
	case n == nil:
		b.errs = append(b.errs, fmt.Errorf("node %q is nil", name))
	default:
		if _, dup := b.nodes[name]; dup {
			b.errs = append(b.errs, fmt.Errorf("duplicate node %q", name))
			return b
		}
		b.nodes[name] = n
		b.order = append(b.order, name)
	}
	return b
}

// HasNode reports whether name has been added.
func (b *Builder) HasNode(name string) bool {
	_, ok := b.nodes[name]
	return ok
}

// AddEdge routes from to to unconditionally. to may be End.
func (b *Builder) AddEdge(from, to string) *Builder {
	if _, ok := b.branches[from]; ok {
		b.errs = append(b.errs, fmt.Errorf("node %q already has conditional edges", from))
		return b
	}
	if prev, ok := b.edges[from]; ok && prev != to {
		b.errs = append(b.errs, fmt.Errorf("node %q already has an edge to %q", from, prev))
		return b
	}
	b.edges[from] = to
	return b
}

// AddConditionalEdges routes from through router. targets lists every node
// the router may return; it forms the routing table and is validated.
func (b *Builder) AddConditionalEdges(from string, router Router, targets ...string) *Builder {
	if _, ok := b.edges[from]; ok {
		b.errs = append(b.errs, fmt.Errorf("node %q already has a static edge", from))
		return b
	}
	if _, ok := b.branches[from]; ok {
		b.errs = append(b.errs, fmt.Errorf("node %q already has conditional edges", from))
		return b
	}
	if router == nil {
		b.errs = append(b.errs, fmt.Errorf("node %q: nil router", from))
		return b
	}

	sorted := slices.Clone(targets)
	slices.Sort(sorted)
	b.branches[from] = branch{router: router, targets: slices.Compact(sorted)}

	return b
}

// SetEntry marks the first node to run.
func (b *Builder) SetEntry(name string) *Builder {
	b.entry = name
	return b
}

// Compile validates the graph and returns it ready to run.
func (b *Builder) Compile(optFns ...func(o *Options)) (*ExecutableGraph, error) {
	errs := slices.Clone(b.errs)

	if b.entry == "" {
		errs = append(errs, errors.New("entry node not set"))
	} else if _, ok := b.nodes[b.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q not found", b.entry))
	}

	known := func(n string) bool {
		_, ok := b.nodes[n]
		return ok || n == End
	}

	for from, to := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		if !known(to) {
			errs = append(errs, fmt.Errorf("edge %q -> unknown node %q", from, to))
		}
	}

	for from, br := range b.branches {
		if _, ok := b.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("conditional edges from unknown node %q", from))
		}
		for _, to := range br.targets {
			if !known(to) {
				errs = append(errs, fmt.Errorf("conditional edge %q -> unknown node %q", from, to))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("compile graph %q: %w", b.name, err)
	}

	opts := Options{MaxSteps: DefaultMaxSteps}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Checkpointer == nil {
		opts.Checkpointer = nopCheckpointer{}
	}

	return &ExecutableGraph{
		name:     b.name,
		nodes:    b.nodes,
		order:    slices.Clone(b.order),
		edges:    b.edges,
		branches: b.branches,
		entry:    b.entry,
		opts:     opts,
	}, nil
}
