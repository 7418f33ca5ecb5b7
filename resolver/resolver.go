// Package resolver turns lazy tool references into invokable tools.
//
// Global tools come from a read-only Registry filled at startup, personal
// tools from a toolcache.Cache that is reloaded on demand, inline definitions
// become HTTP tools and uploads become retrieval tools.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/go-resty/resty/v2"

	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/team"
	"github.com/hupe1980/agentgraph/tool"
	"github.com/hupe1980/agentgraph/toolcache"
)

// ToolNotFoundError reports a global tool missing from the registry. It is a
// deployment bug and fatal to the run.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("global tool %q not registered", e.Name)
}

// ToolUnavailableError reports a tool that could not be resolved right now.
// Callers drop the tool for this turn and try again later.
type ToolUnavailableError struct {
	Name   string
	UserID string
	Err    error
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("tool %q unavailable for user %q: %v", e.Name, e.UserID, e.Err)
}

func (e *ToolUnavailableError) Unwrap() error { return e.Err }

// PersonalToolLoader fetches the tools of the connection that owns skill.
// The returned map is keyed by cache tool key.
type PersonalToolLoader interface {
	Load(ctx context.Context, skill team.GraphSkill) (map[string]tool.Tool, error)
}

// LoaderFunc adapts a function to PersonalToolLoader.
type LoaderFunc func(ctx context.Context, skill team.GraphSkill) (map[string]tool.Tool, error)

// Load implements PersonalToolLoader.
func (f LoaderFunc) Load(ctx context.Context, skill team.GraphSkill) (map[string]tool.Tool, error) {
	return f(ctx, skill)
}

// Options configure a Resolver.
type Options struct {
	Loader     PersonalToolLoader
	Retriever  tool.Retriever
	HTTPClient *resty.Client
	// RetrievalK is the number of documents an upload tool returns.
	RetrievalK int
	Logger     logging.Logger
}

// Resolver resolves team.ToolRef values. It is safe for concurrent use.
type Resolver struct {
	registry *Registry
	cache    *toolcache.Cache
	opts     Options
	logger   logging.Logger
}

// New creates a Resolver. registry and cache may be nil when the team uses
// no global or personal tools.
func New(registry *Registry, cache *toolcache.Cache, optFns ...func(o *Options)) *Resolver {
	opts := Options{RetrievalK: 4}
	for _, fn := range optFns {
		fn(&opts)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if cache == nil {
		cache = toolcache.New()
	}
	return &Resolver{
		registry: registry,
		cache:    cache,
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Resolve returns the tool ref points to.
func (r *Resolver) Resolve(ctx context.Context, ref team.ToolRef) (tool.Tool, error) {
	switch v := ref.(type) {
	case team.GraphSkill:
		return r.resolveSkill(ctx, v)
	case team.GraphUpload:
		return r.resolveUpload(v)
	default:
		return nil, fmt.Errorf("unsupported tool reference %T", ref)
	}
}

// ResolveAll resolves refs in order. Unavailable tools are logged and left
// out; any other error aborts. The ask-human pseudo skill is never resolved.
func (r *Resolver) ResolveAll(ctx context.Context, refs []team.ToolRef) ([]tool.Tool, error) {
	tools := make([]tool.Tool, 0, len(refs))

	for _, ref := range refs {
		if s, ok := ref.(team.GraphSkill); ok && s.IsAskHuman() {
			continue
		}

		t, err := r.Resolve(ctx, ref)
		if err != nil {
			var unavailable *ToolUnavailableError
			if errors.As(err, &unavailable) {
				r.logger.Warn("resolver.tool.unavailable", "tool", ref.RefName(), "error", err.Error())
				continue
			}
			return nil, err
		}

		tools = append(tools, t)
	}

	return tools, nil
}

func (r *Resolver) resolveSkill(ctx context.Context, s team.GraphSkill) (tool.Tool, error) {
	switch s.Strategy {
	case team.GlobalTools:
		t, ok := r.registry.Lookup(s.Name)
		if !ok {
			return nil, &ToolNotFoundError{Name: s.Name}
		}
		return t, nil

	case team.PersonalToolCache:
		return r.resolvePersonal(ctx, s)

	case team.Definition:
		def := maps.Clone(s.Definition)
		if def == nil {
			def = map[string]any{}
		}
		if _, ok := def["name"]; !ok {
			def["name"] = s.Name
		}
		if _, ok := def["description"]; !ok && s.Description != "" {
			def["description"] = s.Description
		}

		spec, err := tool.DecodeHTTPSpec(def)
		if err != nil {
			return nil, fmt.Errorf("skill %q: %w", s.Name, err)
		}

		client := r.opts.HTTPClient
		if client == nil {
			client = resty.New()
		}

		return tool.NewHTTPTool(spec, client), nil

	default:
		return nil, fmt.Errorf("skill %q has unknown storage strategy %q", s.Name, s.Strategy)
	}
}

// resolvePersonal reads the cache, loads the owning connection on a miss and
// retries exactly once.
func (r *Resolver) resolvePersonal(ctx context.Context, s team.GraphSkill) (tool.Tool, error) {
	key := s.Key()

	if t, err := r.cache.Get(s.UserID, key); err == nil {
		return t, nil
	}

	if r.opts.Loader == nil {
		return nil, &ToolUnavailableError{Name: s.Name, UserID: s.UserID, Err: errors.New("no personal tool loader configured")}
	}

	r.logger.Debug("resolver.cache.load", "user_id", s.UserID, "tool_key", key)

	loaded, err := r.opts.Loader.Load(ctx, s)
	if err != nil {
		return nil, &ToolUnavailableError{Name: s.Name, UserID: s.UserID, Err: err}
	}

	for k, t := range loaded {
		r.cache.Add(s.UserID, k, t)
	}

	t, err := r.cache.Get(s.UserID, key)
	if err != nil {
		return nil, &ToolUnavailableError{Name: s.Name, UserID: s.UserID, Err: err}
	}

	return t, nil
}

func (r *Resolver) resolveUpload(u team.GraphUpload) (tool.Tool, error) {
	if r.opts.Retriever == nil {
		return nil, &ToolUnavailableError{Name: u.Name, UserID: u.UserID, Err: errors.New("no retriever configured")}
	}
	return tool.NewRetrievalTool(u.Name, u.Description, u.UploadID, r.opts.RetrievalK, r.opts.Retriever), nil
}
