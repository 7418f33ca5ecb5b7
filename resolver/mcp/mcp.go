// Package mcp loads personal tools from Model Context Protocol servers.
//
// A Loader keeps one client session per (user, connection) and counts how
// many cached tools reference it. Wire Loader.Release as the tool cache's
// eviction callback so a session is closed once its last tool leaves the cache.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/team"
	"github.com/hupe1980/agentgraph/tool"
)

// Connection describes an MCP server a user has connected.
type Connection struct {
	Name    string            `json:"name" yaml:"name"`
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Transport overrides URL and Command when set.
	Transport sdkmcp.Transport `json:"-" yaml:"-"`
}

func (c Connection) transport() (sdkmcp.Transport, error) {
	if c.Transport != nil {
		return c.Transport, nil
	}

	if c.URL != "" {
		httpClient := &http.Client{}
		if len(c.Headers) > 0 {
			httpClient.Transport = &headerTransport{headers: c.Headers, base: http.DefaultTransport}
		}
		return &sdkmcp.StreamableClientTransport{
			Endpoint:             c.URL,
			HTTPClient:           httpClient,
			DisableStandaloneSSE: true,
		}, nil
	}

	if c.Command != "" {
		cmd := exec.Command(c.Command, c.Args...)
		if len(c.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range c.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		return &sdkmcp.CommandTransport{Command: cmd}, nil
	}

	return nil, fmt.Errorf("connection %q has neither url nor command", c.Name)
}

type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// ConnectionSource returns the MCP connections a user owns.
type ConnectionSource interface {
	Connections(ctx context.Context, userID string) ([]Connection, error)
}

// StaticConnections serves the same connections to every user.
type StaticConnections []Connection

// Connections implements ConnectionSource.
func (s StaticConnections) Connections(context.Context, string) ([]Connection, error) {
	return s, nil
}

// Options configure a Loader.
type Options struct {
	ClientName    string
	ClientVersion string
	Logger        logging.Logger
}

type session struct {
	key  string
	cs   *sdkmcp.ClientSession
	refs int
}

// Loader implements resolver.PersonalToolLoader.
type Loader struct {
	source ConnectionSource
	client *sdkmcp.Client
	logger logging.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewLoader creates a Loader over the connections returned by source.
func NewLoader(source ConnectionSource, optFns ...func(o *Options)) *Loader {
	opts := Options{ClientName: "agentgraph", ClientVersion: "1.0.0"}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Loader{
		source:   source,
		client:   sdkmcp.NewClient(&sdkmcp.Implementation{Name: opts.ClientName, Version: opts.ClientVersion}, nil),
		logger:   logging.OrNoOp(opts.Logger),
		sessions: make(map[string]*session),
	}
}

// Load lists the tools of the connection named by the skill definition's
// "connection" entry, or of every user connection when none is named. Tools
// are keyed by their MCP tool name.
func (l *Loader) Load(ctx context.Context, skill team.GraphSkill) (map[string]tool.Tool, error) {
	conns, err := l.source.Connections(ctx, skill.UserID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	wanted, _ := skill.Definition["connection"].(string)

	out := make(map[string]tool.Tool)
	var errs []error

	for _, c := range conns {
		if wanted != "" && c.Name != wanted {
			continue
		}

		tools, err := l.loadConnection(ctx, skill.UserID, c)
		if err != nil {
			l.logger.Warn("mcp.connection.failed", "connection", c.Name, "user_id", skill.UserID, "error", err.Error())
			errs = append(errs, err)
			continue
		}
		for k, t := range tools {
			out[k] = t
		}
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return out, nil
}

func (l *Loader) loadConnection(ctx context.Context, userID string, c Connection) (map[string]tool.Tool, error) {
	s, err := l.session(ctx, userID, c)
	if err != nil {
		return nil, err
	}

	res, err := s.cs.ListTools(ctx, nil)
	if err != nil {
		l.drop(s)
		return nil, fmt.Errorf("tools/list on %q: %w", c.Name, err)
	}

	out := make(map[string]tool.Tool, len(res.Tools))

	l.mu.Lock()
	for _, t := range res.Tools {
		out[t.Name] = &Tool{session: s, connection: c.Name, tool: t}
		s.refs++
	}
	l.mu.Unlock()

	l.logger.Info("mcp.tools.loaded", "connection", c.Name, "user_id", userID, "tools", len(out))

	return out, nil
}

func (l *Loader) session(ctx context.Context, userID string, c Connection) (*session, error) {
	key := userID + "/" + c.Name

	l.mu.Lock()
	if s, ok := l.sessions[key]; ok {
		l.mu.Unlock()
		return s, nil
	}
	l.mu.Unlock()

	transport, err := c.transport()
	if err != nil {
		return nil, err
	}

	cs, err := l.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect MCP server %q: %w", c.Name, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.sessions[key]; ok {
		_ = cs.Close()
		return existing, nil
	}

	s := &session{key: key, cs: cs}
	l.sessions[key] = s

	return s, nil
}

// Release drops one reference held by an evicted tool and closes the session
// when none remain. It matches toolcache.EvictFunc.
func (l *Loader) Release(_ string, _ string, t tool.Tool) {
	mt, ok := t.(*Tool)
	if !ok {
		return
	}

	l.mu.Lock()
	mt.session.refs--
	closeIt := mt.session.refs <= 0 && l.sessions[mt.session.key] == mt.session
	if closeIt {
		delete(l.sessions, mt.session.key)
	}
	l.mu.Unlock()

	if closeIt {
		l.logger.Debug("mcp.session.closed", "session", mt.session.key)
		_ = mt.session.cs.Close()
	}
}

// Sessions returns the number of open sessions.
func (l *Loader) Sessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// Close closes every open session.
func (l *Loader) Close() error {
	l.mu.Lock()
	sessions := l.sessions
	l.sessions = make(map[string]*session)
	l.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.cs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Loader) drop(s *session) {
	l.mu.Lock()
	if l.sessions[s.key] == s && s.refs == 0 {
		delete(l.sessions, s.key)
		l.mu.Unlock()
		_ = s.cs.Close()
		return
	}
	l.mu.Unlock()
}

// Tool is a tool served by an MCP session.
type Tool struct {
	session    *session
	connection string
	tool       *sdkmcp.Tool
}

// Name returns the sanitized MCP tool name.
func (t *Tool) Name() string { return tool.SanitizeName(t.tool.Name) }

func (t *Tool) Description() string {
	if t.tool.Description != "" {
		return t.tool.Description
	}
	return fmt.Sprintf("MCP tool from %s", t.connection)
}

// Parameters converts the MCP input schema into a plain JSON schema map.
func (t *Tool) Parameters() map[string]any {
	empty := map[string]any{"type": "object", "properties": map[string]any{}}

	switch s := t.tool.InputSchema.(type) {
	case nil:
		return empty
	case map[string]any:
		return s
	}

	data, err := json.Marshal(t.tool.InputSchema)
	if err != nil {
		return empty
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return empty
	}
	return out
}

// Call runs the tool on the server. Server side failures become tool errors.
func (t *Tool) Call(ctx context.Context, args map[string]any) (any, error) {
	res, err := t.session.cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: t.tool.Name, Arguments: args})
	if err != nil {
		return nil, tool.NewToolError(t.Name(), fmt.Sprintf("tools/call: %v", err), tool.CodeExecution)
	}

	text := contentText(res.Content)
	if res.IsError {
		return nil, tool.NewToolError(t.Name(), text, tool.CodeExecution)
	}

	return text, nil
}

func contentText(content []sdkmcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch v := c.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, v.Text)
		case *sdkmcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image: %s]", v.MIMEType))
		case *sdkmcp.ResourceLink:
			parts = append(parts, fmt.Sprintf("[resource_link: %s]", v.URI))
		default:
			parts = append(parts, fmt.Sprintf("[content: %T]", v))
		}
	}
	return strings.Join(parts, "\n")
}
