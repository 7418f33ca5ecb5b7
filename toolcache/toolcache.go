// Package toolcache provides a bounded, per-user cache of resolved personal tools.
//
// The cache is two-level: an outer LRU over user ids and, per user, an inner
// LRU over tool keys. Every operation, including Get (which reorders both
// lists), runs under one mutex.
package toolcache

import (
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/metrics"
	"github.com/hupe1980/agentgraph/tool"
)

const (
	// DefaultMaxCachedUsers bounds the outer LRU.
	DefaultMaxCachedUsers = 256
	// DefaultMaxPersonalToolsPerUser bounds each inner LRU.
	DefaultMaxPersonalToolsPerUser = 64
)

// NotFoundError reports a cache miss. It is not fatal; callers reload and retry.
type NotFoundError struct {
	UserID  string
	ToolKey string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q not cached for user %q", e.ToolKey, e.UserID)
}

// EvictFunc is called for every tool leaving the cache, whether through LRU
// eviction or Remove. It runs after the cache lock is released.
type EvictFunc func(userID, toolKey string, t tool.Tool)

// Options configure a Cache.
type Options struct {
	MaxCachedUsers          int
	MaxPersonalToolsPerUser int
	OnEvict                 EvictFunc
	Logger                  logging.Logger
	Metrics                 *metrics.Metrics
}

type evicted struct {
	userID string
	key    string
	tool   tool.Tool
}

type userTools = simplelru.LRU[string, tool.Tool]

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	users   *simplelru.LRU[string, *userTools]
	perUser int
	pending []evicted

	onEvict EvictFunc
	logger  logging.Logger
	metrics *metrics.Metrics
}

// New creates a Cache.
func New(optFns ...func(o *Options)) *Cache {
	opts := Options{
		MaxCachedUsers:          DefaultMaxCachedUsers,
		MaxPersonalToolsPerUser: DefaultMaxPersonalToolsPerUser,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxCachedUsers <= 0 {
		opts.MaxCachedUsers = DefaultMaxCachedUsers
	}
	if opts.MaxPersonalToolsPerUser <= 0 {
		opts.MaxPersonalToolsPerUser = DefaultMaxPersonalToolsPerUser
	}

	c := &Cache{
		perUser: opts.MaxPersonalToolsPerUser,
		onEvict: opts.OnEvict,
		logger:  logging.OrNoOp(opts.Logger),
		metrics: opts.Metrics,
	}

	// NewLRU only fails for a non-positive size, which is ruled out above.
	c.users, _ = simplelru.NewLRU(opts.MaxCachedUsers, c.evictUser)

	return c
}

// Add stores t under (userID, toolKey), touching both levels. It may evict the
// least recently used user and that user's least recently used tool. A tool
// already stored under the same key is replaced and reported to OnEvict.
func (c *Cache) Add(userID, toolKey string, t tool.Tool) {
	c.mu.Lock()

	tools, ok := c.users.Get(userID)
	if !ok {
		tools, _ = simplelru.NewLRU(c.perUser, func(key string, t tool.Tool) {
			c.logger.Debug("toolcache.evict.tool", "user_id", userID, "tool_key", key)
			c.pending = append(c.pending, evicted{userID: userID, key: key, tool: t})
		})
		c.users.Add(userID, tools)
	}
	if old, ok := tools.Peek(toolKey); ok {
		c.pending = append(c.pending, evicted{userID: userID, key: toolKey, tool: old})
	}
	tools.Add(toolKey, t)

	drained := c.drain()
	c.mu.Unlock()

	c.notify(drained)
}

// Get returns the tool cached under (userID, toolKey) and marks both entries
// as recently used. A miss returns *NotFoundError.
func (c *Cache) Get(userID, toolKey string) (tool.Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tools, ok := c.users.Get(userID); ok {
		if t, ok := tools.Get(toolKey); ok {
			c.metrics.CacheLookup(true)
			return t, nil
		}
	}

	c.metrics.CacheLookup(false)

	return nil, &NotFoundError{UserID: userID, ToolKey: toolKey}
}

// Remove drops one tool. It reports whether the tool was cached.
func (c *Cache) Remove(userID, toolKey string) bool {
	c.mu.Lock()

	removed := false
	if tools, ok := c.users.Peek(userID); ok {
		removed = tools.Remove(toolKey)
		if tools.Len() == 0 {
			c.users.Remove(userID)
		}
	}

	drained := c.drain()
	c.mu.Unlock()

	c.notify(drained)

	return removed
}

// RemoveUser drops every tool cached for userID.
func (c *Cache) RemoveUser(userID string) bool {
	c.mu.Lock()
	removed := c.users.Remove(userID)
	drained := c.drain()
	c.mu.Unlock()

	c.notify(drained)

	return removed
}

// Len returns the number of cached users.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.users.Len()
}

// Users returns the cached user ids from oldest to newest.
func (c *Cache) Users() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.users.Keys()
}

// Keys returns the tool keys cached for userID from oldest to newest without
// touching recency.
func (c *Cache) Keys(userID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	tools, ok := c.users.Peek(userID)
	if !ok {
		return nil
	}
	return tools.Keys()
}

// evictUser runs under c.mu when the outer LRU drops a user.
func (c *Cache) evictUser(userID string, tools *userTools) {
	c.logger.Debug("toolcache.evict.user", "user_id", userID, "tools", tools.Len())
	for _, key := range tools.Keys() {
		t, _ := tools.Peek(key)
		c.pending = append(c.pending, evicted{userID: userID, key: key, tool: t})
	}
}

func (c *Cache) drain() []evicted {
	out := c.pending
	c.pending = nil
	return out
}

func (c *Cache) notify(items []evicted) {
	if c.onEvict == nil {
		return
	}
	for _, e := range items {
		c.onEvict(e.userID, e.key, e.tool)
	}
}
