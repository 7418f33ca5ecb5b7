package toolcache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/tool"
)

func newTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return name, nil
	})
}

func TestCache_EvictsLeastRecentlyUsedUser(t *testing.T) {
	var evictedKeys []string
	c := New(func(o *Options) {
		o.MaxCachedUsers = 2
		o.OnEvict = func(userID, toolKey string, _ tool.Tool) {
			evictedKeys = append(evictedKeys, userID+"/"+toolKey)
		}
	})

	c.Add("A", "search", newTool("search"))
	c.Add("B", "search", newTool("search"))
	c.Add("C", "search", newTool("search"))

	_, err := c.Get("A", "search")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "A", nf.UserID)

	assert.Equal(t, []string{"B", "C"}, c.Users())
	assert.Equal(t, []string{"A/search"}, evictedKeys)
}

func TestCache_GetTouchesUser(t *testing.T) {
	c := New(func(o *Options) { o.MaxCachedUsers = 2 })

	c.Add("A", "x", newTool("x"))
	c.Add("B", "x", newTool("x"))

	_, err := c.Get("A", "x")
	require.NoError(t, err)

	c.Add("C", "x", newTool("x"))

	_, err = c.Get("B", "x")
	require.Error(t, err)
	_, err = c.Get("A", "x")
	require.NoError(t, err)
}

func TestCache_EvictsLeastRecentlyTouchedTool(t *testing.T) {
	c := New(func(o *Options) { o.MaxPersonalToolsPerUser = 2 })

	c.Add("A", "t1", newTool("t1"))
	c.Add("A", "t2", newTool("t2"))

	_, err := c.Get("A", "t1")
	require.NoError(t, err)

	c.Add("A", "t3", newTool("t3"))

	_, err = c.Get("A", "t2")
	require.Error(t, err)

	assert.Equal(t, []string{"t1", "t3"}, c.Keys("A"))
}

func TestCache_Remove(t *testing.T) {
	var evictedCount int
	c := New(func(o *Options) {
		o.OnEvict = func(string, string, tool.Tool) { evictedCount++ }
	})

	c.Add("A", "t1", newTool("t1"))
	c.Add("A", "t2", newTool("t2"))

	assert.True(t, c.Remove("A", "t1"))
	assert.False(t, c.Remove("A", "t1"))
	assert.Equal(t, 1, c.Len())

	assert.True(t, c.Remove("A", "t2"))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 2, evictedCount)

	c.Add("B", "t1", newTool("t1"))
	assert.True(t, c.RemoveUser("B"))
	assert.Equal(t, 3, evictedCount)
}

func TestCache_ReplaceReportsOldTool(t *testing.T) {
	var replaced []tool.Tool
	c := New(func(o *Options) {
		o.OnEvict = func(_ string, _ string, t tool.Tool) { replaced = append(replaced, t) }
	})

	first := newTool("v1")
	c.Add("A", "t", first)
	c.Add("A", "t", newTool("v2"))

	require.Len(t, replaced, 1)
	assert.Same(t, first, replaced[0])
}

func TestCache_Concurrent(t *testing.T) {
	c := New(func(o *Options) {
		o.MaxCachedUsers = 8
		o.MaxPersonalToolsPerUser = 4
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%10)
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("t%d", j%6)
				c.Add(user, key, newTool(key))
				_, _ = c.Get(user, key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 8)
	for _, u := range c.Users() {
		assert.LessOrEqual(t, len(c.Keys(u)), 4)
	}
}
