package retrieval

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/tool"
)

// keywordEmbed maps text onto a tiny vocabulary so similarity is predictable.
func keywordEmbed(_ context.Context, text string) ([]float32, error) {
	vocab := []string{"weather", "invoice", "holiday"}
	vec := make([]float32, len(vocab))
	lower := strings.ToLower(text)
	var norm float64
	for i, w := range vocab {
		if strings.Contains(lower, w) {
			vec[i] = 1
			norm++
		}
	}
	if norm == 0 {
		vec[0], norm = 0.01, 0.0001
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(func(o *Options) { o.Embed = keywordEmbed })
	require.NoError(t, err)
	return s
}

func TestStore_RetrieveFiltersByUpload(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Add(ctx, "up-1",
		core.Document{ID: "a", Content: "The weather in Berlin is mild."},
		core.Document{ID: "b", Content: "Invoice 42 is overdue."},
	))
	require.NoError(t, s.Add(ctx, "up-2",
		core.Document{ID: "c", Content: "Holiday schedule for December."},
	))

	docs, err := s.Retrieve(ctx, "up-1", "what's the weather", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "up-1", docs[0].Metadata["upload_id"])

	docs, err = s.Retrieve(ctx, "up-2", "holiday", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c", docs[0].ID)
}

func TestStore_AsRetrievalTool(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Add(ctx, "up-1", core.Document{ID: "b", Content: "Invoice 42 is overdue."}))

	rt := tool.NewRetrievalTool("billing", "", "up-1", 1, s)
	out, err := rt.Call(ctx, map[string]any{"query": "invoice"})
	require.NoError(t, err)

	res := out.(tool.Result)
	require.Len(t, res.Documents, 1)
	assert.Contains(t, res.Content, "Invoice 42")
}

func TestStore_Empty(t *testing.T) {
	docs, err := newStore(t).Retrieve(context.Background(), "up-1", "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
