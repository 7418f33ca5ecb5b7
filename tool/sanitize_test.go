package tool

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeArgs(t *testing.T) {
	args := map[string]any{
		"a": "null",
		"b": " NULL ",
		"c": "value",
		"d": map[string]any{"e": "null", "f": 1.0},
		"g": []any{"null", "x", map[string]any{"h": "Null"}},
	}

	got := SanitizeArgs(args)

	want := map[string]any{
		"a": nil,
		"b": nil,
		"c": "value",
		"d": map[string]any{"e": nil, "f": 1.0},
		"g": []any{nil, "x", map[string]any{"h": nil}},
	}
	assert.Empty(t, cmp.Diff(want, got))
}

func TestSanitizeArgs_Idempotent(t *testing.T) {
	inputs := []map[string]any{
		{},
		{"a": "null", "b": []any{"null", []any{"null"}}},
		{"q": "nullable", "n": nil, "x": true},
	}

	for _, in := range inputs {
		once := SanitizeArgs(cloneArgs(in))
		twice := SanitizeArgs(cloneArgs(once))
		assert.Empty(t, cmp.Diff(once, twice))
	}
}

func TestParseArgs(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		args, err := ParseArgs("")
		require.NoError(t, err)
		assert.Empty(t, args)
	})

	t.Run("json null", func(t *testing.T) {
		args, err := ParseArgs("null")
		require.NoError(t, err)
		assert.NotNil(t, args)
		assert.Empty(t, args)
	})

	t.Run("sanitizes", func(t *testing.T) {
		args, err := ParseArgs(`{"city":"Berlin","unit":"null"}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"city": "Berlin", "unit": nil}, args)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseArgs(`{"city":`)
		require.ErrorIs(t, err, ErrMalformedArgs)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := ParseArgs(`[1,2]`)
		require.ErrorIs(t, err, ErrMalformedArgs)
	})
}

func cloneArgs(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneArgs(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	default:
		return v
	}
}
