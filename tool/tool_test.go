package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
)

func TestFunctionTool_ValidationError(t *testing.T) {
	tool := NewFunctionTool(
		"echo",
		"Echo input",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"msg": map[string]any{"type": "string"}},
			"required":   []string{"msg"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			return args["msg"], nil
		},
	)

	_, err := tool.Call(context.Background(), map[string]any{})
	require.Error(t, err)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeValidation, te.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	tool := NewFunctionTool(
		"fail",
		"Always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	)

	_, err := tool.Call(context.Background(), map[string]any{})

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeExecution, te.Code)
	assert.Equal(t, "boom", te.Message)
}

func TestFunctionTool_PreservesCustomToolError(t *testing.T) {
	tool := NewFunctionTool("custom", "", nil,
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, NewToolError("custom", "nope", "QUOTA")
		},
	)

	_, err := tool.Call(context.Background(), nil)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "QUOTA", te.Code)
}

func TestFunctionTool_Success(t *testing.T) {
	var seen CallInfo
	tool := NewFunctionTool(
		"add",
		"Add numbers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"a", "b"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			seen = CallInfoFrom(ctx)
			return args["a"].(float64) + args["b"].(float64), nil
		},
	)

	ctx := WithCallInfo(context.Background(), CallInfo{CallID: "c1", ThreadID: "t1"})
	out, err := tool.Call(ctx, map[string]any{"a": 1.0, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, out)
	assert.Equal(t, "c1", seen.CallID)
	assert.Equal(t, "t1", seen.ThreadID)
	assert.NotNil(t, seen.Logger)
	assert.False(t, IsReturnDirect(tool))
}

func TestFunctionTool_ReturnDirect(t *testing.T) {
	tool := NewFunctionTool("final", "", nil,
		func(ctx context.Context, args map[string]any) (any, error) { return "done", nil },
		func(o *FunctionOptions) { o.ReturnDirect = true },
	)
	assert.True(t, IsReturnDirect(tool))
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type input struct {
		City string `json:"city" description:"City name"`
	}

	tool := NewFunctionToolFromStruct("weather", "Weather", input{},
		func(ctx context.Context, args map[string]any) (any, error) { return "sunny", nil },
	)

	props, ok := tool.Parameters()["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "city")

	def := Definition(tool)
	assert.Equal(t, "weather", def.Function.Name)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "my_search_tool", SanitizeName("my search tool"))
	assert.Equal(t, "a-b_c", SanitizeName("a-b.c"))
	assert.Equal(t, "tool", SanitizeName("$$$"))
	assert.Len(t, SanitizeName(string(make([]byte, 100))+"x"), 1)
}

func TestRetrievalTool(t *testing.T) {
	r := retrieverFunc(func(ctx context.Context, uploadID, query string, k int) ([]core.Document, error) {
		assert.Equal(t, "up-1", uploadID)
		assert.Equal(t, 4, k)
		return []core.Document{{ID: "d1", Content: "alpha"}, {ID: "d2", Content: "beta"}}, nil
	})

	tool := NewRetrievalTool("Product Docs", "", "up-1", 0, r)
	assert.Equal(t, "Product_Docs", tool.Name())

	out, err := tool.Call(context.Background(), map[string]any{"query": "alpha"})
	require.NoError(t, err)

	res, ok := out.(Result)
	require.True(t, ok)
	assert.Equal(t, "[1] alpha\n\n[2] beta", res.Content)
	assert.Len(t, res.Documents, 2)

	_, err = tool.Call(context.Background(), map[string]any{"query": " "})
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeValidation, te.Code)
}

type retrieverFunc func(ctx context.Context, uploadID, query string, k int) ([]core.Document, error)

func (f retrieverFunc) Retrieve(ctx context.Context, uploadID, query string, k int) ([]core.Document, error) {
	return f(ctx, uploadID, query, k)
}
