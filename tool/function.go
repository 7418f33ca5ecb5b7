package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentgraph/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a Tool.
//
// Responsibilities:
//   - Holds a minimal JSON schema for its parameters
//   - Validates model supplied arguments against that schema before execution
//   - Normalizes errors so callers receive *ToolError with consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name         string
	description  string
	parameters   map[string]any
	returnDirect bool
	fn           func(ctx context.Context, args map[string]any) (any, error)
}

// FunctionOptions configure optional FunctionTool behavior.
type FunctionOptions struct {
	// ReturnDirect makes the tool's result the final answer of the turn.
	ReturnDirect bool
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	weather := tool.NewFunctionTool(
//	  "get_weather",
//	  "Get the current weather for a city",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{"city": map[string]any{"type": "string"}},
//	    "required": []string{"city"},
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return "sunny in " + args["city"].(string), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	optFns ...func(o *FunctionOptions),
) *FunctionTool {
	var opts FunctionOptions
	for _, f := range optFns {
		f(&opts)
	}
	return &FunctionTool{
		name:         name,
		description:  description,
		parameters:   parameters,
		returnDirect: opts.ReturnDirect,
		fn:           fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using reflection.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	optFns ...func(o *FunctionOptions),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, optFns...)
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// ReturnDirect implements DirectReturner.
func (t *FunctionTool) ReturnDirect() bool { return t.returnDirect }

// Call validates args against the declared schema then invokes the function.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	info := CallInfoFrom(ctx)
	start := time.Now()

	info.Logger.Debug("tool.call.start", "tool", t.name, "call_id", info.CallID)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		info.Logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			info.Logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return nil, toolErr
		}

		info.Logger.Error("tool.call.error", "tool", t.name, "error", err.Error())
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}

	info.Logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
