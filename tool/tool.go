// Package tool implements the tool calling subsystem that lets team members
// invoke structured capabilities (APIs, retrieval, MCP servers) with schema
// validated, sanitized arguments and consistent error handling.
package tool

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
)

// Tool defines the interface for capabilities a team member can call.
//
// Implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a JSON schema for parameters
//   - Return (nil, nil) when there is no output to report
//   - Be safe for concurrent use; a tool node may fan calls out in parallel
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is shown to the model to help it decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with already sanitized arguments. Run scoped
	// information is available through CallInfoFrom(ctx).
	Call(ctx context.Context, args map[string]any) (any, error)
}

// DirectReturner is implemented by tools whose result should end the turn
// and become the final answer.
type DirectReturner interface {
	ReturnDirect() bool
}

// IsReturnDirect reports whether t asks for its result to be returned directly.
func IsReturnDirect(t Tool) bool {
	dr, ok := t.(DirectReturner)
	return ok && dr.ReturnDirect()
}

// Result is a structured tool output. Tools that surface retrieved documents
// return a Result so the documents travel with the tool message.
type Result struct {
	Content   string
	Documents []core.Document
}

// Definition converts a tool into the normalized definition bound to a model.
func Definition(t Tool) model.ToolDefinition {
	params := t.Parameters()
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return model.NewToolDefinition(t.Name(), t.Description(), params)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes used by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeHTTP       = "HTTP_ERROR"
)

// ToolError represents errors that occur during tool execution. A ToolError is
// reported back to the model as the tool result instead of aborting the run.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// CallInfo carries run scoped data to a tool invocation.
type CallInfo struct {
	CallID   string
	ThreadID string
	UserID   string
	Logger   logging.Logger
}

type callInfoKey struct{}

// WithCallInfo returns a context carrying info.
func WithCallInfo(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom extracts the CallInfo stored in ctx. The returned Logger is never nil.
func CallInfoFrom(ctx context.Context) CallInfo {
	info, _ := ctx.Value(callInfoKey{}).(CallInfo)
	info.Logger = logging.OrNoOp(info.Logger)
	return info
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SanitizeName turns an arbitrary label into a provider safe tool name
// (letters, digits, '_' and '-', at most 64 characters).
func SanitizeName(s string) string {
	name := strings.Trim(invalidNameChars.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	if name == "" {
		name = "tool"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
