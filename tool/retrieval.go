package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentgraph/core"
)

// Retriever finds documents relevant to a query within one upload.
type Retriever interface {
	Retrieve(ctx context.Context, uploadID, query string, k int) ([]core.Document, error)
}

// RetrievalTool exposes a document upload as a searchable tool.
type RetrievalTool struct {
	name        string
	description string
	uploadID    string
	k           int
	retriever   Retriever
}

// NewRetrievalTool creates a search tool over the upload identified by uploadID.
func NewRetrievalTool(name, description, uploadID string, k int, r Retriever) *RetrievalTool {
	if k <= 0 {
		k = 4
	}
	return &RetrievalTool{
		name:        SanitizeName(name),
		description: description,
		uploadID:    uploadID,
		k:           k,
		retriever:   r,
	}
}

func (t *RetrievalTool) Name() string { return t.name }

func (t *RetrievalTool) Description() string {
	if t.description != "" {
		return t.description
	}
	return "Search the uploaded documents for passages relevant to the query."
}

func (t *RetrievalTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "What to search for."},
		},
		"required": []string{"query"},
	}
}

// Call returns a Result whose Documents carry the retrieved passages.
func (t *RetrievalTool) Call(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, NewToolError(t.name, "query must be a non-empty string", CodeValidation)
	}

	docs, err := t.retriever.Retrieve(ctx, t.uploadID, query, t.k)
	if err != nil {
		return nil, NewToolError(t.name, err.Error(), CodeExecution)
	}

	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s", i+1, d.Content)
	}

	return Result{Content: sb.String(), Documents: docs}, nil
}
