package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/easelhq/easel/internal/memory"
)

// SemanticSearchTool searches the session's recall entries by meaning.
type SemanticSearchTool struct {
	Searcher *memory.Searcher
}

func (t *SemanticSearchTool) Name() string { return "semantic_search" }
func (t *SemanticSearchTool) Description() string {
	return "Search earlier parts of this session by meaning. Returns the most relevant past utterances, replies, and observations."
}
func (t *SemanticSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "What to look for"},
			"topK":  map[string]any{"type": "integer", "description": "Results (1-10, default 5)"},
		},
		"required": []string{"query"},
	}
}

func (t *SemanticSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "Error: query is required", nil
	}
	topK := 5
	if k, ok := args["topK"].(float64); ok && k >= 1 && k <= 10 {
		topK = int(k)
	}

	hits, err := t.Searcher.Search(ctx, query, topK)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if len(hits) == 0 {
		return "No matching session history found.", nil
	}

	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. [%s, score %.2f] %s\n", i+1, h.Entry.Kind, h.Score, h.Entry.Text)
	}
	return b.String(), nil
}
