package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rcliao/agent-knowledge/internal/service"
	"github.com/rcliao/agent-knowledge/internal/store"
)

// KnowledgeTools serves the knowledge entry tools.
type KnowledgeTools struct {
	Knowledge *service.KnowledgeService
}

// --- Input types ---

type StoreKnowledgeInput struct {
	Title   string   `json:"title" jsonschema:"Short title for the entry"`
	Content string   `json:"content" jsonschema:"The knowledge to store"`
	Source  string   `json:"source,omitempty" jsonschema:"Where the knowledge came from (URL, file, person)"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Tags for filtering"`
}

type SearchKnowledgeInput struct {
	Query    string   `json:"query" jsonschema:"Natural language query"`
	Limit    int      `json:"limit,omitempty" jsonschema:"Maximum results (default 10)"`
	MinScore *float64 `json:"min_score,omitempty" jsonschema:"Minimum similarity score between 0 and 1 (default 0.3)"`
}

type SearchKnowledgeTextInput struct {
	Query string `json:"query" jsonschema:"Words to look for in titles and content; words under 3 characters are ignored"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results (default 10)"`
}

type KnowledgeIDInput struct {
	ID int64 `json:"id" jsonschema:"Knowledge entry id"`
}

type UpdateKnowledgeInput struct {
	ID      int64    `json:"id" jsonschema:"Knowledge entry id"`
	Title   *string  `json:"title,omitempty" jsonschema:"New title"`
	Content *string  `json:"content,omitempty" jsonschema:"New content"`
	Source  *string  `json:"source,omitempty" jsonschema:"New source"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Replacement tag list"`
}

type ListKnowledgeInput struct {
	Limit  int      `json:"limit,omitempty" jsonschema:"Maximum entries (default 20)"`
	Offset int      `json:"offset,omitempty" jsonschema:"Entries to skip"`
	Tags   []string `json:"tags,omitempty" jsonschema:"Only entries carrying any of these tags"`
}

type EmptyInput struct{}

// --- Handlers ---

func (t *KnowledgeTools) StoreKnowledge(ctx context.Context, _ *mcp.CallToolRequest, input StoreKnowledgeInput) (*mcp.CallToolResult, any, error) {
	var source *string
	if s := strings.TrimSpace(input.Source); s != "" {
		source = &s
	}
	res, err := t.Knowledge.Add(ctx, service.AddKnowledgeParams{
		Title:   input.Title,
		Content: input.Content,
		Source:  source,
		Tags:    input.Tags,
	})
	if err != nil {
		return toolError("failed to store knowledge: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Stored knowledge entry %d (%s).", res.ID, vectorizedNote(res.Vectorized))), nil, nil
}

func (t *KnowledgeTools) SearchKnowledge(ctx context.Context, _ *mcp.CallToolRequest, input SearchKnowledgeInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Query) == "" {
		return toolError("query is required"), nil, nil
	}
	minScore := service.DefaultMinScore
	if input.MinScore != nil {
		minScore = *input.MinScore
	}
	hits, err := t.Knowledge.Search(ctx, input.Query, input.Limit, minScore)
	if err != nil {
		return searchError(err), nil, nil
	}
	return toolText(formatHits(hits)), nil, nil
}

func (t *KnowledgeTools) SearchKnowledgeText(ctx context.Context, _ *mcp.CallToolRequest, input SearchKnowledgeTextInput) (*mcp.CallToolResult, any, error) {
	entries, err := t.Knowledge.SearchText(ctx, input.Query, input.Limit)
	if err != nil {
		return toolError("search failed: %v", err), nil, nil
	}
	return toolText(formatEntries("Matching entries", entries)), nil, nil
}

func (t *KnowledgeTools) GetKnowledge(ctx context.Context, _ *mcp.CallToolRequest, input KnowledgeIDInput) (*mcp.CallToolResult, any, error) {
	e, err := t.Knowledge.Get(ctx, input.ID)
	if err != nil {
		return toolError("failed to get knowledge: %v", err), nil, nil
	}
	if e == nil {
		return toolError("knowledge entry %d not found", input.ID), nil, nil
	}
	return toolText(formatEntry(e)), nil, nil
}

func (t *KnowledgeTools) UpdateKnowledge(ctx context.Context, _ *mcp.CallToolRequest, input UpdateKnowledgeInput) (*mcp.CallToolResult, any, error) {
	res, err := t.Knowledge.Update(ctx, input.ID, store.UpdateKnowledgeParams{
		Title:   input.Title,
		Content: input.Content,
		Source:  input.Source,
		Tags:    input.Tags,
	})
	if err != nil {
		return toolError("failed to update knowledge: %v", err), nil, nil
	}
	if !res.Success {
		return toolError("knowledge entry %d not found", input.ID), nil, nil
	}
	return toolText(fmt.Sprintf("Updated knowledge entry %d (%s).", input.ID, vectorizedNote(res.Vectorized))), nil, nil
}

func (t *KnowledgeTools) DeleteKnowledge(ctx context.Context, _ *mcp.CallToolRequest, input KnowledgeIDInput) (*mcp.CallToolResult, any, error) {
	ok, err := t.Knowledge.Delete(ctx, input.ID)
	if err != nil {
		return toolError("failed to delete knowledge: %v", err), nil, nil
	}
	if !ok {
		return toolError("knowledge entry %d not found", input.ID), nil, nil
	}
	return toolText(fmt.Sprintf("Deleted knowledge entry %d.", input.ID)), nil, nil
}

func (t *KnowledgeTools) ListKnowledge(ctx context.Context, _ *mcp.CallToolRequest, input ListKnowledgeInput) (*mcp.CallToolResult, any, error) {
	entries, err := t.Knowledge.List(ctx, store.ListKnowledgeParams{
		Limit:  input.Limit,
		Offset: input.Offset,
		Tags:   input.Tags,
	})
	if err != nil {
		return toolError("failed to list knowledge: %v", err), nil, nil
	}
	return toolText(formatEntries("Knowledge entries", entries)), nil, nil
}

func (t *KnowledgeTools) GetKnowledgeStats(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	st, err := t.Knowledge.Stats(ctx)
	if err != nil {
		return toolError("failed to get stats: %v", err), nil, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total entries: %d\n", st.Total)
	if st.Oldest != nil && st.Newest != nil {
		fmt.Fprintf(&b, "Oldest: %s\nNewest: %s\n", fmtTime(*st.Oldest), fmtTime(*st.Newest))
	}
	if len(st.Tags) > 0 {
		b.WriteString("Tags:\n")
		for _, tc := range st.Tags {
			fmt.Fprintf(&b, "  %s: %d\n", tc.Tag, tc.Count)
		}
	}
	return toolText(strings.TrimRight(b.String(), "\n")), nil, nil
}
