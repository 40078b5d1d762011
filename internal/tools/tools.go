// Package tools implements the MCP tool handlers. Every handler answers
// with human-readable text; failures are text results flagged IsError and
// prefixed with "Error: ", never protocol errors.
package tools

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rcliao/agent-knowledge/internal/model"
	"github.com/rcliao/agent-knowledge/internal/vector"
)

const displayTime = "2006-01-02 15:04:05 UTC"

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// searchError explains an empty index instead of echoing the sentinel.
func searchError(err error) *mcp.CallToolResult {
	if errors.Is(err, vector.ErrNotInitialized) {
		return toolError("vector index is empty; store some knowledge or log a message first")
	}
	return toolError("search failed: %v", err)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(displayTime)
}

func writeEntry(b *strings.Builder, e *model.KnowledgeEntry) {
	fmt.Fprintf(b, "[%d] %s\n", e.ID, e.Title)
	if len(e.Tags) > 0 {
		fmt.Fprintf(b, "Tags: %s\n", strings.Join(e.Tags, ", "))
	}
	if e.Source != nil {
		fmt.Fprintf(b, "Source: %s\n", *e.Source)
	}
	fmt.Fprintf(b, "Created: %s | Updated: %s\n", fmtTime(e.CreatedAt), fmtTime(e.UpdatedAt))
}

func formatEntry(e *model.KnowledgeEntry) string {
	var b strings.Builder
	writeEntry(&b, e)
	b.WriteString("\n")
	b.WriteString(e.Content)
	return b.String()
}

func formatEntries(header string, entries []model.KnowledgeEntry) string {
	if len(entries) == 0 {
		return "No knowledge entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", header, len(entries))
	for i := range entries {
		b.WriteString("\n")
		writeEntry(&b, &entries[i])
	}
	return b.String()
}

func formatHits(hits []vector.Hit) string {
	if len(hits) == 0 {
		return "No matching results."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d result(s):\n", len(hits))
	for i, h := range hits {
		fmt.Fprintf(&b, "\n%d. [%s #%d] %s (score: %.3f)\n", i+1, h.Kind, h.SourceID, h.Title, h.Score)
		if len(h.Tags) > 0 {
			fmt.Fprintf(&b, "   Tags: %s\n", strings.Join(h.Tags, ", "))
		}
		fmt.Fprintf(&b, "   %s\n", h.Preview)
	}
	return b.String()
}

func vectorizedNote(ok bool) string {
	if ok {
		return "indexed for semantic search"
	}
	return "not indexed for semantic search (embedding unavailable)"
}
