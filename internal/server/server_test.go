package server

import (
	"context"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rcliao/agent-knowledge/internal/app"
	"github.com/rcliao/agent-knowledge/internal/config"
)

// keywordEmbedder puts each known word on its own axis.
type keywordEmbedder struct{}

var axes = []string{"go", "sql", "cat", "dog"}

func (keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, len(axes)+1)
	lower := strings.ToLower(text)
	for i, a := range axes {
		if strings.Contains(lower, a) {
			v[i] = 1
		}
	}
	v[len(axes)] = 0.05
	return v, nil
}

func (keywordEmbedder) Dims() int { return len(axes) + 1 }

// setupIntegration runs the server over in-memory transports and returns a
// connected client session.
func setupIntegration(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	cfg := config.Config{
		DataDir:   t.TempDir(),
		Vector:    config.VectorConfig{Backend: config.BackendSQLite},
		Embedding: config.EmbeddingConfig{Provider: "ollama"},
	}
	a, err := app.Open(ctx, cfg, nil, app.WithEmbedder(keywordEmbedder{}))
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	srv := New(a)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	if _, err := srv.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): protocol error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text, result.IsError
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	text, isErr := call(t, session, name, args)
	if isErr {
		t.Fatalf("CallTool(%s) returned error: %s", name, text)
	}
	return text
}

func callToolExpectError(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	text, isErr := call(t, session, name, args)
	if !isErr {
		t.Fatalf("CallTool(%s): expected error but got success: %s", name, text)
	}
	if !strings.HasPrefix(text, "Error: ") {
		t.Errorf("CallTool(%s): expected Error prefix, got %q", name, text)
	}
	return text
}

func TestIntegration_ListTools(t *testing.T) {
	session := setupIntegration(t)

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		"store_knowledge", "search_knowledge", "search_knowledge_text", "get_knowledge",
		"update_knowledge", "delete_knowledge", "list_knowledge", "get_knowledge_stats",
		"start_logging_session", "log_message", "search_session", "search_all_sessions",
		"list_sessions", "get_session", "end_session",
	}
	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("missing tool %s", name)
		}
	}
	if len(result.Tools) != len(expected) {
		t.Errorf("expected %d tools, got %d", len(expected), len(result.Tools))
	}
}

func TestIntegration_KnowledgeLifecycle(t *testing.T) {
	session := setupIntegration(t)

	text := callTool(t, session, "store_knowledge", map[string]any{
		"title":   "Go channels",
		"content": "Unbuffered channels synchronize goroutines.",
		"tags":    []string{"go", "concurrency"},
	})
	if !strings.Contains(text, "entry 1") || !strings.Contains(text, "indexed for semantic search") {
		t.Errorf("unexpected store result: %s", text)
	}

	text = callTool(t, session, "search_knowledge", map[string]any{"query": "go"})
	if !strings.Contains(text, "[knowledge #1] Go channels") {
		t.Errorf("expected semantic hit, got: %s", text)
	}

	text = callTool(t, session, "search_knowledge_text", map[string]any{"query": "unbuffered"})
	if !strings.Contains(text, "[1] Go channels") {
		t.Errorf("expected text hit, got: %s", text)
	}

	callTool(t, session, "update_knowledge", map[string]any{"id": 1, "tags": []string{"golang"}})
	text = callTool(t, session, "get_knowledge", map[string]any{"id": 1})
	if !strings.Contains(text, "Tags: golang") || !strings.Contains(text, "Unbuffered channels") {
		t.Errorf("expected updated tags and kept content, got: %s", text)
	}

	text = callTool(t, session, "list_knowledge", map[string]any{"tags": []string{"golang"}})
	if !strings.Contains(text, "(1)") {
		t.Errorf("expected one listed entry, got: %s", text)
	}

	text = callTool(t, session, "get_knowledge_stats", map[string]any{})
	if !strings.Contains(text, "Total entries: 1") || !strings.Contains(text, "golang: 1") {
		t.Errorf("unexpected stats: %s", text)
	}

	callTool(t, session, "delete_knowledge", map[string]any{"id": 1})
	callToolExpectError(t, session, "delete_knowledge", map[string]any{"id": 1})
	callToolExpectError(t, session, "get_knowledge", map[string]any{"id": 1})
	callToolExpectError(t, session, "update_knowledge", map[string]any{"id": 1, "content": "x"})
}

func TestIntegration_StoreRequiresTitle(t *testing.T) {
	session := setupIntegration(t)
	text := callToolExpectError(t, session, "store_knowledge", map[string]any{"title": "  ", "content": "x"})
	if !strings.Contains(text, "title is required") {
		t.Errorf("unexpected error: %s", text)
	}
}

func TestIntegration_SearchEmptyIndex(t *testing.T) {
	session := setupIntegration(t)
	text := callToolExpectError(t, session, "search_knowledge", map[string]any{"query": "go"})
	if !strings.Contains(text, "vector index is empty") {
		t.Errorf("unexpected error: %s", text)
	}
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	session := setupIntegration(t)

	text := callToolExpectError(t, session, "end_session", map[string]any{})
	if !strings.Contains(text, "no session to end") {
		t.Errorf("unexpected error: %s", text)
	}
	callToolExpectError(t, session, "log_message", map[string]any{"role": "user", "content": "hi"})

	text = callTool(t, session, "start_logging_session", map[string]any{"name": "first"})
	if !strings.Contains(text, "session 1 (first)") {
		t.Errorf("unexpected start result: %s", text)
	}
	callTool(t, session, "log_message", map[string]any{"role": "user", "content": "how do I write sql joins"})
	callTool(t, session, "log_message", map[string]any{"role": "agent", "content": "use an inner join in sql"})
	callToolExpectError(t, session, "log_message", map[string]any{"role": "system", "content": "x"})

	text = callTool(t, session, "start_logging_session", map[string]any{})
	if !strings.Contains(text, "Closed previous session(s): 1.") {
		t.Errorf("expected first session closed, got: %s", text)
	}
	callTool(t, session, "log_message", map[string]any{"role": "user", "content": "my cat sleeps"})
	callToolExpectError(t, session, "log_message", map[string]any{"role": "user", "content": "late", "session_id": 1})

	text = callTool(t, session, "search_session", map[string]any{"query": "cat"})
	if !strings.Contains(text, "my cat sleeps") || strings.Contains(text, "sql") {
		t.Errorf("expected only current session hits, got: %s", text)
	}

	text = callTool(t, session, "search_all_sessions", map[string]any{"query": "sql"})
	if !strings.Contains(text, "Session 1 (user)") {
		t.Errorf("expected hit from session 1, got: %s", text)
	}

	text = callTool(t, session, "get_session", map[string]any{"session_id": 1})
	if !strings.Contains(text, "Messages (2)") || !strings.Contains(text, "Auto-closed when new session started") {
		t.Errorf("unexpected session detail: %s", text)
	}

	text = callTool(t, session, "list_sessions", map[string]any{})
	if !strings.Contains(text, "[2] Session 2 (active, current)") || !strings.Contains(text, "[1] first (ended)") {
		t.Errorf("unexpected session list: %s", text)
	}

	text = callTool(t, session, "end_session", map[string]any{"summary": "done"})
	if !strings.Contains(text, "Ended session 2 with 1 message(s).") {
		t.Errorf("unexpected end result: %s", text)
	}
	callToolExpectError(t, session, "end_session", map[string]any{"session_id": 2})
	callToolExpectError(t, session, "get_session", map[string]any{"session_id": 99})
}
