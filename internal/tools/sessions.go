package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rcliao/agent-knowledge/internal/model"
	"github.com/rcliao/agent-knowledge/internal/service"
	"github.com/rcliao/agent-knowledge/internal/store"
)

// SessionTools serves the conversation session tools.
type SessionTools struct {
	Sessions *service.SessionService
}

// --- Input types ---

type StartSessionInput struct {
	Name string `json:"name,omitempty" jsonschema:"Optional session name"`
}

type LogMessageInput struct {
	Role      string `json:"role" jsonschema:"Who said it: user or agent"`
	Content   string `json:"content" jsonschema:"Message text"`
	SessionID int64  `json:"session_id,omitempty" jsonschema:"Session to log to (default: the current session)"`
}

type SearchSessionInput struct {
	Query     string `json:"query" jsonschema:"Natural language query"`
	SessionID int64  `json:"session_id,omitempty" jsonschema:"Session to search (default: the current session)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum results (default 10)"`
}

type SearchAllSessionsInput struct {
	Query string `json:"query" jsonschema:"Natural language query"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results (default 10)"`
}

type ListSessionsInput struct {
	Limit      int  `json:"limit,omitempty" jsonschema:"Maximum sessions (default 20)"`
	Offset     int  `json:"offset,omitempty" jsonschema:"Sessions to skip"`
	ActiveOnly bool `json:"active_only,omitempty" jsonschema:"Only sessions that are still active"`
}

type SessionIDInput struct {
	SessionID int64 `json:"session_id" jsonschema:"Session id"`
}

type EndSessionInput struct {
	SessionID int64  `json:"session_id,omitempty" jsonschema:"Session to end (default: the current session)"`
	Summary   string `json:"summary,omitempty" jsonschema:"Optional summary of the conversation"`
}

// --- Handlers ---

func (t *SessionTools) StartLoggingSession(ctx context.Context, _ *mcp.CallToolRequest, input StartSessionInput) (*mcp.CallToolResult, any, error) {
	res, err := t.Sessions.StartLoggingSession(ctx, input.Name)
	if err != nil {
		return toolError("failed to start session: %v", err), nil, nil
	}
	text := fmt.Sprintf("Started session %d (%s). Messages are logged to it until it ends.",
		res.SessionID, res.Session.DisplayName())
	if len(res.Closed) > 0 {
		ids := make([]string, len(res.Closed))
		for i, id := range res.Closed {
			ids[i] = fmt.Sprint(id)
		}
		text += fmt.Sprintf("\nClosed previous session(s): %s.", strings.Join(ids, ", "))
	}
	return toolText(text), nil, nil
}

func (t *SessionTools) LogMessage(ctx context.Context, _ *mcp.CallToolRequest, input LogMessageInput) (*mcp.CallToolResult, any, error) {
	res, err := t.Sessions.LogMessage(ctx, input.Role, input.Content, input.SessionID)
	if err != nil {
		return toolError("%v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Logged message %d to session %d (%s).",
		res.MessageID, res.SessionID, vectorizedNote(res.Indexed))), nil, nil
}

func (t *SessionTools) SearchSession(ctx context.Context, _ *mcp.CallToolRequest, input SearchSessionInput) (*mcp.CallToolResult, any, error) {
	hits, err := t.Sessions.SearchSession(ctx, input.SessionID, input.Query, input.Limit)
	if err != nil {
		return searchError(err), nil, nil
	}
	return toolText(formatHits(hits)), nil, nil
}

func (t *SessionTools) SearchAllSessions(ctx context.Context, _ *mcp.CallToolRequest, input SearchAllSessionsInput) (*mcp.CallToolResult, any, error) {
	hits, err := t.Sessions.SearchAllSessions(ctx, input.Query, input.Limit)
	if err != nil {
		return searchError(err), nil, nil
	}
	return toolText(formatHits(hits)), nil, nil
}

func (t *SessionTools) ListSessions(ctx context.Context, _ *mcp.CallToolRequest, input ListSessionsInput) (*mcp.CallToolResult, any, error) {
	sessions, err := t.Sessions.ListSessions(ctx, store.ListSessionsParams{
		Limit:      input.Limit,
		Offset:     input.Offset,
		ActiveOnly: input.ActiveOnly,
	})
	if err != nil {
		return toolError("failed to list sessions: %v", err), nil, nil
	}
	if len(sessions) == 0 {
		return toolText("No sessions found."), nil, nil
	}
	current := t.Sessions.CurrentSessionID()
	var b strings.Builder
	fmt.Fprintf(&b, "Sessions (%d):\n", len(sessions))
	for i := range sessions {
		s := &sessions[i]
		b.WriteString("\n")
		writeSessionLine(&b, &s.Session, current)
		fmt.Fprintf(&b, "  Messages: %d | Last activity: %s\n", s.MessageCount, fmtTime(s.LastActivity()))
	}
	return toolText(b.String()), nil, nil
}

func (t *SessionTools) GetSession(ctx context.Context, _ *mcp.CallToolRequest, input SessionIDInput) (*mcp.CallToolResult, any, error) {
	d, err := t.Sessions.GetSession(ctx, input.SessionID)
	if err != nil {
		return toolError("failed to get session: %v", err), nil, nil
	}
	if d == nil {
		return toolError("session %d not found", input.SessionID), nil, nil
	}
	var b strings.Builder
	writeSessionLine(&b, d.Session, t.Sessions.CurrentSessionID())
	if d.Session.Summary != nil {
		fmt.Fprintf(&b, "  Summary: %s\n", *d.Session.Summary)
	}
	fmt.Fprintf(&b, "\nMessages (%d):\n", d.MessageCount)
	for _, m := range d.Messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", fmtTime(m.CreatedAt), m.Role, m.Content)
	}
	return toolText(strings.TrimRight(b.String(), "\n")), nil, nil
}

func (t *SessionTools) EndSession(ctx context.Context, _ *mcp.CallToolRequest, input EndSessionInput) (*mcp.CallToolResult, any, error) {
	var summary *string
	if input.Summary != "" {
		summary = &input.Summary
	}
	res, err := t.Sessions.EndSession(ctx, input.SessionID, summary)
	if err != nil {
		return toolError("failed to end session: %v", err), nil, nil
	}
	if !res.Success {
		if res.SessionID == 0 {
			return toolError("no session to end"), nil, nil
		}
		return toolError("session %d is not active", res.SessionID), nil, nil
	}
	return toolText(fmt.Sprintf("Ended session %d with %d message(s).", res.SessionID, res.MessageCount)), nil, nil
}

func writeSessionLine(b *strings.Builder, s *model.Session, current int64) {
	status := "ended"
	if s.IsActive {
		status = "active"
	}
	if s.ID == current {
		status += ", current"
	}
	fmt.Fprintf(b, "[%d] %s (%s)\n", s.ID, s.DisplayName(), status)
	fmt.Fprintf(b, "  Started: %s", fmtTime(s.StartedAt))
	if s.EndedAt != nil {
		fmt.Fprintf(b, " | Ended: %s", fmtTime(*s.EndedAt))
	}
	b.WriteString("\n")
}
