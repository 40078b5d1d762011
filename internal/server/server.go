// Package server assembles the MCP server and runs it over a transport.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rcliao/agent-knowledge/internal/app"
	"github.com/rcliao/agent-knowledge/internal/tools"
)

// Name and Version identify the server to MCP clients.
const (
	Name    = "agent-knowledge"
	Version = "0.1.0"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// New creates an MCP server with every tool registered.
func New(a *app.App) *mcp.Server {
	kt := &tools.KnowledgeTools{Knowledge: a.Knowledge}
	st := &tools.SessionTools{Sessions: a.Sessions}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: Version,
	}, nil)

	// Knowledge tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "store_knowledge",
		Description: "Store a piece of knowledge with a title, optional source and tags; it is indexed for semantic search",
	}, kt.StoreKnowledge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_knowledge",
		Description: "Semantic search over stored knowledge, ranked by similarity",
	}, kt.SearchKnowledge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_knowledge_text",
		Description: "Keyword search over knowledge titles and content",
	}, kt.SearchKnowledgeText)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_knowledge",
		Description: "Get a knowledge entry by id",
	}, kt.GetKnowledge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_knowledge",
		Description: "Update fields of a knowledge entry; omitted fields are kept",
	}, kt.UpdateKnowledge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_knowledge",
		Description: "Delete a knowledge entry and its search vector",
	}, kt.DeleteKnowledge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_knowledge",
		Description: "List knowledge entries newest first, optionally filtered by tags",
	}, kt.ListKnowledge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_knowledge_stats",
		Description: "Entry count, tag counts and date range of stored knowledge",
	}, kt.GetKnowledgeStats)

	// Session tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "start_logging_session",
		Description: "Start a new conversation session; any active session is closed",
	}, st.StartLoggingSession)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "log_message",
		Description: "Log a user or agent message to the current session (or a given session)",
	}, st.LogMessage)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_session",
		Description: "Semantic search over the messages of one session (default: the current session)",
	}, st.SearchSession)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_all_sessions",
		Description: "Semantic search over messages from every session",
	}, st.SearchAllSessions)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List sessions newest first with message counts",
	}, st.ListSessions)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_session",
		Description: "Get a session and all of its messages",
	}, st.GetSession)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "end_session",
		Description: "End the current session (or a given session) with an optional summary",
	}, st.EndSession)

	return srv
}

// Serve closes timed out sessions, then runs the server until ctx is done.
// addr is only used by the http transport.
func Serve(ctx context.Context, a *app.App, transport, addr string) error {
	if n, err := a.Sessions.CloseTimedOutSessions(ctx); err != nil {
		a.Logger.Warn("session sweep failed", "err", err)
	} else if n > 0 {
		a.Logger.Info("closed inactive sessions", "count", n)
	}

	srv := New(a)
	switch transport {
	case TransportStdio, "":
		a.Logger.Info("MCP server starting", "transport", TransportStdio)
		return srv.Run(ctx, &mcp.StdioTransport{})
	case TransportHTTP:
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return srv
		}, nil)
		return serveHTTP(ctx, handler, addr, a.Logger)
	default:
		return fmt.Errorf("unknown transport %q (use stdio or http)", transport)
	}
}

// serveHTTP listens on addr until ctx is done or the listener fails. It
// returns only after the shutdown goroutine has finished.
func serveHTTP(ctx context.Context, handler http.Handler, addr string, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	hs := &http.Server{Addr: addr, Handler: handler}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", "err", err)
		}
	}()

	logger.Info("MCP server listening", "transport", TransportHTTP, "addr", addr)
	err := hs.ListenAndServe()
	cancel()
	<-done
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
