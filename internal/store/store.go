// Package store provides the relational storage for knowledge entries and
// sessions, backed by SQLite.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/agent-knowledge/internal/model"
)

// ErrNotFound is returned when a row with the requested id does not exist.
var ErrNotFound = errors.New("not found")

// CreateKnowledgeParams holds parameters for storing a knowledge entry.
type CreateKnowledgeParams struct {
	Title   string
	Content string
	Source  *string
	Tags    []string
}

// UpdateKnowledgeParams holds a partial update. Nil fields are left unchanged;
// a non-nil empty Tags slice clears the tags.
type UpdateKnowledgeParams struct {
	Title   *string
	Content *string
	Source  *string
	Tags    []string
}

// ListKnowledgeParams holds parameters for listing knowledge entries.
type ListKnowledgeParams struct {
	Limit  int
	Offset int
	Tags   []string // union: an entry matches if it has any of these
}

// ListSessionsParams holds parameters for listing sessions.
type ListSessionsParams struct {
	Limit      int
	Offset     int
	ActiveOnly bool
}

// KnowledgeStore is the authoritative storage for knowledge entries.
type KnowledgeStore interface {
	CreateKnowledge(ctx context.Context, p CreateKnowledgeParams) (*model.KnowledgeEntry, error)
	GetKnowledge(ctx context.Context, id int64) (*model.KnowledgeEntry, error)
	UpdateKnowledge(ctx context.Context, id int64, p UpdateKnowledgeParams) (*model.KnowledgeEntry, error)
	DeleteKnowledge(ctx context.Context, id int64) (bool, error)
	ListKnowledge(ctx context.Context, p ListKnowledgeParams) ([]model.KnowledgeEntry, error)
	SearchKnowledgeText(ctx context.Context, query string, limit int) ([]model.KnowledgeEntry, error)
	KnowledgeStats(ctx context.Context) (*KnowledgeStats, error)
	ExportKnowledge(ctx context.Context) ([]model.KnowledgeEntry, error)
}

// SessionStore is the authoritative storage for sessions and their messages.
type SessionStore interface {
	CreateSession(ctx context.Context, name *string) (*model.Session, error)
	GetSession(ctx context.Context, id int64) (*model.Session, error)
	EndSession(ctx context.Context, id int64, summary *string) (bool, error)
	LatestActiveSession(ctx context.Context) (*model.Session, error)
	ActiveSessionSummaries(ctx context.Context) ([]model.SessionSummary, error)
	ListSessions(ctx context.Context, p ListSessionsParams) ([]model.SessionSummary, error)
	AddMessage(ctx context.Context, sessionID int64, role, content string) (*model.SessionMessage, error)
	ListMessages(ctx context.Context, sessionID int64) ([]model.SessionMessage, error)
	CountMessages(ctx context.Context, sessionID int64) (int, error)
	SessionStats(ctx context.Context) (*SessionStats, error)
}

// Store combines both stores behind one connection.
type Store interface {
	KnowledgeStore
	SessionStore
	Close() error
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock overrides the clock used to stamp rows.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// timeLayout is fixed width so that string order equals time order in SQL.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
