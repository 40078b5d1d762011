// Package service coordinates writes across the relational store and the
// vector index. The relational store is authoritative: its failures abort
// the operation. Vector index writes are best-effort: their failures are
// logged and reported as a flag on the otherwise successful result.
package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/rcliao/agent-knowledge/internal/model"
	"github.com/rcliao/agent-knowledge/internal/vector"
)

// Precondition errors.
var (
	ErrTitleRequired   = errors.New("title is required")
	ErrNoSession       = errors.New("no active session; start one first or pass a session id")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session has ended")
	ErrInvalidRole     = errors.New("role must be 'user' or 'agent'")
)

// Indexer is the subset of the vector index the services write to and
// query. *vector.Index implements it.
type Indexer interface {
	IndexKnowledge(ctx context.Context, e *model.KnowledgeEntry) error
	IndexMessage(ctx context.Context, m *model.SessionMessage) error
	Remove(ctx context.Context, key string) error
	Query(ctx context.Context, text string, limit int) ([]vector.Hit, error)
}

var _ Indexer = (*vector.Index)(nil)

// overfetch multiplies the requested limit when results are filtered after
// the vector query.
const overfetch = 2

func discardLogger(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return log.New(io.Discard)
}

// normalizeTags trims tags and drops blanks and repeats, keeping order.
func normalizeTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
