package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rcliao/agent-knowledge/internal/model"
	"github.com/rcliao/agent-knowledge/internal/store"
	"github.com/rcliao/agent-knowledge/internal/vector"
)

// InactivityTimeout is how long a session may go without messages before
// the sweep closes it.
const InactivityTimeout = time.Hour

// Summaries written by automatic closes.
const (
	SummaryReplaced = "Auto-closed when new session started"
	SummaryTimedOut = "Auto-closed due to inactivity"
)

// SessionService manages the session lifecycle. It owns the process-local
// current session, which is never persisted: after a restart no session is
// current until one is started.
type SessionService struct {
	store  store.SessionStore
	index  Indexer
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	current int64
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithSessionClock overrides the clock used by the inactivity sweep.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionService) { s.now = now }
}

// NewSessionService wires a session service.
func NewSessionService(st store.SessionStore, index Indexer, logger *log.Logger, opts ...SessionOption) *SessionService {
	s := &SessionService{store: st, index: index, logger: discardLogger(logger), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSessionResult is returned by StartLoggingSession.
type StartSessionResult struct {
	SessionID int64          `json:"session_id"`
	Session   *model.Session `json:"session"`
	Closed    []int64        `json:"closed,omitempty"`
}

// LogMessageResult is returned by LogMessage.
type LogMessageResult struct {
	MessageID int64 `json:"message_id"`
	SessionID int64 `json:"session_id"`
	Indexed   bool  `json:"indexed"`
}

// EndSessionResult is returned by EndSession.
type EndSessionResult struct {
	Success      bool  `json:"success"`
	SessionID    int64 `json:"session_id,omitempty"`
	MessageCount int   `json:"message_count"`
}

// SessionDetail is a session with its messages.
type SessionDetail struct {
	Session      *model.Session         `json:"session"`
	Messages     []model.SessionMessage `json:"messages"`
	MessageCount int                    `json:"message_count"`
}

// CurrentSessionID returns the process-local current session, or 0.
func (s *SessionService) CurrentSessionID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *SessionService) setCurrent(id int64) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
}

// clearCurrentIf clears the current session only if it is id.
func (s *SessionService) clearCurrentIf(id int64) {
	s.mu.Lock()
	if s.current == id {
		s.current = 0
	}
	s.mu.Unlock()
}

// resolve picks the explicit id when given, else the current session.
func (s *SessionService) resolve(sessionID int64) int64 {
	if sessionID != 0 {
		return sessionID
	}
	return s.CurrentSessionID()
}

// StartLoggingSession closes timed out sessions, ends every session still
// active, and starts a new current session. Only one session is active at a
// time.
func (s *SessionService) StartLoggingSession(ctx context.Context, name string) (*StartSessionResult, error) {
	if _, err := s.CloseTimedOutSessions(ctx); err != nil {
		return nil, err
	}

	active, err := s.store.ActiveSessionSummaries(ctx)
	if err != nil {
		return nil, err
	}
	summary := SummaryReplaced
	var closed []int64
	for _, a := range active {
		ok, err := s.store.EndSession(ctx, a.ID, &summary)
		if err != nil {
			return nil, err
		}
		if ok {
			closed = append(closed, a.ID)
			s.clearCurrentIf(a.ID)
			s.logger.Info("session replaced", "id", a.ID)
		}
	}

	var namePtr *string
	if n := strings.TrimSpace(name); n != "" {
		namePtr = &n
	}
	sess, err := s.store.CreateSession(ctx, namePtr)
	if err != nil {
		return nil, err
	}
	s.setCurrent(sess.ID)
	return &StartSessionResult{SessionID: sess.ID, Session: sess, Closed: closed}, nil
}

// LogMessage appends a message to the given session, or to the current one
// when sessionID is 0, then indexes it best-effort.
func (s *SessionService) LogMessage(ctx context.Context, role, content string, sessionID int64) (*LogMessageResult, error) {
	if !model.ValidRoles[role] {
		return nil, ErrInvalidRole
	}
	id := s.resolve(sessionID)
	if id == 0 {
		return nil, ErrNoSession
	}

	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if !sess.IsActive {
		return nil, fmt.Errorf("%w: %d", ErrSessionEnded, id)
	}

	msg, err := s.store.AddMessage(ctx, id, role, content)
	if err != nil {
		return nil, err
	}

	indexed := true
	if err := s.index.IndexMessage(ctx, msg); err != nil {
		s.logger.Warn("message not indexed", "id", msg.ID, "session", id, "err", err)
		indexed = false
	}
	return &LogMessageResult{MessageID: msg.ID, SessionID: id, Indexed: indexed}, nil
}

// SearchSession runs a semantic query and keeps hits from one session, or
// from the current session when sessionID is 0.
func (s *SessionService) SearchSession(ctx context.Context, sessionID int64, query string, limit int) ([]vector.Hit, error) {
	id := s.resolve(sessionID)
	if id == 0 {
		return nil, ErrNoSession
	}
	tag := vector.SessionTag(id)
	return s.searchFiltered(ctx, query, limit, func(h *vector.Hit) bool { return h.HasTag(tag) })
}

// SearchAllSessions runs a semantic query and keeps hits from any session.
func (s *SessionService) SearchAllSessions(ctx context.Context, query string, limit int) ([]vector.Hit, error) {
	return s.searchFiltered(ctx, query, limit, func(h *vector.Hit) bool {
		return h.HasTagPrefix(vector.SessionTagPrefix)
	})
}

// searchFiltered asks the index for twice the limit and keeps message hits
// accepted by keep, so fewer than limit hits can come back even when more
// exist. Knowledge entries never match, whatever their tags.
func (s *SessionService) searchFiltered(ctx context.Context, query string, limit int, keep func(*vector.Hit) bool) ([]vector.Hit, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	hits, err := s.index.Query(ctx, query, limit*overfetch)
	if err != nil {
		return nil, err
	}
	out := []vector.Hit{}
	for i := range hits {
		if hits[i].Kind != vector.KindMessage || !keep(&hits[i]) {
			continue
		}
		out = append(out, hits[i])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// EndSession ends the given session, or the current one when sessionID is
// 0. It reports Success=false when no session resolves, the session does not
// exist, or it has already ended.
func (s *SessionService) EndSession(ctx context.Context, sessionID int64, summary *string) (*EndSessionResult, error) {
	id := s.resolve(sessionID)
	if id == 0 {
		return &EndSessionResult{}, nil
	}

	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &EndSessionResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsActive {
		return &EndSessionResult{SessionID: id, MessageCount: count}, nil
	}

	if summary != nil && strings.TrimSpace(*summary) == "" {
		summary = nil
	}
	ok, err := s.store.EndSession(ctx, id, summary)
	if err != nil {
		return nil, err
	}
	if ok {
		s.clearCurrentIf(id)
	}
	return &EndSessionResult{Success: ok, SessionID: id, MessageCount: count}, nil
}

// CloseTimedOutSessions ends active sessions whose start and last activity
// are both older than InactivityTimeout. It runs on demand, never on a timer.
func (s *SessionService) CloseTimedOutSessions(ctx context.Context) (int, error) {
	active, err := s.store.ActiveSessionSummaries(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-InactivityTimeout)
	summary := SummaryTimedOut

	closed := 0
	for _, a := range active {
		if !a.LastActivity().Before(cutoff) || !a.StartedAt.Before(cutoff) {
			continue
		}
		ok, err := s.store.EndSession(ctx, a.ID, &summary)
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
			s.logger.Info("session timed out", "id", a.ID, "last_activity", a.LastActivity())
		}
	}

	if cur := s.CurrentSessionID(); cur != 0 {
		sess, err := s.store.GetSession(ctx, cur)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return closed, err
		}
		if sess == nil || !sess.IsActive {
			s.clearCurrentIf(cur)
		}
	}
	return closed, nil
}

// ListSessions returns sessions newest first.
func (s *SessionService) ListSessions(ctx context.Context, p store.ListSessionsParams) ([]model.SessionSummary, error) {
	return s.store.ListSessions(ctx, p)
}

// GetSession returns a session with its messages, or nil when unknown.
func (s *SessionService) GetSession(ctx context.Context, id int64) (*SessionDetail, error) {
	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{Session: sess, Messages: msgs, MessageCount: len(msgs)}, nil
}

// GetActiveSession returns the most recently created active session, or nil.
func (s *SessionService) GetActiveSession(ctx context.Context) (*model.Session, error) {
	sess, err := s.store.LatestActiveSession(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return sess, err
}

// HasActiveSession reports whether this process has a current session AND
// some session is active in the store. A session left active by a previous
// process does not count on its own.
func (s *SessionService) HasActiveSession(ctx context.Context) (bool, error) {
	if s.CurrentSessionID() == 0 {
		return false, nil
	}
	sess, err := s.GetActiveSession(ctx)
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}

// Stats returns aggregate session and message counts.
func (s *SessionService) Stats(ctx context.Context) (*store.SessionStats, error) {
	return s.store.SessionStats(ctx)
}
