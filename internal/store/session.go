package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rcliao/agent-knowledge/internal/model"
)

const sessionColumns = `s.id, s.name, s.started_at, s.ended_at, s.summary, s.is_active`

// CreateSession inserts a new active session.
func (s *SQLiteStore) CreateSession(ctx context.Context, name *string) (*model.Session, error) {
	now := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (name, started_at, is_active) VALUES (?, ?, 1)`,
		name, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Session{ID: id, Name: name, StartedAt: now, IsActive: true}, nil
}

// GetSession returns the session with the given id or ErrNotFound.
func (s *SQLiteStore) GetSession(ctx context.Context, id int64) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// EndSession marks an active session ended. It reports false when the
// session does not exist or has already ended.
func (s *SQLiteStore) EndSession(ctx context.Context, id int64, summary *string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0, ended_at = ?, summary = ? WHERE id = ? AND is_active = 1`,
		formatTime(s.stamp()), summary, id)
	if err != nil {
		return false, fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LatestActiveSession returns the most recently created active session, or
// ErrNotFound when none is active.
func (s *SQLiteStore) LatestActiveSession(ctx context.Context) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.is_active = 1 ORDER BY s.id DESC LIMIT 1`)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

const summaryQuery = `
	SELECT ` + sessionColumns + `,
	       (SELECT MAX(m.created_at) FROM session_messages m WHERE m.session_id = s.id),
	       (SELECT COUNT(*) FROM session_messages m WHERE m.session_id = s.id)
	FROM sessions s`

// ActiveSessionSummaries returns every active session with its last message time.
func (s *SQLiteStore) ActiveSessionSummaries(ctx context.Context) ([]model.SessionSummary, error) {
	return s.querySummaries(ctx, summaryQuery+` WHERE s.is_active = 1 ORDER BY s.id`)
}

// ListSessions returns sessions newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, p ListSessionsParams) ([]model.SessionSummary, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	query := summaryQuery
	if p.ActiveOnly {
		query += ` WHERE s.is_active = 1`
	}
	query += ` ORDER BY s.id DESC LIMIT ? OFFSET ?`
	return s.querySummaries(ctx, query, limit, offset)
}

func (s *SQLiteStore) querySummaries(ctx context.Context, query string, args ...interface{}) ([]model.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.SessionSummary{}
	for rows.Next() {
		var sum model.SessionSummary
		var name, endedAt, summary, lastMsg sql.NullString
		var startedAt string
		var active int
		if err := rows.Scan(&sum.ID, &name, &startedAt, &endedAt, &summary, &active, &lastMsg, &sum.MessageCount); err != nil {
			return nil, err
		}
		fillSession(&sum.Session, name, startedAt, endedAt, summary, active)
		if lastMsg.Valid {
			t := parseTime(lastMsg.String)
			sum.LastMessageAt = &t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// AddMessage appends a message to a session. The session must exist; the
// caller is responsible for checking that it is still active.
func (s *SQLiteStore) AddMessage(ctx context.Context, sessionID int64, role, content string) (*model.SessionMessage, error) {
	now := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO session_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, role, content, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.SessionMessage{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}, nil
}

// ListMessages returns a session's messages in the order they were logged.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID int64) ([]model.SessionMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM session_messages
		 WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []model.SessionMessage{}
	for rows.Next() {
		var m model.SessionMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountMessages returns the number of messages logged to a session.
func (s *SQLiteStore) CountMessages(ctx context.Context, sessionID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_messages WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

func scanSession(row scanner) (model.Session, error) {
	var sess model.Session
	var name, endedAt, summary sql.NullString
	var startedAt string
	var active int
	if err := row.Scan(&sess.ID, &name, &startedAt, &endedAt, &summary, &active); err != nil {
		return sess, err
	}
	fillSession(&sess, name, startedAt, endedAt, summary, active)
	return sess, nil
}

func fillSession(sess *model.Session, name sql.NullString, startedAt string, endedAt, summary sql.NullString, active int) {
	if name.Valid {
		n := name.String
		sess.Name = &n
	}
	sess.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		sess.EndedAt = &t
	}
	if summary.Valid {
		sm := summary.String
		sess.Summary = &sm
	}
	sess.IsActive = active == 1
}
