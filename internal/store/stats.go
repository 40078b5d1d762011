package store

import (
	"context"
	"database/sql"
	"time"
)

// KnowledgeStats holds aggregate counts over knowledge entries.
type KnowledgeStats struct {
	Total  int        `json:"total"`
	Tags   []TagCount `json:"tags"`
	Oldest *time.Time `json:"oldest,omitempty"`
	Newest *time.Time `json:"newest,omitempty"`
}

// TagCount is the number of entries carrying a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// SessionStats holds aggregate counts over sessions and messages.
type SessionStats struct {
	TotalSessions  int            `json:"total_sessions"`
	ActiveSessions int            `json:"active_sessions"`
	EndedSessions  int            `json:"ended_sessions"`
	TotalMessages  int            `json:"total_messages"`
	MessagesByRole map[string]int `json:"messages_by_role"`
}

// KnowledgeStats returns the total, per-tag counts and created_at range.
func (s *SQLiteStore) KnowledgeStats(ctx context.Context) (*KnowledgeStats, error) {
	st := &KnowledgeStats{Tags: []TagCount{}}

	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM knowledge`).Scan(&st.Total, &oldest, &newest)
	if err != nil {
		return nil, err
	}
	if oldest.Valid {
		t := parseTime(oldest.String)
		st.Oldest = &t
	}
	if newest.Valid {
		t := parseTime(newest.String)
		st.Newest = &t
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT json_each.value AS tag, COUNT(*) AS cnt
		FROM knowledge, json_each(knowledge.tags)
		GROUP BY tag ORDER BY cnt DESC, tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		st.Tags = append(st.Tags, tc)
	}
	return st, rows.Err()
}

// SessionStats returns session and message counts.
func (s *SQLiteStore) SessionStats(ctx context.Context) (*SessionStats, error) {
	st := &SessionStats{MessagesByRole: map[string]int{}}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM sessions`).Scan(&st.TotalSessions, &st.ActiveSessions)
	if err != nil {
		return nil, err
	}
	st.EndedSessions = st.TotalSessions - st.ActiveSessions

	rows, err := s.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM session_messages GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		st.MessagesByRole[role] = n
		st.TotalMessages += n
	}
	return st, rows.Err()
}
