package model

import (
	"strconv"
	"time"
)

// Message roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// ValidRoles are the allowed message roles.
var ValidRoles = map[string]bool{
	RoleUser:  true,
	RoleAgent: true,
}

// Session is a bounded conversation log. A session is active until it is
// ended explicitly, replaced by a new session, or closed for inactivity.
type Session struct {
	ID        int64      `json:"id"`
	Name      *string    `json:"name,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Summary   *string    `json:"summary,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// DisplayName returns the session name or a fallback built from the id.
func (s *Session) DisplayName() string {
	if s.Name != nil && *s.Name != "" {
		return *s.Name
	}
	return "Session " + strconv.FormatInt(s.ID, 10)
}

// SessionMessage is one appended utterance inside a session.
type SessionMessage struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionSummary pairs a session with its most recent message time, used by
// the inactivity sweep.
type SessionSummary struct {
	Session
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	MessageCount  int        `json:"message_count"`
}

// LastActivity is the newest message time, or the start time for an empty session.
func (s *SessionSummary) LastActivity() time.Time {
	if s.LastMessageAt != nil {
		return *s.LastMessageAt
	}
	return s.StartedAt
}
