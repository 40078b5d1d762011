// Package model defines the core knowledge and session data types.
package model

import "time"

// KnowledgeEntry is a titled piece of text the agent can recall later.
type KnowledgeEntry struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Source    *string   `json:"source,omitempty"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceOrEmpty returns the source or "" when unset.
func (e *KnowledgeEntry) SourceOrEmpty() string {
	if e.Source == nil {
		return ""
	}
	return *e.Source
}

// HasTag reports whether the entry carries tag exactly.
func (e *KnowledgeEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
