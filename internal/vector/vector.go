// Package vector mirrors knowledge entries and session messages into a
// nearest-neighbor index for semantic search. The index is a derived cache:
// it may lag the relational store and can be rebuilt from it.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotInitialized is returned by read paths when nothing has ever been
// written to the index, as distinct from a search with zero results.
var ErrNotInitialized = errors.New("vector index not initialized")

// Record kinds.
const (
	KindKnowledge = "knowledge"
	KindMessage   = "message"
)

// PreviewLength is the number of characters of content kept in a record.
const PreviewLength = 500

// Record is one row of the index.
type Record struct {
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	SourceID  int64     `json:"source_id"`
	Title     string    `json:"title"`
	Preview   string    `json:"content_preview"`
	Tags      []string  `json:"tags"`
	Embedding []float32 `json:"-"`
}

// HasTag reports whether the record carries tag exactly.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasTagPrefix reports whether any tag starts with prefix.
func (r *Record) HasTagPrefix(prefix string) bool {
	for _, t := range r.Tags {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// Match is a raw engine result.
type Match struct {
	Record
	Distance float64
}

// EngineStats describes the state of an engine.
type EngineStats struct {
	Backend     string `json:"backend"`
	Initialized bool   `json:"initialized"`
	Count       int    `json:"count"`
	Dims        int    `json:"dims"`
	Location    string `json:"location"`
}

// Engine stores records and answers nearest-neighbor queries by cosine
// distance. Upsert creates the underlying table on first use; Search and
// Stats must not.
type Engine interface {
	Upsert(ctx context.Context, rec Record) error
	Delete(ctx context.Context, key string) error
	Search(ctx context.Context, query []float32, limit int) ([]Match, error)
	Stats(ctx context.Context) (EngineStats, error)
	Clear(ctx context.Context) error
	Close() error
}

// KnowledgeKey is the record key of a knowledge entry.
func KnowledgeKey(id int64) string {
	return KindKnowledge + ":" + strconv.FormatInt(id, 10)
}

// MessageKey is the record key of a session message.
func MessageKey(id int64) string {
	return KindMessage + ":" + strconv.FormatInt(id, 10)
}

// ParseKey splits a record key into its kind and source id.
func ParseKey(key string) (string, int64, error) {
	kind, rest, ok := strings.Cut(key, ":")
	if !ok || (kind != KindKnowledge && kind != KindMessage) {
		return "", 0, fmt.Errorf("invalid record key %q", key)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid record key %q: %w", key, err)
	}
	return kind, id, nil
}

// SessionTag is the tag carried by every message of a session.
func SessionTag(sessionID int64) string {
	return SessionTagPrefix + strconv.FormatInt(sessionID, 10)
}

// SessionTagPrefix marks tags naming a session.
const SessionTagPrefix = "session:"

// RoleTag is the tag carrying a message's role.
func RoleTag(role string) string {
	return "role:" + role
}

func preview(content string) string {
	r := []rune(content)
	if len(r) <= PreviewLength {
		return content
	}
	return string(r[:PreviewLength])
}
