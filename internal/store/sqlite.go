package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"

	"github.com/rcliao/agent-knowledge/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// lowerFunc folds case with Go's Unicode rules. SQLite's built-in lower()
// only folds ASCII, which would not agree with SearchTerms.
const lowerFunc = "unicode_lower"

var (
	registerOnce sync.Once
	registerErr  error
)

func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction(lowerFunc, 1, unicodeLowerImpl)
	})
	return registerErr
}

func unicodeLowerImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("register %s: %w", lowerFunc, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		title       TEXT NOT NULL CHECK (title <> ''),
		content     TEXT NOT NULL,
		source      TEXT,
		tags        TEXT NOT NULL DEFAULT '[]',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_created ON knowledge(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_knowledge_updated ON knowledge(updated_at DESC);

	CREATE TABLE IF NOT EXISTS sessions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT,
		started_at  TEXT NOT NULL,
		ended_at    TEXT,
		summary     TEXT,
		is_active   INTEGER NOT NULL DEFAULT 1,
		CHECK ((is_active = 1 AND ended_at IS NULL) OR (is_active = 0 AND ended_at IS NOT NULL))
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(is_active, id);

	CREATE TABLE IF NOT EXISTS session_messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  INTEGER NOT NULL REFERENCES sessions(id),
		role        TEXT NOT NULL CHECK (role IN ('user', 'agent')),
		content     TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON session_messages(session_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// stamp returns the current time at the precision the schema stores.
func (s *SQLiteStore) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *SQLiteStore) CreateKnowledge(ctx context.Context, p CreateKnowledgeParams) (*model.KnowledgeEntry, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	now := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge (title, content, source, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Title, p.Content, p.Source, string(tagsJSON), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert knowledge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &model.KnowledgeEntry{
		ID:        id,
		Title:     p.Title,
		Content:   p.Content,
		Source:    p.Source,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

const knowledgeColumns = `id, title, content, source, tags, created_at, updated_at`

func (s *SQLiteStore) GetKnowledge(ctx context.Context, id int64) (*model.KnowledgeEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge WHERE id = ?`, id)
	e, err := scanKnowledge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLiteStore) UpdateKnowledge(ctx context.Context, id int64, p UpdateKnowledgeParams) (*model.KnowledgeEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge WHERE id = ?`, id)
	e, err := scanKnowledge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, fmt.Errorf("title cannot be empty")
		}
		e.Title = *p.Title
	}
	if p.Content != nil {
		e.Content = *p.Content
	}
	if p.Source != nil {
		src := *p.Source
		e.Source = &src
	}
	if p.Tags != nil {
		e.Tags = p.Tags
	}

	now := s.stamp()
	if now.Before(e.CreatedAt) {
		now = e.CreatedAt
	}
	e.UpdatedAt = now

	tagsJSON, err := json.Marshal(e.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE knowledge SET title = ?, content = ?, source = ?, tags = ?, updated_at = ? WHERE id = ?`,
		e.Title, e.Content, e.Source, string(tagsJSON), formatTime(now), id)
	if err != nil {
		return nil, fmt.Errorf("update knowledge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLiteStore) DeleteKnowledge(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM knowledge WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete knowledge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListKnowledge(ctx context.Context, p ListKnowledgeParams) ([]model.KnowledgeEntry, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	var where []string
	var args []interface{}

	if len(p.Tags) > 0 {
		placeholders := make([]string, len(p.Tags))
		for i, tag := range p.Tags {
			placeholders[i] = "?"
			args = append(args, tag)
		}
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM json_each(knowledge.tags) WHERE json_each.value IN (%s))",
			strings.Join(placeholders, ", ")))
	}

	query := `SELECT ` + knowledgeColumns + ` FROM knowledge`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return s.queryKnowledge(ctx, query, args...)
}

// ExportKnowledge returns every knowledge entry, oldest first.
func (s *SQLiteStore) ExportKnowledge(ctx context.Context) ([]model.KnowledgeEntry, error) {
	return s.queryKnowledge(ctx, `SELECT `+knowledgeColumns+` FROM knowledge ORDER BY id`)
}

func (s *SQLiteStore) queryKnowledge(ctx context.Context, query string, args ...interface{}) ([]model.KnowledgeEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.KnowledgeEntry{}
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanKnowledge(row scanner) (model.KnowledgeEntry, error) {
	var e model.KnowledgeEntry
	var source sql.NullString
	var tagsJSON, createdAt, updatedAt string

	if err := row.Scan(&e.ID, &e.Title, &e.Content, &source, &tagsJSON, &createdAt, &updatedAt); err != nil {
		return e, err
	}

	if source.Valid {
		src := source.String
		e.Source = &src
	}
	e.Tags = []string{}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
			return e, fmt.Errorf("decode tags of %d: %w", e.ID, err)
		}
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}
