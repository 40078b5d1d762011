package vector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"modernc.org/sqlite"

	"github.com/rcliao/agent-knowledge/internal/embedding"
)

const distanceFunc = "vec_distance_cosine"

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions makes vec_distance_cosine available to connections
// opened afterwards. The driver keeps a process-wide function table.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction(distanceFunc, 2, cosineDistanceImpl)
	})
	return registerErr
}

func cosineDistanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s: expected 2 arguments, got %d", distanceFunc, len(args))
	}
	a, ok := args[0].([]byte)
	if !ok {
		return nil, nil
	}
	b, ok := args[1].([]byte)
	if !ok {
		return nil, nil
	}
	va, err := decodeEmbedding(a)
	if err != nil {
		return nil, err
	}
	vb, err := decodeEmbedding(b)
	if err != nil {
		return nil, err
	}
	if len(va) != len(vb) {
		return nil, nil
	}
	return embedding.CosineDistance(va, vb), nil
}

// SQLiteEngine keeps vectors in a dedicated SQLite file and ranks them with
// a registered cosine distance function. Suitable for the personal-scale
// corpora this store targets; search is a full scan.
type SQLiteEngine struct {
	db   *sql.DB
	path string
}

var _ Engine = (*SQLiteEngine)(nil)

// NewSQLiteEngine opens or creates index.db inside dir.
func NewSQLiteEngine(dir string) (*SQLiteEngine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("register %s: %w", distanceFunc, err)
	}

	path := filepath.Join(dir, "index.db")
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	return &SQLiteEngine{db: db, path: path}, nil
}

const vectorsTable = `
	CREATE TABLE IF NOT EXISTS vectors (
		key        TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		source_id  INTEGER NOT NULL,
		title      TEXT NOT NULL,
		preview    TEXT NOT NULL,
		tags       TEXT NOT NULL,
		dims       INTEGER NOT NULL,
		embedding  BLOB NOT NULL
	)`

func (e *SQLiteEngine) tableExists(ctx context.Context) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'vectors'`).Scan(&n)
	return n > 0, err
}

func (e *SQLiteEngine) Upsert(ctx context.Context, rec Record) error {
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("record %s has no embedding", rec.Key)
	}
	if _, err := e.db.ExecContext(ctx, vectorsTable); err != nil {
		return fmt.Errorf("create vectors table: %w", err)
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vectors (key, kind, source_id, title, preview, tags, dims, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Key, rec.Kind, rec.SourceID, rec.Title, rec.Preview, string(tagsJSON),
		len(rec.Embedding), encodeEmbedding(rec.Embedding))
	if err != nil {
		return fmt.Errorf("upsert vector %s: %w", rec.Key, err)
	}
	return nil
}

func (e *SQLiteEngine) Delete(ctx context.Context, key string) error {
	ok, err := e.tableExists(ctx)
	if err != nil || !ok {
		return err
	}
	_, err = e.db.ExecContext(ctx, `DELETE FROM vectors WHERE key = ?`, key)
	return err
}

func (e *SQLiteEngine) Search(ctx context.Context, query []float32, limit int) ([]Match, error) {
	ok, err := e.tableExists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT key, kind, source_id, title, preview, tags, `+distanceFunc+`(embedding, ?) AS distance
		FROM vectors
		WHERE dims = ?
		ORDER BY distance ASC, key
		LIMIT ?`, encodeEmbedding(query), len(query), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		var tagsJSON string
		if err := rows.Scan(&m.Key, &m.Kind, &m.SourceID, &m.Title, &m.Preview, &tagsJSON, &m.Distance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", m.Key, err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (e *SQLiteEngine) Stats(ctx context.Context) (EngineStats, error) {
	st := EngineStats{Backend: "sqlite", Location: e.path}
	ok, err := e.tableExists(ctx)
	if err != nil || !ok {
		return st, err
	}
	st.Initialized = true
	err = e.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(dims), 0) FROM vectors`).Scan(&st.Count, &st.Dims)
	return st, err
}

func (e *SQLiteEngine) Clear(ctx context.Context) error {
	_, err := e.db.ExecContext(ctx, `DROP TABLE IF EXISTS vectors`)
	return err
}

func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}
