package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rcliao/agent-knowledge/internal/store"
	"github.com/rcliao/agent-knowledge/internal/vector"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// keywordEmbedder maps text onto one axis per keyword, plus a small bias so
// no vector is all zeros.
type keywordEmbedder struct {
	mu   sync.Mutex
	fail bool
}

var axes = []string{"go", "sql", "cat", "dog"}

func (k *keywordEmbedder) setFail(v bool) {
	k.mu.Lock()
	k.fail = v
	k.mu.Unlock()
}

func (k *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.fail {
		return nil, errors.New("embedder offline")
	}
	v := make([]float32, len(axes)+1)
	lower := strings.ToLower(text)
	for i, a := range axes {
		if strings.Contains(lower, a) {
			v[i] = 1
		}
	}
	v[len(axes)] = 0.05
	return v, nil
}

func (k *keywordEmbedder) Dims() int { return len(axes) + 1 }

type fixture struct {
	store     *store.SQLiteStore
	index     *vector.Index
	embedder  *keywordEmbedder
	clock     *fakeClock
	knowledge *KnowledgeService
	sessions  *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}

	st, err := store.NewSQLiteStore(filepath.Join(dir, "knowledge.db"), store.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	engine, err := vector.NewSQLiteEngine(filepath.Join(dir, "vectors"))
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	emb := &keywordEmbedder{}
	index := vector.NewIndex(engine, emb)
	t.Cleanup(func() { index.Close() })

	return &fixture{
		store:     st,
		index:     index,
		embedder:  emb,
		clock:     clock,
		knowledge: NewKnowledgeService(st, index, nil),
		sessions:  NewSessionService(st, index, nil, WithSessionClock(clock.Now)),
	}
}

func strPtr(s string) *string { return &s }
