package vector

import (
	"context"
	"errors"
	"math"
	"testing"
)

func newTestEngine(t *testing.T) *SQLiteEngine {
	t.Helper()
	e, err := NewSQLiteEngine(t.TempDir())
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestSQLiteEngine_NotInitialized(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if _, err := e.Search(ctx, []float32{1, 0}, 5); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	st, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Initialized {
		t.Error("expected uninitialized stats")
	}
	if err := e.Delete(ctx, "knowledge:1"); err != nil {
		t.Errorf("delete before init should be a no-op, got %v", err)
	}
}

func TestSQLiteEngine_UpsertSearch(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	recs := []Record{
		{Key: "knowledge:1", Kind: KindKnowledge, SourceID: 1, Title: "east", Tags: []string{"x"}, Embedding: []float32{1, 0}},
		{Key: "knowledge:2", Kind: KindKnowledge, SourceID: 2, Title: "north", Embedding: []float32{0, 1}},
		{Key: "message:1", Kind: KindMessage, SourceID: 1, Title: "north-east", Tags: []string{"session:1"}, Embedding: []float32{1, 1}},
	}
	for _, r := range recs {
		if err := e.Upsert(ctx, r); err != nil {
			t.Fatalf("upsert %s: %v", r.Key, err)
		}
	}

	matches, err := e.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Key != "knowledge:1" || math.Abs(matches[0].Distance) > 1e-6 {
		t.Errorf("expected exact match first, got %s at %f", matches[0].Key, matches[0].Distance)
	}
	if matches[1].Key != "message:1" || matches[1].Tags[0] != "session:1" {
		t.Errorf("expected message second with tags, got %+v", matches[1])
	}
	if matches[2].Key != "knowledge:2" || math.Abs(matches[2].Distance-1) > 1e-6 {
		t.Errorf("expected orthogonal last at distance 1, got %s at %f", matches[2].Key, matches[2].Distance)
	}

	st, _ := e.Stats(ctx)
	if !st.Initialized || st.Count != 3 || st.Dims != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestSQLiteEngine_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	e.Upsert(ctx, Record{Key: "knowledge:1", Kind: KindKnowledge, SourceID: 1, Title: "old", Tags: []string{"a"}, Embedding: []float32{1, 0}})
	e.Upsert(ctx, Record{Key: "knowledge:1", Kind: KindKnowledge, SourceID: 1, Title: "new", Embedding: []float32{0, 1}})

	matches, err := e.Search(ctx, []float32{0, 1}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one record after replace, got %d", len(matches))
	}
	if matches[0].Title != "new" || len(matches[0].Tags) != 0 {
		t.Errorf("expected replaced record, got %+v", matches[0])
	}
}

func TestSQLiteEngine_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	e.Upsert(ctx, Record{Key: "knowledge:1", Kind: KindKnowledge, SourceID: 1, Title: "a", Embedding: []float32{1, 0}})
	e.Upsert(ctx, Record{Key: "knowledge:2", Kind: KindKnowledge, SourceID: 2, Title: "b", Embedding: []float32{0, 1}})

	if err := e.Delete(ctx, "knowledge:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	st, _ := e.Stats(ctx)
	if st.Count != 1 {
		t.Errorf("expected 1 record after delete, got %d", st.Count)
	}

	if err := e.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := e.Search(ctx, []float32{1, 0}, 5); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized after clear, got %v", err)
	}
}

func TestSQLiteEngine_SkipsOtherDimensions(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	e.Upsert(ctx, Record{Key: "knowledge:1", Kind: KindKnowledge, SourceID: 1, Title: "2d", Embedding: []float32{1, 0}})
	e.Upsert(ctx, Record{Key: "knowledge:2", Kind: KindKnowledge, SourceID: 2, Title: "3d", Embedding: []float32{1, 0, 0}})

	matches, err := e.Search(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].Title != "3d" {
		t.Errorf("expected only the 3d record, got %+v", matches)
	}
}

func TestEncodeDecodeEmbedding(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	got, err := decodeEmbedding(encodeEmbedding(v))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("index %d: got %f, want %f", i, got[i], v[i])
		}
	}
	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestNewSQLiteEngine_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		e, err := NewSQLiteEngine(dir)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := registerFunctions(); err != nil {
			t.Fatalf("registration error kept after open: %v", err)
		}
		if err := e.Upsert(ctx, Record{Key: KnowledgeKey(1), Kind: KindKnowledge, SourceID: 1, Title: "t", Embedding: []float32{1, 0}}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if _, err := e.Search(ctx, []float32{1, 0}, 1); err != nil {
			t.Fatalf("search after reopen %d: %v", i, err)
		}
		e.Close()
	}
}
