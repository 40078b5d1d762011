package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcliao/agent-knowledge/internal/config"
	"github.com/rcliao/agent-knowledge/internal/service"
)

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (constEmbedder) Dims() int { return 3 }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DataDir:   t.TempDir(),
		Vector:    config.VectorConfig{Backend: config.BackendSQLite},
		Embedding: config.EmbeddingConfig{Provider: "ollama"},
	}
}

func TestOpen_CreatesLayout(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Open(ctx, cfg, nil, WithEmbedder(constEmbedder{}))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()

	res, err := a.Knowledge.Add(ctx, service.AddKnowledgeParams{Title: "t", Content: "c"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !res.Vectorized {
		t.Error("expected entry to be vectorized")
	}

	if _, err := os.Stat(cfg.DBPath()); err != nil {
		t.Errorf("expected db file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.VectorDir(), "index.db")); err != nil {
		t.Errorf("expected vector index file: %v", err)
	}
}

func TestOpen_LazyEmbedderNotContacted(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Embedding.URL = "http://127.0.0.1:1"

	a, err := Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open must not reach the embedder: %v", err)
	}
	defer a.Close()

	st, err := a.Index.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.EmbedderReady {
		t.Error("expected embedder to stay uninitialized")
	}
	if st.EmbeddingDims != 768 {
		t.Errorf("expected 768 dims, got %d", st.EmbeddingDims)
	}

	res, err := a.Knowledge.Add(ctx, service.AddKnowledgeParams{Title: "t", Content: "c"})
	if err != nil {
		t.Fatalf("add must survive an unreachable embedder: %v", err)
	}
	if res.Vectorized {
		t.Error("expected vectorized=false")
	}
}

func TestOpen_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Provider = "nope"
	if _, err := Open(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
