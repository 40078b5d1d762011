// Package app builds the long-lived resources shared by the CLI and the MCP
// server: the relational store, the vector index, the lazy embedder and the
// two services on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/rcliao/agent-knowledge/internal/config"
	"github.com/rcliao/agent-knowledge/internal/embedding"
	"github.com/rcliao/agent-knowledge/internal/service"
	"github.com/rcliao/agent-knowledge/internal/store"
	"github.com/rcliao/agent-knowledge/internal/vector"
)

// App owns every resource for one process. Close releases them.
type App struct {
	Config    config.Config
	Logger    *log.Logger
	Store     *store.SQLiteStore
	Index     *vector.Index
	Knowledge *service.KnowledgeService
	Sessions  *service.SessionService
}

// Option customizes Open.
type Option func(*openOptions)

type openOptions struct {
	embedder embedding.Embedder
}

// WithEmbedder replaces the configured provider. The lazy wrapper is skipped.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *openOptions) { o.embedder = e }
}

// Open builds the store, the configured vector engine and the services. The
// embedder is not contacted until the first embedding is needed.
func Open(ctx context.Context, cfg config.Config, logger *log.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	emb := o.embedder
	if emb == nil {
		factory, dims, err := embedding.Factory(embedding.Config{
			Provider: cfg.Embedding.Provider,
			URL:      cfg.Embedding.URL,
			APIKey:   cfg.Embedding.APIKey,
		})
		if err != nil {
			return nil, err
		}
		emb = embedding.NewLazy(dims, func(ctx context.Context) (embedding.Embedder, error) {
			logger.Debug("initializing embedder", "provider", cfg.Embedding.Provider)
			return factory(ctx)
		})
	}

	st, err := store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	index := vector.NewIndex(engine, emb)

	logger.Debug("opened", "db", cfg.DBPath(), "vector_backend", cfg.Vector.Backend)
	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Index:     index,
		Knowledge: service.NewKnowledgeService(st, index, logger.WithPrefix("knowledge")),
		Sessions:  service.NewSessionService(st, index, logger.WithPrefix("sessions")),
	}, nil
}

func openEngine(ctx context.Context, cfg config.Config) (vector.Engine, error) {
	switch cfg.Vector.Backend {
	case config.BackendQdrant:
		e, err := vector.NewQdrantEngine(ctx, cfg.Vector.QdrantAddr, cfg.Vector.Collection)
		if err != nil {
			return nil, fmt.Errorf("open qdrant: %w", err)
		}
		return e, nil
	default:
		e, err := vector.NewSQLiteEngine(cfg.VectorDir())
		if err != nil {
			return nil, fmt.Errorf("open vector index: %w", err)
		}
		return e, nil
	}
}

// Close releases the index and the store.
func (a *App) Close() error {
	return errors.Join(a.Index.Close(), a.Store.Close())
}
