package vector

import (
	"context"
	"fmt"

	"github.com/rcliao/agent-knowledge/internal/embedding"
	"github.com/rcliao/agent-knowledge/internal/model"
)

// Metadata is the display projection stored next to an embedding.
type Metadata struct {
	Kind     string
	SourceID int64
	Title    string
	Content  string
	Tags     []string
}

// Hit is a ranked search result. Score is 1 - distance, so higher is closer.
type Hit struct {
	Record
	Score float64 `json:"score"`
}

// Stats combines engine state with the embedding configuration.
type Stats struct {
	EngineStats
	EmbeddingDims int  `json:"embedding_dims"`
	EmbedderReady bool `json:"embedder_ready"`
}

// Index maps knowledge entries and session messages onto engine records.
type Index struct {
	engine   Engine
	embedder embedding.Embedder
}

// NewIndex returns an Index writing to engine with vectors from embedder.
func NewIndex(engine Engine, embedder embedding.Embedder) *Index {
	return &Index{engine: engine, embedder: embedder}
}

// Upsert embeds text and replaces the record stored under key.
func (x *Index) Upsert(ctx context.Context, key, text string, md Metadata) error {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", key, err)
	}
	return x.engine.Upsert(ctx, Record{
		Key:       key,
		Kind:      md.Kind,
		SourceID:  md.SourceID,
		Title:     md.Title,
		Preview:   preview(md.Content),
		Tags:      md.Tags,
		Embedding: vec,
	})
}

// IndexKnowledge embeds an entry's title and content.
func (x *Index) IndexKnowledge(ctx context.Context, e *model.KnowledgeEntry) error {
	return x.Upsert(ctx, KnowledgeKey(e.ID), e.Title+"\n\n"+e.Content, Metadata{
		Kind:     KindKnowledge,
		SourceID: e.ID,
		Title:    e.Title,
		Content:  e.Content,
		Tags:     e.Tags,
	})
}

// IndexMessage embeds a session message, tagged by session and role.
func (x *Index) IndexMessage(ctx context.Context, m *model.SessionMessage) error {
	return x.Upsert(ctx, MessageKey(m.ID), m.Content, Metadata{
		Kind:     KindMessage,
		SourceID: m.ID,
		Title:    fmt.Sprintf("Session %d (%s)", m.SessionID, m.Role),
		Content:  m.Content,
		Tags:     []string{SessionTag(m.SessionID), RoleTag(m.Role)},
	})
}

// Remove deletes the record stored under key, if any.
func (x *Index) Remove(ctx context.Context, key string) error {
	return x.engine.Delete(ctx, key)
}

// Query embeds text and returns up to limit nearest records.
func (x *Index) Query(ctx context.Context, text string, limit int) ([]Hit, error) {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := x.engine.Search(ctx, vec, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(matches))
	for i, m := range matches {
		hits[i] = Hit{Record: m.Record, Score: 1 - m.Distance}
	}
	return hits, nil
}

// Stats reports engine state; it never initializes the embedder.
func (x *Index) Stats(ctx context.Context) (Stats, error) {
	es, err := x.engine.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{EngineStats: es, EmbeddingDims: x.embedder.Dims()}
	if l, ok := x.embedder.(*embedding.Lazy); ok {
		st.EmbedderReady = l.Initialized()
	} else {
		st.EmbedderReady = true
	}
	return st, nil
}

// Clear drops every record. Message vectors cannot be rebuilt afterwards.
func (x *Index) Clear(ctx context.Context) error {
	return x.engine.Clear(ctx)
}

// Close releases the engine.
func (x *Index) Close() error {
	return x.engine.Close()
}
