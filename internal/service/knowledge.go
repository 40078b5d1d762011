package service

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/rcliao/agent-knowledge/internal/model"
	"github.com/rcliao/agent-knowledge/internal/store"
	"github.com/rcliao/agent-knowledge/internal/vector"
)

// DefaultMinScore is the similarity below which semantic hits are dropped.
const DefaultMinScore = 0.3

// DefaultSearchLimit is used when a caller passes no limit.
const DefaultSearchLimit = 10

// KnowledgeService manages knowledge entries across both stores.
type KnowledgeService struct {
	store  store.KnowledgeStore
	index  Indexer
	logger *log.Logger
}

// NewKnowledgeService wires a knowledge service.
func NewKnowledgeService(st store.KnowledgeStore, index Indexer, logger *log.Logger) *KnowledgeService {
	return &KnowledgeService{store: st, index: index, logger: discardLogger(logger)}
}

// AddKnowledgeParams holds the fields of a new entry.
type AddKnowledgeParams struct {
	Title   string
	Content string
	Source  *string
	Tags    []string
}

// AddResult reports the new id and whether it reached the vector index.
type AddResult struct {
	ID         int64 `json:"id"`
	Vectorized bool  `json:"vectorized"`
}

// UpdateResult reports whether the row existed and whether it was re-indexed.
type UpdateResult struct {
	Success    bool                  `json:"success"`
	Vectorized bool                  `json:"vectorized"`
	Entry      *model.KnowledgeEntry `json:"entry,omitempty"`
}

// ReindexResult summarizes a rebuild of the knowledge vectors.
type ReindexResult struct {
	Total   int `json:"total"`
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// Add stores an entry, then indexes it best-effort.
func (s *KnowledgeService) Add(ctx context.Context, p AddKnowledgeParams) (*AddResult, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, ErrTitleRequired
	}
	e, err := s.store.CreateKnowledge(ctx, store.CreateKnowledgeParams{
		Title:   strings.TrimSpace(p.Title),
		Content: p.Content,
		Source:  p.Source,
		Tags:    normalizeTags(p.Tags),
	})
	if err != nil {
		return nil, err
	}
	return &AddResult{ID: e.ID, Vectorized: s.indexEntry(ctx, e)}, nil
}

func (s *KnowledgeService) indexEntry(ctx context.Context, e *model.KnowledgeEntry) bool {
	if err := s.index.IndexKnowledge(ctx, e); err != nil {
		s.logger.Warn("knowledge not vectorized", "id", e.ID, "err", err)
		return false
	}
	return true
}

// Update applies a partial update and replaces the entry's vector. An
// unknown id yields Success=false and changes nothing.
func (s *KnowledgeService) Update(ctx context.Context, id int64, p store.UpdateKnowledgeParams) (*UpdateResult, error) {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		p.Title = &title
	}
	if p.Tags != nil {
		p.Tags = normalizeTags(p.Tags)
	}

	e, err := s.store.UpdateKnowledge(ctx, id, p)
	if errors.Is(err, store.ErrNotFound) {
		return &UpdateResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &UpdateResult{Success: true, Vectorized: s.indexEntry(ctx, e), Entry: e}, nil
}

// Delete removes the vector record, then the row. It reports whether the
// row existed.
func (s *KnowledgeService) Delete(ctx context.Context, id int64) (bool, error) {
	if err := s.index.Remove(ctx, vector.KnowledgeKey(id)); err != nil {
		s.logger.Debug("vector delete failed", "id", id, "err", err)
	}
	return s.store.DeleteKnowledge(ctx, id)
}

// Search runs a semantic query and keeps knowledge hits scoring at least
// minScore. It returns vector.ErrNotInitialized when nothing was ever indexed.
func (s *KnowledgeService) Search(ctx context.Context, query string, limit int, minScore float64) ([]vector.Hit, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	hits, err := s.index.Query(ctx, query, limit*overfetch)
	if err != nil {
		return nil, err
	}
	out := []vector.Hit{}
	for _, h := range hits {
		if h.Kind != vector.KindKnowledge || h.Score < minScore {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// SearchText runs a keyword search over titles and content.
func (s *KnowledgeService) SearchText(ctx context.Context, query string, limit int) ([]model.KnowledgeEntry, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return s.store.SearchKnowledgeText(ctx, query, limit)
}

// List returns entries newest first, optionally filtered by any of tags.
func (s *KnowledgeService) List(ctx context.Context, p store.ListKnowledgeParams) ([]model.KnowledgeEntry, error) {
	return s.store.ListKnowledge(ctx, p)
}

// Get returns the entry or nil when it does not exist.
func (s *KnowledgeService) Get(ctx context.Context, id int64) (*model.KnowledgeEntry, error) {
	e, err := s.store.GetKnowledge(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

// Stats returns aggregate counts over entries.
func (s *KnowledgeService) Stats(ctx context.Context) (*store.KnowledgeStats, error) {
	return s.store.KnowledgeStats(ctx)
}

// Reindex rebuilds the vector record of every entry. Session messages are
// not rebuilt; they are only embedded when logged.
func (s *KnowledgeService) Reindex(ctx context.Context) (*ReindexResult, error) {
	entries, err := s.store.ExportKnowledge(ctx)
	if err != nil {
		return nil, err
	}
	res := &ReindexResult{Total: len(entries)}
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if s.indexEntry(ctx, &entries[i]) {
			res.Indexed++
		} else {
			res.Failed++
		}
	}
	s.logger.Info("reindex complete", "total", res.Total, "indexed", res.Indexed, "failed", res.Failed)
	return res, nil
}

// Export returns every entry, oldest first.
func (s *KnowledgeService) Export(ctx context.Context) ([]model.KnowledgeEntry, error) {
	return s.store.ExportKnowledge(ctx)
}

// Import adds each entry as a new one. Ids and timestamps are reassigned.
func (s *KnowledgeService) Import(ctx context.Context, entries []model.KnowledgeEntry) (int, error) {
	imported := 0
	for _, e := range entries {
		_, err := s.Add(ctx, AddKnowledgeParams{
			Title:   e.Title,
			Content: e.Content,
			Source:  e.Source,
			Tags:    e.Tags,
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
