package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/agent-knowledge/internal/model"
)

// minTermLength is the shortest word used as a text search term.
const minTermLength = 3

// SearchTerms splits a query into lowercase search terms, dropping words
// shorter than three characters and duplicates.
func SearchTerms(query string) []string {
	var terms []string
	seen := map[string]bool{}
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(f) < minTermLength || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchKnowledgeText finds entries whose title or content contains any of
// the query terms, case-insensitively. Entries matching more terms rank
// first, then the most recently updated. A query with no usable terms
// matches nothing.
func (s *SQLiteStore) SearchKnowledgeText(ctx context.Context, query string, limit int) ([]model.KnowledgeEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	terms := SearchTerms(query)
	if len(terms) == 0 {
		return []model.KnowledgeEntry{}, nil
	}

	hits := make([]string, len(terms))
	var args []interface{}
	for i, term := range terms {
		hits[i] = `(CASE WHEN ` + lowerFunc + `(title || ' ' || content) LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)`
		args = append(args, "%"+likeEscaper.Replace(term)+"%")
	}
	score := strings.Join(hits, " + ")

	// The score expression is repeated in WHERE so the args are bound twice.
	sql := fmt.Sprintf(`
		SELECT %s FROM knowledge
		WHERE (%s) > 0
		ORDER BY (%s) DESC, updated_at DESC, id DESC
		LIMIT ?`, knowledgeColumns, score, score)
	all := append(append(append([]interface{}{}, args...), args...), limit)

	return s.queryKnowledge(ctx, sql, all...)
}
