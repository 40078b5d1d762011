package store

import (
	"context"
	"testing"
	"time"
)

func TestSearchTerms(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"hello world", []string{"hello", "world"}},
		{"Go is ok", nil},
		{"The the THE", []string{"the"}},
		{"  SQLite   index ", []string{"sqlite", "index"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := SearchTerms(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("SearchTerms(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("term %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSearchKnowledgeText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.CreateKnowledge(ctx, CreateKnowledgeParams{Title: "Go", Content: "Go is a compiled language with goroutines"})
	s.CreateKnowledge(ctx, CreateKnowledgeParams{Title: "Python", Content: "Python is an interpreted language"})
	s.CreateKnowledge(ctx, CreateKnowledgeParams{Title: "Rust", Content: "Rust has a borrow checker"})

	results, err := s.SearchKnowledgeText(ctx, "LANGUAGE", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	results, _ = s.SearchKnowledgeText(ctx, "rust", 10)
	if len(results) != 1 || results[0].Title != "Rust" {
		t.Fatalf("expected title match on Rust, got %+v", results)
	}

	results, _ = s.SearchKnowledgeText(ctx, "javascript", 10)
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}

func TestSearchKnowledgeText_ShortTermsIgnored(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.CreateKnowledge(ctx, CreateKnowledgeParams{Title: "a", Content: "go is ok"})

	results, err := s.SearchKnowledgeText(ctx, "go is", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results when all terms are short, got %d", len(results))
	}
}

func TestSearchKnowledgeText_RanksByMatchedTerms(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore(t)

	both, _ := s.CreateKnowledge(ctx, CreateKnowledgeParams{Title: "vector index", Content: "cosine distance"})
	clock.Advance(time.Minute)
	s.CreateKnowledge(ctx, CreateKnowledgeParams{Title: "vector math", Content: "dot products"})

	results, err := s.SearchKnowledgeText(ctx, "vector cosine", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != both.ID {
		t.Errorf("expected entry matching both terms first, got %q", results[0].Title)
	}
}

func TestSearchKnowledgeText_LikeWildcardsEscaped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.CreateKnowledge(ctx, CreateKnowledgeParams{Title: "plain", Content: "nothing special here"})

	results, _ := s.SearchKnowledgeText(ctx, "%%%", 10)
	if len(results) != 0 {
		t.Fatalf("expected wildcard query to match literally, got %d", len(results))
	}
}

func TestSearchKnowledgeText_Limit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		s.CreateKnowledge(ctx, CreateKnowledgeParams{Title: "note", Content: "shared keyword"})
	}
	results, _ := s.SearchKnowledgeText(ctx, "keyword", 3)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
}

func TestSearchKnowledgeText_NonASCIICase(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, _ := s.CreateKnowledge(ctx, CreateKnowledgeParams{Title: "Über Notes", Content: "Émile wrote this"})

	for _, q := range []string{"Über", "über", "ÜBER", "Émile", "émile", "notes"} {
		results, err := s.SearchKnowledgeText(ctx, q, 10)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if len(results) != 1 || results[0].ID != e.ID {
			t.Errorf("search %q: expected entry %d, got %+v", q, e.ID, results)
		}
	}
}

func TestRegisterFunctions_Idempotent(t *testing.T) {
	newTestStore(t)
	newTestStore(t)
	if err := registerFunctions(); err != nil {
		t.Fatalf("expected registration to succeed once and stay nil, got %v", err)
	}
}
