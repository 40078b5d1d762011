package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateAndEndSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, strPtr("debugging"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sess.IsActive || sess.EndedAt != nil {
		t.Fatalf("expected active session, got %+v", sess)
	}

	s.AddMessage(ctx, sess.ID, "user", "hi")
	s.AddMessage(ctx, sess.ID, "agent", "hello")

	ok, err := s.EndSession(ctx, sess.ID, strPtr("done"))
	if err != nil || !ok {
		t.Fatalf("end: ok=%v err=%v", ok, err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsActive || got.EndedAt == nil {
		t.Errorf("expected ended session, got %+v", got)
	}
	if got.Summary == nil || *got.Summary != "done" {
		t.Errorf("expected summary 'done', got %v", got.Summary)
	}
	n, _ := s.CountMessages(ctx, sess.ID)
	if n != 2 {
		t.Errorf("expected 2 messages after end, got %d", n)
	}

	ok, _ = s.EndSession(ctx, sess.ID, strPtr("again"))
	if ok {
		t.Error("expected ending an ended session to report false")
	}
	got, _ = s.GetSession(ctx, sess.ID)
	if *got.Summary != "done" {
		t.Errorf("expected summary unchanged, got %q", *got.Summary)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSession(context.Background(), 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestActiveSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.LatestActiveSession(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no sessions, got %v", err)
	}

	a, _ := s.CreateSession(ctx, nil)
	b, _ := s.CreateSession(ctx, nil)

	got, err := s.LatestActiveSession(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.ID != b.ID {
		t.Errorf("expected %d, got %d", b.ID, got.ID)
	}

	s.EndSession(ctx, b.ID, nil)
	got, _ = s.LatestActiveSession(ctx)
	if got.ID != a.ID {
		t.Errorf("expected fallback to %d, got %d", a.ID, got.ID)
	}
}

func TestAddMessage_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddMessage(context.Background(), 99, "user", "orphan"); err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestAddMessage_InvalidRole(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess, _ := s.CreateSession(ctx, nil)
	if _, err := s.AddMessage(ctx, sess.ID, "system", "nope"); err == nil {
		t.Fatal("expected check constraint error for role")
	}
}

func TestActiveSessionSummaries(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore(t)

	quiet, _ := s.CreateSession(ctx, nil)
	busy, _ := s.CreateSession(ctx, nil)
	clock.Advance(10 * time.Minute)
	s.AddMessage(ctx, busy.ID, "user", "one")
	clock.Advance(5 * time.Minute)
	s.AddMessage(ctx, busy.ID, "agent", "two")
	ended, _ := s.CreateSession(ctx, nil)
	s.EndSession(ctx, ended.ID, nil)

	sums, err := s.ActiveSessionSummaries(ctx)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("expected 2 active, got %d", len(sums))
	}
	if sums[0].ID != quiet.ID || sums[0].LastMessageAt != nil {
		t.Errorf("expected quiet session without messages, got %+v", sums[0])
	}
	if !sums[0].LastActivity().Equal(quiet.StartedAt) {
		t.Errorf("expected last activity to fall back to start time")
	}
	if sums[1].MessageCount != 2 || sums[1].LastMessageAt == nil || !sums[1].LastMessageAt.Equal(clock.Now()) {
		t.Errorf("unexpected busy summary: %+v", sums[1])
	}
}

func TestListSessionsAndMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.CreateSession(ctx, strPtr("a"))
	b, _ := s.CreateSession(ctx, strPtr("b"))
	s.EndSession(ctx, a.ID, nil)
	s.AddMessage(ctx, b.ID, "user", "first")
	s.AddMessage(ctx, b.ID, "agent", "second")

	all, err := s.ListSessions(ctx, ListSessionsParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != b.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}
	active, _ := s.ListSessions(ctx, ListSessionsParams{ActiveOnly: true})
	if len(active) != 1 || active[0].ID != b.ID {
		t.Errorf("expected only %d active, got %+v", b.ID, active)
	}

	msgs, err := s.ListMessages(ctx, b.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "first" || msgs[1].Role != "agent" {
		t.Errorf("unexpected messages: %+v", msgs)
	}
}

func TestSessionStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.CreateSession(ctx, nil)
	s.AddMessage(ctx, a.ID, "user", "q")
	s.AddMessage(ctx, a.ID, "agent", "a")
	s.AddMessage(ctx, a.ID, "user", "q2")
	s.EndSession(ctx, a.ID, nil)
	s.CreateSession(ctx, nil)

	st, err := s.SessionStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalSessions != 2 || st.ActiveSessions != 1 || st.EndedSessions != 1 {
		t.Errorf("unexpected session counts: %+v", st)
	}
	if st.TotalMessages != 3 || st.MessagesByRole["user"] != 2 || st.MessagesByRole["agent"] != 1 {
		t.Errorf("unexpected message counts: %+v", st)
	}
}
