package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"overmind.cash/internal/overmind"
	"overmind.cash/internal/registry"
	"overmind.cash/internal/withdraw"
)

func openTemp(t *testing.T) (*SQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "overmind.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestUsers_CreateGetAndConflicts(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	if max, err := s.MaxIndex(ctx); err != nil || max != 0 {
		t.Fatalf("MaxIndex on empty: %d %v", max, err)
	}
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p := registry.Principal{UserID: 42, Username: "ana", Address: "ecash:qa", Script: "76a914", Index: 3, RegisteredAt: at}
	if err := s.CreateUser(ctx, p); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, ok, err := s.GetUser(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("GetUser: %v %v", ok, err)
	}
	if !got.RegisteredAt.Equal(at) {
		t.Fatalf("registered_at mismatch: %v", got.RegisteredAt)
	}
	got.RegisteredAt, p.RegisteredAt = time.Time{}, time.Time{}
	if got != p {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, p)
	}
	if _, ok, err := s.GetUser(ctx, 7); ok || err != nil {
		t.Fatalf("expected missing user, got %v %v", ok, err)
	}

	if err := s.CreateUser(ctx, registry.Principal{UserID: 42, Index: 9}); !errors.Is(err, registry.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if err := s.CreateUser(ctx, registry.Principal{UserID: 43, Index: 3}); !errors.Is(err, registry.ErrIndexTaken) {
		t.Fatalf("expected ErrIndexTaken, got %v", err)
	}
	if err := s.CreateUser(ctx, registry.Principal{UserID: 44, Username: "bo", Index: 8}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if max, _ := s.MaxIndex(ctx); max != 8 {
		t.Fatalf("expected max index 8, got %d", max)
	}
	all, err := s.Users(ctx)
	if err != nil || len(all) != 2 || all[0].UserID != 42 || all[1].UserID != 44 {
		t.Fatalf("unexpected user list: %+v %v", all, err)
	}
}

func TestMessages_ReactionsAndCounters(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

	ok, err := s.SaveMessage(ctx, registry.Message{MsgID: 100, UserID: 1, Username: "ana", Text: "gm", SentAt: now})
	if err != nil || !ok {
		t.Fatalf("SaveMessage: %v %v", ok, err)
	}
	if ok, _ := s.SaveMessage(ctx, registry.Message{MsgID: 100, UserID: 2, Text: "other"}); ok {
		t.Fatalf("expected duplicate message ignored")
	}
	m, ok, err := s.GetMessage(ctx, 100)
	if err != nil || !ok || m.UserID != 1 || m.Text != "gm" || !m.SentAt.Equal(now) {
		t.Fatalf("unexpected message: %+v %v %v", m, ok, err)
	}

	for _, r := range []registry.Reaction{
		{MsgID: 100, UserID: 2, Emoji: "👍"},
		{MsgID: 100, UserID: 3, Emoji: "👎", Dislike: true},
		{MsgID: 100, UserID: 2, Emoji: "🔥"},
	} {
		if ok, err := s.RecordReaction(ctx, r); err != nil || !ok {
			t.Fatalf("RecordReaction %+v: %v %v", r, ok, err)
		}
	}
	if ok, err := s.RecordReaction(ctx, registry.Reaction{MsgID: 100, UserID: 2, Emoji: "👍"}); err != nil || ok {
		t.Fatalf("expected duplicate reaction ignored, got %v %v", ok, err)
	}
	m, _, _ = s.GetMessage(ctx, 100)
	if m.Likes != 2 || m.Dislikes != 1 {
		t.Fatalf("unexpected counters: likes=%d dislikes=%d", m.Likes, m.Dislikes)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st != (registry.Stats{Messages: 1, Likes: 2, Dislikes: 1, Reactions: 3}) {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestCountDislikedMessages_Window(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

	msgs := []registry.Message{
		{MsgID: 1, UserID: 5, SentAt: now.Add(-time.Hour)},
		{MsgID: 2, UserID: 5, SentAt: now.Add(-2 * time.Hour)},
		{MsgID: 3, UserID: 5, SentAt: now.Add(-48 * time.Hour)},
		{MsgID: 4, UserID: 5, SentAt: now.Add(-time.Minute)},
		{MsgID: 5, UserID: 6, SentAt: now.Add(-time.Minute)},
	}
	for _, m := range msgs {
		if _, err := s.SaveMessage(ctx, m); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}
	for _, id := range []int64{1, 2, 3, 5} {
		if _, err := s.RecordReaction(ctx, registry.Reaction{MsgID: id, UserID: 9, Emoji: "👎", Dislike: true}); err != nil {
			t.Fatalf("RecordReaction: %v", err)
		}
	}
	// A second dislike on the same message does not count it twice.
	if _, err := s.RecordReaction(ctx, registry.Reaction{MsgID: 1, UserID: 10, Emoji: "👎", Dislike: true}); err != nil {
		t.Fatalf("RecordReaction: %v", err)
	}
	n, err := s.CountDislikedMessages(ctx, 5, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountDislikedMessages: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 disliked messages in window, got %d", n)
	}
}

func TestWithdrawals_Store(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	w := s.PendingWithdrawals()
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	if _, ok, err := w.Get(ctx, 1); ok || err != nil {
		t.Fatalf("expected empty store, got %v %v", ok, err)
	}
	p := withdraw.Pending{UserID: 1, Destination: "ecash:qd", Amount: 40, Source: "ecash:qs", CreatedAt: at}
	if err := w.Set(ctx, p); err != nil {
		t.Fatalf("Set: %v", err)
	}
	p.Amount = 25
	if err := w.Set(ctx, p); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err := w.Get(ctx, 1)
	if err != nil || !ok || !got.CreatedAt.Equal(at) {
		t.Fatalf("unexpected pending: %+v %v %v", got, ok, err)
	}
	if got.Amount != 25 || got.Destination != p.Destination || got.Source != p.Source {
		t.Fatalf("expected overwritten pending, got %+v", got)
	}
	list, err := w.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one pending, got %+v %v", list, err)
	}
	if err := w.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := w.Get(ctx, 1); ok {
		t.Fatalf("expected pending deleted")
	}
}

func TestTransfers_FlushedOnClose(t *testing.T) {
	s, path := openTemp(t)
	for i, e := range []overmind.TransferEntry{
		{ID: "a", Time: 1000, Action: "LIKE", Code: 1, MsgID: 7, FromUser: 1, FromAddress: "ecash:qa", ToUser: 2, ToAddress: "ecash:qb", Atoms: 1, TxID: "tx1"},
		{ID: "b", Time: 2000, Action: "DISLIKED", Code: 3, MsgID: 7, FromUser: 2, FromAddress: "ecash:qb", ToAddress: "ecash:qt", Atoms: 2, Error: "broadcast failed"},
	} {
		if err := s.WriteTransfer(e); err != nil {
			t.Fatalf("WriteTransfer %d: %v", i, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Writes after close are ignored.
	if err := s.WriteTransfer(overmind.TransferEntry{ID: "c"}); err != nil {
		t.Fatalf("WriteTransfer after close: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.RecentTransfers(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentTransfers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transfers, got %+v", got)
	}
	if got[0].ID != "b" || got[0].OK() || got[0].TxID != "" || got[0].Code != 3 {
		t.Fatalf("unexpected newest entry: %+v", got[0])
	}
	if got[1].ID != "a" || !got[1].OK() || got[1].TxID != "tx1" || got[1].MsgID != 7 {
		t.Fatalf("unexpected oldest entry: %+v", got[1])
	}
	if s.Dropped() != 0 {
		t.Fatalf("expected nothing dropped, got %d", s.Dropped())
	}
}
