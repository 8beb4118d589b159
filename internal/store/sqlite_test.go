// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers turn round-trips, ordering, pagination, clearing and profiles

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "relay.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestAppendTurn_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tc := TurnContext{
		TokensUsed:    42,
		ContextLength: 4,
		Fallback:      false,
		Timestamp:     time.Now().UTC(),
	}

	turn, err := s.AppendTurn(ctx, "user-1", "Hello", "Hi there", tc)
	if err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	if turn.ID == "" {
		t.Error("expected store-assigned ID")
	}
	if turn.CreatedAt.IsZero() {
		t.Error("expected store-assigned CreatedAt")
	}

	got, err := s.RecentTurns(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(got))
	}
	if got[0].Prompt != "Hello" {
		t.Errorf("Prompt mismatch: got %q", got[0].Prompt)
	}
	if got[0].Response != "Hi there" {
		t.Errorf("Response mismatch: got %q", got[0].Response)
	}
	if got[0].Context.TokensUsed != 42 {
		t.Errorf("TokensUsed mismatch: got %d", got[0].Context.TokensUsed)
	}
	if got[0].Context.ContextLength != 4 {
		t.Errorf("ContextLength mismatch: got %d", got[0].Context.ContextLength)
	}
}

func TestAppendTurn_LongPromptNotTruncated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	long := ""
	for i := 0; i < 2000; i++ {
		long += "sentence "
	}

	if _, err := s.AppendTurn(ctx, "user-1", long, "ok", TurnContext{Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	got, err := s.RecentTurns(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if got[0].Prompt != long {
		t.Errorf("prompt was altered: got %d bytes, want %d", len(got[0].Prompt), len(long))
	}
}

func TestRecentTurns_NewestFirstAndLimited(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		prompt := fmt.Sprintf("prompt-%d", i)
		if _, err := s.AppendTurn(ctx, "user-1", prompt, "reply", TurnContext{Timestamp: time.Now().UTC()}); err != nil {
			t.Fatalf("AppendTurn %d failed: %v", i, err)
		}
	}

	got, err := s.RecentTurns(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 turns, got %d", len(got))
	}
	if got[0].Prompt != "prompt-14" {
		t.Errorf("expected newest first, got %q", got[0].Prompt)
	}
	if got[9].Prompt != "prompt-5" {
		t.Errorf("expected prompt-5 last in window, got %q", got[9].Prompt)
	}
}

func TestRecentTurns_EmptyHistory(t *testing.T) {
	s := newTestStore(t)

	got, err := s.RecentTurns(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty slice, got %d turns", len(got))
	}
}

func TestRecentTurns_ShorterThanLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.AppendTurn(ctx, "user-1", fmt.Sprintf("p%d", i), "r", TurnContext{Timestamp: time.Now().UTC()}); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	got, err := s.RecentTurns(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 turns, got %d", len(got))
	}
}

func TestPageTurns_Offset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if _, err := s.AppendTurn(ctx, "user-1", fmt.Sprintf("p%d", i), "r", TurnContext{Timestamp: time.Now().UTC()}); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	page, err := s.PageTurns(ctx, "user-1", 3, 3)
	if err != nil {
		t.Fatalf("PageTurns failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(page))
	}
	// Newest-first: offset 3 skips p7, p6, p5
	if page[0].Prompt != "p4" {
		t.Errorf("expected p4 at page start, got %q", page[0].Prompt)
	}
}

func TestTurns_IsolatedPerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendTurn(ctx, "alice", "hers", "r", TurnContext{Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	if _, err := s.AppendTurn(ctx, "bob", "his", "r", TurnContext{Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	got, err := s.RecentTurns(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(got) != 1 || got[0].Prompt != "hers" {
		t.Errorf("expected only alice's turn, got %+v", got)
	}
}

func TestClearTurns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := s.AppendTurn(ctx, "user-1", "p", "r", TurnContext{Timestamp: time.Now().UTC()}); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	removed, err := s.ClearTurns(ctx, "user-1")
	if err != nil {
		t.Fatalf("ClearTurns failed: %v", err)
	}
	if removed != 4 {
		t.Errorf("expected 4 removed, got %d", removed)
	}

	got, err := s.RecentTurns(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty history after clear, got %d", len(got))
	}

	// Idempotent: clearing again succeeds with zero
	removed, err = s.ClearTurns(ctx, "user-1")
	if err != nil {
		t.Fatalf("second ClearTurns failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected 0 removed on empty history, got %d", removed)
	}
}

func TestGetProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	photo := "avatars/1.png"
	err := s.SaveProfile(ctx, &UserProfile{
		ID:           "user-1",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		ProfilePhoto: &photo,
	})
	if err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, err := s.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.FirstName != "Ada" || got.LastName != "Lovelace" {
		t.Errorf("name mismatch: got %q %q", got.FirstName, got.LastName)
	}
	if got.ProfilePhoto == nil || *got.ProfilePhoto != photo {
		t.Errorf("photo mismatch: got %v", got.ProfilePhoto)
	}
	if got.FullName() != "Ada Lovelace" {
		t.Errorf("FullName mismatch: got %q", got.FullName())
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetProfile(context.Background(), "nobody")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
