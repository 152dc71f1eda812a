package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"murmur/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "log", "conversations.jsonl"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, domain.ConversationEntry{
		Role:    domain.RoleUser,
		Content: "open firefox",
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("entry has no id")
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("entry has no timestamp")
	}
	if entries[0].Content != "open firefox" {
		t.Errorf("content = %q", entries[0].Content)
	}
}

func TestRecentReturnsTailInOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for i, content := range []string{"one", "two", "three", "four"} {
		err := store.Append(ctx, domain.ConversationEntry{
			Role:      domain.RoleUser,
			Content:   content,
			Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	entries, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Content != "three" || entries[1].Content != "four" {
		t.Fatalf("unexpected tail: %q, %q", entries[0].Content, entries[1].Content)
	}
}

func TestRecentMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	entries, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(entries))
	}
}

func TestRecentSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, domain.ConversationEntry{Role: domain.RoleUser, Content: "good"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f, err := os.OpenFile(store.path, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("{not json}\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	if err := store.Append(ctx, domain.ConversationEntry{Role: domain.RoleAssistant, Content: "also good"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
}

func TestNewStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := NewStore(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
