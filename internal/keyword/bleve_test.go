package keyword

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/tsuzuri/internal/models"
)

func newTestIndex(t *testing.T) *EntryIndex {
	t.Helper()
	idx, err := NewEntryIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewEntryIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func entry(id, text string) *models.Entry {
	return &models.Entry{
		ID:        id,
		CreatedAt: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		Emotion:   "content",
		Energy:    6,
		ShowedUp:  true,
		FreeText:  text,
	}
}

func TestIndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, entry("e1", "went climbing at the new gym")); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Index(ctx, entry("e2", "quiet day reading at home")); err != nil {
		t.Fatalf("Index: %v", err)
	}

	hits, err := idx.Search(ctx, "climbing", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "e1" {
		t.Errorf("hits = %+v, want only e1", hits)
	}

	count, err := idx.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}
}

func TestReindexReplaces(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, entry("e1", "original words")); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Index(ctx, entry("e1", "replacement words")); err != nil {
		t.Fatalf("Index again: %v", err)
	}

	hits, err := idx.Search(ctx, "original", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("stale content still searchable: %+v", hits)
	}
	count, _ := idx.Count()
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}

func TestRemove(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, entry("e1", "ephemeral")); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Remove(ctx, "e1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	hits, err := idx.Search(ctx, "ephemeral", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("removed entry still searchable")
	}
}

func TestReopenExistingIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bleve")
	idx, err := NewEntryIndex(dir)
	if err != nil {
		t.Fatalf("NewEntryIndex: %v", err)
	}
	if err := idx.Index(context.Background(), entry("e1", "persisted across opens")); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewEntryIndex(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	hits, err := reopened.Search(context.Background(), "persisted", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("hits after reopen = %d, want 1", len(hits))
	}
}
