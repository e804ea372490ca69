package journal

import (
	"testing"
	"time"

	"github.com/hyperjump/tsuzuri/internal/models"
)

func testEntry(id string, created time.Time) *models.Entry {
	return &models.Entry{
		ID:        id,
		CreatedAt: created,
		Emotion:   "content",
		Energy:    7,
		ShowedUp:  true,
		FreeText:  "wrote some code",
	}
}

func TestFileStoreSaveGet(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	entry := testEntry("e1", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	if err := store.Save(entry); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get("e1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "e1" || got.Emotion != "content" || got.Energy != 7 {
		t.Errorf("Get returned %+v", got)
	}

	if _, err := store.Get("missing"); err == nil {
		t.Error("Get of missing entry should fail")
	}
}

func TestFileStoreSaveRejectsEmptyID(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Save(&models.Entry{}); err == nil {
		t.Error("Save with empty ID should fail")
	}
}

func TestFileStoreListOrder(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.Save(testEntry(id, base.AddDate(0, 0, i))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(entries))
	}
	if entries[0].ID != "c" || entries[2].ID != "a" {
		t.Errorf("List not newest-first: %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}
}

func TestFileStoreListRange(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d"} {
		if err := store.Save(testEntry(id, base.AddDate(0, 0, i))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 3)
	entries, err := store.ListRange(from, to)
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListRange returned %d entries, want 2", len(entries))
	}
	if entries[0].ID != "b" || entries[1].ID != "c" {
		t.Errorf("ListRange returned %s, %s; want b, c (oldest first)", entries[0].ID, entries[1].ID)
	}
}

func TestFileStoreDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Save(testEntry("e1", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete("e1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get("e1"); err == nil {
		t.Error("entry still readable after Delete")
	}
	if err := store.Delete("e1"); err != nil {
		t.Errorf("Delete of missing entry should be a no-op, got %v", err)
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("Count = %d, want 0", count)
	}
}

func TestEntryIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/entries/abc-123.json", "abc-123"},
		{"/data/entries/abc-123.json.tmp", ""},
		{"/data/entries/notes.txt", ""},
	}
	for _, tt := range tests {
		if got := EntryIDFromPath(tt.path); got != tt.want {
			t.Errorf("EntryIDFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
