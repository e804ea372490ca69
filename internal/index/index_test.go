package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/tsuzuri/internal/embedding"
	"github.com/hyperjump/tsuzuri/internal/journal"
	"github.com/hyperjump/tsuzuri/internal/models"
)

func newTestIndex(t *testing.T, vectorPath string) (*EmbeddingIndex, *journal.FileStore) {
	t.Helper()
	store, err := journal.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	idx, err := New(embedding.NewMockEmbedder(64), store, vectorPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return idx, store
}

func saveEntry(t *testing.T, store *journal.FileStore, id, text string) *models.Entry {
	t.Helper()
	entry := &models.Entry{
		ID:        id,
		CreatedAt: time.Now(),
		Emotion:   "content",
		Energy:    6,
		ShowedUp:  true,
		FreeText:  text,
	}
	if err := store.Save(entry); err != nil {
		t.Fatalf("Save %s: %v", id, err)
	}
	return entry
}

func TestIndexAndSearch(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndex(t, "")

	e1 := saveEntry(t, store, "e1", "long run in the rain, legs tired")
	e2 := saveEntry(t, store, "e2", "deep work on the parser all morning")
	for _, e := range []*models.Entry{e1, e2} {
		if err := idx.IndexEntry(ctx, e); err != nil {
			t.Fatalf("IndexEntry: %v", err)
		}
	}

	hits, err := idx.Search(ctx, e1.SearchText(), 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Entry.ID != "e1" {
		t.Errorf("closest hit = %s, want e1 (its own text)", hits[0].Entry.ID)
	}
	if hits[0].Distance > hits[1].Distance {
		t.Errorf("hits not ordered by ascending distance")
	}
}

func TestSearchBreaksDistanceTiesByRecency(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndex(t, "")

	// Two entries with identical text embed identically, so their distances
	// tie for any query.
	older := &models.Entry{
		ID:        "older",
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Emotion:   "content",
		Energy:    6,
		ShowedUp:  true,
		FreeText:  "a quiet morning walk",
	}
	newer := &models.Entry{
		ID:        "newer",
		CreatedAt: time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC),
		Emotion:   "content",
		Energy:    6,
		ShowedUp:  true,
		FreeText:  "a quiet morning walk",
	}
	// Indexed oldest first, so the newer entry sits at the tail of the
	// backing index.
	for _, e := range []*models.Entry{older, newer} {
		if err := store.Save(e); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := idx.IndexEntry(ctx, e); err != nil {
			t.Fatalf("IndexEntry: %v", err)
		}
	}

	hits, err := idx.Search(ctx, older.SearchText(), 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Distance != hits[1].Distance {
		t.Fatalf("distances differ (%f vs %f); identical text should tie", hits[0].Distance, hits[1].Distance)
	}
	if hits[0].Entry.ID != "newer" {
		t.Errorf("tied hit order = %s first, want newer", hits[0].Entry.ID)
	}
}

func TestIndexEntryReplacesVector(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndex(t, "")

	entry := saveEntry(t, store, "e1", "first version")
	if err := idx.IndexEntry(ctx, entry); err != nil {
		t.Fatalf("IndexEntry: %v", err)
	}
	if err := idx.IndexEntry(ctx, entry); err != nil {
		t.Fatalf("IndexEntry again: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size = %d after re-indexing same entry, want 1", idx.Size())
	}
}

func TestRebuildIdempotent(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndex(t, "")

	saveEntry(t, store, "e1", "ran five miles at dawn")
	saveEntry(t, store, "e2", "read about distributed systems")
	saveEntry(t, store, "e3", "skipped the gym, low energy")

	n, err := idx.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 3 {
		t.Fatalf("Rebuild indexed %d entries, want 3", n)
	}
	first, err := idx.Search(ctx, "exercise and running", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if _, err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	second, err := idx.Search(ctx, "exercise and running", 3)
	if err != nil {
		t.Fatalf("Search after rebuild: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("result count changed across rebuilds: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Entry.ID != second[i].Entry.ID {
			t.Errorf("result %d changed across rebuilds: %s vs %s", i, first[i].Entry.ID, second[i].Entry.ID)
		}
		if first[i].Distance != second[i].Distance {
			t.Errorf("distance %d changed across rebuilds: %f vs %f", i, first[i].Distance, second[i].Distance)
		}
	}
}

func TestRemoveEntry(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndex(t, "")

	entry := saveEntry(t, store, "e1", "something")
	if err := idx.IndexEntry(ctx, entry); err != nil {
		t.Fatalf("IndexEntry: %v", err)
	}
	if err := idx.RemoveEntry(ctx, "e1"); err != nil {
		t.Fatalf("RemoveEntry: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size = %d after remove, want 0", idx.Size())
	}
}

func TestSearchSkipsMissingEntries(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndex(t, "")

	entry := saveEntry(t, store, "e1", "will be deleted")
	saveEntry(t, store, "e2", "stays around")
	if _, err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := store.Delete(entry.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	hits, err := idx.Search(ctx, "anything", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.Entry.ID == "e1" {
			t.Error("deleted entry returned from Search")
		}
	}
}

func TestPersistAndLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	vectorPath := filepath.Join(dir, "vectors.bin")

	idx, store := newTestIndex(t, vectorPath)
	saveEntry(t, store, "e1", "persisted entry")
	if _, err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	reopened, err := New(embedding.NewMockEmbedder(64), store, vectorPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := reopened.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reopened.Size() != 1 {
		t.Errorf("Size after Load = %d, want 1", reopened.Size())
	}
}

func TestLoadModelMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	vectorPath := filepath.Join(dir, "vectors.bin")

	idx, store := newTestIndex(t, vectorPath)
	saveEntry(t, store, "e1", "persisted entry")
	if _, err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	// Same store, different dimension: the persisted space no longer matches.
	other, err := New(embedding.NewMockEmbedder(32), store, vectorPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := other.Load(ctx); !errors.Is(err, ErrModelMismatch) {
		t.Errorf("Load = %v, want ErrModelMismatch", err)
	}
}
