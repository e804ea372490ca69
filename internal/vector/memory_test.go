package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemoryIndexAddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	ctx := context.Background()

	ids := []string{"a", "b", "c"}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	if err := idx.Add(ctx, ids, vectors); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Size() != 3 {
		t.Fatalf("Size = %d, want 3", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("closest = %s, want a", results[0].ID)
	}
	if results[0].Distance != 0 {
		t.Errorf("exact match distance = %f, want 0", results[0].Distance)
	}
	if results[1].ID != "c" {
		t.Errorf("second closest = %s, want c", results[1].ID)
	}
	if results[1].Distance <= results[0].Distance {
		t.Errorf("results not ordered by ascending distance: %f then %f", results[0].Distance, results[1].Distance)
	}
}

func TestMemoryIndexDimensionMismatch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	ctx := context.Background()

	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}); err == nil {
		t.Error("Add with wrong dimension should fail")
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Error("Search with wrong dimension should fail")
	}
}

func TestMemoryIndexRemove(t *testing.T) {
	idx, err := NewMemoryIndex(2)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	ctx := context.Background()

	if err := idx.Add(ctx, []string{"a", "b", "c"}, [][]float32{{1, 0}, {0, 1}, {1, 1}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Remove(ctx, []string{"b"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if idx.Size() != 2 {
		t.Fatalf("Size after remove = %d, want 2", idx.Size())
	}
	results, err := idx.Search(ctx, []float32{0, 1}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == "b" {
			t.Error("removed ID still returned by Search")
		}
	}
}

func TestMemoryIndexSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.bin")

	idx, err := NewMemoryIndex(4)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	if err := idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 2, 3, 4}, {4, 3, 2, 1}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := NewMemoryIndex(4)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size = %d, want 2", loaded.Size())
	}
	results, err := loaded.Search(ctx, []float32{1, 2, 3, 4}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "x" {
		t.Fatalf("loaded index search returned %+v, want x", results)
	}
}

func TestMemoryIndexLoadDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.bin")

	idx, _ := NewMemoryIndex(4)
	if err := idx.Add(ctx, []string{"x"}, [][]float32{{1, 2, 3, 4}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	other, _ := NewMemoryIndex(8)
	if err := other.Load(path); err == nil {
		t.Error("Load with mismatched dimensions should fail")
	}
}

func TestMemoryIndexLoadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Load(filepath.Join(t.TempDir(), "nope.bin")); err != nil {
		t.Fatalf("Load of missing file should be a no-op, got %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size = %d, want 0", idx.Size())
	}
}
