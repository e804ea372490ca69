// Package vector provides an in-memory vector index with nearest-neighbor search.
package vector

import "context"

// Index defines vector storage and nearest-neighbor search. IDs are entry IDs.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns the k nearest vectors by Euclidean distance, closest first.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
}

// Result is a single nearest-neighbor hit.
type Result struct {
	ID       string
	Distance float64
}
