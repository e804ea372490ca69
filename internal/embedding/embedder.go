// Package embedding provides text embedding via ONNX and caching.
package embedding

import (
	"context"
	"errors"
)

// ErrModelUnavailable indicates the embedding backend could not be loaded.
// Index builds fail fast on it; serving continues from a previously built index.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelName identifies the loaded model; it is recorded in index metadata
	// so a rebuilt index is never silently served under a different model.
	ModelName() string
	Close() error
}
