// Package index maintains the embedding index over journal entries.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tsuzuri/internal/embedding"
	"github.com/hyperjump/tsuzuri/internal/journal"
	"github.com/hyperjump/tsuzuri/internal/models"
	"github.com/hyperjump/tsuzuri/internal/vector"
)

// ErrModelMismatch means the persisted index was built by a different embedding
// model (or dimension) than the one configured. The index must be rebuilt; it is
// never served with mixed vector spaces.
var ErrModelMismatch = errors.New("index was built with a different embedding model")

// Metadata describes the embedding space a persisted index was built in.
type Metadata struct {
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Count      int       `json:"count"`
	BuiltAt    time.Time `json:"built_at"`
}

// Hit is one search result: the entry plus its distance from the query.
type Hit struct {
	Entry    *models.Entry
	Distance float64
}

// EmbeddingIndex embeds entry text and serves nearest-neighbor lookups. All
// mutation goes through it so vectors and entry files cannot drift apart.
type EmbeddingIndex struct {
	embedder   embedding.Embedder
	store      *journal.FileStore
	vectorPath string
	logger     *zap.Logger

	mu      sync.RWMutex
	vectors *vector.MemoryIndex
}

// Option configures an EmbeddingIndex.
type Option func(*EmbeddingIndex)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(idx *EmbeddingIndex) { idx.logger = l }
}

// New creates an embedding index. vectorPath is where the index persists; pass
// "" for a purely in-memory index.
func New(embedder embedding.Embedder, store *journal.FileStore, vectorPath string, opts ...Option) (*EmbeddingIndex, error) {
	vectors, err := vector.NewMemoryIndex(embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	idx := &EmbeddingIndex{
		embedder:   embedder,
		store:      store,
		vectorPath: vectorPath,
		vectors:    vectors,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

func (idx *EmbeddingIndex) metaPath() string {
	if idx.vectorPath == "" {
		return ""
	}
	return idx.vectorPath + ".meta.json"
}

// Load restores the persisted index. A missing file leaves the index empty.
// A metadata mismatch with the configured embedder returns ErrModelMismatch;
// callers respond by rebuilding.
func (idx *EmbeddingIndex) Load(ctx context.Context) error {
	if idx.vectorPath == "" {
		return nil
	}
	meta, err := idx.readMetadata()
	if err != nil {
		return err
	}
	if meta != nil {
		if meta.Model != idx.embedder.ModelName() || meta.Dimensions != idx.embedder.Dimensions() {
			return fmt.Errorf("%w: index built with %s/%d, configured %s/%d",
				ErrModelMismatch, meta.Model, meta.Dimensions, idx.embedder.ModelName(), idx.embedder.Dimensions())
		}
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.vectors.Load(idx.vectorPath); err != nil {
		return fmt.Errorf("load vector index: %w", err)
	}
	idx.logger.Info("embedding index loaded",
		zap.String("path", idx.vectorPath),
		zap.Int("vectors", idx.vectors.Size()))
	return nil
}

func (idx *EmbeddingIndex) readMetadata() (*Metadata, error) {
	path := idx.metaPath()
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read index metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse index metadata: %w", err)
	}
	return &meta, nil
}

func (idx *EmbeddingIndex) writeMetadata(count int) error {
	path := idx.metaPath()
	if path == "" {
		return nil
	}
	meta := Metadata{
		Model:      idx.embedder.ModelName(),
		Dimensions: idx.embedder.Dimensions(),
		Count:      count,
		BuiltAt:    time.Now(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexEntry embeds the entry's search text and adds it to the index,
// replacing any previous vector for the same ID.
func (idx *EmbeddingIndex) IndexEntry(ctx context.Context, entry *models.Entry) error {
	emb, err := idx.embedder.Embed(ctx, entry.SearchText())
	if err != nil {
		return fmt.Errorf("embed entry %s: %w", entry.ID, err)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.vectors.Remove(ctx, []string{entry.ID}); err != nil {
		return err
	}
	if err := idx.vectors.Add(ctx, []string{entry.ID}, [][]float32{emb}); err != nil {
		return err
	}
	idx.logger.Debug("entry indexed", zap.String("entry_id", entry.ID))
	return nil
}

// RemoveEntry drops the entry's vector from the index.
func (idx *EmbeddingIndex) RemoveEntry(ctx context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.vectors.Remove(ctx, []string{id})
}

// Rebuild re-embeds every stored entry into a fresh index and swaps it in
// atomically. Searches during a rebuild are served from the old index.
// Rebuilding the same corpus twice yields the same search results.
func (idx *EmbeddingIndex) Rebuild(ctx context.Context) (int, error) {
	entries, err := idx.store.List()
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}

	fresh, err := vector.NewMemoryIndex(idx.embedder.Dimensions())
	if err != nil {
		return 0, err
	}
	start := time.Now()
	for _, entry := range entries {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		emb, err := idx.embedder.Embed(ctx, entry.SearchText())
		if err != nil {
			return 0, fmt.Errorf("embed entry %s: %w", entry.ID, err)
		}
		if err := fresh.Add(ctx, []string{entry.ID}, [][]float32{emb}); err != nil {
			return 0, err
		}
	}

	idx.mu.Lock()
	idx.vectors = fresh
	idx.mu.Unlock()

	if err := idx.persist(); err != nil {
		return fresh.Size(), err
	}
	idx.logger.Info("embedding index rebuilt",
		zap.Int("entries", fresh.Size()),
		zap.Duration("took", time.Since(start)))
	return fresh.Size(), nil
}

// Search embeds the query and returns up to k entries ordered by ascending
// distance, most recent first among equal distances. Entries whose file has
// disappeared since indexing are skipped.
func (idx *EmbeddingIndex) Search(ctx context.Context, query string, k int) ([]*Hit, error) {
	emb, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	idx.mu.RLock()
	vectors := idx.vectors
	idx.mu.RUnlock()

	results, err := vectors.Search(ctx, emb, k)
	if err != nil {
		return nil, err
	}
	hits := make([]*Hit, 0, len(results))
	for _, r := range results {
		entry, err := idx.store.Get(r.ID)
		if err != nil {
			idx.logger.Warn("indexed entry missing from store", zap.String("entry_id", r.ID))
			continue
		}
		hits = append(hits, &Hit{Entry: entry, Distance: r.Distance})
	}
	// The backing index returns equal distances in insertion order, which
	// would rank incrementally added entries last.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Entry.CreatedAt.After(hits[j].Entry.CreatedAt)
	})
	return hits, nil
}

// Save persists the current index and its metadata.
func (idx *EmbeddingIndex) Save() error {
	return idx.persist()
}

func (idx *EmbeddingIndex) persist() error {
	if idx.vectorPath == "" {
		return nil
	}
	idx.mu.RLock()
	vectors := idx.vectors
	idx.mu.RUnlock()
	if err := vectors.Save(idx.vectorPath); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	if err := idx.writeMetadata(vectors.Size()); err != nil {
		return fmt.Errorf("save index metadata: %w", err)
	}
	return nil
}

// Size returns the number of indexed entries.
func (idx *EmbeddingIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.vectors.Size()
}
