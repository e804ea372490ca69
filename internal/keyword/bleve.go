// Package keyword provides exact-word search over entries with Bleve,
// complementing the embedding index for lookups like a habit name or a
// specific phrase.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/hyperjump/tsuzuri/internal/models"
)

// Result is one keyword search hit.
type Result struct {
	ID    string
	Score float64
}

// EntryIndex indexes entry text fields in Bleve.
type EntryIndex struct {
	index bleve.Index
}

type entryDoc struct {
	Date    string `json:"date"`
	Emotion string `json:"emotion"`
	Text    string `json:"text"`
}

// NewEntryIndex creates or opens a Bleve index at path. An existing index is
// reused; remove the directory to force a full re-index after mapping changes.
func NewEntryIndex(path string) (*EntryIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &EntryIndex{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Standard analyzer (lowercase + tokenize, no stemming) so a query for the
	// exact word the user wrote always matches.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("date", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("emotion", keywordFieldMapping)

	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &EntryIndex{index: index}, nil
}

// Index adds or updates an entry.
func (b *EntryIndex) Index(ctx context.Context, entry *models.Entry) error {
	return b.index.Index(entry.ID, entryDoc{
		Date:    entry.Date(),
		Emotion: entry.Emotion,
		Text:    entry.SearchText(),
	})
}

// Remove deletes an entry from the index.
func (b *EntryIndex) Remove(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Search runs a match query over entry text and returns up to limit hits,
// best first.
func (b *EntryIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Count returns the number of indexed entries.
func (b *EntryIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Close releases the index.
func (b *EntryIndex) Close() error {
	return b.index.Close()
}
