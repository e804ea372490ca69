package summary

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tsuzuri/internal/journal"
	"github.com/hyperjump/tsuzuri/internal/models"
	"github.com/hyperjump/tsuzuri/internal/storage"
)

// IndexRemover removes entries from the embedding index by ID.
type IndexRemover interface {
	RemoveEntry(ctx context.Context, id string) error
}

// Archiver prunes data older than the retention window. Entries plus their
// weekly and monthly summaries are deleted; yearly summaries are kept forever
// as the long-term record.
type Archiver struct {
	entries   *journal.FileStore
	store     *storage.SQLiteStore
	index     IndexRemover
	retention time.Duration
	logger    *zap.Logger
}

// NewArchiver creates an archiver with the given retention window. index may
// be nil when no embedding index is maintained.
func NewArchiver(entries *journal.FileStore, store *storage.SQLiteStore, index IndexRemover, retention time.Duration, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		entries:   entries,
		store:     store,
		index:     index,
		retention: retention,
		logger:    logger,
	}
}

// Run deletes entries and sub-yearly summaries older than the retention
// cutoff. It returns the number of entries removed.
func (a *Archiver) Run(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-a.retention)

	all, err := a.entries.List()
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	removed := 0
	for _, e := range all {
		if !e.CreatedAt.Before(cutoff) {
			continue
		}
		if a.index != nil {
			if err := a.index.RemoveEntry(ctx, e.ID); err != nil {
				return removed, fmt.Errorf("deindex entry %s: %w", e.ID, err)
			}
		}
		if err := a.entries.Delete(e.ID); err != nil {
			return removed, err
		}
		removed++
	}

	if err := a.store.DeleteSummariesBefore(ctx, models.PeriodWeekly, cutoff); err != nil {
		return removed, fmt.Errorf("prune weekly summaries: %w", err)
	}
	if err := a.store.DeleteSummariesBefore(ctx, models.PeriodMonthly, cutoff); err != nil {
		return removed, fmt.Errorf("prune monthly summaries: %w", err)
	}

	a.logger.Info("archive pass complete",
		zap.Time("cutoff", cutoff),
		zap.Int("entries_removed", removed))
	return removed, nil
}
