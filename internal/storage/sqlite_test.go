package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/tsuzuri/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func weekSummary(start time.Time, entryCount int) *models.Summary {
	return &models.Summary{
		PeriodKind:  models.PeriodWeekly,
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 0, 7),
		Stats: models.AggregateStats{
			EntryCount:   entryCount,
			AvgEnergy:    6.2,
			ShowedUpRate: 0.8,
		},
		Narrative:          "a solid week",
		NarrativeGenerated: true,
		SourceIDs:          []string{"e1", "e2"},
	}
}

func TestSummaryUpsertGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if err := store.UpsertSummary(ctx, weekSummary(start, 5)); err != nil {
		t.Fatalf("UpsertSummary: %v", err)
	}

	got, err := store.GetSummary(ctx, models.PeriodWeekly, start)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if got == nil {
		t.Fatal("GetSummary returned nil")
	}
	if got.Stats.EntryCount != 5 || got.Narrative != "a solid week" {
		t.Errorf("got %+v", got)
	}
	if len(got.SourceIDs) != 2 {
		t.Errorf("SourceIDs = %v", got.SourceIDs)
	}

	// Upsert replaces in place.
	updated := weekSummary(start, 7)
	updated.Narrative = "revised"
	if err := store.UpsertSummary(ctx, updated); err != nil {
		t.Fatalf("UpsertSummary (update): %v", err)
	}
	got, err = store.GetSummary(ctx, models.PeriodWeekly, start)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if got.Stats.EntryCount != 7 || got.Narrative != "revised" {
		t.Errorf("after update: %+v", got)
	}
}

func TestGetSummaryMissing(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetSummary(context.Background(), models.PeriodWeekly, time.Now())
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing summary, got %+v", got)
	}
}

func TestListSummariesOrderAndRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	starts := []time.Time{
		time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
	}
	for _, start := range starts {
		if err := store.UpsertSummary(ctx, weekSummary(start, 3)); err != nil {
			t.Fatalf("UpsertSummary: %v", err)
		}
	}

	all, err := store.ListSummaries(ctx, models.PeriodWeekly)
	if err != nil {
		t.Fatalf("ListSummaries: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListSummaries returned %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].PeriodStart.Before(all[i-1].PeriodStart) {
			t.Errorf("summaries not in ascending order")
		}
	}

	ranged, err := store.ListSummariesInRange(ctx, models.PeriodWeekly,
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListSummariesInRange: %v", err)
	}
	if len(ranged) != 2 {
		t.Errorf("range returned %d summaries, want 2", len(ranged))
	}
}

func TestDeleteSummariesBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for _, start := range []time.Time{old, recent} {
		if err := store.UpsertSummary(ctx, weekSummary(start, 3)); err != nil {
			t.Fatalf("UpsertSummary: %v", err)
		}
	}
	if err := store.DeleteSummariesBefore(ctx, models.PeriodWeekly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("DeleteSummariesBefore: %v", err)
	}
	all, err := store.ListSummaries(ctx, models.PeriodWeekly)
	if err != nil {
		t.Fatalf("ListSummaries: %v", err)
	}
	if len(all) != 1 || !all[0].PeriodStart.Equal(recent) {
		t.Errorf("after delete: %d summaries", len(all))
	}
}

func TestInsightPutGetPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ins := &models.Insight{
		Date:   "2025-06-10",
		Status: models.InsightReady,
		Answer: models.StructuredAnswer{
			Verdict:    "You kept momentum this week.",
			Confidence: 0.8,
			Evidence:   []models.Evidence{{Text: "ran twice", SourceEntryID: "e1"}},
		},
		GeneratedAt: time.Now(),
	}
	if err := store.PutInsight(ctx, ins); err != nil {
		t.Fatalf("PutInsight: %v", err)
	}

	got, err := store.GetInsight(ctx, "2025-06-10")
	if err != nil {
		t.Fatalf("GetInsight: %v", err)
	}
	if got == nil || got.Status != models.InsightReady {
		t.Fatalf("GetInsight = %+v", got)
	}
	if len(got.Answer.Evidence) != 1 || got.Answer.Evidence[0].SourceEntryID != "e1" {
		t.Errorf("answer round trip lost evidence: %+v", got.Answer)
	}

	missing, err := store.GetInsight(ctx, "2025-06-11")
	if err != nil {
		t.Fatalf("GetInsight: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing date")
	}

	if err := store.DeleteInsightsBefore(ctx, "2025-06-11"); err != nil {
		t.Fatalf("DeleteInsightsBefore: %v", err)
	}
	got, err = store.GetInsight(ctx, "2025-06-10")
	if err != nil {
		t.Fatalf("GetInsight: %v", err)
	}
	if got != nil {
		t.Errorf("old insight should be pruned")
	}
}

func TestActionItemCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := &models.ActionItem{ID: "a1", Text: "schedule morning runs", Source: "insight"}
	if err := store.CreateActionItem(ctx, item); err != nil {
		t.Fatalf("CreateActionItem: %v", err)
	}

	got, err := store.GetActionItem(ctx, "a1")
	if err != nil {
		t.Fatalf("GetActionItem: %v", err)
	}
	if got.Text != "schedule morning runs" || got.Done {
		t.Errorf("got %+v", got)
	}

	now := time.Now()
	got.Done = true
	got.CompletedAt = &now
	if err := store.UpdateActionItem(ctx, got); err != nil {
		t.Fatalf("UpdateActionItem: %v", err)
	}

	open, err := store.ListActionItems(ctx, true)
	if err != nil {
		t.Fatalf("ListActionItems: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open items = %d, want 0", len(open))
	}
	all, err := store.ListActionItems(ctx, false)
	if err != nil {
		t.Fatalf("ListActionItems: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("all items = %d, want 1", len(all))
	}

	if err := store.DeleteActionItem(ctx, "a1"); err != nil {
		t.Fatalf("DeleteActionItem: %v", err)
	}
	if _, err := store.GetActionItem(ctx, "a1"); err == nil {
		t.Error("GetActionItem after delete should fail")
	}

	if err := store.UpdateActionItem(ctx, &models.ActionItem{ID: "nope"}); err == nil {
		t.Error("UpdateActionItem of missing item should fail")
	}
}
