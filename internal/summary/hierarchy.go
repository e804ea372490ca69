package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tsuzuri/internal/journal"
	"github.com/hyperjump/tsuzuri/internal/llm"
	"github.com/hyperjump/tsuzuri/internal/models"
	"github.com/hyperjump/tsuzuri/internal/storage"
	"github.com/hyperjump/tsuzuri/pkg/utils"
)

// minEntriesForNarrative is the floor below which a period gets a canned
// insufficient-data narrative instead of an LLM call.
const minEntriesForNarrative = 3

const narrativeSystem = "You are a gentle, supportive personal coach analyzing journal data. " +
	"Use only the context provided. Be specific and neutral."

// Hierarchy generates the weekly -> monthly -> yearly summary chain. Only
// fully elapsed periods are summarized; a roll-up reads one level down, never
// raw entries for monthly and yearly.
type Hierarchy struct {
	entries *journal.FileStore
	store   *storage.SQLiteStore
	gateway *llm.Gateway
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Hierarchy) { h.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Hierarchy) { h.now = now }
}

// NewHierarchy creates the summary hierarchy. gateway may be nil; narratives
// are then stored as placeholders.
func NewHierarchy(entries *journal.FileStore, store *storage.SQLiteStore, gateway *llm.Gateway, opts ...Option) *Hierarchy {
	h := &Hierarchy{
		entries: entries,
		store:   store,
		gateway: gateway,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GenerateWeekly summarizes the week starting at weekStart (Monday 00:00).
// The summary is upserted so regeneration is safe. A week with no entries
// gets no summary row at all.
func (h *Hierarchy) GenerateWeekly(ctx context.Context, weekStart time.Time) (*models.Summary, error) {
	weekEnd := weekStart.AddDate(0, 0, 7)
	entries, err := h.entries.ListRange(weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("list week entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	sum := &models.Summary{
		PeriodKind:  models.PeriodWeekly,
		PeriodStart: weekStart,
		PeriodEnd:   weekEnd,
		Stats:       ComputeStats(entries),
		CreatedAt:   h.now(),
	}
	for _, e := range entries {
		sum.SourceIDs = append(sum.SourceIDs, e.ID)
	}

	if len(entries) < minEntriesForNarrative {
		sum.Narrative = "Insufficient data to make a confident conclusion about weekly patterns. Continue journaling to build a clearer picture."
		sum.NarrativeGenerated = true
	} else {
		h.fillNarrative(ctx, sum, weeklyPrompt(entries))
	}

	if err := h.store.UpsertSummary(ctx, sum); err != nil {
		return nil, fmt.Errorf("store weekly summary: %w", err)
	}
	h.logger.Info("weekly summary generated",
		zap.String("week", weekStart.Format("2006-01-02")),
		zap.Int("entries", sum.Stats.EntryCount),
		zap.Bool("narrative_generated", sum.NarrativeGenerated))
	return sum, nil
}

// GenerateMonthly folds the month's weekly summaries into a monthly one.
// Weeks are attributed to the month containing their start day.
func (h *Hierarchy) GenerateMonthly(ctx context.Context, monthStart time.Time) (*models.Summary, error) {
	return h.generateRollup(ctx, models.PeriodMonthly, models.PeriodWeekly, monthStart, monthStart.AddDate(0, 1, 0))
}

// GenerateYearly folds the year's monthly summaries into a yearly one.
func (h *Hierarchy) GenerateYearly(ctx context.Context, yearStart time.Time) (*models.Summary, error) {
	return h.generateRollup(ctx, models.PeriodYearly, models.PeriodMonthly, yearStart, yearStart.AddDate(1, 0, 0))
}

func (h *Hierarchy) generateRollup(ctx context.Context, kind, childKind models.PeriodKind, start, end time.Time) (*models.Summary, error) {
	children, err := h.store.ListSummariesInRange(ctx, childKind, start, end)
	if err != nil {
		return nil, fmt.Errorf("list %s summaries: %w", childKind, err)
	}
	if len(children) == 0 {
		return nil, nil
	}

	sum := &models.Summary{
		PeriodKind:  kind,
		PeriodStart: start,
		PeriodEnd:   end,
		Stats:       AggregateChildren(children),
		CreatedAt:   h.now(),
	}
	for _, child := range children {
		sum.SourceIDs = append(sum.SourceIDs, child.Key())
	}

	if sum.Stats.EntryCount < minEntriesForNarrative {
		sum.Narrative = fmt.Sprintf("Insufficient data to make a confident conclusion about %s patterns. Continue journaling to build a clearer picture.", kind)
		sum.NarrativeGenerated = true
	} else {
		h.fillNarrative(ctx, sum, rollupPrompt(kind, children))
	}

	if err := h.store.UpsertSummary(ctx, sum); err != nil {
		return nil, fmt.Errorf("store %s summary: %w", kind, err)
	}
	h.logger.Info("summary rolled up",
		zap.String("kind", string(kind)),
		zap.String("period", start.Format("2006-01-02")),
		zap.Int("children", sum.Stats.ChildCount))
	return sum, nil
}

// fillNarrative asks the gateway for a narrative; on any failure it stores the
// placeholder and marks the summary for retry on the next roll-up run.
func (h *Hierarchy) fillNarrative(ctx context.Context, sum *models.Summary, prompt string) {
	if h.gateway == nil {
		sum.Narrative = models.PlaceholderNarrative
		sum.NarrativeGenerated = false
		return
	}
	resp, err := h.gateway.Generate(ctx, &llm.Request{
		System:      narrativeSystem,
		Prompt:      prompt,
		MaxTokens:   256,
		Temperature: 0.2,
	})
	if err != nil {
		h.logger.Warn("narrative generation failed, storing placeholder",
			zap.String("period", sum.Key()), zap.Error(err))
		sum.Narrative = models.PlaceholderNarrative
		sum.NarrativeGenerated = false
		return
	}
	sum.Narrative = strings.TrimSpace(resp.Text)
	sum.NarrativeGenerated = true
}

// RunDue generates any summaries for completed periods that are missing, and
// retries narratives that were stored as placeholders. Every closed period
// from the oldest entry forward is checked, so coverage has no gaps even
// after downtime.
func (h *Hierarchy) RunDue(ctx context.Context) error {
	now := h.now()
	all, err := h.entries.List()
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	if len(all) == 0 {
		return nil
	}
	oldest := all[len(all)-1].CreatedAt

	for ws := WeekStart(oldest); !ws.AddDate(0, 0, 7).After(now); ws = ws.AddDate(0, 0, 7) {
		week := ws
		if err := h.ensure(ctx, models.PeriodWeekly, week, func() error {
			_, err := h.GenerateWeekly(ctx, week)
			return err
		}); err != nil {
			return err
		}
	}

	for ms := MonthStart(oldest); !ms.AddDate(0, 1, 0).After(now); ms = ms.AddDate(0, 1, 0) {
		month := ms
		if err := h.ensure(ctx, models.PeriodMonthly, month, func() error {
			_, err := h.GenerateMonthly(ctx, month)
			return err
		}); err != nil {
			return err
		}
	}

	for ys := YearStart(oldest); !ys.AddDate(1, 0, 0).After(now); ys = ys.AddDate(1, 0, 0) {
		year := ys
		if err := h.ensure(ctx, models.PeriodYearly, year, func() error {
			_, err := h.GenerateYearly(ctx, year)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hierarchy) ensure(ctx context.Context, kind models.PeriodKind, start time.Time, generate func() error) error {
	existing, err := h.store.GetSummary(ctx, kind, start)
	if err != nil {
		return err
	}
	if existing != nil && existing.NarrativeGenerated {
		return nil
	}
	return generate()
}

func weeklyPrompt(entries []*models.Entry) string {
	var b strings.Builder
	b.WriteString("Context from journal entries:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "Entry from %s (%s):\n", e.Date(), e.ID)
		fmt.Fprintf(&b, "  Emotion: %s\n  Energy: %d\n  Showed up: %t\n", e.Emotion, e.Energy, e.ShowedUp)
		if e.FreeText != "" {
			fmt.Fprintf(&b, "  Note: %s\n", e.FreeText)
		}
		if e.Reflection != "" {
			fmt.Fprintf(&b, "  Reflection: %s\n", utils.Truncate(e.Reflection, 200))
		}
	}
	b.WriteString("\nAnalyze the patterns from this week and write a short narrative: ")
	b.WriteString("what went well, what was hard, and one pattern worth noticing. Cite entry ids.")
	return b.String()
}

func rollupPrompt(kind models.PeriodKind, children []*models.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Context from %s summaries:\n", children[0].PeriodKind)
	for _, child := range children {
		fmt.Fprintf(&b, "Period %s to %s: %d entries, avg energy %.1f, showed up %.0f%%. %s\n",
			child.PeriodStart.Format("2006-01-02"), child.PeriodEnd.Format("2006-01-02"),
			child.Stats.EntryCount, child.Stats.AvgEnergy, child.Stats.ShowedUpRate*100,
			child.Narrative)
	}
	fmt.Fprintf(&b, "\nWrite a short %s narrative: the overall arc, recurring patterns, and one thing to carry forward.", kind)
	return b.String()
}
