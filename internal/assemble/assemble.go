// Package assemble builds the bounded textual context fed to the language
// model: recent raw entries, retrieved mid-window entries, then summaries.
package assemble

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tsuzuri/internal/index"
	"github.com/hyperjump/tsuzuri/internal/journal"
	"github.com/hyperjump/tsuzuri/internal/models"
	"github.com/hyperjump/tsuzuri/internal/storage"
	"github.com/hyperjump/tsuzuri/pkg/utils"
)

// UnitKind distinguishes raw entries from summaries in the assembled context.
type UnitKind string

const (
	UnitEntry   UnitKind = "entry"
	UnitSummary UnitKind = "summary"
)

// Unit is one self-contained block of context with its provenance.
type Unit struct {
	Kind     UnitKind
	SourceID string
	Date     string
	Text     string
}

// Context is the assembled, budget-bounded input for generation. EntryIDs
// lists the raw entries present so evidence citations can be validated
// against them.
type Context struct {
	Units    []Unit
	EntryIDs []string
}

// Empty reports whether nothing at all was eligible for inclusion.
func (c *Context) Empty() bool {
	return len(c.Units) == 0
}

// Render joins the units into the prompt text.
func (c *Context) Render() string {
	parts := make([]string, len(c.Units))
	for i, u := range c.Units {
		parts[i] = u.Text
	}
	return strings.Join(parts, "\n\n")
}

// Options are the assembly policy knobs.
type Options struct {
	RecentWindowDays int // raw entries younger than this are always candidates
	ArchiveAfterDays int // entries older than this appear only via summaries
	CharBudget       int // hard ceiling on rendered context length
	MaxSummaries     int
	RetrievalK       int
}

// Assembler mixes retrieval results with summaries under a character budget.
type Assembler struct {
	index   *index.EmbeddingIndex
	entries *journal.FileStore
	store   *storage.SQLiteStore
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// New creates an assembler. idx may be nil; free-form queries then skip the
// retrieval tier and use recency only.
func New(idx *index.EmbeddingIndex, entries *journal.FileStore, store *storage.SQLiteStore, opts Options, options ...Option) *Assembler {
	a := &Assembler{
		index:   idx,
		entries: entries,
		store:   store,
		opts:    opts,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// ForQuery assembles context for a free-form question: recent entries in full,
// then embedding-retrieved entries from the mid window, then summaries.
func (a *Assembler) ForQuery(ctx context.Context, query string) (*Context, error) {
	now := a.now()
	recentCutoff := now.AddDate(0, 0, -a.opts.RecentWindowDays)
	archiveCutoff := now.AddDate(0, 0, -a.opts.ArchiveAfterDays)

	var units []Unit
	seen := make(map[string]bool)

	recent, err := a.recentEntries(recentCutoff, now)
	if err != nil {
		return nil, err
	}
	for _, e := range recent {
		units = append(units, entryUnit(e))
		seen[e.ID] = true
	}

	if a.index != nil {
		hits, err := a.index.Search(ctx, query, a.opts.RetrievalK)
		if err != nil {
			return nil, fmt.Errorf("retrieve context: %w", err)
		}
		for _, hit := range hits {
			e := hit.Entry
			if seen[e.ID] {
				continue
			}
			// Archived entries are represented only by their summaries.
			if e.CreatedAt.Before(archiveCutoff) {
				continue
			}
			units = append(units, entryUnit(e))
			seen[e.ID] = true
		}
	}

	sums, err := a.querySummaries(ctx, query)
	if err != nil {
		return nil, err
	}
	for _, s := range sums {
		units = append(units, summaryUnit(s))
	}

	return a.bound(units), nil
}

// ForInsight assembles the daily-open context: the last recent-window days of
// entries plus the latest weekly and monthly summaries. No embedding search.
func (a *Assembler) ForInsight(ctx context.Context) (*Context, error) {
	now := a.now()
	recentCutoff := now.AddDate(0, 0, -a.opts.RecentWindowDays)

	var units []Unit
	recent, err := a.recentEntries(recentCutoff, now)
	if err != nil {
		return nil, err
	}
	for _, e := range recent {
		units = append(units, entryUnit(e))
	}

	sums, err := a.latestSummaries(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range sums {
		units = append(units, summaryUnit(s))
	}

	return a.bound(units), nil
}

// recentEntries returns entries in [cutoff, now], most recent first.
func (a *Assembler) recentEntries(cutoff, now time.Time) ([]*models.Entry, error) {
	entries, err := a.entries.ListRange(cutoff, now.Add(time.Second))
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// latestSummaries returns up to MaxSummaries summaries, most recent period
// first, preferring finer granularity (weekly before monthly before yearly).
func (a *Assembler) latestSummaries(ctx context.Context) ([]*models.Summary, error) {
	var out []*models.Summary
	for _, kind := range []models.PeriodKind{models.PeriodWeekly, models.PeriodMonthly, models.PeriodYearly} {
		sums, err := a.store.ListSummaries(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s summaries: %w", kind, err)
		}
		// Newest first within each kind.
		for i := len(sums) - 1; i >= 0 && len(out) < a.opts.MaxSummaries; i-- {
			out = append(out, sums[i])
		}
		if len(out) >= a.opts.MaxSummaries {
			break
		}
	}
	return out, nil
}

// querySummaries returns up to MaxSummaries summaries ranked by term overlap
// with the query. When no summary matches any query term, it falls back to
// the latest summaries so the context is never summary-free for no reason.
func (a *Assembler) querySummaries(ctx context.Context, query string) ([]*models.Summary, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return a.latestSummaries(ctx)
	}

	type scored struct {
		sum   *models.Summary
		score int
	}
	var candidates []scored
	for _, kind := range []models.PeriodKind{models.PeriodWeekly, models.PeriodMonthly, models.PeriodYearly} {
		sums, err := a.store.ListSummaries(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s summaries: %w", kind, err)
		}
		for _, s := range sums {
			text := strings.ToLower(s.Narrative)
			score := 0
			for _, term := range terms {
				if strings.Contains(text, term) {
					score++
				}
			}
			if score > 0 {
				candidates = append(candidates, scored{sum: s, score: score})
			}
		}
	}
	if len(candidates) == 0 {
		return a.latestSummaries(ctx)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].sum.PeriodStart.After(candidates[j].sum.PeriodStart)
	})
	n := a.opts.MaxSummaries
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]*models.Summary, 0, n)
	for _, c := range candidates[:n] {
		out = append(out, c.sum)
	}
	return out, nil
}

// queryTerms extracts the meaningful lowercase words of a query. Very short
// words carry no signal for overlap scoring and are dropped.
func queryTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?\"'()")
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// bound enforces the character budget by dropping whole units from the tail.
// A unit is never cut mid-record.
func (a *Assembler) bound(units []Unit) *Context {
	c := &Context{}
	total := 0
	for _, u := range units {
		cost := len(u.Text)
		if len(c.Units) > 0 {
			cost += 2 // joining newlines
		}
		if total+cost > a.opts.CharBudget {
			break
		}
		total += cost
		c.Units = append(c.Units, u)
		if u.Kind == UnitEntry {
			c.EntryIDs = append(c.EntryIDs, u.SourceID)
		}
	}
	a.logger.Debug("context assembled",
		zap.Int("units", len(c.Units)),
		zap.Int("dropped", len(units)-len(c.Units)),
		zap.Int("chars", total))
	return c
}

func entryUnit(e *models.Entry) Unit {
	var b strings.Builder
	fmt.Fprintf(&b, "Entry from %s (%s):\n", e.Date(), e.ID)
	fmt.Fprintf(&b, "  Emotion: %s\n  Energy: %d\n  Showed up: %t", e.Emotion, e.Energy, e.ShowedUp)
	if e.FreeText != "" {
		fmt.Fprintf(&b, "\n  Note: %s", e.FreeText)
	}
	if e.Reflection != "" {
		fmt.Fprintf(&b, "\n  Reflection: %s", utils.Truncate(e.Reflection, 200))
	}
	return Unit{Kind: UnitEntry, SourceID: e.ID, Date: e.Date(), Text: b.String()}
}

func summaryUnit(s *models.Summary) Unit {
	var b strings.Builder
	fmt.Fprintf(&b, "%s summary %s to %s (%s):\n", capitalize(string(s.PeriodKind)),
		s.PeriodStart.Format("2006-01-02"), s.PeriodEnd.Format("2006-01-02"), s.Key())
	fmt.Fprintf(&b, "  Entries: %d, avg energy %.1f, showed up %.0f%%",
		s.Stats.EntryCount, s.Stats.AvgEnergy, s.Stats.ShowedUpRate*100)
	if s.Narrative != "" {
		fmt.Fprintf(&b, "\n  %s", s.Narrative)
	}
	return Unit{Kind: UnitSummary, SourceID: s.Key(), Date: s.PeriodStart.Format("2006-01-02"), Text: b.String()}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
