// Package insight serves the daily on-open reflection: cached per calendar
// day, generated asynchronously, and always answering instantly from stats
// while the model works.
package insight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tsuzuri/internal/answer"
	"github.com/hyperjump/tsuzuri/internal/assemble"
	"github.com/hyperjump/tsuzuri/internal/journal"
	"github.com/hyperjump/tsuzuri/internal/llm"
	"github.com/hyperjump/tsuzuri/internal/models"
	"github.com/hyperjump/tsuzuri/internal/storage"
	"github.com/hyperjump/tsuzuri/internal/summary"
)

// Cache is the daily insight state machine. A day's record moves
// absent -> pending -> ready or fallback; only a force refresh can move a
// resolved record back to pending, and at most one non-forced generation
// starts per calendar day.
type Cache struct {
	store     *storage.SQLiteStore
	assembler *assemble.Assembler
	gateway   *llm.Gateway
	entries   *journal.FileStore

	maxTokens    int
	pollInterval time.Duration
	maxPolls     int

	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	jobID string // outstanding generation job for the current day

	openMu sync.Mutex // serializes OnOpen's check-then-start
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithPollBudget sets the poll interval and attempt cap. The product bounds
// how long a pending insight can stay unresolved.
func WithPollBudget(interval time.Duration, maxPolls int) Option {
	return func(c *Cache) {
		c.pollInterval = interval
		c.maxPolls = maxPolls
	}
}

// NewCache creates the insight cache.
func NewCache(store *storage.SQLiteStore, assembler *assemble.Assembler, gateway *llm.Gateway, entries *journal.FileStore, maxTokens int, opts ...Option) *Cache {
	c := &Cache{
		store:        store,
		assembler:    assembler,
		gateway:      gateway,
		entries:      entries,
		maxTokens:    maxTokens,
		pollInterval: 5 * time.Second,
		maxPolls:     24,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnOpen returns today's insight, starting generation when needed. It always
// returns immediately: while generation is outstanding the answer is the
// previous content (after a force refresh) or a stats-only fallback, with
// LLMProcessing set.
func (c *Cache) OnOpen(ctx context.Context, force bool) (*models.Insight, error) {
	// Serialized so that concurrent opens on a fresh day cannot both miss the
	// cache and start duplicate generations.
	c.openMu.Lock()
	defer c.openMu.Unlock()

	today := c.now().Format("2006-01-02")

	// Only the current day's record is retained.
	if err := c.store.DeleteInsightsBefore(ctx, today); err != nil {
		return nil, fmt.Errorf("prune insights: %w", err)
	}

	existing, err := c.store.GetInsight(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("load insight: %w", err)
	}
	if existing != nil && !force {
		// Cache hit: a record for today, whatever its state, means no new
		// generation starts without an explicit force.
		return existing, nil
	}

	assembled, err := c.assembler.ForInsight(ctx)
	if err != nil {
		return nil, fmt.Errorf("assemble insight context: %w", err)
	}

	record := &models.Insight{
		Date:        today,
		GeneratedAt: c.now(),
	}
	if existing != nil {
		// Force refresh: the previous content stays visible while the new
		// generation is outstanding.
		record.Answer = existing.Answer
	} else {
		record.Answer = c.statsFallback()
	}

	if assembled.Empty() {
		record.Status = models.InsightFallback
		record.Answer = answer.InsufficientData()
		record.LLMProcessing = false
		if err := c.store.PutInsight(ctx, record); err != nil {
			return nil, err
		}
		return record, nil
	}

	jobID := c.gateway.GenerateAsync(&llm.Request{
		System:      answer.SystemPrompt,
		Prompt:      answer.BuildInsightPrompt(assembled),
		MaxTokens:   c.maxTokens,
		Temperature: 0.2,
	})

	c.mu.Lock()
	if c.jobID != "" {
		// A force refresh supersedes the outstanding job.
		c.gateway.Discard(c.jobID)
	}
	c.jobID = jobID
	c.mu.Unlock()

	record.Status = models.InsightPending
	record.LLMProcessing = true
	if err := c.store.PutInsight(ctx, record); err != nil {
		return nil, err
	}

	go c.await(jobID, today, assembled.EntryIDs)
	c.logger.Info("insight generation started",
		zap.String("date", today), zap.Bool("force", force), zap.String("job_id", jobID))
	return record, nil
}

// await polls the generation job within the poll budget, then resolves the
// day's record to ready or fallback.
func (c *Cache) await(jobID, date string, contextEntryIDs []string) {
	for i := 0; i < c.maxPolls; i++ {
		time.Sleep(c.pollInterval)

		c.mu.Lock()
		superseded := c.jobID != jobID
		c.mu.Unlock()
		if superseded {
			return
		}

		job, err := c.gateway.Poll(jobID)
		if err != nil {
			// Discarded by a force refresh between our check and the poll.
			return
		}
		switch job.Status {
		case llm.JobPending:
			continue
		case llm.JobReady:
			parsed := answer.Parse(job.Response.Text, contextEntryIDs)
			c.resolve(jobID, date, models.InsightReady, &parsed)
			return
		case llm.JobFailed:
			c.logger.Warn("insight generation failed",
				zap.String("date", date), zap.Error(job.Err))
			c.resolve(jobID, date, models.InsightFallback, nil)
			return
		}
	}
	// Poll budget exhausted: the job may still finish some day, but the
	// record settles on fallback now.
	c.logger.Warn("insight poll budget exhausted", zap.String("date", date))
	c.resolve(jobID, date, models.InsightFallback, nil)
}

// resolve finalizes the day's record unless a newer job took over.
func (c *Cache) resolve(jobID, date string, status models.InsightStatus, parsed *models.StructuredAnswer) {
	c.mu.Lock()
	if c.jobID != jobID {
		c.mu.Unlock()
		return
	}
	c.jobID = ""
	c.mu.Unlock()
	c.gateway.Discard(jobID)

	ctx := context.Background()
	record, err := c.store.GetInsight(ctx, date)
	if err != nil || record == nil {
		return
	}
	record.Status = status
	record.LLMProcessing = false
	record.GeneratedAt = c.now()
	if parsed != nil {
		record.Answer = *parsed
	}
	if err := c.store.PutInsight(ctx, record); err != nil {
		c.logger.Warn("failed to store resolved insight", zap.String("date", date), zap.Error(err))
		return
	}
	c.logger.Info("insight resolved", zap.String("date", date), zap.String("status", string(status)))
}

// statsFallback synthesizes an answer from raw aggregates, no model involved.
func (c *Cache) statsFallback() models.StructuredAnswer {
	now := c.now()
	entries, err := c.entries.ListRange(now.AddDate(0, 0, -7), now.Add(time.Second))
	if err != nil || len(entries) == 0 {
		return answer.InsufficientData()
	}
	stats := summary.ComputeStats(entries)
	all, _ := c.entries.List()
	streak := summary.ShowedUpStreak(all, now)

	verdict := fmt.Sprintf("Over the last 7 days: %d entries, average energy %.1f, showed up %.0f%% of days.",
		stats.EntryCount, stats.AvgEnergy, stats.ShowedUpRate*100)
	action := "Keep the streak going with one small step today."
	if streak == 0 {
		action = "Start fresh today; one entry is enough."
	}
	return models.StructuredAnswer{
		Verdict:    verdict,
		Evidence:   []models.Evidence{},
		Action:     action,
		Confidence: 0.5,
	}
}
