// Package scheduler runs the recurring maintenance jobs: summary generation
// for completed periods and pruning of data past retention.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SummaryRunner generates any summaries whose period has completed.
type SummaryRunner interface {
	RunDue(ctx context.Context) error
}

// ArchiveRunner prunes entries and summaries past the retention window and
// reports how many entries were removed.
type ArchiveRunner interface {
	Run(ctx context.Context, now time.Time) (int, error)
}

// Scheduler owns the gocron instance and the registered jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	summaries SummaryRunner
	archiver  ArchiveRunner
	logger    *zap.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a scheduler for the given runners. Either runner may be nil,
// in which case its job is not registered.
func New(summaries SummaryRunner, archiver ArchiveRunner, opts ...Option) (*Scheduler, error) {
	gs, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s := &Scheduler{
		scheduler: gs,
		summaries: summaries,
		archiver:  archiver,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the jobs and begins running them. Both jobs also fire once
// shortly after start so a machine that was asleep over a period boundary
// catches up without waiting a full day.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.summaries != nil {
		_, err := s.scheduler.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(2, 30, 0))),
			gocron.NewTask(s.runSummaries, ctx),
			gocron.WithName("summaries"),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return fmt.Errorf("failed to register summary job: %w", err)
		}
	}
	if s.archiver != nil {
		_, err := s.scheduler.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
			gocron.NewTask(s.runArchiver, ctx),
			gocron.WithName("archive"),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return fmt.Errorf("failed to register archive job: %w", err)
		}
	}

	s.scheduler.Start()
	s.logger.Info("scheduler started")
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.logger.Info("scheduler stopping")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) runSummaries(ctx context.Context) {
	if err := s.summaries.RunDue(ctx); err != nil {
		s.logger.Error("summary job failed", zap.Error(err))
		return
	}
	s.logger.Debug("summary job finished")
}

func (s *Scheduler) runArchiver(ctx context.Context) {
	removed, err := s.archiver.Run(ctx, time.Now())
	if err != nil {
		s.logger.Error("archive job failed", zap.Error(err))
		return
	}
	s.logger.Debug("archive job finished", zap.Int("entries_removed", removed))
}
