package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingSummaries struct{ calls atomic.Int32 }

func (c *countingSummaries) RunDue(ctx context.Context) error {
	c.calls.Add(1)
	return nil
}

type countingArchiver struct{ calls atomic.Int32 }

func (c *countingArchiver) Run(ctx context.Context, now time.Time) (int, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestStartRunsJobsImmediately(t *testing.T) {
	summaries := &countingSummaries{}
	archiver := &countingArchiver{}
	s, err := New(summaries, archiver)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for summaries.calls.Load() == 0 || archiver.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("jobs never ran: summaries=%d archive=%d",
				summaries.calls.Load(), archiver.calls.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNilRunnersSkipped(t *testing.T) {
	s, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
