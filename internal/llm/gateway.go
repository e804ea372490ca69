// Package llm wraps a local OpenAI-compatible model server behind a gateway
// with bounded timeouts and asynchronous job tracking.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrModelUnavailable means the model server could not be reached.
var ErrModelUnavailable = errors.New("language model unavailable")

// ErrGenerationTimeout means generation did not finish within the gateway's budget.
var ErrGenerationTimeout = errors.New("generation timed out")

// ErrJobNotFound means Poll was called with an unknown or expired job ID.
var ErrJobNotFound = errors.New("generation job not found")

// Request is a single generation request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the model's reply.
type Response struct {
	Text     string
	Model    string
	Duration time.Duration
}

// Generator produces text from a request. Implemented by the HTTP client and
// by MockGenerator in tests.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// JobStatus is the state of an asynchronous generation job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobReady   JobStatus = "ready"
	JobFailed  JobStatus = "failed"
)

// Job is a snapshot of an asynchronous generation job. Response is set when
// Status is ready, Err when it is failed.
type Job struct {
	ID       string
	Status   JobStatus
	Response *Response
	Err      error
}

// Gateway bounds every generation with a timeout and tracks asynchronous jobs.
// It never retries: callers on latency-sensitive paths degrade instead of waiting.
type Gateway struct {
	gen     Generator
	timeout time.Duration
	logger  *zap.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway wraps a generator with the given per-request timeout.
func NewGateway(gen Generator, timeout time.Duration, opts ...Option) *Gateway {
	g := &Gateway{
		gen:     gen,
		timeout: timeout,
		logger:  zap.NewNop(),
		jobs:    make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs a synchronous generation bounded by the gateway timeout.
// A deadline overrun is reported as ErrGenerationTimeout.
func (g *Gateway) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.gen.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrGenerationTimeout, time.Since(start).Round(time.Millisecond))
		}
		return nil, err
	}
	resp.Duration = time.Since(start)
	return resp, nil
}

// GenerateAsync starts a generation in the background and returns a job ID to
// poll. The job runs detached from the caller's context; only the gateway
// timeout bounds it.
func (g *Gateway) GenerateAsync(req *Request) string {
	id := uuid.New().String()
	g.mu.Lock()
	g.jobs[id] = &Job{ID: id, Status: JobPending}
	g.mu.Unlock()

	go func() {
		resp, err := g.Generate(context.Background(), req)
		g.mu.Lock()
		defer g.mu.Unlock()
		job, ok := g.jobs[id]
		if !ok {
			return
		}
		if err != nil {
			job.Status = JobFailed
			job.Err = err
			g.logger.Warn("async generation failed", zap.String("job_id", id), zap.Error(err))
			return
		}
		job.Status = JobReady
		job.Response = resp
		g.logger.Debug("async generation ready", zap.String("job_id", id), zap.Duration("took", resp.Duration))
	}()
	return id
}

// Poll returns a snapshot of the job's current state.
func (g *Gateway) Poll(id string) (*Job, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	job, ok := g.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	snapshot := *job
	return &snapshot, nil
}

// Discard removes a job so a later Poll returns ErrJobNotFound. Used when a
// force refresh supersedes an outstanding job.
func (g *Gateway) Discard(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.jobs, id)
}
