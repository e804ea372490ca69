package llm

import (
	"context"
	"sync"
	"time"
)

// MockGenerator is a scripted generator for tests. It returns queued responses
// in order, optionally after a fixed delay, and falls back to Default when the
// queue is empty.
type MockGenerator struct {
	Default string
	Delay   time.Duration
	Err     error

	mu     sync.Mutex
	queue  []string
	nCalls int
}

// Enqueue adds responses to be returned by subsequent Generate calls.
func (m *MockGenerator) Enqueue(texts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, texts...)
}

// Calls returns how many times Generate has been invoked.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nCalls
}

// Generate returns the next scripted response, honoring Delay and ctx cancellation.
func (m *MockGenerator) Generate(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.nCalls++
	text := m.Default
	if len(m.queue) > 0 {
		text = m.queue[0]
		m.queue = m.queue[1:]
	}
	err := m.Err
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &Response{Text: text, Model: "mock"}, nil
}
