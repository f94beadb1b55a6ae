package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/user/shardbench/pkg/ports"
)

// CacheDropper is a mock implementation of ports.CacheDropper.
type CacheDropper struct {
	mu sync.Mutex

	DropFunc func(ctx context.Context, opts ports.DropOptions) error

	// Recorded calls for verification
	Calls []ports.DropOptions
}

func (m *CacheDropper) Drop(ctx context.Context, opts ports.DropOptions) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, opts)
	m.mu.Unlock()
	if m.DropFunc != nil {
		return m.DropFunc(ctx, opts)
	}
	return nil
}

// DropCount returns the number of Drop calls.
func (m *CacheDropper) DropCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Sampler is a mock implementation of ports.Sampler.
type Sampler struct {
	mu sync.Mutex

	StartFunc func(ctx context.Context, outputPath string) error

	// Started tasks in call order
	Tasks []*Task
}

func (m *Sampler) Start(ctx context.Context, outputPath string) (ports.BackgroundTask, error) {
	if m.StartFunc != nil {
		if err := m.StartFunc(ctx, outputPath); err != nil {
			return nil, err
		}
	}
	task := &Task{Path: outputPath}
	m.mu.Lock()
	m.Tasks = append(m.Tasks, task)
	m.mu.Unlock()
	return task, nil
}

// Running returns the number of started tasks not yet stopped.
func (m *Sampler) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.Tasks {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// Task is a mock ports.BackgroundTask.
type Task struct {
	mu      sync.Mutex
	Path    string
	stops   int
	StopErr error
}

func (t *Task) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
	return t.StopErr
}

// Stopped reports whether Stop was called.
func (t *Task) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops > 0
}

// Clock is a mock ports.Clock. Every call to Now advances the time by
// Tick; Sleep advances it by the requested duration without blocking.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	Tick time.Duration

	// Slept records Sleep durations.
	Slept []time.Duration
}

// NewClock creates a clock starting at start.
func NewClock(start time.Time, tick time.Duration) *Clock {
	return &Clock{now: start, Tick: tick}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Tick)
	return t
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Slept = append(c.Slept, d)
	c.now = c.now.Add(d)
	return nil
}

var (
	_ ports.CacheDropper   = (*CacheDropper)(nil)
	_ ports.Sampler        = (*Sampler)(nil)
	_ ports.BackgroundTask = (*Task)(nil)
	_ ports.Clock          = (*Clock)(nil)
)
