package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/shardbench/pkg/ports"
)

// ResultStore is a mock implementation of ports.ResultStore.
type ResultStore struct {
	mu sync.Mutex

	SaveFunc func(ctx context.Context, t ports.Table) error

	Tables map[string][][]any
	Closed bool
}

// NewResultStore creates an empty mock store.
func NewResultStore() *ResultStore {
	return &ResultStore{Tables: make(map[string][][]any)}
}

func (m *ResultStore) Save(ctx context.Context, t ports.Table) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, t); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tables[t.Name] = append(m.Tables[t.Name], t.Rows...)
	return nil
}

func (m *ResultStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// ChartRenderer is a mock implementation of ports.ChartRenderer.
type ChartRenderer struct {
	Charts []ports.Chart
}

func (m *ChartRenderer) RenderPNG(c ports.Chart) ([]byte, error) {
	m.Charts = append(m.Charts, c)
	return []byte(fmt.Sprintf("png:%s", c.Title)), nil
}

// Logger is a ports.Logger that records messages by level.
type Logger struct {
	mu       sync.Mutex
	Messages map[string][]string
}

// NewLogger creates a recording logger.
func NewLogger() *Logger {
	return &Logger{Messages: make(map[string][]string)}
}

func (l *Logger) record(level, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages[level] = append(l.Messages[level], fmt.Sprintf(msg, args...))
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.record("debug", msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.record("info", msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.record("warn", msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.record("error", msg, args...) }

// WithComponent returns the same recorder.
func (l *Logger) WithComponent(component string) ports.Logger { return l }

// Count returns the number of messages recorded at level.
func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Messages[level])
}

var (
	_ ports.ResultStore   = (*ResultStore)(nil)
	_ ports.ChartRenderer = (*ChartRenderer)(nil)
	_ ports.Logger        = (*Logger)(nil)
)
