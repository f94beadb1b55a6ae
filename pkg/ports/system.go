package ports

import (
	"context"
	"errors"
	"time"
)

// ErrTelemetryDisabled is returned by a Sampler that records nothing.
// Runs started with it are flagged as missing telemetry without a warning.
var ErrTelemetryDisabled = errors.New("telemetry disabled")

// DropOptions selects which kernel caches to drop.
type DropOptions struct {
	// PageCache drops the page cache.
	PageCache bool
	// DentriesAndInodes also drops directory entry and inode caches.
	DentriesAndInodes bool
}

// CacheDropper empties OS caches so the next read starts cold.
// Dropping usually needs elevated privileges.
type CacheDropper interface {
	Drop(ctx context.Context, opts DropOptions) error
}

// BackgroundTask is a running process scoped to a caller's block.
// Stop terminates it and waits for it to exit; it is safe to call more
// than once.
type BackgroundTask interface {
	Stop() error
}

// Sampler starts a system telemetry recorder writing its time series to
// outputPath until stopped.
type Sampler interface {
	Start(ctx context.Context, outputPath string) (BackgroundTask, error)
}

// Clock abstracts wall-clock time so timing can be controlled in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}
