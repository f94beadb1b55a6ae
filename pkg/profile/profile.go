// Package profile brackets repeated executions of a function with OS
// cache control and a per-run telemetry sampler.
package profile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/user/shardbench/pkg/ports"
)

// ErrWatchdog is returned when a run exceeds the configured watchdog.
var ErrWatchdog = errors.New("profile: run exceeded watchdog timeout")

// DefaultSettleDelay is the pause between runs.
const DefaultSettleDelay = 5 * time.Second

// TelemetryFileName returns the name of the telemetry file of a run.
func TelemetryFileName(run, sampleCount int) string {
	return fmt.Sprintf("dstat_run-%d_samples-%d.csv", run, sampleCount)
}

// Config holds driver configuration.
type Config struct {
	// Runs is the number of runs to execute.
	Runs int
	// ResultsDir receives the telemetry files. It is created if absent.
	ResultsDir string
	// SampleCount only names the telemetry files.
	SampleCount int
	// KeepSystemCache skips the per-run cache drop after the initial one.
	KeepSystemCache bool
	// SettleDelay is slept after every run.
	SettleDelay time.Duration
	// Watchdog bounds a single run. Zero means no limit.
	Watchdog time.Duration
	// Drop selects the caches to drop.
	Drop ports.DropOptions
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{
		Runs:        1,
		SettleDelay: DefaultSettleDelay,
		Drop:        ports.DropOptions{PageCache: true, DentriesAndInodes: true},
	}
}

// Run describes one execution handed to the run function.
type Run struct {
	Index int
	// TelemetryPath is where the sampler writes this run's time series.
	TelemetryPath string
	// TelemetryMissing is set when the sampler could not be started.
	TelemetryMissing bool
	// CacheDropFailed is set when a cache drop preceding this run failed.
	CacheDropFailed bool
}

// RunFunc executes one run. Its result is not collected.
type RunFunc func(ctx context.Context, run Run) error

// Driver executes runs one after another under controlled cache state.
type Driver struct {
	config  Config
	fs      ports.FileSystem
	dropper ports.CacheDropper
	sampler ports.Sampler
	clock   ports.Clock
	logger  ports.Logger
}

// New creates a new Driver.
func New(
	config Config,
	fs ports.FileSystem,
	dropper ports.CacheDropper,
	sampler ports.Sampler,
	clock ports.Clock,
	logger ports.Logger,
) *Driver {
	return &Driver{
		config:  config,
		fs:      fs,
		dropper: dropper,
		sampler: sampler,
		clock:   clock,
		logger:  logger.WithComponent("profile"),
	}
}

// Run drops the caches once, then executes fn Runs times. Before each
// run the caches are dropped again unless KeepSystemCache is set, and a
// sampler is started that is stopped before fn's error, if any, is
// returned. Cache drop and sampler failures are logged and flagged on
// the Run but do not stop the driver.
func (d *Driver) Run(ctx context.Context, fn RunFunc) error {
	dropFailed := !d.drop(ctx)

	if err := d.fs.MkdirAll(d.config.ResultsDir); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}

	for r := 0; r < d.config.Runs; r++ {
		if r > 0 {
			dropFailed = false
		}
		if !d.config.KeepSystemCache {
			if !d.drop(ctx) {
				dropFailed = true
			}
		}

		run := Run{
			Index:           r,
			TelemetryPath:   filepath.Join(d.config.ResultsDir, TelemetryFileName(r, d.config.SampleCount)),
			CacheDropFailed: dropFailed,
		}
		if err := d.execute(ctx, fn, &run); err != nil {
			return fmt.Errorf("run %d: %w", r, err)
		}
		d.logger.Info("Run finished: #%d", r)

		runtime.GC()
		if err := d.clock.Sleep(ctx, d.config.SettleDelay); err != nil {
			return err
		}
	}
	return nil
}

// execute runs fn with a sampler scoped to the call.
func (d *Driver) execute(ctx context.Context, fn RunFunc, run *Run) (err error) {
	task, serr := d.sampler.Start(ctx, run.TelemetryPath)
	if serr != nil {
		if errors.Is(serr, ports.ErrTelemetryDisabled) {
			d.logger.Debug("Telemetry disabled for run %d", run.Index)
		} else {
			d.logger.Warn("Telemetry sampler failed to start: %v", serr)
		}
		run.TelemetryMissing = true
	} else {
		defer func() {
			if stopErr := task.Stop(); stopErr != nil {
				d.logger.Warn("Telemetry sampler did not stop cleanly: %v", stopErr)
			}
		}()
	}

	if d.config.Watchdog <= 0 {
		return fn(ctx, *run)
	}
	return d.guarded(ctx, fn, *run)
}

// guarded runs fn and gives up waiting once the watchdog expires. The
// run's context is cancelled so a cooperative fn can stop.
func (d *Driver) guarded(ctx context.Context, fn RunFunc, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.Watchdog)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx, run) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrWatchdog, d.config.Watchdog)
		}
		return ctx.Err()
	}
}

// drop empties the configured caches and reports whether it succeeded.
func (d *Driver) drop(ctx context.Context) bool {
	if err := d.dropper.Drop(ctx, d.config.Drop); err != nil {
		d.logger.Warn("Could not drop caches: %v", err)
		return false
	}
	return true
}
