// Package dstat records system telemetry with the dstat command-line tool.
package dstat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/user/shardbench/pkg/ports"
)

// ErrDstatNotFound is returned when no dstat executable can be located.
var ErrDstatNotFound = errors.New("dstat not found")

// Args are the dstat options preceding the output path: epoch time,
// all default stats, memory, virtual memory, filesystem and locks.
var Args = []string{"-T", "-ay", "-m", "--vm", "--fs", "--lock", "--output"}

var commonPaths = []string{
	"/usr/bin/dstat",
	"/usr/local/bin/dstat",
	"/usr/bin/pcp-dstat",
}

// Find locates dstat. An explicit path wins, then DSTAT_PATH, then PATH,
// then a few common install locations.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("%w: custom path %s not found", ErrDstatNotFound, explicit)
	}

	if envPath := os.Getenv("DSTAT_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("%w: DSTAT_PATH %s not found", ErrDstatNotFound, envPath)
	}

	if path, err := exec.LookPath("dstat"); err == nil {
		return path, nil
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: install dstat or set DSTAT_PATH", ErrDstatNotFound)
}

// Sampler implements ports.Sampler by running dstat as a child process.
type Sampler struct {
	path string
}

// New creates a Sampler running the dstat executable at path.
func New(path string) *Sampler {
	return &Sampler{path: path}
}

// Start launches dstat writing CSV to outputPath. dstat appends to an
// existing file, so any previous output is removed first.
func (s *Sampler) Start(ctx context.Context, outputPath string) (ports.BackgroundTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale telemetry: %w", err)
	}

	args := append(append([]string{}, Args...), outputPath)
	cmd := exec.Command(s.path, args...)
	// Console output is discarded; only the CSV file matters.
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start dstat: %w", err)
	}
	return &task{cmd: cmd}, nil
}

type task struct {
	cmd  *exec.Cmd
	once sync.Once
	err  error
}

// Stop kills dstat and reaps it. The exit caused by the kill is expected.
func (t *task) Stop() error {
	t.once.Do(func() {
		if err := t.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			t.err = fmt.Errorf("kill dstat: %w", err)
		}
		var exitErr *exec.ExitError
		if err := t.cmd.Wait(); err != nil && !errors.As(err, &exitErr) {
			if t.err == nil {
				t.err = fmt.Errorf("wait for dstat: %w", err)
			}
		}
	})
	return t.err
}

var _ ports.Sampler = (*Sampler)(nil)
