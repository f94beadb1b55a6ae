// Package nullsampler provides a telemetry sampler that records nothing.
package nullsampler

import (
	"context"

	"github.com/user/shardbench/pkg/ports"
)

// Sampler stands in when dstat is disabled or missing. Start always
// fails with ports.ErrTelemetryDisabled, so every run it profiles is
// flagged as missing telemetry.
type Sampler struct{}

func New() *Sampler {
	return &Sampler{}
}

func (s *Sampler) Start(ctx context.Context, outputPath string) (ports.BackgroundTask, error) {
	return nil, ports.ErrTelemetryDisabled
}

var _ ports.Sampler = (*Sampler)(nil)
