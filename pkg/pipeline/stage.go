// Package pipeline models a preprocessing pipeline as a linear list of
// typed steps, compiles it into executable nodes and splits it into an
// offline prefix and an online suffix around a serialization boundary.
package pipeline

import (
	"context"
)

// Stage is a coarse-grained unit of work that turns an input into an
// output, such as the offline or online phase of one measured run.
type Stage[In, Out any] interface {
	// Execute runs the stage with the given input and returns the output.
	Execute(ctx context.Context, input In) (Out, error)
}

// StageFunc is a function adapter for Stage interface.
type StageFunc[In, Out any] func(ctx context.Context, input In) (Out, error)

// Execute implements Stage interface.
func (f StageFunc[In, Out]) Execute(ctx context.Context, input In) (Out, error) {
	return f(ctx, input)
}
