package pipeline

import (
	"errors"
	"fmt"

	"github.com/user/shardbench/pkg/schema"
)

var (
	// ErrSchemaMismatch is returned when adjacent steps disagree on the
	// element schema. The concrete error is a *SchemaMismatchError.
	ErrSchemaMismatch = errors.New("pipeline: schema mismatch")
	// ErrInvalidSplit is returned when a split position is out of range.
	ErrInvalidSplit = errors.New("pipeline: invalid split position")
	// ErrInvalidPipeline is returned for structurally invalid pipelines.
	ErrInvalidPipeline = errors.New("pipeline: invalid pipeline")
)

// SchemaMismatchError names the step whose input schema differs from the
// output schema of the step before it.
type SchemaMismatchError struct {
	Step  string
	Index int
	Want  schema.Schema
	Got   schema.Schema
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("pipeline: step %d %q expects %s, previous step produces %s", e.Index, e.Step, e.Got, e.Want)
}

// Is reports ErrSchemaMismatch as the error kind.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// Pipeline is a linear sequence of steps starting with a source.
type Pipeline []Step

// Validate checks the structural and schema invariants of p: it is
// non-empty, starts with its only source, every step carries the
// operation its kind needs, and each step's input schema equals the
// previous step's output schema. No operation is invoked.
func Validate(p Pipeline) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidPipeline)
	}
	if p[0].Kind != KindSource {
		return fmt.Errorf("%w: first step %q is %s, want source", ErrInvalidPipeline, p[0].Name, p[0].Kind)
	}
	for i, s := range p {
		if !s.hasOperation() {
			return fmt.Errorf("%w: step %d %q has no %s operation", ErrInvalidPipeline, i, s.Name, s.Kind)
		}
		if s.Output.IsZero() {
			return fmt.Errorf("%w: step %d %q has no output schema", ErrInvalidPipeline, i, s.Name)
		}
		if i == 0 {
			continue
		}
		if s.Kind == KindSource {
			return fmt.Errorf("%w: step %d %q is a second source", ErrInvalidPipeline, i, s.Name)
		}
		if s.Input == nil {
			return fmt.Errorf("%w: step %d %q has no input schema", ErrInvalidPipeline, i, s.Name)
		}
		if prev := p[i-1].Output; !prev.Equal(*s.Input) {
			return &SchemaMismatchError{Step: s.Name, Index: i, Want: prev, Got: *s.Input}
		}
	}
	return nil
}

// Output returns the schema of the elements produced by p.
func (p Pipeline) Output() schema.Schema {
	if len(p) == 0 {
		return schema.Schema{}
	}
	return p[len(p)-1].Output
}

// Names returns the step names in order.
func (p Pipeline) Names() []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.Name
	}
	return names
}
