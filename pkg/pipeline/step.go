package pipeline

import (
	"context"
	"fmt"

	"github.com/user/shardbench/pkg/schema"
)

// Kind tags how a step's operation is applied to the element stream.
type Kind int

const (
	// KindSource produces the initial element sequence.
	KindSource Kind = iota
	// KindTransform maps each element to exactly one element.
	KindTransform
	// KindTransformUnbatch maps each element to zero or more elements.
	KindTransformUnbatch
	// KindDatasetTransform rewrites the whole sequence.
	KindDatasetTransform
	// KindUnbatch flattens each element one level.
	KindUnbatch
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindTransform:
		return "transform"
	case KindTransformUnbatch:
		return "transform-unbatch"
	case KindDatasetTransform:
		return "dataset-transform"
	case KindUnbatch:
		return "unbatch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source produces the elements a pipeline starts from.
type Source interface {
	Open(ctx context.Context) (Iterator, error)
}

// SourceFunc is a function adapter for Source.
type SourceFunc func(ctx context.Context) (Iterator, error)

// Open implements Source.
func (f SourceFunc) Open(ctx context.Context) (Iterator, error) { return f(ctx) }

// ElementTransform maps one element to one element.
type ElementTransform interface {
	Apply(v any) (any, error)
}

// TransformFunc is a function adapter for ElementTransform.
type TransformFunc func(v any) (any, error)

// Apply implements ElementTransform.
func (f TransformFunc) Apply(v any) (any, error) { return f(v) }

// ElementExpand maps one element to zero or more elements.
type ElementExpand interface {
	Expand(v any) ([]any, error)
}

// ExpandFunc is a function adapter for ElementExpand.
type ExpandFunc func(v any) ([]any, error)

// Expand implements ElementExpand.
func (f ExpandFunc) Expand(v any) ([]any, error) { return f(v) }

// SequenceTransform rewrites a whole element sequence.
type SequenceTransform interface {
	Transform(it Iterator) Iterator
}

// SequenceFunc is a function adapter for SequenceTransform.
type SequenceFunc func(it Iterator) Iterator

// Transform implements SequenceTransform.
func (f SequenceFunc) Transform(it Iterator) Iterator { return f(it) }

// Step is one named operation of a pipeline. Steps are built with the
// per-kind constructors below and are immutable; only the capability
// matching Kind is set.
type Step struct {
	Name   string
	Kind   Kind
	Input  *schema.Schema
	Output schema.Schema

	source    Source
	transform ElementTransform
	expand    ElementExpand
	sequence  SequenceTransform
}

// SourceStep returns a step producing elements of schema out.
func SourceStep(name string, out schema.Schema, src Source) Step {
	return Step{Name: name, Kind: KindSource, Output: out, source: src}
}

// TransformStep returns an element-wise step.
func TransformStep(name string, in, out schema.Schema, op ElementTransform) Step {
	return Step{Name: name, Kind: KindTransform, Input: &in, Output: out, transform: op}
}

// TransformUnbatchStep returns an element-to-many step.
func TransformUnbatchStep(name string, in, out schema.Schema, op ElementExpand) Step {
	return Step{Name: name, Kind: KindTransformUnbatch, Input: &in, Output: out, expand: op}
}

// DatasetTransformStep returns a sequence-to-sequence step.
func DatasetTransformStep(name string, in, out schema.Schema, op SequenceTransform) Step {
	return Step{Name: name, Kind: KindDatasetTransform, Input: &in, Output: out, sequence: op}
}

// UnbatchStep returns a step that flattens each element one level.
func UnbatchStep(name string, in, out schema.Schema) Step {
	return Step{Name: name, Kind: KindUnbatch, Input: &in, Output: out}
}

// hasOperation reports whether the capability required by Kind is set.
func (s Step) hasOperation() bool {
	switch s.Kind {
	case KindSource:
		return s.source != nil
	case KindTransform:
		return s.transform != nil
	case KindTransformUnbatch:
		return s.expand != nil
	case KindDatasetTransform:
		return s.sequence != nil
	case KindUnbatch:
		return true
	default:
		return false
	}
}

func (s Step) String() string {
	return fmt.Sprintf("%s(%s)", s.Name, s.Kind)
}
