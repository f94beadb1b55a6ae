// Package catalog provides ready-made preprocessing pipelines over
// synthetic data for benchmarking split strategies.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/user/shardbench/pkg/pipeline"
)

// ErrUnknownCatalog is returned by Build for unregistered names.
var ErrUnknownCatalog = errors.New("catalog: unknown pipeline")

// Options parameterizes the catalog pipelines. Zero fields take the
// values of DefaultOptions.
type Options struct {
	// SampleCount is the number of elements the source produces.
	SampleCount int
	// Seed makes element generation reproducible.
	Seed uint64

	// DType is the element type of synthetic tensors: float32 or uint8.
	DType string
	Rows  int
	Cols  int

	// ImageSize is the nominal edge length of generated images.
	ImageSize int
	// TargetSize is the edge length images are resized to.
	TargetSize int
	// ImageFormat is the encoding of generated images: png or bmp.
	ImageFormat string
}

// DefaultOptions returns the default catalog options.
func DefaultOptions() Options {
	return Options{
		SampleCount: 1000,
		Seed:        42,
		DType:       "float32",
		Rows:        2500,
		Cols:        1,
		ImageSize:   256,
		TargetSize:  224,
		ImageFormat: "png",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleCount == 0 {
		o.SampleCount = d.SampleCount
	}
	if o.Seed == 0 {
		o.Seed = d.Seed
	}
	if o.DType == "" {
		o.DType = d.DType
	}
	if o.Rows == 0 {
		o.Rows = d.Rows
	}
	if o.Cols == 0 {
		o.Cols = d.Cols
	}
	if o.ImageSize == 0 {
		o.ImageSize = d.ImageSize
	}
	if o.TargetSize == 0 {
		o.TargetSize = d.TargetSize
	}
	if o.ImageFormat == "" {
		o.ImageFormat = d.ImageFormat
	}
	return o
}

type builder func(Options) (pipeline.Pipeline, error)

var catalogs = map[string]builder{
	"synthetic-tensor": tensorPipeline,
	"synthetic-image":  imagePipeline,
}

// Names returns the registered pipeline names in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalogs))
	for name := range catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build returns the named pipeline.
func Build(name string, opts Options) (pipeline.Pipeline, error) {
	b, ok := catalogs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownCatalog, name, strings.Join(Names(), ", "))
	}
	opts = opts.withDefaults()
	if opts.SampleCount < 0 || opts.Rows < 0 || opts.Cols < 0 || opts.ImageSize < 0 || opts.TargetSize < 0 {
		return nil, fmt.Errorf("catalog: sizes must not be negative")
	}
	return b(opts)
}
