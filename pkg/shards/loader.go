package shards

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/user/shardbench/pkg/pipeline"
	"github.com/user/shardbench/pkg/ports"
	"github.com/user/shardbench/pkg/schema"
)

// LoaderStepName names the source step reading shards back.
const LoaderStepName = "load shards"

// Loader is a pipeline source yielding every record of the shards in a
// directory as a scalar byte string. Shards are read one after another
// in shard index order.
type Loader struct {
	fs          ports.FileSystem
	dir         string
	compression Compression
}

// NewLoader creates a loader for the shards in dir.
func NewLoader(fs ports.FileSystem, dir string, c Compression) *Loader {
	return &Loader{fs: fs, dir: dir, compression: c}
}

// Step returns the loader wrapped as a pipeline source step.
func (l *Loader) Step() pipeline.Step {
	return pipeline.SourceStep(LoaderStepName, schema.Bytes(), l)
}

// Open lists the shard files and starts reading the first one.
func (l *Loader) Open(ctx context.Context) (pipeline.Iterator, error) {
	paths, err := List(l.fs, l.dir)
	if err != nil {
		return nil, err
	}
	return &loaderIterator{l: l, paths: paths}, nil
}

type loaderIterator struct {
	l     *Loader
	paths []string
	cur   *recordReader
	name  string
}

func (it *loaderIterator) Next(ctx context.Context) (any, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if it.cur == nil {
			if len(it.paths) == 0 {
				return nil, io.EOF
			}
			it.name, it.paths = it.paths[0], it.paths[1:]
			f, err := it.l.fs.Open(it.name)
			if err != nil {
				return nil, fmt.Errorf("open shard: %w", err)
			}
			if it.cur, err = newRecordReader(f, it.l.compression); err != nil {
				f.Close()
				return nil, fmt.Errorf("%s: %w", it.name, err)
			}
		}

		rec, err := it.cur.Next()
		if errors.Is(err, io.EOF) {
			cerr := it.cur.Close()
			it.cur = nil
			if cerr != nil {
				return nil, fmt.Errorf("%s: %w", it.name, cerr)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", it.name, err)
		}
		return schema.Scalar(rec), nil
	}
}

func (it *loaderIterator) Close() error {
	if it.cur == nil {
		return nil
	}
	err := it.cur.Close()
	it.cur = nil
	return err
}
