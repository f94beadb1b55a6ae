package shards

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/user/shardbench/pkg/pipeline"
	"github.com/user/shardbench/pkg/ports"
)

// Ext is the file extension of shard files.
const Ext = "tfrecord"

// Path returns the path of shard i in dir.
func Path(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("shard-%d.%s", i, Ext))
}

// index parses the shard index from a shard file path.
func index(path string) (int, bool) {
	name := strings.TrimSuffix(filepath.Base(path), "."+Ext)
	n, err := strconv.Atoi(strings.TrimPrefix(name, "shard-"))
	return n, err == nil && strings.HasPrefix(name, "shard-")
}

// List returns the shard files in dir ordered by shard index.
func List(fs ports.FileSystem, dir string) ([]string, error) {
	matches, err := fs.Glob(filepath.Join(dir, "shard-*."+Ext))
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}
	paths := matches[:0]
	for _, m := range matches {
		if _, ok := index(m); ok {
			paths = append(paths, m)
		}
	}
	sort.SliceStable(paths, func(i, j int) bool {
		a, _ := index(paths[i])
		b, _ := index(paths[j])
		return a < b
	})
	return paths, nil
}

// Size returns the cumulative size in bytes of the shard files in dir.
func Size(fs ports.FileSystem, dir string) (int64, error) {
	paths, err := List(fs, dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, p := range paths {
		n, err := fs.Size(p)
		if err != nil {
			return 0, fmt.Errorf("stat shard: %w", err)
		}
		total += n
	}
	return total, nil
}

// Remove deletes the shard files in dir, leaving the directory and any
// other files in place. Every file is attempted; errors are joined.
func Remove(fs ports.FileSystem, dir string) error {
	paths, err := List(fs, dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range paths {
		if err := fs.Remove(p); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// WriteOptions configures Write.
type WriteOptions struct {
	Dir         string
	ShardCount  int
	Compression Compression
	// SampleCount caps the number of records consumed. Zero consumes the
	// whole source.
	SampleCount int
	Logger      ports.Logger
}

// WriteResult summarizes a completed Write.
type WriteResult struct {
	Records int
	Bytes   int64
	// PerShard holds the number of records written to each shard.
	PerShard []int
}

// Write runs src and distributes its scalar byte string elements over
// ShardCount files in Dir: record i goes to shard i mod ShardCount. All
// shard files are created before the first record is read and are
// closed on every return path.
func Write(ctx context.Context, fs ports.FileSystem, src pipeline.Source, opts WriteOptions) (res WriteResult, err error) {
	if opts.ShardCount < 1 {
		return res, fmt.Errorf("shards: shard count %d must be positive", opts.ShardCount)
	}
	if opts.SampleCount < 0 {
		return res, fmt.Errorf("shards: sample count %d must not be negative", opts.SampleCount)
	}

	if err := fs.MkdirAll(opts.Dir); err != nil {
		return res, fmt.Errorf("create shard directory: %w", err)
	}
	existing, err := List(fs, opts.Dir)
	if err != nil {
		return res, err
	}
	if len(existing) > 0 {
		return res, fmt.Errorf("%w: %s holds %d shard files", ErrShardConflict, opts.Dir, len(existing))
	}

	if opts.Logger != nil {
		opts.Logger.Debug("Writing %d shards to %s (%s)", opts.ShardCount, opts.Dir, opts.Compression)
	}

	writers := make([]*recordWriter, 0, opts.ShardCount)
	defer func() {
		var errs []error
		for _, w := range writers {
			if cerr := w.Close(); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		if cerr := errors.Join(errs...); cerr != nil && err == nil {
			err = fmt.Errorf("close shards: %w", cerr)
		}
		if err == nil {
			res.Bytes, err = Size(fs, opts.Dir)
		}
	}()

	for i := 0; i < opts.ShardCount; i++ {
		f, err := fs.Create(Path(opts.Dir, i))
		if err != nil {
			return res, fmt.Errorf("create shard %d: %w", i, err)
		}
		w, err := newRecordWriter(f, opts.Compression)
		if err != nil {
			f.Close()
			return res, err
		}
		writers = append(writers, w)
	}

	it, err := src.Open(ctx)
	if err != nil {
		return res, fmt.Errorf("open offline pipeline: %w", err)
	}
	defer it.Close()

	for opts.SampleCount == 0 || res.Records < opts.SampleCount {
		v, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("offline pipeline: %w", err)
		}
		rec, err := pipeline.RecordBytes(v)
		if err != nil {
			return res, fmt.Errorf("record %d: %w", res.Records, err)
		}
		if err := writers[res.Records%opts.ShardCount].Write(rec); err != nil {
			return res, fmt.Errorf("write record %d: %w", res.Records, err)
		}
		res.Records++
	}

	res.PerShard = make([]int, len(writers))
	for i, w := range writers {
		res.PerShard[i] = w.count
	}
	if opts.Logger != nil {
		opts.Logger.Debug("Wrote %d records", res.Records)
	}
	return res, nil
}
