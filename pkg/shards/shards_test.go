package shards

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/user/shardbench/pkg/adapters/osfilesystem"
	"github.com/user/shardbench/pkg/mocks"
	"github.com/user/shardbench/pkg/pipeline"
	"github.com/user/shardbench/pkg/schema"
)

// indexSource yields the decimal index of each record as its payload.
func indexSource(n int) pipeline.Source {
	return pipeline.Generate(n, func(i int) (any, error) {
		return schema.Scalar([]byte(fmt.Sprint(i))), nil
	})
}

func readShard(t *testing.T, fs *mocks.FileSystem, path string, c Compression) []string {
	t.Helper()
	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", path, err)
	}
	rr, err := newRecordReader(f, c)
	if err != nil {
		t.Fatalf("newRecordReader() error = %v", err)
	}
	defer rr.Close()
	var out []string
	for {
		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, string(rec))
	}
}

func TestWrite_RoundRobinMembership(t *testing.T) {
	fs := mocks.NewFileSystem()
	res, err := Write(context.Background(), fs, indexSource(17), WriteOptions{
		Dir:        "/tmp/run",
		ShardCount: 4,
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if res.Records != 17 {
		t.Errorf("Records = %d, want 17", res.Records)
	}

	want := [][]string{
		{"0", "4", "8", "12", "16"},
		{"1", "5", "9", "13"},
		{"2", "6", "10", "14"},
		{"3", "7", "11", "15"},
	}
	for i, w := range want {
		got := readShard(t, fs, Path("/tmp/run", i), None)
		if fmt.Sprint(got) != fmt.Sprint(w) {
			t.Errorf("shard %d = %v, want %v", i, got, w)
		}
		if res.PerShard[i] != len(w) {
			t.Errorf("PerShard[%d] = %d, want %d", i, res.PerShard[i], len(w))
		}
	}

	var total int64
	for path, data := range fs.GetAllFiles() {
		if filepath.Ext(path) == "."+Ext {
			total += int64(len(data))
		}
	}
	if res.Bytes != total || total == 0 {
		t.Errorf("Bytes = %d, want %d", res.Bytes, total)
	}
}

func TestWrite_SampleCountAndEmptyShards(t *testing.T) {
	fs := mocks.NewFileSystem()
	res, err := Write(context.Background(), fs, indexSource(100), WriteOptions{
		Dir:         "/d",
		ShardCount:  5,
		SampleCount: 3,
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if res.Records != 3 {
		t.Errorf("Records = %d, want 3", res.Records)
	}
	paths, _ := List(fs, "/d")
	if len(paths) != 5 {
		t.Errorf("got %d shard files, want 5 (all opened up front)", len(paths))
	}
	if got := readShard(t, fs, Path("/d", 4), None); len(got) != 0 {
		t.Errorf("shard 4 = %v, want empty", got)
	}
}

func TestWrite_Conflict(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFile(Path("/d", 0), []byte("stale"))

	_, err := Write(context.Background(), fs, indexSource(1), WriteOptions{Dir: "/d", ShardCount: 1})
	if !errors.Is(err, ErrShardConflict) {
		t.Errorf("Write() error = %v, want ErrShardConflict", err)
	}
	if data, _ := fs.GetFile(Path("/d", 0)); string(data) != "stale" {
		t.Error("pre-existing shard was modified")
	}
}

type trackingFile struct {
	io.WriteCloser
	closed *int
}

func (f trackingFile) Close() error {
	*f.closed++
	return f.WriteCloser.Close()
}

func TestWrite_ClosesWritersOnError(t *testing.T) {
	fs := mocks.NewFileSystem()
	closed := 0
	inner := mocks.NewFileSystem()
	fs.CreateFunc = func(path string) (io.WriteCloser, error) {
		w, err := inner.Create(path)
		return trackingFile{WriteCloser: w, closed: &closed}, err
	}

	boom := errors.New("decode failed")
	src := pipeline.Generate(10, func(i int) (any, error) {
		if i == 6 {
			return nil, boom
		}
		return schema.Scalar([]byte{byte(i)}), nil
	})

	_, err := Write(context.Background(), fs, src, WriteOptions{Dir: "/d", ShardCount: 3})
	if !errors.Is(err, boom) {
		t.Fatalf("Write() error = %v, want %v", err, boom)
	}
	if closed != 3 {
		t.Errorf("closed %d writers, want 3", closed)
	}
}

func TestWrite_RejectsNonRecordElements(t *testing.T) {
	fs := mocks.NewFileSystem()
	src := pipeline.Elements(schema.MustFromSlice([]int{1}, []float32{1}))
	if _, err := Write(context.Background(), fs, src, WriteOptions{Dir: "/d", ShardCount: 1}); err == nil {
		t.Error("expected error for non byte string element")
	}
}

func TestLoader_CompressionRoundTrip(t *testing.T) {
	for _, c := range []Compression{None, ZLIB, GZIP} {
		t.Run(c.String(), func(t *testing.T) {
			fs := osfilesystem.New()
			dir := filepath.Join(t.TempDir(), "shards")
			if _, err := Write(context.Background(), fs, indexSource(25), WriteOptions{Dir: dir, ShardCount: 3, Compression: c}); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			it, err := NewLoader(fs, dir, c).Open(context.Background())
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			out, err := pipeline.Collect(context.Background(), it)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if len(out) != 25 {
				t.Fatalf("loaded %d records, want 25", len(out))
			}
			b, _ := pipeline.RecordBytes(out[0])
			if string(b) != "0" {
				t.Errorf("first record = %q, want shard 0 first", b)
			}
		})
	}
}

func TestLoader_CorruptShard(t *testing.T) {
	fs := osfilesystem.New()
	dir := t.TempDir()
	if _, err := Write(context.Background(), fs, indexSource(4), WriteOptions{Dir: dir, ShardCount: 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	path := Path(dir, 0)
	data, _ := os.ReadFile(path)
	data[len(data)-5] ^= 0xff
	os.WriteFile(path, data, 0644)

	it, _ := NewLoader(fs, dir, None).Open(context.Background())
	if _, err := pipeline.Collect(context.Background(), it); !errors.Is(err, ErrCorruptShard) {
		t.Errorf("Collect() error = %v, want ErrCorruptShard", err)
	}
}

func TestListSizeRemove(t *testing.T) {
	fs := mocks.NewFileSystem()
	for _, i := range []int{10, 2, 0} {
		fs.WriteFile(Path("/d", i), bytes.Repeat([]byte{1}, i+1))
	}
	fs.WriteFile("/d/dstat_run-0_samples-10.csv", []byte("keep"))

	paths, err := List(fs, "/d")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	if fmt.Sprint(names) != "[shard-0.tfrecord shard-2.tfrecord shard-10.tfrecord]" {
		t.Errorf("List() = %v", names)
	}

	size, _ := Size(fs, "/d")
	if size != 1+3+11 {
		t.Errorf("Size() = %d, want 15", size)
	}

	if err := Remove(fs, "/d"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if left, _ := List(fs, "/d"); len(left) != 0 {
		t.Errorf("shards left after Remove: %v", left)
	}
	if _, ok := fs.GetFile("/d/dstat_run-0_samples-10.csv"); !ok {
		t.Error("Remove deleted a non-shard file")
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"none", None, false},
		{"ZLIB", ZLIB, false},
		{"GZIP", GZIP, false},
		{"gzip", None, true},
		{"", None, true},
		{"LZ4", None, true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCompression(%q) = %v, %v", tt.in, got, err)
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownCompression) {
			t.Errorf("ParseCompression(%q) error = %v, want ErrUnknownCompression", tt.in, err)
		}
	}
}

// Splitting a five-step pipeline at position 2, writing the prefix to
// shards and reading them back through the suffix yields the same
// elements as the unsplit pipeline.
func TestSplitShardRoundTrip(t *testing.T) {
	const n = 40
	row := schema.Of(schema.Float64, 2)
	ex := schema.Fields(map[string]schema.Spec{
		"x":  schema.TensorSpec(schema.Float64, 2),
		"id": schema.TensorSpec(schema.String),
	})
	p := pipeline.Pipeline{
		pipeline.SourceStep("rows", schema.Of(schema.Int32), pipeline.Generate(n, func(i int) (any, error) {
			return schema.FromSlice([]int{}, []int32{int32(i)})
		})),
		pipeline.TransformStep("to float", schema.Of(schema.Int32), row, pipeline.TransformFunc(func(v any) (any, error) {
			x, _ := schema.Values[int32](v.(*schema.Tensor))
			return schema.FromSlice([]int{2}, []float64{float64(x[0]) / 7, -float64(x[0])})
		})),
		pipeline.TransformStep("wrap", row, ex, pipeline.TransformFunc(func(v any) (any, error) {
			vals, _ := schema.Values[float64](v.(*schema.Tensor))
			return schema.Example{"x": v.(*schema.Tensor), "id": schema.Scalar([]byte(fmt.Sprintf("%.3f", vals[0])))}, nil
		})),
		pipeline.TransformStep("square", ex, ex, pipeline.TransformFunc(func(v any) (any, error) {
			e := v.(schema.Example)
			vals, _ := schema.Values[float64](e["x"])
			sq, _ := schema.FromSlice([]int{2}, []float64{vals[0] * vals[0], vals[1] * vals[1]})
			return schema.Example{"x": sq, "id": e["id"]}, nil
		})),
		pipeline.TransformStep("identity", ex, ex, pipeline.TransformFunc(func(v any) (any, error) { return v, nil })),
	}

	want := collect(t, p)

	prefix, suffix, err := pipeline.Split(p, 2)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	offline, err := pipeline.Compile(prefix, pipeline.Options{Fuse: true, Parallelism: 4})
	if err != nil {
		t.Fatalf("Compile(prefix) error = %v", err)
	}
	fs := mocks.NewFileSystem()
	if _, err := Write(context.Background(), fs, offline, WriteOptions{Dir: "/s", ShardCount: 3, Compression: GZIP}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	online := append(pipeline.Pipeline{NewLoader(fs, "/s", GZIP).Step()}, suffix...)
	got := collect(t, online)

	if len(got) != n {
		t.Fatalf("online produced %d elements, want %d", len(got), n)
	}
	key := func(v any) string { return fmt.Sprint(v.(schema.Example)["id"].Data()) }
	sort.Slice(got, func(i, j int) bool { return key(got[i]) < key(got[j]) })
	sort.Slice(want, func(i, j int) bool { return key(want[i]) < key(want[j]) })
	for i := range got {
		if !schema.ElementsEqual(got[i], want[i]) {
			t.Fatalf("element %d differs: %v vs %v", i, got[i], want[i])
		}
	}
}

func collect(t *testing.T, p pipeline.Pipeline) []any {
	t.Helper()
	c, err := pipeline.Compile(p, pipeline.Options{Fuse: true})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	it, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	out, err := pipeline.Collect(context.Background(), it)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return out
}
