package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/shardbench/pkg/schema"
)

var vec4 = schema.Of(schema.Float32, 4)

func vectorSource(n int) Step {
	return SourceStep("vectors", vec4, Generate(n, func(i int) (any, error) {
		v := make([]float32, 4)
		for j := range v {
			v[j] = float32(i*4 + j)
		}
		return schema.FromSlice([]int{4}, v)
	}))
}

func floatOp(name string, fn func(float32) float32, calls *atomic.Int64) Step {
	return TransformStep(name, vec4, vec4, TransformFunc(func(v any) (any, error) {
		if calls != nil {
			calls.Add(1)
		}
		in, _ := schema.Values[float32](v.(*schema.Tensor))
		out := make([]float32, len(in))
		for i, x := range in {
			out[i] = fn(x)
		}
		return schema.FromSlice([]int{4}, out)
	}))
}

func collectAll(t *testing.T, p Pipeline, opts Options) []any {
	t.Helper()
	c, err := Compile(p, opts)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	it, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	out, err := Collect(context.Background(), it)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return out
}

func TestValidate_SchemaMismatchBeforeExecution(t *testing.T) {
	var calls atomic.Int64
	var opened atomic.Int64
	src := SourceStep("src", vec4, SourceFunc(func(ctx context.Context) (Iterator, error) {
		opened.Add(1)
		return FromSlice(nil), nil
	}))
	p := Pipeline{
		src,
		floatOp("double", func(x float32) float32 { return x * 2 }, &calls),
		TransformStep("bytes", schema.Of(schema.Uint8, 4), vec4, TransformFunc(func(v any) (any, error) {
			calls.Add(1)
			return v, nil
		})),
	}

	_, err := Compile(p, Options{Fuse: true})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("Compile() error = %v, want ErrSchemaMismatch", err)
	}
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error %T is not *SchemaMismatchError", err)
	}
	if mismatch.Step != "bytes" || mismatch.Index != 2 {
		t.Errorf("mismatch at %q/%d, want bytes/2", mismatch.Step, mismatch.Index)
	}
	if !mismatch.Want.Equal(vec4) || !mismatch.Got.Equal(schema.Of(schema.Uint8, 4)) {
		t.Errorf("mismatch schemas = %s / %s", mismatch.Want, mismatch.Got)
	}
	if calls.Load() != 0 || opened.Load() != 0 {
		t.Errorf("operators ran: %d transforms, %d source opens", calls.Load(), opened.Load())
	}
}

func TestValidate_Structure(t *testing.T) {
	op := floatOp("op", func(x float32) float32 { return x }, nil)
	tests := []struct {
		name string
		p    Pipeline
	}{
		{"empty", Pipeline{}},
		{"no source", Pipeline{op}},
		{"second source", Pipeline{vectorSource(1), vectorSource(1)}},
		{"missing operation", Pipeline{vectorSource(1), {Name: "bare", Kind: KindTransform, Input: &vec4, Output: vec4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.p); !errors.Is(err, ErrInvalidPipeline) {
				t.Errorf("Validate() error = %v, want ErrInvalidPipeline", err)
			}
		})
	}
}

func TestCompile_FusionGroups(t *testing.T) {
	id := func(x float32) float32 { return x }
	p := Pipeline{
		vectorSource(2),
		floatOp("a", id, nil),
		floatOp("b", id, nil),
		UnbatchStep("unbatch", vec4, schema.Of(schema.Float32)),
		TransformStep("c", schema.Of(schema.Float32), schema.Of(schema.Float32), TransformFunc(func(v any) (any, error) { return v, nil })),
	}

	tests := []struct {
		fuse bool
		want []string
	}{
		{true, []string{"a > b", "unbatch", "c"}},
		{false, []string{"a", "b", "unbatch", "c"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("fuse=%v", tt.fuse), func(t *testing.T) {
			c, err := Compile(p, Options{Fuse: tt.fuse})
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			var got []string
			for _, n := range c.Nodes() {
				got = append(got, n.Name)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("nodes = %q, want %q", got, tt.want)
			}
			if !c.Output().Equal(schema.Of(schema.Float32)) {
				t.Errorf("Output() = %s", c.Output())
			}
		})
	}
}

func TestCompile_FusionTransparency(t *testing.T) {
	p := Pipeline{
		vectorSource(100),
		floatOp("scale", func(x float32) float32 { return x * 0.5 }, nil),
		floatOp("shift", func(x float32) float32 { return x - 3 }, nil),
		floatOp("square", func(x float32) float32 { return x * x }, nil),
		floatOp("neg", func(x float32) float32 { return -x }, nil),
	}

	unfused := collectAll(t, p, Options{Fuse: false})
	for _, par := range []int{1, 3, 8} {
		fused := collectAll(t, p, Options{Fuse: true, Parallelism: par})
		if len(fused) != 100 || len(unfused) != 100 {
			t.Fatalf("got %d fused / %d unfused elements, want 100", len(fused), len(unfused))
		}
		for i := range fused {
			if !schema.ElementsEqual(fused[i], unfused[i]) {
				t.Fatalf("parallelism %d: element %d differs", par, i)
			}
		}
	}
}

func TestCompile_ParallelMapPreservesOrder(t *testing.T) {
	p := Pipeline{
		SourceStep("ints", schema.Of(schema.Int32), Generate(50, func(i int) (any, error) {
			return schema.FromSlice([]int{}, []int32{int32(i)})
		})),
		TransformStep("jitter", schema.Of(schema.Int32), schema.Of(schema.Int32), TransformFunc(func(v any) (any, error) {
			x, _ := schema.Values[int32](v.(*schema.Tensor))
			time.Sleep(time.Duration((50-x[0])%7) * time.Millisecond)
			return v, nil
		})),
	}

	out := collectAll(t, p, Options{Parallelism: 6})
	for i, v := range out {
		x, _ := schema.Values[int32](v.(*schema.Tensor))
		if int(x[0]) != i {
			t.Fatalf("element %d = %d, order not preserved", i, x[0])
		}
	}
}

func TestCompile_ExecutionKinds(t *testing.T) {
	scalar := schema.Of(schema.Int32)
	row := schema.Of(schema.Int32, 3)
	p := Pipeline{
		SourceStep("rows", row, Elements(
			schema.MustFromSlice([]int{3}, []int32{1, 2, 3}),
			schema.MustFromSlice([]int{3}, []int32{4, 5, 6}),
		)),
		UnbatchStep("unbatch", row, scalar),
		TransformUnbatchStep("dup-odd", scalar, scalar, ExpandFunc(func(v any) ([]any, error) {
			x, _ := schema.Values[int32](v.(*schema.Tensor))
			switch {
			case x[0] == 2:
				return nil, nil
			case x[0]%2 == 1:
				return []any{v, v}, nil
			}
			return []any{v}, nil
		})),
		DatasetTransformStep("take5", scalar, scalar, SequenceFunc(func(it Iterator) Iterator {
			return Take(it, 5)
		})),
	}

	out := collectAll(t, p, Options{Fuse: true, Parallelism: 2})
	var got []int32
	for _, v := range out {
		x, _ := schema.Values[int32](v.(*schema.Tensor))
		got = append(got, x[0])
	}
	if fmt.Sprint(got) != "[1 1 3 3 4]" {
		t.Errorf("got %v, want [1 1 3 3 4]", got)
	}
}

func TestCompile_TransformError(t *testing.T) {
	boom := errors.New("boom")
	p := Pipeline{
		vectorSource(10),
		TransformStep("fail", vec4, vec4, TransformFunc(func(v any) (any, error) { return nil, boom })),
	}
	c, err := Compile(p, Options{Parallelism: 4})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	it, _ := c.Open(context.Background())
	if _, err := Collect(context.Background(), it); !errors.Is(err, boom) {
		t.Errorf("Collect() error = %v, want boom", err)
	}
}

func TestSplit(t *testing.T) {
	id := func(x float32) float32 { return x }
	p := Pipeline{vectorSource(3), floatOp("a", id, nil), floatOp("b", id, nil)}

	t.Run("invalid positions", func(t *testing.T) {
		for _, pos := range []int{-1, 0, 4} {
			if _, _, err := Split(p, pos); !errors.Is(err, ErrInvalidSplit) {
				t.Errorf("Split(%d) error = %v, want ErrInvalidSplit", pos, err)
			}
		}
	})

	t.Run("boundary steps", func(t *testing.T) {
		prefix, suffix, err := Split(p, 2)
		if err != nil {
			t.Fatalf("Split() error = %v", err)
		}
		if got := strings.Join(prefix.Names(), ","); got != "vectors,a,serialize" {
			t.Errorf("prefix = %s", got)
		}
		if got := strings.Join(suffix.Names(), ","); got != "deserialize,b" {
			t.Errorf("suffix = %s", got)
		}
		if !prefix.Output().Equal(schema.Bytes()) {
			t.Errorf("prefix output = %s, want bytes", prefix.Output())
		}
		if !suffix[0].Output.Equal(vec4) {
			t.Errorf("deserialize output = %s", suffix[0].Output)
		}
	})

	t.Run("split at end", func(t *testing.T) {
		_, suffix, err := Split(p, 3)
		if err != nil {
			t.Fatalf("Split() error = %v", err)
		}
		if len(suffix) != 1 || suffix[0].Name != DeserializeStepName {
			t.Errorf("suffix = %v", suffix.Names())
		}
	})
}

func TestSplit_RoundTripThroughMemory(t *testing.T) {
	p := Pipeline{
		vectorSource(20),
		floatOp("scale", func(x float32) float32 { return x / 3 }, nil),
		floatOp("shift", func(x float32) float32 { return x + 0.1 }, nil),
	}
	want := collectAll(t, p, Options{Fuse: true})

	prefix, suffix, err := Split(p, 2)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	records := collectAll(t, prefix, Options{Fuse: true})

	online := append(Pipeline{SourceStep("memory", schema.Bytes(), Elements(records...))}, suffix...)
	got := collectAll(t, online, Options{Fuse: true, Parallelism: 4})

	if len(got) != len(want) {
		t.Fatalf("got %d elements, want %d", len(got), len(want))
	}
	for i := range got {
		if !schema.ElementsEqual(got[i], want[i]) {
			t.Fatalf("element %d differs after round trip", i)
		}
	}
}

func TestBatchAndUnbatch(t *testing.T) {
	it := Batch(FromSlice([]any{1, 2, 3, 4, 5}), 2)
	out, err := Collect(context.Background(), it)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if fmt.Sprint(out) != "[[1 2] [3 4] [5]]" {
		t.Errorf("batches = %v", out)
	}
}

func TestPrefetch(t *testing.T) {
	items := make([]any, 30)
	for i := range items {
		items[i] = i
	}
	out, err := Collect(context.Background(), Prefetch(context.Background(), FromSlice(items), 4))
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(out) != 30 || out[29] != 29 {
		t.Errorf("got %v", out)
	}
}

func TestPrefetch_CloseEarly(t *testing.T) {
	src := Generate(1000, func(i int) (any, error) { return i, nil })
	it, _ := src.Open(context.Background())
	p := Prefetch(context.Background(), it, 2)
	if _, err := p.Next(context.Background()); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestCache(t *testing.T) {
	var reads atomic.Int64
	src := Generate(5, func(i int) (any, error) {
		reads.Add(1)
		return i, nil
	})
	it, _ := src.Open(context.Background())
	c := NewCache(it)
	defer c.Close()

	first, err := Collect(context.Background(), c.Iterator())
	if err != nil {
		t.Fatalf("first pass error = %v", err)
	}
	second, err := Collect(context.Background(), c.Iterator())
	if err != nil {
		t.Fatalf("second pass error = %v", err)
	}
	if fmt.Sprint(first) != fmt.Sprint(second) || len(second) != 5 {
		t.Errorf("passes differ: %v vs %v", first, second)
	}
	if reads.Load() != 5 {
		t.Errorf("source read %d times, want 5", reads.Load())
	}
}

func TestCache_InterruptedFirstPass(t *testing.T) {
	c := NewCache(FromSlice([]any{"a", "b", "c"}))
	partial := c.Iterator()
	if _, err := partial.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	partial.Close()

	out, err := Collect(context.Background(), c.Iterator())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if fmt.Sprint(out) != "[a b c]" {
		t.Errorf("got %v, want [a b c]", out)
	}
}
