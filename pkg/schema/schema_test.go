package schema

import (
	"math"
	"testing"
)

func TestParseDType(t *testing.T) {
	tests := []struct {
		in      string
		want    DType
		wantErr bool
	}{
		{"float32", Float32, false},
		{"UINT8", Uint8, false},
		{" int16 ", Int16, false},
		{"bytes", String, false},
		{"string", String, false},
		{"complex64", Invalid, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSchema_Equal(t *testing.T) {
	img := Of(Uint8, 32, 32, 3)
	fields := Fields(map[string]Spec{
		"image": TensorSpec(Uint8, 32, 32, 3),
		"label": TensorSpec(Int32),
	})

	tests := []struct {
		name string
		a, b Schema
		want bool
	}{
		{"same single", img, Of(Uint8, 32, 32, 3), true},
		{"different dtype", img, Of(Float32, 32, 32, 3), false},
		{"different shape", img, Of(Uint8, 32, 32), false},
		{"unknown only equals unknown", Of(Float32, Unknown), Of(Float32, 4), false},
		{"unknown equals unknown", Of(Float32, Unknown), Of(Float32, Unknown), true},
		{"same fields", fields, Fields(map[string]Spec{"label": TensorSpec(Int32), "image": TensorSpec(Uint8, 32, 32, 3)}), true},
		{"missing field", fields, Fields(map[string]Spec{"image": TensorSpec(Uint8, 32, 32, 3)}), false},
		{"single vs fields", img, fields, false},
		{"zero", Schema{}, Schema{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("%s.Equal(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSchema_String(t *testing.T) {
	s := Fields(map[string]Spec{
		"b": TensorSpec(Float32, Unknown, 2),
		"a": TensorSpec(String),
	})
	if got, want := s.String(), "{a:string[], b:float32[? 2]}"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestConforms(t *testing.T) {
	vec := MustFromSlice([]int{3}, []float32{1, 2, 3})
	label := MustFromSlice([]int{}, []int32{7})

	tests := []struct {
		name    string
		schema  Schema
		value   any
		wantErr bool
	}{
		{"single ok", Of(Float32, 3), vec, false},
		{"single unknown dim", Of(Float32, Unknown), vec, false},
		{"single wrong dtype", Of(Float64, 3), vec, true},
		{"single wrong rank", Of(Float32, 3, 1), vec, true},
		{"single wrong type", Of(Float32, 3), Example{"x": vec}, true},
		{"fields ok", Fields(map[string]Spec{"x": TensorSpec(Float32, 3), "y": TensorSpec(Int32)}), Example{"x": vec, "y": label}, false},
		{"fields missing", Fields(map[string]Spec{"x": TensorSpec(Float32, 3), "y": TensorSpec(Int32)}), Example{"x": vec}, true},
		{"fields extra", Fields(map[string]Spec{"x": TensorSpec(Float32, 3)}), Example{"x": vec, "y": label}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Conforms(tt.schema, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Conforms() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTensor_RawPreservesFloatBits(t *testing.T) {
	nan := math.Float32frombits(0x7fc00123)
	negZero := float32(math.Copysign(0, -1))
	src := MustFromSlice([]int{2, 2}, []float32{nan, negZero, 1.5, float32(math.Inf(-1))})

	raw, err := src.AppendRaw(nil)
	if err != nil {
		t.Fatalf("AppendRaw() error = %v", err)
	}
	if len(raw) != 16 {
		t.Fatalf("len(raw) = %d, want 16", len(raw))
	}

	got, err := DecodeRaw(Float32, []int{2, 2}, raw)
	if err != nil {
		t.Fatalf("DecodeRaw() error = %v", err)
	}
	if !got.Equal(src) {
		t.Fatal("decoded tensor differs from source")
	}
	vals, _ := Values[float32](got)
	if math.Float32bits(vals[0]) != 0x7fc00123 {
		t.Errorf("NaN payload = %#x, want 0x7fc00123", math.Float32bits(vals[0]))
	}
	if !math.Signbit(float64(vals[1])) {
		t.Error("negative zero lost its sign")
	}
}

func TestDecodeRaw_LengthMismatch(t *testing.T) {
	if _, err := DecodeRaw(Int32, []int{3}, make([]byte, 11)); err == nil {
		t.Error("expected error for short buffer")
	}
	if _, err := DecodeRaw(String, []int{1}, nil); err == nil {
		t.Error("expected error for string dtype")
	}
}

func TestNumElements(t *testing.T) {
	maxInt := int(^uint(0) >> 1)
	tests := []struct {
		shape []int
		want  int
	}{
		{nil, 1},
		{[]int{2, 3}, 6},
		{[]int{4, 0, 7}, 0},
		{[]int{2, -1}, -1},
		{[]int{1 << 32, 1 << 32}, -1},
		{[]int{maxInt, 2}, -1},
		{[]int{maxInt, 1}, maxInt},
	}
	for _, tt := range tests {
		if got := NumElements(tt.shape); got != tt.want {
			t.Errorf("NumElements(%v) = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestDecodeRaw_OverflowingShape(t *testing.T) {
	if _, err := DecodeRaw(Float64, []int{1 << 62, 4}, nil); err == nil {
		t.Error("expected error for overflowing shape")
	}
}

func TestFromSlice_ShapeMismatch(t *testing.T) {
	if _, err := FromSlice([]int{2, 3}, []int8{1, 2, 3}); err == nil {
		t.Error("expected error for mismatched element count")
	}
}

func TestUnbatch(t *testing.T) {
	t.Run("tensor", func(t *testing.T) {
		src := MustFromSlice([]int{3, 2}, []int16{1, 2, 3, 4, 5, 6})
		parts, err := Unbatch(src)
		if err != nil {
			t.Fatalf("Unbatch() error = %v", err)
		}
		if len(parts) != 3 {
			t.Fatalf("len(parts) = %d, want 3", len(parts))
		}
		want := MustFromSlice([]int{2}, []int16{5, 6})
		if !parts[2].(*Tensor).Equal(want) {
			t.Errorf("parts[2] = %v, want %v", parts[2].(*Tensor).Data(), want.Data())
		}
	})

	t.Run("example", func(t *testing.T) {
		words, _ := Strings([]int{2}, []byte("a"), []byte("b"))
		ex := Example{
			"label": MustFromSlice([]int{2}, []int32{0, 1}),
			"word":  words,
		}
		parts, err := Unbatch(ex)
		if err != nil {
			t.Fatalf("Unbatch() error = %v", err)
		}
		if len(parts) != 2 {
			t.Fatalf("len(parts) = %d, want 2", len(parts))
		}
		second := parts[1].(Example)
		bs, _ := second["word"].ByteStrings()
		if string(bs[0]) != "b" {
			t.Errorf("word = %q, want %q", bs[0], "b")
		}
	})

	t.Run("mismatched leading dims", func(t *testing.T) {
		ex := Example{
			"a": MustFromSlice([]int{2}, []int32{0, 1}),
			"b": MustFromSlice([]int{3}, []int32{0, 1, 2}),
		}
		if _, err := Unbatch(ex); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("batch", func(t *testing.T) {
		parts, err := Unbatch(Batch{1, 2, 3})
		if err != nil || len(parts) != 3 {
			t.Errorf("Unbatch(Batch) = %v, %v", parts, err)
		}
	})

	t.Run("scalar", func(t *testing.T) {
		if _, err := Unbatch(Scalar([]byte("x"))); err == nil {
			t.Error("expected error for scalar")
		}
	})
}

func TestTouch(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want int
	}{
		{"scalar", Scalar([]byte("abc")), 1},
		{"matrix", MustFromSlice([]int{4, 2}, make([]float64, 8)), 4},
		{"example", Example{"b": MustFromSlice([]int{1}, []int8{1}), "a": MustFromSlice([]int{5}, make([]int8, 5))}, 5},
		{"batch", Batch{MustFromSlice([]int{2}, []int8{1, 2}), MustFromSlice([]int{3}, []int8{1, 2, 3})}, 5},
		{"bytes", []byte("hello"), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Touch(tt.v); got != tt.want {
				t.Errorf("Touch() = %d, want %d", got, tt.want)
			}
		})
	}
}
