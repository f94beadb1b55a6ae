package record

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/user/shardbench/pkg/schema"
)

func TestRoundTrip(t *testing.T) {
	words, _ := schema.Strings([]int{3}, []byte("alpha"), []byte(""), []byte{0, 0xff, 0x10})
	weirdNaN := math.Float64frombits(0x7ff8dead0000beef)

	tests := []struct {
		name   string
		schema schema.Schema
		value  any
	}{
		{
			name:   "float32 matrix",
			schema: schema.Of(schema.Float32, 2, 3),
			value:  schema.MustFromSlice([]int{2, 3}, []float32{0, -1.25, 3.5e-38, float32(math.Inf(1)), float32(math.NaN()), 7}),
		},
		{
			name:   "float64 nan payload",
			schema: schema.Of(schema.Float64, schema.Unknown),
			value:  schema.MustFromSlice([]int{2}, []float64{weirdNaN, math.Copysign(0, -1)}),
		},
		{
			name:   "scalar byte string",
			schema: schema.Bytes(),
			value:  schema.Scalar([]byte("raw \x00 jpeg bytes")),
		},
		{
			name:   "string vector",
			schema: schema.Of(schema.String, 3),
			value:  words,
		},
		{
			name:   "uint8 image",
			schema: schema.Of(schema.Uint8, 2, 2, 3),
			value:  schema.MustFromSlice([]int{2, 2, 3}, []uint8{0, 1, 2, 3, 4, 5, 250, 251, 252, 253, 254, 255}),
		},
		{
			name: "structured mixed",
			schema: schema.Fields(map[string]schema.Spec{
				"image": schema.TensorSpec(schema.Uint8, 1, 2),
				"label": schema.TensorSpec(schema.Int32),
				"path":  schema.TensorSpec(schema.String),
				"delta": schema.TensorSpec(schema.Int16, schema.Unknown),
			}),
			value: schema.Example{
				"image": schema.MustFromSlice([]int{1, 2}, []uint8{9, 8}),
				"label": schema.MustFromSlice([]int{}, []int32{-42}),
				"path":  schema.Scalar([]byte("/data/0001.jpg")),
				"delta": schema.MustFromSlice([]int{0}, []int16{}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.schema, tt.value)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(tt.schema, b)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !schema.ElementsEqual(got, tt.value) {
				t.Errorf("round trip mismatch: got %v, want %v", got, tt.value)
			}
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	s := schema.Fields(map[string]schema.Spec{
		"z": schema.TensorSpec(schema.Int8),
		"a": schema.TensorSpec(schema.Int8),
		"m": schema.TensorSpec(schema.Int8),
	})
	ex := schema.Example{
		"z": schema.MustFromSlice([]int{}, []int8{1}),
		"a": schema.MustFromSlice([]int{}, []int8{2}),
		"m": schema.MustFromSlice([]int{}, []int8{3}),
	}

	first, err := Encode(s, ex)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		b, _ := Encode(s, ex)
		if string(b) != string(first) {
			t.Fatal("encoding depends on map iteration order")
		}
	}
}

func TestEncode_NonConforming(t *testing.T) {
	v := schema.MustFromSlice([]int{2}, []int32{1, 2})
	if _, err := Encode(schema.Of(schema.Float32, 2), v); err == nil {
		t.Error("expected error encoding int32 tensor as float32")
	}
}

func TestDecode_Malformed(t *testing.T) {
	s := schema.Of(schema.Int32, 2)
	good, err := Encode(s, schema.MustFromSlice([]int{2}, []int32{1, 2}))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tests := []struct {
		name   string
		schema schema.Schema
		data   []byte
	}{
		{"empty", s, nil},
		{"bad magic", s, append([]byte("XXXX"), good[4:]...)},
		{"truncated", s, good[:len(good)-1]},
		{"trailing", s, append(append([]byte(nil), good...), 0)},
		{"wrong schema", schema.Of(schema.Float32, 2), good},
		{"wrong field set", schema.Fields(map[string]schema.Spec{"x": schema.TensorSpec(schema.Int32, 2)}), good},
		{"foreign bytes", s, []byte("not a record at all")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.schema, tt.data)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("Decode() error = %v, want ErrMalformedRecord", err)
			}
		})
	}
}

// tensorRecord hand-builds a singleton record around a tensor header.
func tensorRecord(dtype schema.DType, dims []uint64, payload []byte) []byte {
	b := append([]byte(nil), magic[:]...)
	b = binary.AppendUvarint(b, 1)
	b = appendString(b, SingletonField)
	b = append(b, tagTensor, byte(dtype))
	b = binary.AppendUvarint(b, uint64(len(dims)))
	for _, d := range dims {
		b = binary.AppendUvarint(b, d)
	}
	b = binary.AppendUvarint(b, uint64(len(payload)))
	return append(b, payload...)
}

func TestDecode_HostileShapes(t *testing.T) {
	sixteens := make([]uint64, 32)
	for i := range sixteens {
		sixteens[i] = 16
	}
	words := schema.Of(schema.String, schema.Unknown, schema.Unknown)
	floats := schema.Of(schema.Float32, schema.Unknown, schema.Unknown)

	tests := []struct {
		name   string
		schema schema.Schema
		data   []byte
	}{
		{"strings with huge dims", words, tensorRecord(schema.String, []uint64{1 << 32, 1 << 32}, nil)},
		{"floats with huge dims", floats, tensorRecord(schema.Float32, []uint64{1 << 32, 1 << 32}, nil)},
		{"huge dim times zero", floats, tensorRecord(schema.Float32, []uint64{1 << 40, 0}, nil)},
		{"element count overflows", words, tensorRecord(schema.String, sixteens, nil)},
		{"more strings than payload bytes", schema.Of(schema.String, schema.Unknown), tensorRecord(schema.String, []uint64{3}, []byte{0, 0})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode(tt.schema, tt.data)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("Decode() = %v, %v, want ErrMalformedRecord", v, err)
			}
		})
	}
}

func TestDecode_EmptyStringsWithinBounds(t *testing.T) {
	s := schema.Of(schema.String, schema.Unknown)
	v, err := Decode(s, tensorRecord(schema.String, []uint64{3}, []byte{0, 0, 0}))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := v.(*schema.Tensor).Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}
