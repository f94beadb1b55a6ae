package schema

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Numeric is the set of Go element types backing numeric tensors.
type Numeric interface {
	int8 | int16 | int32 | uint8 | uint16 | uint32 | float32 | float64
}

// Tensor is a dense n-dimensional value. Data holds a slice whose
// element type matches DType: []int8 ... []float64 for numeric types,
// [][]byte for String.
type Tensor struct {
	DType DType
	Shape []int
	data  any
}

// Example is a structured element: a mapping from field name to tensor.
type Example map[string]*Tensor

// Batch groups consecutive elements. Unbatch flattens it again.
type Batch []any

// FromSlice builds a numeric tensor. The number of values must equal
// the product of shape.
func FromSlice[T Numeric](shape []int, values []T) (*Tensor, error) {
	var dtype DType
	switch any(values).(type) {
	case []int8:
		dtype = Int8
	case []int16:
		dtype = Int16
	case []int32:
		dtype = Int32
	case []uint8:
		dtype = Uint8
	case []uint16:
		dtype = Uint16
	case []uint32:
		dtype = Uint32
	case []float32:
		dtype = Float32
	case []float64:
		dtype = Float64
	}
	if n := NumElements(shape); n != len(values) {
		return nil, fmt.Errorf("schema: shape %v holds %d values, got %d", shape, n, len(values))
	}
	return &Tensor{DType: dtype, Shape: append([]int(nil), shape...), data: values}, nil
}

// MustFromSlice is like FromSlice but panics on a shape mismatch.
func MustFromSlice[T Numeric](shape []int, values []T) *Tensor {
	t, err := FromSlice(shape, values)
	if err != nil {
		panic(err)
	}
	return t
}

// Strings builds a String tensor holding one byte string per element.
func Strings(shape []int, values ...[]byte) (*Tensor, error) {
	if n := NumElements(shape); n != len(values) {
		return nil, fmt.Errorf("schema: shape %v holds %d values, got %d", shape, n, len(values))
	}
	return &Tensor{DType: String, Shape: append([]int(nil), shape...), data: values}, nil
}

// Scalar returns a scalar String tensor.
func Scalar(b []byte) *Tensor {
	return &Tensor{DType: String, Shape: []int{}, data: [][]byte{b}}
}

// Values returns the backing slice of a numeric tensor.
func Values[T Numeric](t *Tensor) ([]T, bool) {
	v, ok := t.data.([]T)
	return v, ok
}

// ByteStrings returns the backing slice of a String tensor.
func (t *Tensor) ByteStrings() ([][]byte, bool) {
	v, ok := t.data.([][]byte)
	return v, ok
}

// Len returns the number of elements in the tensor.
func (t *Tensor) Len() int {
	return NumElements(t.Shape)
}

// Data returns the backing slice.
func (t *Tensor) Data() any {
	return t.data
}

// AppendRaw appends the little-endian encoding of a numeric tensor's
// values to b. Floats are encoded by bit pattern, so NaN payloads and
// negative zero survive a round trip.
func (t *Tensor) AppendRaw(b []byte) ([]byte, error) {
	if t.DType == String || !t.DType.Valid() {
		return nil, fmt.Errorf("schema: cannot raw-encode %s tensor", t.DType)
	}
	buf := bytes.NewBuffer(b)
	if err := binary.Write(buf, binary.LittleEndian, t.data); err != nil {
		return nil, fmt.Errorf("schema: encode %s tensor: %w", t.DType, err)
	}
	return buf.Bytes(), nil
}

// DecodeRaw is the inverse of AppendRaw.
func DecodeRaw(dtype DType, shape []int, raw []byte) (*Tensor, error) {
	n := NumElements(shape)
	size := dtype.Size()
	if size == 0 {
		return nil, fmt.Errorf("schema: cannot raw-decode %s tensor", dtype)
	}
	if n < 0 {
		return nil, fmt.Errorf("schema: invalid shape %v", shape)
	}
	if len(raw)%size != 0 || len(raw)/size != n {
		return nil, fmt.Errorf("schema: %s%v holds %d values, got %d bytes", dtype, shape, n, len(raw))
	}
	data := newSlice(dtype, n)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("schema: decode %s tensor: %w", dtype, err)
	}
	return &Tensor{DType: dtype, Shape: append([]int(nil), shape...), data: data}, nil
}

// Equal reports whether two tensors are bit-for-bit identical.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.DType != o.DType || !Shape(t.Shape).Equal(o.Shape) {
		return false
	}
	if t.DType == String {
		a, _ := t.ByteStrings()
		b, _ := o.ByteStrings()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !bytes.Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	}
	ra, err1 := t.AppendRaw(nil)
	rb, err2 := o.AppendRaw(nil)
	return err1 == nil && err2 == nil && bytes.Equal(ra, rb)
}

// Slice returns the i-th sub-tensor along the leading axis.
func (t *Tensor) Slice(i int) (*Tensor, error) {
	if len(t.Shape) == 0 {
		return nil, fmt.Errorf("schema: cannot slice a scalar")
	}
	if i < 0 || i >= t.Shape[0] {
		return nil, fmt.Errorf("schema: index %d out of range [0,%d)", i, t.Shape[0])
	}
	inner := append([]int(nil), t.Shape[1:]...)
	stride := NumElements(inner)
	lo, hi := i*stride, (i+1)*stride
	var data any
	switch d := t.data.(type) {
	case [][]byte:
		data = d[lo:hi]
	case []int8:
		data = d[lo:hi]
	case []int16:
		data = d[lo:hi]
	case []int32:
		data = d[lo:hi]
	case []uint8:
		data = d[lo:hi]
	case []uint16:
		data = d[lo:hi]
	case []uint32:
		data = d[lo:hi]
	case []float32:
		data = d[lo:hi]
	case []float64:
		data = d[lo:hi]
	default:
		return nil, fmt.Errorf("schema: unsupported tensor data %T", t.data)
	}
	return &Tensor{DType: t.DType, Shape: inner, data: data}, nil
}

// Equal reports whether two examples hold identical tensors.
func (e Example) Equal(o Example) bool {
	if len(e) != len(o) {
		return false
	}
	for name, t := range e {
		if !t.Equal(o[name]) {
			return false
		}
	}
	return true
}

func newSlice(d DType, n int) any {
	switch d {
	case Int8:
		return make([]int8, n)
	case Int16:
		return make([]int16, n)
	case Int32:
		return make([]int32, n)
	case Uint8:
		return make([]uint8, n)
	case Uint16:
		return make([]uint16, n)
	case Uint32:
		return make([]uint32, n)
	case Float32:
		return make([]float32, n)
	case Float64:
		return make([]float64, n)
	}
	return nil
}

const maxInt = int(^uint(0) >> 1)

// NumElements returns the number of elements of a tensor with the given
// shape, or -1 when a dimension is negative or the product overflows int.
func NumElements(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return -1
		}
		if d != 0 && n > maxInt/d {
			return -1
		}
		n *= d
	}
	return n
}
