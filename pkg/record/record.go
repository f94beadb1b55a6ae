// Package record implements the self-describing byte encoding used to
// persist pipeline elements between the offline and online phases.
//
// A record is a magic header followed by a field count and the fields in
// lexicographic name order. Each field carries its name, a tag and a
// payload. Scalar byte strings are stored verbatim; every other tensor is
// stored as a dtype and shape tagged, length-prefixed little-endian blob.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/user/shardbench/pkg/schema"
)

// SingletonField is the field name used for single-tensor schemas.
const SingletonField = "data"

// ErrMalformedRecord is returned when a byte string cannot be decoded
// into the elements described by a schema.
var ErrMalformedRecord = errors.New("record: malformed record")

var magic = [4]byte{'S', 'B', 'R', 1}

const (
	tagBytes  byte = 1
	tagTensor byte = 2
)

// Encode serializes v, which must conform to s.
func Encode(s schema.Schema, v any) ([]byte, error) {
	if err := schema.Conforms(s, v); err != nil {
		return nil, fmt.Errorf("record: encode: %w", err)
	}
	fields := asFields(s, v)

	names := s.FieldNames()
	if !s.IsStructured() {
		names = []string{SingletonField}
	}

	buf := append([]byte(nil), magic[:]...)
	buf = binary.AppendUvarint(buf, uint64(len(names)))
	for _, name := range names {
		buf = appendString(buf, name)
		var err error
		buf, err = appendTensor(buf, fields[name])
		if err != nil {
			return nil, fmt.Errorf("record: field %q: %w", name, err)
		}
	}
	return buf, nil
}

// Decode is the inverse of Encode for the same schema. Single-tensor
// schemas yield a *schema.Tensor, structured schemas a schema.Example.
func Decode(s schema.Schema, b []byte) (any, error) {
	d := &decoder{buf: b}
	if len(b) < len(magic) || [4]byte(b[:4]) != magic {
		return nil, fmt.Errorf("%w: bad header", ErrMalformedRecord)
	}
	d.off = len(magic)

	n, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	want := s.FieldNames()
	if !s.IsStructured() {
		want = []string{SingletonField}
	}
	if n != uint64(len(want)) {
		return nil, fmt.Errorf("%w: %d fields, want %d", ErrMalformedRecord, n, len(want))
	}

	ex := make(schema.Example, len(want))
	for _, name := range want {
		got, err := d.readString()
		if err != nil {
			return nil, err
		}
		if got != name {
			return nil, fmt.Errorf("%w: field %q, want %q", ErrMalformedRecord, got, name)
		}
		t, err := d.tensor()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		ex[name] = t
	}
	if d.off != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedRecord, len(b)-d.off)
	}

	var out any = ex
	if !s.IsStructured() {
		out = ex[SingletonField]
	}
	if err := schema.Conforms(s, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return out, nil
}

func asFields(s schema.Schema, v any) schema.Example {
	if s.IsStructured() {
		return v.(schema.Example)
	}
	return schema.Example{SingletonField: v.(*schema.Tensor)}
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendTensor(buf []byte, t *schema.Tensor) ([]byte, error) {
	if t.DType == schema.String && len(t.Shape) == 0 {
		bs, _ := t.ByteStrings()
		buf = append(buf, tagBytes)
		buf = binary.AppendUvarint(buf, uint64(len(bs[0])))
		return append(buf, bs[0]...), nil
	}

	buf = append(buf, tagTensor, byte(t.DType))
	buf = binary.AppendUvarint(buf, uint64(len(t.Shape)))
	for _, d := range t.Shape {
		buf = binary.AppendUvarint(buf, uint64(d))
	}

	var payload []byte
	if t.DType == schema.String {
		bs, _ := t.ByteStrings()
		for _, b := range bs {
			payload = binary.AppendUvarint(payload, uint64(len(b)))
			payload = append(payload, b...)
		}
	} else {
		var err error
		if payload, err = t.AppendRaw(nil); err != nil {
			return nil, err
		}
	}
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	return append(buf, payload...), nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad varint at offset %d", ErrMalformedRecord, d.off)
	}
	d.off += n
	return v, nil
}

func (d *decoder) next(n uint64) ([]byte, error) {
	if n > uint64(len(d.buf)-d.off) {
		return nil, fmt.Errorf("%w: truncated at offset %d", ErrMalformedRecord, d.off)
	}
	b := d.buf[d.off : d.off+int(n)]
	d.off += int(n)
	return b, nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.uvarint()
	if err != nil {
		return "", err
	}
	b, err := d.next(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) tensor() (*schema.Tensor, error) {
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagBytes:
		n, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		b, err := d.next(n)
		if err != nil {
			return nil, err
		}
		return schema.Scalar(append([]byte(nil), b...)), nil

	case tagTensor:
		db, err := d.readByte()
		if err != nil {
			return nil, err
		}
		dtype := schema.DType(db)
		if !dtype.Valid() {
			return nil, fmt.Errorf("%w: unknown dtype %d", ErrMalformedRecord, db)
		}
		rank, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		if rank > 32 {
			return nil, fmt.Errorf("%w: rank %d", ErrMalformedRecord, rank)
		}
		shape := make([]int, rank)
		for i := range shape {
			dim, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			if dim > uint64(len(d.buf)) {
				return nil, fmt.Errorf("%w: dimension %d exceeds record size", ErrMalformedRecord, dim)
			}
			shape[i] = int(dim)
		}
		n, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		payload, err := d.next(n)
		if err != nil {
			return nil, err
		}
		count := schema.NumElements(shape)
		if count < 0 {
			return nil, fmt.Errorf("%w: shape %v overflows", ErrMalformedRecord, shape)
		}
		if dtype == schema.String {
			// Every string carries at least its one-byte length.
			if count > len(payload) {
				return nil, fmt.Errorf("%w: %d strings in %d payload bytes", ErrMalformedRecord, count, len(payload))
			}
			return decodeStrings(shape, payload)
		}
		t, err := schema.DecodeRaw(dtype, shape, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		return t, nil

	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrMalformedRecord, tag)
	}
}

func decodeStrings(shape []int, payload []byte) (*schema.Tensor, error) {
	d := &decoder{buf: payload}
	var values [][]byte
	for d.off < len(payload) {
		n, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		b, err := d.next(n)
		if err != nil {
			return nil, err
		}
		values = append(values, append([]byte(nil), b...))
	}
	t, err := schema.Strings(shape, values...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return t, nil
}
