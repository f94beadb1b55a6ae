package pipeline

import (
	"fmt"

	"github.com/user/shardbench/pkg/record"
	"github.com/user/shardbench/pkg/schema"
)

const (
	// SerializeStepName names the step appended to an offline prefix.
	SerializeStepName = "serialize"
	// DeserializeStepName names the step prepended to an online suffix.
	DeserializeStepName = "deserialize"
)

// Split cuts p before step pos. The prefix holds steps[0:pos] followed by
// a serializer for the schema at the cut; the suffix holds a matching
// deserializer followed by steps[pos:]. The suffix has no source; the
// caller prepends one that yields the serialized records.
func Split(p Pipeline, pos int) (prefix, suffix Pipeline, err error) {
	if pos <= 0 || pos > len(p) {
		return nil, nil, fmt.Errorf("%w: %d not in (0, %d]", ErrInvalidSplit, pos, len(p))
	}
	if err := Validate(p); err != nil {
		return nil, nil, err
	}

	cut := p[pos-1].Output
	prefix = make(Pipeline, 0, pos+1)
	prefix = append(prefix, p[:pos]...)
	prefix = append(prefix, Serializer(cut))

	suffix = make(Pipeline, 0, len(p)-pos+1)
	suffix = append(suffix, Deserializer(cut))
	suffix = append(suffix, p[pos:]...)
	return prefix, suffix, nil
}

// Serializer returns a step encoding elements of s into scalar byte
// string tensors.
func Serializer(s schema.Schema) Step {
	return TransformStep(SerializeStepName, s, schema.Bytes(), TransformFunc(func(v any) (any, error) {
		b, err := record.Encode(s, v)
		if err != nil {
			return nil, err
		}
		return schema.Scalar(b), nil
	}))
}

// Deserializer returns the inverse step of Serializer(s).
func Deserializer(s schema.Schema) Step {
	return TransformStep(DeserializeStepName, schema.Bytes(), s, TransformFunc(func(v any) (any, error) {
		b, err := RecordBytes(v)
		if err != nil {
			return nil, err
		}
		return record.Decode(s, b)
	}))
}

// RecordBytes extracts the payload of a scalar byte string element.
func RecordBytes(v any) ([]byte, error) {
	t, ok := v.(*schema.Tensor)
	if !ok || t.DType != schema.String || len(t.Shape) != 0 {
		return nil, fmt.Errorf("%w: want scalar byte string, got %T", record.ErrMalformedRecord, v)
	}
	bs, _ := t.ByteStrings()
	return bs[0], nil
}
