package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Unknown marks a dimension whose size varies between elements.
const Unknown = -1

// Shape is an ordered list of dimension sizes. Any dimension may be Unknown.
type Shape []int

// Equal reports whether two shapes declare the same dimensions.
// Unknown only equals Unknown.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Accepts reports whether concrete dimensions dims satisfy the shape.
func (s Shape) Accepts(dims []int) bool {
	if len(s) != len(dims) {
		return false
	}
	for i, d := range s {
		if d != Unknown && d != dims[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		if d == Unknown {
			parts[i] = "?"
		} else {
			parts[i] = strconv.Itoa(d)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Spec describes a single tensor: its shape and datatype.
type Spec struct {
	Shape Shape
	DType DType
}

// TensorSpec returns a Spec with the given datatype and dimensions.
func TensorSpec(dtype DType, dims ...int) Spec {
	return Spec{Shape: append(Shape(nil), dims...), DType: dtype}
}

// Equal reports whether two specs are identical.
func (s Spec) Equal(o Spec) bool {
	return s.DType == o.DType && s.Shape.Equal(o.Shape)
}

func (s Spec) String() string {
	return s.DType.String() + s.Shape.String()
}

// Check returns an error if t does not conform to s.
func (s Spec) Check(t *Tensor) error {
	if t == nil {
		return fmt.Errorf("want %s, got nil tensor", s)
	}
	if t.DType != s.DType {
		return fmt.Errorf("want dtype %s, got %s", s.DType, t.DType)
	}
	if !s.Shape.Accepts(t.Shape) {
		return fmt.Errorf("want shape %s, got %v", s.Shape, t.Shape)
	}
	return nil
}

// Schema is the type descriptor of a pipeline element. It either
// describes a single tensor or a mapping from field name to tensor.
// A Schema is immutable once constructed.
type Schema struct {
	single *Spec
	fields map[string]Spec
}

// Single returns a schema for elements that are one tensor.
func Single(spec Spec) Schema {
	spec.Shape = append(Shape(nil), spec.Shape...)
	return Schema{single: &spec}
}

// Of is shorthand for Single(TensorSpec(dtype, dims...)).
func Of(dtype DType, dims ...int) Schema {
	return Single(TensorSpec(dtype, dims...))
}

// Bytes returns the schema of a scalar byte string.
func Bytes() Schema {
	return Of(String)
}

// Fields returns a schema for structured elements with named fields.
func Fields(fields map[string]Spec) Schema {
	cp := make(map[string]Spec, len(fields))
	for name, spec := range fields {
		spec.Shape = append(Shape(nil), spec.Shape...)
		cp[name] = spec
	}
	return Schema{fields: cp}
}

// IsZero reports whether the schema is unset.
func (s Schema) IsZero() bool {
	return s.single == nil && s.fields == nil
}

// IsStructured reports whether elements are field mappings.
func (s Schema) IsStructured() bool {
	return s.fields != nil
}

// Spec returns the tensor spec of a single-tensor schema.
func (s Schema) Spec() (Spec, bool) {
	if s.single == nil {
		return Spec{}, false
	}
	return *s.single, true
}

// FieldNames returns the field names in lexicographic order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Field returns the spec of a named field.
func (s Schema) Field(name string) (Spec, bool) {
	spec, ok := s.fields[name]
	return spec, ok
}

// Equal reports whether two schemas describe the same elements.
func (s Schema) Equal(o Schema) bool {
	switch {
	case s.single != nil || o.single != nil:
		return s.single != nil && o.single != nil && s.single.Equal(*o.single)
	case s.fields == nil || o.fields == nil:
		return s.fields == nil && o.fields == nil
	}
	if len(s.fields) != len(o.fields) {
		return false
	}
	for name, spec := range s.fields {
		other, ok := o.fields[name]
		if !ok || !spec.Equal(other) {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	if s.single != nil {
		return s.single.String()
	}
	if s.fields == nil {
		return "<none>"
	}
	parts := make([]string, 0, len(s.fields))
	for _, name := range s.FieldNames() {
		parts = append(parts, name+":"+s.fields[name].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Conforms returns an error if v is not a valid element of s.
// Single-tensor schemas expect a *Tensor, structured schemas an Example
// with exactly the declared fields.
func Conforms(s Schema, v any) error {
	if s.single != nil {
		t, ok := v.(*Tensor)
		if !ok {
			return fmt.Errorf("schema %s: want *Tensor, got %T", s, v)
		}
		if err := s.single.Check(t); err != nil {
			return fmt.Errorf("schema %s: %w", s, err)
		}
		return nil
	}
	ex, ok := v.(Example)
	if !ok {
		return fmt.Errorf("schema %s: want Example, got %T", s, v)
	}
	if len(ex) != len(s.fields) {
		return fmt.Errorf("schema %s: want %d fields, got %d", s, len(s.fields), len(ex))
	}
	for _, name := range s.FieldNames() {
		t, ok := ex[name]
		if !ok {
			return fmt.Errorf("schema %s: missing field %q", s, name)
		}
		if err := s.fields[name].Check(t); err != nil {
			return fmt.Errorf("schema %s: field %q: %w", s, name, err)
		}
	}
	return nil
}
