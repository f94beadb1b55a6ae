// Package schema describes the shape and type of the elements flowing
// through a preprocessing pipeline.
package schema

import (
	"fmt"
	"strings"
)

// DType is the element datatype of a tensor.
type DType int

const (
	// Invalid is the zero DType and never appears in a valid Spec.
	Invalid DType = iota
	// String is a byte string. Tensors of this type hold one []byte per element.
	String
	Int8
	Int16
	Int32
	Uint8
	Uint16
	Uint32
	Float32
	Float64
)

var dtypeNames = map[DType]string{
	String:  "string",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Float32: "float32",
	Float64: "float64",
}

// String returns the name of the datatype.
func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("dtype(%d)", int(d))
}

// Valid reports whether d is one of the supported datatypes.
func (d DType) Valid() bool {
	_, ok := dtypeNames[d]
	return ok
}

// Size returns the encoded width of one element in bytes.
// String has no fixed width and reports 0.
func (d DType) Size() int {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// ParseDType parses a datatype name such as "float32" or "uint8".
func ParseDType(s string) (DType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "bytes" {
		return String, nil
	}
	for d, n := range dtypeNames {
		if n == name {
			return d, nil
		}
	}
	return Invalid, fmt.Errorf("schema: unknown dtype %q", s)
}
