package schema

import (
	"fmt"
	"sort"
)

// ElementsEqual reports whether two pipeline elements are identical.
// Tensors and Examples compare bit-for-bit; Batches element-wise.
func ElementsEqual(a, b any) bool {
	switch x := a.(type) {
	case *Tensor:
		y, ok := b.(*Tensor)
		return ok && x.Equal(y)
	case Example:
		y, ok := b.(Example)
		return ok && x.Equal(y)
	case Batch:
		y, ok := b.(Batch)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !ElementsEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Unbatch splits one element into its constituents along the leading
// axis. Batches yield their members, tensors their sub-tensors, and
// examples one example per leading index shared by all fields.
func Unbatch(v any) ([]any, error) {
	switch x := v.(type) {
	case Batch:
		return []any(x), nil
	case []any:
		return x, nil
	case *Tensor:
		if len(x.Shape) == 0 {
			return nil, fmt.Errorf("schema: cannot unbatch a scalar tensor")
		}
		out := make([]any, x.Shape[0])
		for i := range out {
			sub, err := x.Slice(i)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	case Example:
		names := make([]string, 0, len(x))
		for name := range x {
			names = append(names, name)
		}
		sort.Strings(names)
		n := -1
		for _, name := range names {
			t := x[name]
			if len(t.Shape) == 0 {
				return nil, fmt.Errorf("schema: cannot unbatch scalar field %q", name)
			}
			if n >= 0 && t.Shape[0] != n {
				return nil, fmt.Errorf("schema: field %q has leading dimension %d, want %d", name, t.Shape[0], n)
			}
			n = t.Shape[0]
		}
		if n < 0 {
			return nil, nil
		}
		out := make([]any, n)
		for i := 0; i < n; i++ {
			ex := make(Example, len(x))
			for _, name := range names {
				sub, err := x[name].Slice(i)
				if err != nil {
					return nil, err
				}
				ex[name] = sub
			}
			out[i] = ex
		}
		return out, nil
	default:
		return nil, fmt.Errorf("schema: cannot unbatch %T", v)
	}
}

// Touch forces inspection of an element and returns the size of its
// leading dimension (1 for scalars). For examples the first field in
// lexicographic order is used; batches sum their members.
func Touch(v any) int {
	switch x := v.(type) {
	case *Tensor:
		if x == nil {
			return 0
		}
		if len(x.Shape) == 0 {
			return 1
		}
		return x.Shape[0]
	case Example:
		names := make([]string, 0, len(x))
		for name := range x {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return 0
		}
		return Touch(x[names[0]])
	case Batch:
		n := 0
		for _, e := range x {
			n += Touch(e)
		}
		return n
	case []byte:
		return len(x)
	default:
		return 1
	}
}
