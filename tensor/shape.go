package tensor

import "fmt"

// Shape is an ordered sequence of non-negative dimension sizes.
type Shape []uint64

// Numel returns the product of all dimensions (1 for rank 0).
func (s Shape) Numel() uint64 {
	n := uint64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// Strides returns the row-major strides of a contiguous tensor of this shape:
// stride[k] = product of dims after k.
func (s Shape) Strides() []uint64 {
	st := make([]uint64, len(s))
	acc := uint64(1)
	for k := len(s) - 1; k >= 0; k-- {
		st[k] = acc
		acc *= s[k]
	}
	return st
}

// Equal reports whether s and o have the same rank and dimensions.
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

// BroadcastError reports that two shapes cannot be broadcast together.
type BroadcastError struct {
	A, B Shape
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast error: shapes %v and %v are incompatible", e.A, e.B)
}

// BroadcastShape computes the right-aligned NumPy-style broadcast of a and b:
// dimensions are compared from the trailing (rightmost) end, and at each
// position either the sizes match, or one of them is 1, or one side runs out
// of dimensions (treated as size 1). The result is commutative.
func BroadcastShape(a, b Shape) (Shape, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(Shape, n)
	for i := 0; i < n; i++ {
		var da, db uint64 = 1, 1
		if i < len(a) {
			da = a[len(a)-1-i]
		}
		if i < len(b) {
			db = b[len(b)-1-i]
		}
		switch {
		case da == db:
			out[n-1-i] = da
		case da == 1:
			out[n-1-i] = db
		case db == 1:
			out[n-1-i] = da
		default:
			return nil, &BroadcastError{A: a, B: b}
		}
	}
	return out, nil
}
