package tensor

import "fmt"

// Tensor is an owning, row-major, contiguous buffer of f32 elements together
// with its shape and the dtype it was dequantized from. The model only ever
// sees tensors after dequantization: Data is always f32 regardless of the
// on-disk DType.
type Tensor struct {
	Data  []float32
	Shape Shape
	DType DType
}

// New allocates a zeroed tensor of the given shape.
func New(shape Shape) *Tensor {
	return &Tensor{Data: make([]float32, shape.Numel()), Shape: shape, DType: F32}
}

// FromSlice wraps an existing f32 buffer as a tensor, without copying.
// The caller must ensure len(data) == shape.Numel().
func FromSlice(data []float32, shape Shape) *Tensor {
	return &Tensor{Data: data, Shape: shape, DType: F32}
}

// DTypeMismatch reports that an operation received a tensor of the wrong dtype.
type DTypeMismatch struct {
	Want, Got DType
}

func (e *DTypeMismatch) Error() string {
	return fmt.Sprintf("dtype mismatch: want %s, got %s", e.Want, e.Got)
}

// ShapeMismatch reports that two tensors expected to share a shape did not.
type ShapeMismatch struct {
	Want, Got Shape
}

func (e *ShapeMismatch) Error() string {
	return fmt.Sprintf("shape mismatch: want %v, got %v", e.Want, e.Got)
}
