package gguf

import "github.com/mrcloudchase/inference-runtime/tensor"

// TensorInfo describes one tensor's name, shape, wire dtype, and its offset
// within the tensor-data region (relative to DataOffset, not the file start).
type TensorInfo struct {
	Name       string
	Dimensions []uint64
	Type       GGMLType
	Offset     uint64
}

// Numel returns the number of elements the tensor holds.
func (ti TensorInfo) Numel() uint64 {
	n := uint64(1)
	for _, d := range ti.Dimensions {
		n *= d
	}
	return n
}

// DataSize returns the number of bytes this tensor occupies on disk,
// rounded up to a whole number of blocks of its dtype.
func (ti TensorInfo) DataSize() (uint64, error) {
	dt, err := ti.Type.DType()
	if err != nil {
		return 0, err
	}
	return dt.DataSize(ti.Numel()), nil
}

// Shape converts the on-disk dimension list to a tensor.Shape.
func (ti TensorInfo) Shape() tensor.Shape {
	return tensor.Shape(ti.Dimensions)
}

// TensorInfos is the ordered tensor-info table of a GGUF file.
type TensorInfos []TensorInfo

// Get looks up a tensor by name, reporting TensorNotFoundError if absent.
func (tis TensorInfos) Get(name string) (TensorInfo, error) {
	for _, ti := range tis {
		if ti.Name == name {
			return ti, nil
		}
	}
	return TensorInfo{}, &TensorNotFoundError{Name: name}
}
