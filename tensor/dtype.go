// Package tensor defines the element-type tags, shape algebra, and the
// owning f32 buffer triple that the GGUF reader and the LLaMA model build on.
package tensor

import "fmt"

// DType is a tag for the on-disk encoding of a tensor's elements.
//
// Only F32, F16, Q4_0, Q8_0 decode; any other GGML type ID is rejected by the
// GGUF reader with UnsupportedGGUFTypeError before a DType value is ever
// produced.
type DType uint32

// DType constants, ordered to match the subset of GGML type IDs this engine
// supports (see gguf.GGMLType for the full enumeration used on the wire).
const (
	F32 DType = iota // F32
	F16               // F16
	Q4_0              // Q4_0
	Q8_0              // Q8_0
)

// blockTrait describes how many elements one on-disk block packs, and how
// many bytes that block occupies.
type blockTrait struct {
	BlockSize     uint64
	BytesPerBlock uint64
}

var traits = map[DType]blockTrait{
	F32:  {BlockSize: 1, BytesPerBlock: 4},
	F16:  {BlockSize: 1, BytesPerBlock: 2},
	Q4_0: {BlockSize: 32, BytesPerBlock: 18},
	Q8_0: {BlockSize: 32, BytesPerBlock: 34},
}

// BlockSize returns the number of elements per on-disk block for d.
// Non-quantized types report a block size of 1.
func (d DType) BlockSize() uint64 {
	return traits[d].BlockSize
}

// BytesPerBlock returns the on-disk byte footprint of one block of d.
func (d DType) BytesPerBlock() uint64 {
	return traits[d].BytesPerBlock
}

// Valid reports whether d is one of the dtypes this engine can decode.
func (d DType) Valid() bool {
	_, ok := traits[d]
	return ok
}

// DataSize returns the number of bytes numel elements of d occupy on disk,
// rounding up to a whole number of blocks.
func (d DType) DataSize(numel uint64) uint64 {
	t := traits[d]
	if t.BlockSize == 0 {
		return 0
	}
	blocks := (numel + t.BlockSize - 1) / t.BlockSize
	return blocks * t.BytesPerBlock
}

func (d DType) String() string {
	switch d {
	case F32:
		return "F32"
	case F16:
		return "F16"
	case Q4_0:
		return "Q4_0"
	case Q8_0:
		return "Q8_0"
	default:
		return fmt.Sprintf("DType(%d)", uint32(d))
	}
}
