package gguf

import (
	"fmt"

	"github.com/mrcloudchase/inference-runtime/tensor"
)

// GGMLType is the on-wire tensor element type ID, as written by llama.cpp's
// GGML library. Only the four IDs this engine can dequantize map to a
// tensor.DType; any other type ID is rejected while the tensor-info table is
// read (see Supported), which fails the whole parse.
type GGMLType uint32

// GGMLType constants, matching ggml.h's enum ggml_type ordering for the IDs
// this engine cares about. Gaps are intentionally left unnamed: the wire
// format defines dozens of quantization schemes this engine does not decode.
const (
	GGMLTypeF32  GGMLType = 0
	GGMLTypeF16  GGMLType = 1
	GGMLTypeQ4_0 GGMLType = 2
	GGMLTypeQ8_0 GGMLType = 8
)

// Supported reports whether this engine can dequantize t. Per the format's
// fixed parse order, an unsupported type ID fails the whole load: it is
// caught here, at tensor-info read time, rather than deferred to first use.
func (t GGMLType) Supported() bool {
	switch t {
	case GGMLTypeF32, GGMLTypeF16, GGMLTypeQ4_0, GGMLTypeQ8_0:
		return true
	default:
		return false
	}
}

// DType maps a supported GGMLType to the tensor.DType used after
// dequantization.
func (t GGMLType) DType() (tensor.DType, error) {
	switch t {
	case GGMLTypeF32:
		return tensor.F32, nil
	case GGMLTypeF16:
		return tensor.F16, nil
	case GGMLTypeQ4_0:
		return tensor.Q4_0, nil
	case GGMLTypeQ8_0:
		return tensor.Q8_0, nil
	default:
		return 0, &UnsupportedGGUFTypeError{ID: uint32(t)}
	}
}

func (t GGMLType) String() string {
	switch t {
	case GGMLTypeF32:
		return "F32"
	case GGMLTypeF16:
		return "F16"
	case GGMLTypeQ4_0:
		return "Q4_0"
	case GGMLTypeQ8_0:
		return "Q8_0"
	default:
		return fmt.Sprintf("GGMLType(%d)", uint32(t))
	}
}
