package gguf

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// half converts an IEEE 754 binary16 value to float32.
func half(bits uint16) float32 {
	return float16.Frombits(bits).Float32()
}

// dequantize converts raw on-disk bytes of the given GGML type to a plain
// f32 slice of exactly numel elements.
func dequantize(t GGMLType, raw []byte, numel uint64) ([]float32, error) {
	switch t {
	case GGMLTypeF32:
		return dequantizeF32(raw, numel), nil
	case GGMLTypeF16:
		return dequantizeF16(raw, numel), nil
	case GGMLTypeQ4_0:
		return dequantizeQ4_0(raw, numel), nil
	case GGMLTypeQ8_0:
		return dequantizeQ8_0(raw, numel), nil
	default:
		return nil, &UnsupportedGGUFTypeError{ID: uint32(t)}
	}
}

func dequantizeF32(raw []byte, numel uint64) []float32 {
	out := make([]float32, numel)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func dequantizeF16(raw []byte, numel uint64) []float32 {
	out := make([]float32, numel)
	for i := range out {
		bits := binary.LittleEndian.Uint16(raw[i*2:])
		out[i] = half(bits)
	}
	return out
}

// dequantizeQ4_0 decodes blocks of 32 elements packed in 18 bytes: a 2-byte
// half-precision scale, then 16 bytes each holding two 4-bit unsigned
// nibbles (lower nibble first). out[i] = (nibble-8)*scale.
func dequantizeQ4_0(raw []byte, numel uint64) []float32 {
	const blockElems = 32
	const blockBytes = 18

	blocks := (numel + blockElems - 1) / blockElems
	out := make([]float32, 0, blocks*blockElems)

	for b := uint64(0); b < blocks; b++ {
		off := b * blockBytes
		scale := half(binary.LittleEndian.Uint16(raw[off:]))
		nibbles := raw[off+2 : off+blockBytes]
		for _, nb := range nibbles {
			lo := nb & 0x0f
			hi := nb >> 4
			out = append(out, float32(int32(lo)-8)*scale)
			out = append(out, float32(int32(hi)-8)*scale)
		}
	}
	return out[:numel]
}

// dequantizeQ8_0 decodes blocks of 32 elements packed in 34 bytes: a 2-byte
// half-precision scale, then 32 signed bytes. out[i] = int8*scale.
func dequantizeQ8_0(raw []byte, numel uint64) []float32 {
	const blockElems = 32
	const blockBytes = 34

	blocks := (numel + blockElems - 1) / blockElems
	out := make([]float32, 0, blocks*blockElems)

	for b := uint64(0); b < blocks; b++ {
		off := b * blockBytes
		scale := half(binary.LittleEndian.Uint16(raw[off:]))
		vals := raw[off+2 : off+blockBytes]
		for _, v := range vals {
			out = append(out, float32(int8(v))*scale)
		}
	}
	return out[:numel]
}
