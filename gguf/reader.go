package gguf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/mrcloudchase/inference-runtime/util/bytex"
)

// reader sequentially decodes the little-endian primitives the GGUF wire
// format is built from. Version gates the width of length/count fields:
// version 1 files pack them as u32, versions 2 and 3 use u64.
type reader struct {
	version uint32
	f       io.ReadSeeker
}

func (r reader) readUint8() (uint8, error) {
	var v uint8
	if err := binary.Read(r.f, binary.LittleEndian, &v); err != nil {
		return 0, &IOError{Stage: "uint8", Err: err}
	}
	return v, nil
}

func (r reader) readInt8() (int8, error) {
	var v int8
	if err := binary.Read(r.f, binary.LittleEndian, &v); err != nil {
		return 0, &IOError{Stage: "int8", Err: err}
	}
	return v, nil
}

func (r reader) readUint16() (uint16, error) {
	var v uint16
	if err := binary.Read(r.f, binary.LittleEndian, &v); err != nil {
		return 0, &IOError{Stage: "uint16", Err: err}
	}
	return v, nil
}

func (r reader) readInt16() (int16, error) {
	var v int16
	if err := binary.Read(r.f, binary.LittleEndian, &v); err != nil {
		return 0, &IOError{Stage: "int16", Err: err}
	}
	return v, nil
}

func (r reader) readUint32() (uint32, error) {
	var v uint32
	if err := binary.Read(r.f, binary.LittleEndian, &v); err != nil {
		return 0, &IOError{Stage: "uint32", Err: err}
	}
	return v, nil
}

func (r reader) readInt32() (int32, error) {
	var v int32
	if err := binary.Read(r.f, binary.LittleEndian, &v); err != nil {
		return 0, &IOError{Stage: "int32", Err: err}
	}
	return v, nil
}

func (r reader) readFloat32() (float32, error) {
	var v float32
	if err := binary.Read(r.f, binary.LittleEndian, &v); err != nil {
		return 0, &IOError{Stage: "float32", Err: err}
	}
	return v, nil
}

func (r reader) readUint64() (uint64, error) {
	var v uint64
	if err := binary.Read(r.f, binary.LittleEndian, &v); err != nil {
		return 0, &IOError{Stage: "uint64", Err: err}
	}
	return v, nil
}

func (r reader) readInt64() (int64, error) {
	var v int64
	if err := binary.Read(r.f, binary.LittleEndian, &v); err != nil {
		return 0, &IOError{Stage: "int64", Err: err}
	}
	return v, nil
}

func (r reader) readFloat64() (float64, error) {
	var v float64
	if err := binary.Read(r.f, binary.LittleEndian, &v); err != nil {
		return 0, &IOError{Stage: "float64", Err: err}
	}
	return v, nil
}

func (r reader) readBool() (bool, error) {
	b, err := r.readUint8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// readLength reads a u64 length field, or a u32 one for version-1 files.
func (r reader) readLength() (uint64, error) {
	if r.version <= 1 {
		v, err := r.readUint32()
		return uint64(v), err
	}
	return r.readUint64()
}

// readString reads a GGUF string: a length-prefixed run of UTF-8 bytes.
// Invalid UTF-8 is a fatal load error.
func (r reader) readString() (string, error) {
	l, err := r.readLength()
	if err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	if l == 0 {
		return "", nil
	}

	b := bytex.GetBytes(l)
	defer bytex.Put(b)
	if _, err := io.ReadFull(r.f, b); err != nil {
		return "", &IOError{Stage: "string bytes", Err: err}
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("gguf: string is not valid utf-8")
	}
	return string(bytes.Clone(b)), nil
}

func (r reader) readValue(vt ValueType) (any, error) {
	if vt >= typeCount {
		return nil, &UnsupportedGGUFTypeError{ID: uint32(vt)}
	}

	switch vt {
	case TypeUint8:
		return r.readUint8()
	case TypeInt8:
		return r.readInt8()
	case TypeUint16:
		return r.readUint16()
	case TypeInt16:
		return r.readInt16()
	case TypeUint32:
		return r.readUint32()
	case TypeInt32:
		return r.readInt32()
	case TypeFloat32:
		return r.readFloat32()
	case TypeBool:
		return r.readBool()
	case TypeString:
		return r.readString()
	case TypeArray:
		return r.readArray()
	case TypeUint64:
		return r.readUint64()
	case TypeInt64:
		return r.readInt64()
	case TypeFloat64:
		return r.readFloat64()
	default:
		return nil, &UnsupportedGGUFTypeError{ID: uint32(vt)}
	}
}

// readArray reads a GGUF array payload: an element-type tag, a length, then
// that many values of that type. Arrays may nest.
func (r reader) readArray() (ArrayValue, error) {
	var v ArrayValue

	et, err := r.readUint32()
	if err != nil {
		return v, fmt.Errorf("read array elem type: %w", err)
	}
	v.ElemType = ValueType(et)
	if v.ElemType >= typeCount {
		return v, &UnsupportedGGUFTypeError{ID: et}
	}

	v.Len, err = r.readLength()
	if err != nil {
		return v, fmt.Errorf("read array length: %w", err)
	}

	v.Items = make([]any, v.Len)
	for i := uint64(0); i < v.Len; i++ {
		v.Items[i], err = r.readValue(v.ElemType)
		if err != nil {
			return v, fmt.Errorf("read array item %d: %w", i, err)
		}
	}
	return v, nil
}

func (r reader) readKV() (KV, error) {
	var kv KV

	key, err := r.readString()
	if err != nil {
		return kv, fmt.Errorf("read key: %w", err)
	}
	kv.Key = key

	vt, err := r.readUint32()
	if err != nil {
		return kv, fmt.Errorf("read %s value type: %w", key, err)
	}
	if ValueType(vt) >= typeCount {
		return kv, &UnsupportedGGUFTypeError{ID: vt}
	}
	kv.Type = ValueType(vt)

	kv.Value, err = r.readValue(kv.Type)
	if err != nil {
		return kv, fmt.Errorf("read %s value: %w", key, err)
	}
	return kv, nil
}

func (r reader) readTensorInfo() (TensorInfo, error) {
	var ti TensorInfo

	name, err := r.readString()
	if err != nil {
		return ti, fmt.Errorf("read tensor name: %w", err)
	}
	ti.Name = name

	nDims, err := r.readUint32()
	if err != nil {
		return ti, fmt.Errorf("read %s n_dims: %w", name, err)
	}

	ti.Dimensions = make([]uint64, nDims)
	for i := uint32(0); i < nDims; i++ {
		ti.Dimensions[i], err = r.readLength()
		if err != nil {
			return ti, fmt.Errorf("read %s dimension %d: %w", name, i, err)
		}
	}

	typeID, err := r.readUint32()
	if err != nil {
		return ti, fmt.Errorf("read %s type: %w", name, err)
	}
	ggmlType := GGMLType(typeID)
	if !ggmlType.Supported() {
		return ti, &UnsupportedGGUFTypeError{ID: typeID}
	}
	ti.Type = ggmlType

	ti.Offset, err = r.readUint64()
	if err != nil {
		return ti, fmt.Errorf("read %s offset: %w", name, err)
	}

	return ti, nil
}
