package gguf

import (
	"fmt"

	"github.com/mrcloudchase/inference-runtime/util/anyx"
)

// ValueType is one of the thirteen GGUF metadata value kinds.
type ValueType uint32

// ValueType constants, matching the GGUF wire format's type IDs.
const (
	TypeUint8 ValueType = iota
	TypeInt8
	TypeUint16
	TypeInt16
	TypeUint32
	TypeInt32
	TypeFloat32
	TypeBool
	TypeString
	TypeArray
	TypeUint64
	TypeInt64
	TypeFloat64
	typeCount // sentinel: count of known types
)

func (t ValueType) String() string {
	switch t {
	case TypeUint8:
		return "Uint8"
	case TypeInt8:
		return "Int8"
	case TypeUint16:
		return "Uint16"
	case TypeInt16:
		return "Int16"
	case TypeUint32:
		return "Uint32"
	case TypeInt32:
		return "Int32"
	case TypeFloat32:
		return "Float32"
	case TypeBool:
		return "Bool"
	case TypeString:
		return "String"
	case TypeArray:
		return "Array"
	case TypeUint64:
		return "Uint64"
	case TypeInt64:
		return "Int64"
	case TypeFloat64:
		return "Float64"
	default:
		return fmt.Sprintf("ValueType(%d)", uint32(t))
	}
}

// ArrayValue is the payload of a TypeArray metadata value. Arrays may nest:
// Items holding another ArrayValue is legal even though LLaMA GGUF files
// never exercise that path.
type ArrayValue struct {
	ElemType ValueType
	Len      uint64
	Items    []any
}

// KV is one metadata key-value pair.
type KV struct {
	Key   string
	Type  ValueType
	Value any
}

// KVs is an ordered list of metadata entries, as read off the wire.
type KVs []KV

// Get looks up key, reporting MissingKeyError if absent.
func (kvs KVs) Get(key string) (KV, error) {
	for _, kv := range kvs {
		if kv.Key == key {
			return kv, nil
		}
	}
	return KV{}, &MissingKeyError{Key: key}
}

// Index looks up several keys in a single pass over kvs, returning the
// entries found and how many of the requested keys were present.
func (kvs KVs) Index(keys []string) (values map[string]KV, found int) {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}

	values = make(map[string]KV, len(keys))
	for _, kv := range kvs {
		if _, ok := want[kv.Key]; ok {
			values[kv.Key] = kv
			found++
		}
	}
	return values, found
}

func (kv KV) typed(want ValueType) error {
	if kv.Type != want {
		return &TypeMismatchError{Key: kv.Key, Want: want, Got: kv.Type}
	}
	return nil
}

// String returns the string value of kv, or TypeMismatchError.
func (kv KV) String() (string, error) {
	if err := kv.typed(TypeString); err != nil {
		return "", err
	}
	return kv.Value.(string), nil
}

// Bool returns the bool value of kv, or TypeMismatchError.
func (kv KV) Bool() (bool, error) {
	if err := kv.typed(TypeBool); err != nil {
		return false, err
	}
	return kv.Value.(bool), nil
}

// Array returns the array value of kv, or TypeMismatchError.
func (kv KV) Array() (ArrayValue, error) {
	if err := kv.typed(TypeArray); err != nil {
		return ArrayValue{}, err
	}
	return kv.Value.(ArrayValue), nil
}

// Numeric coerces kv's value to T, so long as kv holds one of the ten
// numeric GGUF kinds; otherwise it reports TypeMismatchError with Uint32 as
// the wanted kind.
func Numeric[T int | int8 | int16 | int32 | int64 | uint | uint8 | uint16 | uint32 | uint64 | float32 | float64](kv KV) (T, error) {
	switch kv.Value.(type) {
	case uint8, int8, uint16, int16, uint32, int32, float32, uint64, int64, float64:
		return anyx.Number[T](kv.Value), nil
	default:
		return 0, &TypeMismatchError{Key: kv.Key, Want: TypeUint32, Got: kv.Type}
	}
}

// GetString looks up key and type-asserts it to a string in one call.
func (kvs KVs) GetString(key string) (string, error) {
	kv, err := kvs.Get(key)
	if err != nil {
		return "", err
	}
	return kv.String()
}

// GetArray looks up key and type-asserts it to an array in one call.
func (kvs KVs) GetArray(key string) (ArrayValue, error) {
	kv, err := kvs.Get(key)
	if err != nil {
		return ArrayValue{}, err
	}
	return kv.Array()
}

// GetNumeric looks up key and coerces it to T in one call.
func GetNumeric[T int | int8 | int16 | int32 | int64 | uint | uint8 | uint16 | uint32 | uint64 | float32 | float64](kvs KVs, key string) (T, error) {
	kv, err := kvs.Get(key)
	if err != nil {
		return 0, err
	}
	return Numeric[T](kv)
}
