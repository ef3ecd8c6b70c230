package gguf

import "fmt"

// ErrInvalidMagic is returned when the file does not start with the GGUF
// magic number.
var ErrInvalidMagic = fmt.Errorf("gguf: invalid magic")

// UnsupportedVersionError reports a GGUF version this reader does not
// implement. Only version 3 is accepted.
type UnsupportedVersionError struct {
	Version uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("gguf: unsupported version %d, only version 3 is supported", e.Version)
}

// MissingKeyError reports that a required metadata key was absent.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("gguf: missing metadata key %q", e.Key)
}

// TypeMismatchError reports that a metadata key existed but held a value of
// a different GGUF value kind than the caller asked for.
type TypeMismatchError struct {
	Key       string
	Want, Got ValueType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("gguf: metadata key %q has type %s, want %s", e.Key, e.Got, e.Want)
}

// UnsupportedGGUFTypeError reports a GGML tensor type ID this reader cannot
// dequantize.
type UnsupportedGGUFTypeError struct {
	ID uint32
}

func (e *UnsupportedGGUFTypeError) Error() string {
	return fmt.Sprintf("gguf: unsupported tensor type id %d", e.ID)
}

// TensorNotFoundError reports a named tensor the caller expected to be
// present in the tensor-info table.
type TensorNotFoundError struct {
	Name string
}

func (e *TensorNotFoundError) Error() string {
	return fmt.Sprintf("gguf: tensor %q not found", e.Name)
}

// ChecksumMismatchError reports that a remote file's eagerly-read prefix did
// not match the BLAKE2b-256 digest the caller supplied via
// WithBLAKE2bChecksum.
type ChecksumMismatchError struct {
	Want, Got string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("gguf: checksum mismatch: want %s, got %s", e.Want, e.Got)
}

// IOError wraps an underlying file read/seek failure with the stage at which
// it occurred.
type IOError struct {
	Stage string
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("gguf: io error at %s: %v", e.Stage, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
