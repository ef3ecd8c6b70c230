package gguf

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildGGUF assembles a minimal well-formed GGUF v3 byte image with the
// given metadata and tensors, for exercising the parser without a real
// model file.
type testTensor struct {
	name string
	typ  GGMLType
	dims []uint64
	raw  []byte
}

func buildGGUF(t *testing.T, kvs []KV, tensors []testTensor) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString(Magic)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(Version))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(tensors)))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(kvs)))

	writeString := func(s string) {
		_ = binary.Write(&buf, binary.LittleEndian, uint64(len(s)))
		buf.WriteString(s)
	}

	for _, kv := range kvs {
		writeString(kv.Key)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(kv.Type))
		switch kv.Type {
		case TypeUint32:
			_ = binary.Write(&buf, binary.LittleEndian, kv.Value.(uint32))
		case TypeFloat32:
			_ = binary.Write(&buf, binary.LittleEndian, kv.Value.(float32))
		case TypeString:
			writeString(kv.Value.(string))
		default:
			t.Fatalf("buildGGUF: unsupported kv type in test helper: %v", kv.Type)
		}
	}

	for _, tn := range tensors {
		writeString(tn.name)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(tn.dims)))
		for _, d := range tn.dims {
			_ = binary.Write(&buf, binary.LittleEndian, d)
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint32(tn.typ))
		_ = binary.Write(&buf, binary.LittleEndian, uint64(0)) // offset 0: each fixture holds at most one tensor
	}

	// Pad to the 32-byte alignment boundary before tensor data.
	for buf.Len()%alignment != 0 {
		buf.WriteByte(0)
	}
	for _, tn := range tensors {
		buf.Write(tn.raw)
	}

	return buf.Bytes()
}

func writeTempGGUF(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gguf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParseFileMetadataRoundTrip(t *testing.T) {
	data := buildGGUF(t, []KV{
		{Key: "general.architecture", Type: TypeString, Value: "llama"},
		{Key: "llama.context_length", Type: TypeUint32, Value: uint32(4096)},
		{Key: "llama.rope.freq_base", Type: TypeFloat32, Value: float32(10000.0)},
	}, nil)

	path := writeTempGGUF(t, data)
	f, err := ParseFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.EqualValues(t, Version, f.Header.Version)
	assert.EqualValues(t, 3, f.Header.MetadataKVCount)

	arch, err := f.Header.MetadataKV.GetString("general.architecture")
	require.NoError(t, err)
	assert.Equal(t, "llama", arch)

	ctxLen, err := GetNumeric[uint32](f.Header.MetadataKV, "llama.context_length")
	require.NoError(t, err)
	assert.EqualValues(t, 4096, ctxLen)

	freqBase, err := GetNumeric[float32](f.Header.MetadataKV, "llama.rope.freq_base")
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, freqBase, 1e-6)

	_, err = f.Header.MetadataKV.GetString("missing.key")
	assert.ErrorAs(t, err, new(*MissingKeyError))

	_, err = f.Header.MetadataKV.Get("llama.context_length")
	require.NoError(t, err)
	_, err = GetNumeric[uint32](f.Header.MetadataKV, "general.architecture")
	assert.ErrorAs(t, err, new(*TypeMismatchError))
}

func TestParseFileInvalidMagic(t *testing.T) {
	data := []byte("BADM" + "\x03\x00\x00\x00")
	path := writeTempGGUF(t, data)

	_, err := ParseFile(path)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestParseFileUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1))
	path := writeTempGGUF(t, buf.Bytes())

	_, err := ParseFile(path)
	var verErr *UnsupportedVersionError
	require.ErrorAs(t, err, &verErr)
	assert.EqualValues(t, 1, verErr.Version)
}

func TestParseFileDequantizeF32(t *testing.T) {
	want := []float32{1, -2, 3.5, 0}
	raw := make([]byte, 4*len(want))
	for i, v := range want {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	data := buildGGUF(t, nil, []testTensor{
		{name: "weight", typ: GGMLTypeF32, dims: []uint64{uint64(len(want))}, raw: raw},
	})
	path := writeTempGGUF(t, data)

	f, err := ParseFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.Dequantize("weight")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = f.Dequantize("nonexistent")
	assert.ErrorAs(t, err, new(*TensorNotFoundError))
}

func TestParseFileDataOffsetAlignment(t *testing.T) {
	data := buildGGUF(t, []KV{
		{Key: "general.architecture", Type: TypeString, Value: "llama"},
	}, []testTensor{
		{name: "t", typ: GGMLTypeF32, dims: []uint64{1}, raw: []byte{0, 0, 0, 0}},
	})
	path := writeTempGGUF(t, data)

	f, err := ParseFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Zero(t, f.DataOffset%alignment)
}
