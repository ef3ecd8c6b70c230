package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeString appends a GGUF-v3 length-prefixed string.
func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint64(len(s)))
	buf.WriteString(s)
}

func writeStringArray(buf *bytes.Buffer, key string, vals []string) {
	writeString(buf, key)
	_ = binary.Write(buf, binary.LittleEndian, uint32(9)) // TypeArray
	_ = binary.Write(buf, binary.LittleEndian, uint32(8)) // elem TypeString
	_ = binary.Write(buf, binary.LittleEndian, uint64(len(vals)))
	for _, v := range vals {
		writeString(buf, v)
	}
}

func writeF32Array(buf *bytes.Buffer, key string, vals []float32) {
	writeString(buf, key)
	_ = binary.Write(buf, binary.LittleEndian, uint32(9)) // TypeArray
	_ = binary.Write(buf, binary.LittleEndian, uint32(6)) // elem TypeFloat32
	_ = binary.Write(buf, binary.LittleEndian, uint64(len(vals)))
	for _, v := range vals {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
}

func writeU32(buf *bytes.Buffer, key string, v uint32) {
	writeString(buf, key)
	_ = binary.Write(buf, binary.LittleEndian, uint32(4)) // TypeUint32
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeF32(buf *bytes.Buffer, key string, v float32) {
	writeString(buf, key)
	_ = binary.Write(buf, binary.LittleEndian, uint32(6)) // TypeFloat32
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeTensor(buf *bytes.Buffer, name string, dims []uint64, ggmlType uint32, offset uint64) {
	writeString(buf, name)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(dims)))
	for _, d := range dims {
		_ = binary.Write(buf, binary.LittleEndian, d)
	}
	_ = binary.Write(buf, binary.LittleEndian, ggmlType)
	_ = binary.Write(buf, binary.LittleEndian, offset)
}

// buildFixtureModel assembles the §8 synthetic fixture model: n_vocab=8,
// n_embd=4, n_heads=2, n_kv_heads=1, n_layers=2, n_ff=8, max_seq_len=16,
// tokens = ["<pad>","<bos>","<eos>","a","b","c","ab","ba"], all weights
// zero so predictions are deterministic.
func buildFixtureModel(t *testing.T) string {
	t.Helper()

	const (
		nVocab, nEmbd, nHeads, nKVHeads, nLayers, nFF, maxSeq = 8, 4, 2, 1, 2, 8, 16
		headDim                                               = nEmbd / nHeads
		qDim                                                  = nHeads * headDim
		kvDim                                                 = nKVHeads * headDim
	)
	tokens := []string{"<pad>", "<bos>", "<eos>", "a", "b", "c", "ab", "ba"}
	scores := make([]float32, nVocab)

	var kv bytes.Buffer
	kvCount := 0
	writeString(&kv, "general.architecture")
	_ = binary.Write(&kv, binary.LittleEndian, uint32(8)) // TypeString
	writeString(&kv, "llama")
	kvCount++

	writeU32(&kv, "llama.embedding_length", nEmbd)
	kvCount++
	writeU32(&kv, "llama.attention.head_count", nHeads)
	kvCount++
	writeU32(&kv, "llama.attention.head_count_kv", nKVHeads)
	kvCount++
	writeU32(&kv, "llama.block_count", nLayers)
	kvCount++
	writeU32(&kv, "llama.feed_forward_length", nFF)
	kvCount++
	writeF32(&kv, "llama.attention.layer_norm_rms_epsilon", 1e-5)
	kvCount++
	writeU32(&kv, "llama.context_length", maxSeq)
	kvCount++
	writeStringArray(&kv, "tokenizer.ggml.tokens", tokens)
	kvCount++
	writeF32Array(&kv, "tokenizer.ggml.scores", scores)
	kvCount++
	writeU32(&kv, "tokenizer.ggml.bos_token_id", 1)
	kvCount++
	writeU32(&kv, "tokenizer.ggml.eos_token_id", 2)
	kvCount++
	writeStringArray(&kv, "tokenizer.ggml.merges", []string{"a b"})
	kvCount++

	type tensorSpec struct {
		name string
		dims []uint64
	}
	var specs []tensorSpec
	specs = append(specs, tensorSpec{"token_embd.weight", []uint64{nVocab, nEmbd}})
	specs = append(specs, tensorSpec{"output_norm.weight", []uint64{nEmbd}})
	specs = append(specs, tensorSpec{"output.weight", []uint64{nVocab, nEmbd}})
	for l := 0; l < nLayers; l++ {
		specs = append(specs,
			tensorSpec{ln(l, "attn_norm.weight"), []uint64{nEmbd}},
			tensorSpec{ln(l, "attn_q.weight"), []uint64{qDim, nEmbd}},
			tensorSpec{ln(l, "attn_k.weight"), []uint64{kvDim, nEmbd}},
			tensorSpec{ln(l, "attn_v.weight"), []uint64{kvDim, nEmbd}},
			tensorSpec{ln(l, "attn_output.weight"), []uint64{nEmbd, qDim}},
			tensorSpec{ln(l, "ffn_norm.weight"), []uint64{nEmbd}},
			tensorSpec{ln(l, "ffn_gate.weight"), []uint64{nFF, nEmbd}},
			tensorSpec{ln(l, "ffn_up.weight"), []uint64{nFF, nEmbd}},
			tensorSpec{ln(l, "ffn_down.weight"), []uint64{nEmbd, nFF}},
		)
	}

	var tensorsBuf bytes.Buffer
	offsets := make([]uint64, len(specs))
	var cur uint64
	for i, sp := range specs {
		numel := uint64(1)
		for _, d := range sp.dims {
			numel *= d
		}
		offsets[i] = cur
		tensorsBuf.Write(make([]byte, numel*4)) // F32, all zero
		cur += numel * 4
	}

	var infoBuf bytes.Buffer
	for i, sp := range specs {
		writeTensor(&infoBuf, sp.name, sp.dims, 0 /* GGML F32 */, offsets[i])
	}

	var file bytes.Buffer
	file.WriteString("GGUF")
	_ = binary.Write(&file, binary.LittleEndian, uint32(3))
	_ = binary.Write(&file, binary.LittleEndian, uint64(len(specs)))
	_ = binary.Write(&file, binary.LittleEndian, uint64(kvCount))
	file.Write(kv.Bytes())
	file.Write(infoBuf.Bytes())

	for file.Len()%32 != 0 {
		file.WriteByte(0)
	}
	file.Write(tensorsBuf.Bytes())

	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.gguf")
	require.NoError(t, os.WriteFile(path, file.Bytes(), 0o644))
	return path
}

func ln(layer int, suffix string) string {
	return "blk." + itoa(layer) + "." + suffix
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func TestSessionLoadAndGenerateZeroWeights(t *testing.T) {
	path := buildFixtureModel(t)

	s := New()
	defer s.Close()

	st := s.Load(path)
	require.Equal(t, Ok, st, s.LastError())

	ctx := context.Background()
	text, st := s.Generate(ctx, "a", Params{MaxTokens: 3})
	require.Equal(t, Ok, st, s.LastError())
	assert.NotEmpty(t, text)

	stats := s.Stats()
	assert.Equal(t, 3, stats.GeneratedTokens)
}

func TestSessionGenerateStreamingStopsOnFalse(t *testing.T) {
	path := buildFixtureModel(t)

	s := New()
	defer s.Close()
	require.Equal(t, Ok, s.Load(path))

	calls := 0
	st := s.GenerateStreaming(context.Background(), "a", Params{MaxTokens: 3}, func(string) bool {
		calls++
		return calls < 1
	})
	assert.Equal(t, Ok, st)
	assert.Equal(t, 1, calls)
}

func TestSessionGenerateWithoutModelIsInvalidArgument(t *testing.T) {
	s := New()
	_, st := s.Generate(context.Background(), "hi", Params{MaxTokens: 1})
	assert.Equal(t, InvalidArgument, st)
	assert.NotEmpty(t, s.LastError())
}

func TestSessionResetAfterGenerateZeroesCacheLength(t *testing.T) {
	path := buildFixtureModel(t)

	s := New()
	defer s.Close()
	require.Equal(t, Ok, s.Load(path))

	_, st := s.Generate(context.Background(), "a b", Params{MaxTokens: 2})
	require.Equal(t, Ok, st)

	require.Equal(t, Ok, s.Reset())
	assert.Zero(t, s.model.Cache.Len())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Ok", Ok.String())
	assert.Equal(t, "Generate", Generate.String())
}
