// Package model implements the LLaMA weight layout, KV cache, and forward
// pass described by the GGUF metadata of a loaded file.
package model

import (
	"fmt"

	"github.com/mrcloudchase/inference-runtime/gguf"
)

// defaultRopeTheta is used when llama.rope.freq_base is absent.
const defaultRopeTheta = 10000.0

// Config is the LLaMA hyperparameter set, derived once from GGUF metadata.
type Config struct {
	NVocab    int
	NEmbd     int
	NHeads    int
	NKVHeads  int
	NLayers   int
	NFF       int
	NormEps   float32
	MaxSeqLen int
	RopeTheta float64

	HeadDim    int
	HeadsPerKV int
}

// InvariantError reports a derived config that violates one of the LLaMA
// shape invariants.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("model: config invariant violated: %s", e.Reason)
}

// NewConfig derives a Config from a GGUF file's metadata and the vocabulary
// size, validating the shape invariants required by the forward pass.
func NewConfig(kvs gguf.KVs, nVocab int) (*Config, error) {
	nEmbd, err := gguf.GetNumeric[uint32](kvs, "llama.embedding_length")
	if err != nil {
		return nil, err
	}
	nHeads, err := gguf.GetNumeric[uint32](kvs, "llama.attention.head_count")
	if err != nil {
		return nil, err
	}
	nKVHeads, err := gguf.GetNumeric[uint32](kvs, "llama.attention.head_count_kv")
	if err != nil {
		return nil, err
	}
	nLayers, err := gguf.GetNumeric[uint32](kvs, "llama.block_count")
	if err != nil {
		return nil, err
	}
	nFF, err := gguf.GetNumeric[uint32](kvs, "llama.feed_forward_length")
	if err != nil {
		return nil, err
	}
	normEps, err := gguf.GetNumeric[float32](kvs, "llama.attention.layer_norm_rms_epsilon")
	if err != nil {
		return nil, err
	}
	maxSeqLen, err := gguf.GetNumeric[uint32](kvs, "llama.context_length")
	if err != nil {
		return nil, err
	}

	ropeTheta := float64(defaultRopeTheta)
	if v, err := gguf.GetNumeric[float32](kvs, "llama.rope.freq_base"); err == nil {
		ropeTheta = float64(v)
	}

	c := &Config{
		NVocab:    nVocab,
		NEmbd:     int(nEmbd),
		NHeads:    int(nHeads),
		NKVHeads:  int(nKVHeads),
		NLayers:   int(nLayers),
		NFF:       int(nFF),
		NormEps:   normEps,
		MaxSeqLen: int(maxSeqLen),
		RopeTheta: ropeTheta,
	}

	if c.NHeads == 0 || c.NEmbd%c.NHeads != 0 {
		return nil, &InvariantError{Reason: "n_embd must be divisible by n_heads"}
	}
	c.HeadDim = c.NEmbd / c.NHeads

	if c.NKVHeads == 0 || c.NHeads%c.NKVHeads != 0 {
		return nil, &InvariantError{Reason: "n_heads must be divisible by n_kv_heads"}
	}
	c.HeadsPerKV = c.NHeads / c.NKVHeads
	if c.HeadsPerKV < 1 {
		return nil, &InvariantError{Reason: "heads_per_kv must be >= 1"}
	}

	return c, nil
}
