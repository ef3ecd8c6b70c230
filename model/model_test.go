package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcloudchase/inference-runtime/compute"
)

func fixtureConfig() *Config {
	c := &Config{
		NVocab:    8,
		NEmbd:     4,
		NHeads:    2,
		NKVHeads:  1,
		NLayers:   2,
		NFF:       8,
		NormEps:   1e-5,
		MaxSeqLen: 16,
		RopeTheta: 10000,
	}
	c.HeadDim = c.NEmbd / c.NHeads
	c.HeadsPerKV = c.NHeads / c.NKVHeads
	return c
}

func zeros(n int) []float32 { return make([]float32, n) }

func fixtureModel() *Model {
	c := fixtureConfig()
	headDim := c.HeadDim
	qDim := c.NHeads * headDim
	kvDim := c.NKVHeads * headDim

	tensors := map[string][]float32{
		TensorTokenEmbedding: zeros(c.NVocab * c.NEmbd),
		TensorOutputNorm:     zeros(c.NEmbd),
		TensorOutput:         zeros(c.NVocab * c.NEmbd),
	}
	for l := 0; l < c.NLayers; l++ {
		tensors[LayerName(l, "attn_norm.weight")] = zeros(c.NEmbd)
		tensors[LayerName(l, "attn_q.weight")] = zeros(qDim * c.NEmbd)
		tensors[LayerName(l, "attn_k.weight")] = zeros(kvDim * c.NEmbd)
		tensors[LayerName(l, "attn_v.weight")] = zeros(kvDim * c.NEmbd)
		tensors[LayerName(l, "attn_output.weight")] = zeros(c.NEmbd * qDim)
		tensors[LayerName(l, "ffn_norm.weight")] = zeros(c.NEmbd)
		tensors[LayerName(l, "ffn_gate.weight")] = zeros(c.NFF * c.NEmbd)
		tensors[LayerName(l, "ffn_up.weight")] = zeros(c.NFF * c.NEmbd)
		tensors[LayerName(l, "ffn_down.weight")] = zeros(c.NEmbd * c.NFF)
	}

	return &Model{
		Config:  c,
		Weights: NewWeightsFromMap(tensors),
		Cache:   NewKVCache(c.NLayers, c.MaxSeqLen, kvDim),
		Backend: compute.NewCPU(),
	}
}

func TestForwardAllZeroWeightsProducesZeroLogits(t *testing.T) {
	m := fixtureModel()

	logits, err := m.Forward([]uint32{3, 6}, 0)
	require.NoError(t, err)
	require.Len(t, logits, m.Config.NVocab)
	for _, l := range logits {
		assert.Zero(t, l)
	}
}

func TestForwardTokenOutOfRange(t *testing.T) {
	m := fixtureModel()

	_, err := m.Forward([]uint32{100}, 0)
	var oor *TokenOutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.EqualValues(t, 100, oor.TokenID)
}

func TestForwardAdvancesKVCacheLength(t *testing.T) {
	m := fixtureModel()

	_, err := m.Forward([]uint32{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.Cache.Len(), 3)
}

func TestKVCacheResetZeroesState(t *testing.T) {
	m := fixtureModel()

	_, err := m.Forward([]uint32{1, 2, 3}, 0)
	require.NoError(t, err)
	require.Greater(t, m.Cache.Len(), 0)

	m.Reset()
	assert.Zero(t, m.Cache.Len())
	for l := 0; l < m.Config.NLayers; l++ {
		for _, v := range m.Cache.k[l] {
			assert.Zero(t, v)
		}
		for _, v := range m.Cache.v[l] {
			assert.Zero(t, v)
		}
	}
}

func TestNewConfigMissingKeys(t *testing.T) {
	_, err := NewConfig(nil, 8)
	assert.Error(t, err) // missing required metadata keys
}
