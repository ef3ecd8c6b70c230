package model

import (
	"fmt"
	"math"

	"github.com/mrcloudchase/inference-runtime/compute"
	"github.com/mrcloudchase/inference-runtime/gguf"
)

// Model is an immutable set of dequantized LLaMA weights plus the mutable
// KV cache generation advances. The GGUF image and dequantized weights are
// fixed at load time; only the cache changes during generation.
type Model struct {
	Config  *Config
	Weights *Weights
	Cache   *KVCache
	Backend compute.Backend
}

// TokenOutOfRangeError reports an embedding lookup for a token ID outside
// [0, n_vocab).
type TokenOutOfRangeError struct {
	TokenID uint32
	NVocab  int
}

func (e *TokenOutOfRangeError) Error() string {
	return fmt.Sprintf("model: token id %d out of range [0,%d)", e.TokenID, e.NVocab)
}

// Load builds a Model from a parsed GGUF file and vocabulary size, deriving
// the config and wiring a fresh, zeroed KV cache.
func Load(f *gguf.File, nVocab int, backend compute.Backend) (*Model, error) {
	cfg, err := NewConfig(f.Header.MetadataKV, nVocab)
	if err != nil {
		return nil, err
	}

	kvDim := cfg.NKVHeads * cfg.HeadDim
	cache := NewKVCache(cfg.NLayers, cfg.MaxSeqLen, kvDim)

	return &Model{
		Config:  cfg,
		Weights: NewWeights(f),
		Cache:   cache,
		Backend: backend,
	}, nil
}

// Reset returns the KV cache to its freshly-loaded zero state.
func (m *Model) Reset() {
	m.Cache.Reset()
}

// Forward runs the tokens t[0..T) starting at position pos through every
// layer, writing each position's K/V into the cache, and returns the logit
// vector for the final token only.
func (m *Model) Forward(t []uint32, pos int) ([]float32, error) {
	c := m.Config
	b := m.Backend

	embd, err := m.Weights.Get(TensorTokenEmbedding)
	if err != nil {
		return nil, err
	}

	var logits []float32
	for j, tok := range t {
		if int(tok) >= c.NVocab {
			return nil, &TokenOutOfRangeError{TokenID: tok, NVocab: c.NVocab}
		}
		curPos := pos + j

		h := make([]float32, c.NEmbd)
		copy(h, embd[int(tok)*c.NEmbd:(int(tok)+1)*c.NEmbd])

		for l := 0; l < c.NLayers; l++ {
			h, err = m.layer(l, h, curPos)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", l, err)
			}
		}

		if j == len(t)-1 {
			outNorm, err := m.Weights.Get(TensorOutputNorm)
			if err != nil {
				return nil, err
			}
			normed, err := b.RMSNorm(h, outNorm, c.NormEps, c.NEmbd)
			if err != nil {
				return nil, err
			}
			outW, err := m.Weights.Output()
			if err != nil {
				return nil, err
			}
			logits, err = b.MatMul(outW, normed, c.NVocab, c.NEmbd, 1)
			if err != nil {
				return nil, err
			}
		}
	}

	return logits, nil
}

func (m *Model) layer(l int, h []float32, curPos int) ([]float32, error) {
	c := m.Config
	b := m.Backend

	attnNorm, err := m.Weights.Get(LayerName(l, "attn_norm.weight"))
	if err != nil {
		return nil, err
	}
	n, err := b.RMSNorm(h, attnNorm, c.NormEps, c.NEmbd)
	if err != nil {
		return nil, err
	}

	wq, err := m.Weights.Get(LayerName(l, "attn_q.weight"))
	if err != nil {
		return nil, err
	}
	wk, err := m.Weights.Get(LayerName(l, "attn_k.weight"))
	if err != nil {
		return nil, err
	}
	wv, err := m.Weights.Get(LayerName(l, "attn_v.weight"))
	if err != nil {
		return nil, err
	}
	wo, err := m.Weights.Get(LayerName(l, "attn_output.weight"))
	if err != nil {
		return nil, err
	}

	qDim := c.NHeads * c.HeadDim
	kvDim := c.NKVHeads * c.HeadDim

	q, err := b.MatMul(wq, n, qDim, c.NEmbd, 1)
	if err != nil {
		return nil, err
	}
	k, err := b.MatMul(wk, n, kvDim, c.NEmbd, 1)
	if err != nil {
		return nil, err
	}
	v, err := b.MatMul(wv, n, kvDim, c.NEmbd, 1)
	if err != nil {
		return nil, err
	}

	if err := b.RoPE(q, k, c.HeadDim, curPos, c.NHeads, c.NKVHeads, c.RopeTheta); err != nil {
		return nil, err
	}

	m.Cache.Write(l, curPos, k, v)

	s := curPos + 1
	keys := m.Cache.Keys(l, s)
	values := m.Cache.Values(l, s)

	attnOut := make([]float32, qDim)
	invSqrtHeadDim := 1.0 / math.Sqrt(float64(c.HeadDim))

	for hi := 0; hi < c.NHeads; hi++ {
		kvHead := hi / c.HeadsPerKV
		qh := q[hi*c.HeadDim : (hi+1)*c.HeadDim]

		scores := make([]float32, s)
		for t := 0; t < s; t++ {
			kt := keys[t*kvDim+kvHead*c.HeadDim : t*kvDim+(kvHead+1)*c.HeadDim]
			var dot float64
			for d := 0; d < c.HeadDim; d++ {
				dot += float64(qh[d]) * float64(kt[d])
			}
			scores[t] = float32(dot * invSqrtHeadDim)
		}

		probs, err := b.Softmax(scores, s)
		if err != nil {
			return nil, err
		}

		outh := attnOut[hi*c.HeadDim : (hi+1)*c.HeadDim]
		for t := 0; t < s; t++ {
			vt := values[t*kvDim+kvHead*c.HeadDim : t*kvDim+(kvHead+1)*c.HeadDim]
			p := probs[t]
			for d := 0; d < c.HeadDim; d++ {
				outh[d] += p * vt[d]
			}
		}
	}

	proj, err := b.MatMul(wo, attnOut, c.NEmbd, qDim, 1)
	if err != nil {
		return nil, err
	}
	h, err = b.Add(h, proj)
	if err != nil {
		return nil, err
	}

	ffnNorm, err := m.Weights.Get(LayerName(l, "ffn_norm.weight"))
	if err != nil {
		return nil, err
	}
	mNorm, err := b.RMSNorm(h, ffnNorm, c.NormEps, c.NEmbd)
	if err != nil {
		return nil, err
	}

	wGate, err := m.Weights.Get(LayerName(l, "ffn_gate.weight"))
	if err != nil {
		return nil, err
	}
	wUp, err := m.Weights.Get(LayerName(l, "ffn_up.weight"))
	if err != nil {
		return nil, err
	}
	wDown, err := m.Weights.Get(LayerName(l, "ffn_down.weight"))
	if err != nil {
		return nil, err
	}

	g, err := b.MatMul(wGate, mNorm, c.NFF, c.NEmbd, 1)
	if err != nil {
		return nil, err
	}
	u, err := b.MatMul(wUp, mNorm, c.NFF, c.NEmbd, 1)
	if err != nil {
		return nil, err
	}
	gated, err := b.Mul(b.SiLU(g), u)
	if err != nil {
		return nil, err
	}
	down, err := b.MatMul(wDown, gated, c.NEmbd, c.NFF, 1)
	if err != nil {
		return nil, err
	}
	h, err = b.Add(h, down)
	if err != nil {
		return nil, err
	}

	return h, nil
}
