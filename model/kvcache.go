package model

import "golang.org/x/sync/errgroup"

// KVCache holds, per layer, two flat f32 buffers of shape
// [max_seq_len, n_kv_heads*head_dim], plus a shared length counter (highest
// written position + 1). It is exclusively owned by the Model and mutated
// only during forward passes and Reset.
type KVCache struct {
	maxSeqLen int
	kvDim     int

	k   [][]float32
	v   [][]float32
	len int
}

// NewKVCache allocates a zero-initialized cache for nLayers layers.
func NewKVCache(nLayers, maxSeqLen, kvDim int) *KVCache {
	c := &KVCache{maxSeqLen: maxSeqLen, kvDim: kvDim}
	c.k = make([][]float32, nLayers)
	c.v = make([][]float32, nLayers)
	for l := 0; l < nLayers; l++ {
		c.k[l] = make([]float32, maxSeqLen*kvDim)
		c.v[l] = make([]float32, maxSeqLen*kvDim)
	}
	return c
}

// Len returns the highest written position + 1.
func (c *KVCache) Len() int {
	return c.len
}

// Write stores k and v (each kvDim elements) at pos in layer l, and advances
// the cache length to at least pos+1.
func (c *KVCache) Write(layer, pos int, k, v []float32) {
	copy(c.k[layer][pos*c.kvDim:(pos+1)*c.kvDim], k)
	copy(c.v[layer][pos*c.kvDim:(pos+1)*c.kvDim], v)
	if pos+1 > c.len {
		c.len = pos + 1
	}
}

// Keys returns the K buffer for layer, covering positions [0, S).
func (c *KVCache) Keys(layer, s int) []float32 {
	return c.k[layer][:s*c.kvDim]
}

// Values returns the V buffer for layer, covering positions [0, S).
func (c *KVCache) Values(layer, s int) []float32 {
	return c.v[layer][:s*c.kvDim]
}

// Reset zeroes every layer's K and V buffers and sets len to 0. Layers are
// independent buffers, so zeroing runs one goroutine per layer.
func (c *KVCache) Reset() {
	var g errgroup.Group
	for l := range c.k {
		l := l
		g.Go(func() error {
			for i := range c.k[l] {
				c.k[l][i] = 0
			}
			for i := range c.v[l] {
				c.v[l][i] = 0
			}
			return nil
		})
	}
	_ = g.Wait()
	c.len = 0
}
