// Package sampler implements the token-selection chain that turns a raw
// logit vector into a single chosen token ID.
package sampler

import "sort"

// TokenLogit pairs a vocabulary token ID with its current logit value. The
// chain threads a mutable slice of these through each transform.
type TokenLogit struct {
	TokenID uint32
	Logit   float32
}

// Transform mutates (and may shrink) a working set of TokenLogit entries.
type Transform interface {
	Apply(l []TokenLogit) []TokenLogit
}

// Chain is an ordered list of transforms ending in exactly one selector.
// Select runs the whole chain and returns the chosen token ID, or 0 if the
// initial vector is empty.
type Chain struct {
	transforms []Transform
}

// NewChain builds a Chain from an ordered transform list.
func NewChain(transforms ...Transform) *Chain {
	return &Chain{transforms: transforms}
}

// Select builds the initial TokenLogit vector from rawLogits (one entry per
// vocabulary index), runs every transform in order, and returns the
// surviving first entry's token ID.
func (c *Chain) Select(rawLogits []float32) uint32 {
	l := make([]TokenLogit, len(rawLogits))
	for i, v := range rawLogits {
		l[i] = TokenLogit{TokenID: uint32(i), Logit: v}
	}

	for _, tr := range c.transforms {
		l = tr.Apply(l)
		if len(l) == 0 {
			return 0
		}
	}

	if len(l) == 0 {
		return 0
	}
	return l[0].TokenID
}

// Push records a just-generated token ID into any stateful transform in the
// chain (currently RepetitionPenalty's rolling window). Callers push each
// selected token after Select so subsequent calls penalize recent repeats.
func (c *Chain) Push(tokenID uint32) {
	for _, tr := range c.transforms {
		if rp, ok := tr.(*RepetitionPenalty); ok {
			rp.addToken(tokenID)
		}
	}
}

// Reset clears any stateful transform's rolling window.
func (c *Chain) Reset() {
	for _, tr := range c.transforms {
		if rp, ok := tr.(*RepetitionPenalty); ok {
			rp.reset()
		}
	}
}

// sortDescending sorts l by logit descending. Any comparison involving a NaN
// logit is treated as equal, so a stable sort leaves NaN entries in their
// original relative position instead of forcing an order among them.
func sortDescending(l []TokenLogit) {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i].Logit, l[j].Logit
		if a != a || b != b {
			return false
		}
		return a > b
	})
}
