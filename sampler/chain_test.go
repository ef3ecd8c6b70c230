package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreedyReturnsArgmax(t *testing.T) {
	c := NewChain(NewGreedy())
	id := c.Select([]float32{1, 5, 3, -2})
	assert.EqualValues(t, 1, id)
}

func TestGreedyOnEmptyReturnsZero(t *testing.T) {
	c := NewChain(NewGreedy())
	id := c.Select(nil)
	assert.EqualValues(t, 0, id)
}

func TestTopKTruncatesToMinKLen(t *testing.T) {
	l := []TokenLogit{{0, 1}, {1, 2}, {2, 3}}
	out := NewTopK(2).Apply(l)
	require.Len(t, out, 2)
	assert.EqualValues(t, 2, out[0].TokenID)
	assert.EqualValues(t, 1, out[1].TokenID)

	// K >= len(l) is a no-op.
	out = NewTopK(10).Apply(l)
	assert.Len(t, out, len(l))
}

func TestTopPKeepsAtLeastOne(t *testing.T) {
	l := []TokenLogit{{0, 100}, {1, -100}, {2, -100}}
	out := NewTopP(0.01).Apply(l)
	assert.GreaterOrEqual(t, len(out), 1)
	assert.EqualValues(t, 0, out[0].TokenID)
}

func TestTemperatureScenario(t *testing.T) {
	c := NewChain(NewTemperature(0.5), NewTopK(2), NewGreedy())
	id := c.Select([]float32{1.0, 2.0, 0.5, 3.0})
	assert.EqualValues(t, 3, id)
}

func TestTemperatureFloorsNearZero(t *testing.T) {
	tr := NewTemperature(0)
	l := []TokenLogit{{0, 1}}
	out := tr.Apply(l)
	assert.InDelta(t, 1e7, out[0].Logit, 10)
}

func TestRepetitionPenaltyPenalizesRecentTokens(t *testing.T) {
	rp := NewRepetitionPenalty(2.0, 4)
	rp.addToken(1)

	l := []TokenLogit{{0, 4}, {1, 4}}
	out := rp.Apply(l)
	assert.EqualValues(t, 4, out[0].Logit) // untouched
	assert.EqualValues(t, 2, out[1].Logit) // positive logit divided by penalty
}

func TestRepetitionPenaltyNegativeLogitMultiplied(t *testing.T) {
	rp := NewRepetitionPenalty(2.0, 4)
	rp.addToken(1)

	l := []TokenLogit{{1, -4}}
	out := rp.Apply(l)
	assert.EqualValues(t, -8, out[0].Logit)
}

func TestRepetitionPenaltyWindowDropsOldest(t *testing.T) {
	rp := NewRepetitionPenalty(2.0, 2)
	rp.addToken(1)
	rp.addToken(2)
	rp.addToken(3) // window=2, drops token 1

	l := []TokenLogit{{1, 4}, {2, 4}, {3, 4}}
	out := rp.Apply(l)
	assert.EqualValues(t, 4, out[0].Logit) // token 1 no longer in window
	assert.EqualValues(t, 2, out[1].Logit)
	assert.EqualValues(t, 2, out[2].Logit)
}

func TestChainPushFeedsRepetitionPenaltyWindow(t *testing.T) {
	rp := NewRepetitionPenalty(2.0, 4)
	c := NewChain(rp, NewGreedy())

	id := c.Select([]float32{1, 1, 1})
	c.Push(id)

	assert.Contains(t, rp.recent, id)
}

func TestChainResetClearsWindow(t *testing.T) {
	rp := NewRepetitionPenalty(2.0, 4)
	c := NewChain(rp, NewGreedy())
	c.Push(2)
	require.NotEmpty(t, rp.recent)

	c.Reset()
	assert.Empty(t, rp.recent)
}

func TestDistributionIsDeterministicForSameSeed(t *testing.T) {
	a := NewChain(NewDistribution(42)).Select([]float32{1, 2, 3, 4})
	b := NewChain(NewDistribution(42)).Select([]float32{1, 2, 3, 4})
	assert.Equal(t, a, b)
}

func TestSortDescendingTreatsNaNAsEqual(t *testing.T) {
	l := []TokenLogit{{1, 5}, {0, float32(math.NaN())}, {2, 3}}
	sortDescending(l)

	// Non-NaN entries remain correctly ordered relative to each other; the
	// NaN entry's exact position among them is unspecified.
	var order []uint32
	for _, e := range l {
		if e.Logit == e.Logit {
			order = append(order, e.TokenID)
		}
	}
	assert.Equal(t, []uint32{1, 2}, order)
}
