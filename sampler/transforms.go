package sampler

import (
	"math"

	"github.com/mrcloudchase/inference-runtime/util/slicex"
)

// RepetitionPenalty multiplies the logit of any token present in a rolling
// window of up to W recently generated IDs by 1/p (if the logit is
// positive) or p (otherwise). The window is maintained across calls via
// Chain.Push; Apply never mutates the window itself.
type RepetitionPenalty struct {
	Penalty float32
	Window  int

	recent []uint32
}

// NewRepetitionPenalty builds a RepetitionPenalty transform with an empty
// rolling window of capacity window.
func NewRepetitionPenalty(penalty float32, window int) *RepetitionPenalty {
	return &RepetitionPenalty{Penalty: penalty, Window: window}
}

func (r *RepetitionPenalty) Apply(l []TokenLogit) []TokenLogit {
	if len(r.recent) == 0 {
		return l
	}
	seen := make(map[uint32]struct{}, len(r.recent))
	for _, id := range r.recent {
		seen[id] = struct{}{}
	}
	for i := range l {
		if _, ok := seen[l[i].TokenID]; !ok {
			continue
		}
		if l[i].Logit > 0 {
			l[i].Logit /= r.Penalty
		} else {
			l[i].Logit *= r.Penalty
		}
	}
	return l
}

func (r *RepetitionPenalty) addToken(id uint32) {
	if r.Window <= 0 {
		return
	}
	r.recent = append(r.recent, id)
	if len(r.recent) > r.Window {
		r.recent = r.recent[len(r.recent)-r.Window:]
	}
}

func (r *RepetitionPenalty) reset() {
	r.recent = nil
}

// Temperature divides every logit by max(T, 1e-7).
type Temperature struct {
	T float32
}

// NewTemperature builds a Temperature transform.
func NewTemperature(t float32) *Temperature {
	return &Temperature{T: t}
}

func (t *Temperature) Apply(l []TokenLogit) []TokenLogit {
	const floor = 1e-7
	div := t.T
	if div < floor {
		div = floor
	}
	for i := range l {
		l[i].Logit /= div
	}
	return l
}

// TopK truncates l to its K highest-logit entries. K == 0 or K >= len(l) is
// a no-op.
type TopK struct {
	K int
}

// NewTopK builds a TopK transform.
func NewTopK(k int) *TopK {
	return &TopK{K: k}
}

func (tk *TopK) Apply(l []TokenLogit) []TokenLogit {
	if tk.K == 0 || tk.K >= len(l) {
		return l
	}
	sortDescending(l)
	return l[:tk.K]
}

// TopP sorts l descending, then keeps the smallest prefix whose cumulative
// softmax probability strictly exceeds p (always at least one entry).
type TopP struct {
	P float32
}

// NewTopP builds a TopP transform.
func NewTopP(p float32) *TopP {
	return &TopP{P: p}
}

func (tp *TopP) Apply(l []TokenLogit) []TokenLogit {
	if len(l) == 0 {
		return l
	}
	sortDescending(l)

	probs := softmax(l)
	cumulative := make([]float64, len(probs))
	var cum float64
	for i, pr := range probs {
		cum += pr
		cumulative[i] = cum
	}

	// cumulative is non-decreasing; UpperBound finds, in O(log n), the first
	// index whose cumulative mass exceeds p, and the prefix through that
	// index is kept.
	cut := slicex.UpperBound(cumulative, float64(tp.P)) + 1
	if cut < 1 {
		cut = 1
	}
	if cut > len(l) {
		cut = len(l)
	}
	return l[:cut]
}

// Greedy sorts l descending and truncates to the single highest entry.
type Greedy struct{}

// NewGreedy builds a Greedy selector.
func NewGreedy() *Greedy {
	return &Greedy{}
}

func (Greedy) Apply(l []TokenLogit) []TokenLogit {
	if len(l) == 0 {
		return l
	}
	sortDescending(l)
	return l[:1]
}

// Distribution softmaxes l and draws one index from a deterministic seeded
// categorical distribution, retaining only that element.
type Distribution struct {
	rng *lcg
}

// NewDistribution builds a Distribution selector seeded deterministically.
func NewDistribution(seed uint64) *Distribution {
	return &Distribution{rng: newLCG(seed)}
}

func (d *Distribution) Apply(l []TokenLogit) []TokenLogit {
	if len(l) == 0 {
		return l
	}
	probs := softmax(l)
	r := d.rng.float64()

	var cum float64
	chosen := len(l) - 1
	for i, p := range probs {
		cum += p
		if r < cum {
			chosen = i
			break
		}
	}
	return l[chosen : chosen+1]
}

// softmax computes the numerically-stable softmax of l's logits, in l's
// current order.
func softmax(l []TokenLogit) []float64 {
	max := l[0].Logit
	for _, e := range l[1:] {
		if e.Logit > max {
			max = e.Logit
		}
	}
	exps := make([]float64, len(l))
	var sum float64
	for i, e := range l {
		exps[i] = math.Exp(float64(e.Logit - max))
		sum += exps[i]
	}
	for i := range exps {
		exps[i] /= sum
	}
	return exps
}

// lcg is a minimal deterministic linear congruential generator, used so
// Distribution's output depends only on its seed and the input chain,
// independent of any global RNG state.
type lcg struct {
	state uint64
}

func newLCG(seed uint64) *lcg {
	return &lcg{state: seed ^ 0x9E3779B97F4A7C15}
}

// float64 returns the next pseudo-random value in [0, 1).
func (g *lcg) float64() float64 {
	// Constants from Knuth's MMIX LCG.
	g.state = g.state*6364136223846793005 + 1442695040888963407
	return float64(g.state>>11) / float64(1<<53)
}
