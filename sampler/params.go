package sampler

// Params configures a generation call's sampler chain. A zero value for
// RepetitionPenaltyP or RepetitionWindow disables the repetition penalty
// stage entirely.
type Params struct {
	RepetitionPenaltyP float32
	RepetitionWindow   int
	Temperature        float32
	TopK               int
	TopP               float32

	// Seed selects Distribution sampling when non-nil; a nil Seed selects
	// Greedy.
	Seed *uint64
}

// NewChainFromParams builds the ordered transform chain
// RepetitionPenalty? -> Temperature? -> TopK? -> TopP? -> selector. The
// repetition penalty is omitted when its penalty or window is zero, the
// temperature stage when T is 0 or 1, and TopK/TopP when their value is 0.
// The selector is Distribution when p.Seed is set, Greedy otherwise.
func NewChainFromParams(p Params) *Chain {
	var transforms []Transform

	if p.RepetitionPenaltyP != 0 && p.RepetitionWindow > 0 {
		transforms = append(transforms, NewRepetitionPenalty(p.RepetitionPenaltyP, p.RepetitionWindow))
	}
	if p.Temperature != 0 && p.Temperature != 1 {
		transforms = append(transforms, NewTemperature(p.Temperature))
	}
	if p.TopK > 0 {
		transforms = append(transforms, NewTopK(p.TopK))
	}
	if p.TopP > 0 {
		transforms = append(transforms, NewTopP(p.TopP))
	}

	if p.Seed != nil {
		transforms = append(transforms, NewDistribution(*p.Seed))
	} else {
		transforms = append(transforms, NewGreedy())
	}

	return NewChain(transforms...)
}
