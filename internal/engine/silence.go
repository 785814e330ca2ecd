package engine

// SilencePolicy forces an abstain when the opinion set carries no usable
// conviction: either the surviving opinions are collectively weak, or they
// disagree so strongly that picking a side would be noise.
type SilencePolicy struct {
	ConfidenceFloor float64
	Divergence      float64
}

func NewSilencePolicy(cfg Config) *SilencePolicy {
	return &SilencePolicy{ConfidenceFloor: cfg.SilenceConfidenceFloor, Divergence: cfg.SilenceDivergence}
}

// ShouldAbstain returns (true, reason) when the engine must stay silent.
// PASS opinions are excluded from both checks; an all-PASS cycle abstains
// as low conviction.
func (s *SilencePolicy) ShouldAbstain(opinions []Opinion) (bool, ReasonCode) {
	var (
		n   int
		sum float64
		lo  = 1.0
		hi  = 0.0
	)
	for _, op := range opinions {
		if op.IsPass() {
			continue
		}
		n++
		sum += op.Confidence
		if op.Confidence < lo {
			lo = op.Confidence
		}
		if op.Confidence > hi {
			hi = op.Confidence
		}
	}
	if n == 0 {
		return true, ReasonSilenceLowConviction
	}
	if sum/float64(n) < s.ConfidenceFloor {
		return true, ReasonSilenceLowConviction
	}
	if hi-lo > s.Divergence {
		return true, ReasonSilenceDivergence
	}
	return false, ""
}
