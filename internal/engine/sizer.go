package engine

import "math"

// sizerEpsilon keeps the raw size finite when the defensive unit reports a
// degenerate loss budget.
const sizerEpsilon = 1e-3

// PositionSizer converts the defensive unit's risk budget and the vote's
// confidence into a bounded exposure fraction. The absolute cap is the last
// programmatic line of defense before the order validator.
type PositionSizer struct {
	riskPerTrade float64
	exposureCap  float64
}

func NewPositionSizer(cfg Config) *PositionSizer {
	return &PositionSizer{riskPerTrade: cfg.RiskPerTrade, exposureCap: cfg.ExposureCap}
}

// Size returns the exposure fraction for a consensus decision.
// HOLD is always zero. Without a usable defensive opinion there is no risk
// budget to size against, so the result is zero as well: the action stands
// but commits nothing.
func (s *PositionSizer) Size(action Action, confidence float64, defensive *Opinion) float64 {
	if action == ActionHold || action == ActionPass {
		return 0
	}
	if defensive == nil || defensive.IsPass() {
		return 0
	}
	maxLoss := math.Abs(defensive.MaxLossPct)
	if maxLoss < sizerEpsilon {
		maxLoss = sizerEpsilon
	}
	raw := s.riskPerTrade / maxLoss
	adjusted := raw * clamp01(confidence)

	capped := adjusted
	if defensive.RecommendedExposure > 0 && defensive.RecommendedExposure < capped {
		capped = defensive.RecommendedExposure
	}
	if capped > s.exposureCap {
		capped = s.exposureCap
	}
	if capped < 0 {
		return 0
	}
	return capped
}
