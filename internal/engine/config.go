package engine

import (
	"fmt"
	"math"
	"time"
)

const weightSumTolerance = 1e-6

// Config is the immutable parameter set an Engine is constructed with.
// Validation happens once, at construction; a running engine never sees an
// invalid or mutated config.
type Config struct {
	// Weights maps unit id to its fixed vote weight. Must sum to 1.0.
	Weights map[string]float64

	PerUnitTimeout   time.Duration
	DecisionDeadline time.Duration

	SilenceConfidenceFloor float64
	SilenceDivergence      float64

	RiskPerTrade float64
	ExposureCap  float64

	// DailyLossFloor is the circuit-breaker floor on daily pnl pct
	// (negative, e.g. -0.05).
	DailyLossFloor float64
	// MaxLossLimit is the absolute bound on the defensive unit's
	// max_loss_pct before the loss-limit rule trips (positive fraction).
	MaxLossLimit float64

	MinDataQuality float64
}

// DefaultConfig returns the documented defaults. Weights are intentionally
// left empty: they come from the unit roster and there is no sane default.
func DefaultConfig() Config {
	return Config{
		PerUnitTimeout:         20 * time.Second,
		DecisionDeadline:       45 * time.Second,
		SilenceConfidenceFloor: 0.5,
		SilenceDivergence:      0.6,
		RiskPerTrade:           0.01,
		ExposureCap:            0.25,
		DailyLossFloor:         -0.05,
		MaxLossLimit:           0.05,
		MinDataQuality:         0.5,
	}
}

// Validate fails fast on any parameter that would make decisions unsound.
func (c Config) Validate() error {
	if len(c.Weights) == 0 {
		return fmt.Errorf("engine config: weights cannot be empty")
	}
	sum := 0.0
	for id, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("engine config: weight for unit %s is negative", id)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("engine config: weights sum to %.6f, want 1.0", sum)
	}
	if c.PerUnitTimeout <= 0 {
		return fmt.Errorf("engine config: per_unit_timeout must be > 0")
	}
	if c.DecisionDeadline > 0 && c.DecisionDeadline < c.PerUnitTimeout {
		return fmt.Errorf("engine config: decision_deadline must be >= per_unit_timeout")
	}
	if c.SilenceConfidenceFloor < 0 || c.SilenceConfidenceFloor > 1 {
		return fmt.Errorf("engine config: silence_confidence_floor must be in [0,1]")
	}
	if c.SilenceDivergence < 0 || c.SilenceDivergence > 1 {
		return fmt.Errorf("engine config: silence_divergence must be in [0,1]")
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 1 {
		return fmt.Errorf("engine config: risk_per_trade must be in (0,1]")
	}
	if c.ExposureCap <= 0 || c.ExposureCap > 1 {
		return fmt.Errorf("engine config: exposure_cap must be in (0,1]")
	}
	if c.DailyLossFloor >= 0 {
		return fmt.Errorf("engine config: daily_loss_floor must be negative")
	}
	if c.MaxLossLimit <= 0 {
		return fmt.Errorf("engine config: max_loss_limit must be > 0")
	}
	if c.MinDataQuality < 0 || c.MinDataQuality > 1 {
		return fmt.Errorf("engine config: min_data_quality must be in [0,1]")
	}
	return nil
}
