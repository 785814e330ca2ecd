package engine

import (
	"fmt"
	"math"
	"time"

	"quorum/internal/logger"
)

// HardRuleEvaluator runs a fixed, ordered list of overrides that ignore
// vote confidence entirely. Rules are pure functions of context and
// opinions, so identical inputs always force the identical outcome.
type HardRuleEvaluator struct {
	cfg Config
}

func NewHardRuleEvaluator(cfg Config) *HardRuleEvaluator {
	return &HardRuleEvaluator{cfg: cfg}
}

// Evaluate returns a forced Decision when a rule matches, nil otherwise.
// The first matching rule wins; no later rule and no voting runs after it.
// Opinions are attached to the forced Decision for audit only.
func (h *HardRuleEvaluator) Evaluate(dc DecisionContext, opinions []Opinion) *Decision {
	defensive := findDefensive(opinions)

	// Rule 1: defensive unit reports EXTREME risk. Exit the position if one
	// exists, otherwise stay flat.
	if defensive != nil && defensive.RiskLevel == RiskExtreme {
		action := ActionHold
		exposure := 0.0
		if pos, ok := dc.Portfolio.PositionFor(dc.Symbol); ok && pos.Quantity > 0 {
			action = ActionSell
			exposure = closeOutExposure(dc.Portfolio, pos, h.cfg.ExposureCap)
		}
		return h.forced(dc, opinions, action, exposure, ReasonHardRuleExtremeRisk,
			fmt.Sprintf("defensive unit %s risk=EXTREME", defensive.UnitID))
	}

	// Rule 2: defensive loss budget beyond the configured absolute limit.
	if defensive != nil && defensive.MaxLossPct != 0 && math.Abs(defensive.MaxLossPct) > h.cfg.MaxLossLimit {
		return h.forced(dc, opinions, ActionHold, 0, ReasonHardRuleLossLimit,
			fmt.Sprintf("max_loss_pct %.4f beyond limit %.4f", defensive.MaxLossPct, h.cfg.MaxLossLimit))
	}

	// Rule 3: daily loss circuit breaker, applies to every symbol.
	if dc.Portfolio.DailyPnLPct <= h.cfg.DailyLossFloor {
		return h.forced(dc, opinions, ActionHold, 0, ReasonHardRuleCircuitBreaker,
			fmt.Sprintf("daily pnl %.4f at or below floor %.4f", dc.Portfolio.DailyPnLPct, h.cfg.DailyLossFloor))
	}

	return nil
}

func (h *HardRuleEvaluator) forced(dc DecisionContext, opinions []Opinion, action Action, exposure float64, code ReasonCode, detail string) *Decision {
	confidence := 1.0
	if action == ActionHold {
		exposure = 0
	}
	logger.Infof("hard rule %s tripped symbol=%s action=%s: %s", code, dc.Symbol, action, detail)
	return &Decision{
		Symbol:      dc.Symbol,
		Action:      action,
		Confidence:  confidence,
		Exposure:    exposure,
		ReasonCode:  code,
		Opinions:    opinions,
		DecidedAt:   time.Now().UTC(),
		Path:        PathDeepDive,
		DataQuality: dc.DataQuality,
	}
}

func findDefensive(opinions []Opinion) *Opinion {
	for i := range opinions {
		if opinions[i].Role == RoleDefensive && !opinions[i].IsPass() {
			return &opinions[i]
		}
	}
	return nil
}

// closeOutExposure sizes a forced exit as the fraction of the portfolio the
// position currently occupies, still bounded by the absolute cap.
func closeOutExposure(p PortfolioState, pos Position, capFrac float64) float64 {
	if p.TotalValue <= 0 {
		return 0
	}
	frac := pos.Quantity * pos.AvgPrice / p.TotalValue
	if frac < 0 {
		return 0
	}
	if frac > capFrac {
		return capFrac
	}
	return frac
}
