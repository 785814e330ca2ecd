package units

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/engine"
)

// DefensiveUnit reads volatility and drawdown. Besides voting, it is the only
// role that fills the risk fields the sizer and hard rules consume.
type DefensiveUnit struct {
	id string
	// ATR as a fraction of price above which risk is called EXTREME.
	ExtremeATRPct float64
	// Daily drawdown (negative) at which risk is called EXTREME.
	ExtremeDrawdown float64
}

func NewDefensiveUnit(id string) *DefensiveUnit {
	if id == "" {
		id = "defensive-risk"
	}
	return &DefensiveUnit{id: id, ExtremeATRPct: 0.08, ExtremeDrawdown: -0.045}
}

func (u *DefensiveUnit) ID() string        { return u.id }
func (u *DefensiveUnit) Role() engine.Role { return engine.RoleDefensive }

func (u *DefensiveUnit) Analyze(ctx context.Context, req engine.AnalysisRequest) (engine.Opinion, error) {
	if err := ctx.Err(); err != nil {
		return engine.Opinion{}, err
	}
	rep, ok := reportFrom(req.Context.Market)
	if !ok {
		return engine.Opinion{}, fmt.Errorf("indicator report missing for %s", req.Symbol)
	}
	atrPct := rep.Get("atr_pct").Latest
	drawdown := req.Context.Portfolio.DailyPnLPct

	level := engine.RiskLow
	switch {
	case atrPct >= u.ExtremeATRPct || drawdown <= u.ExtremeDrawdown:
		level = engine.RiskExtreme
	case atrPct >= u.ExtremeATRPct/2 || drawdown <= u.ExtremeDrawdown/2:
		level = engine.RiskHigh
	case atrPct >= u.ExtremeATRPct/4:
		level = engine.RiskMedium
	}

	op := engine.Opinion{
		UnitID:     u.id,
		Role:       engine.RoleDefensive,
		Action:     engine.ActionHold,
		Confidence: 0.6,
		Reasoning:  fmt.Sprintf("atr_pct=%.4f drawdown=%.4f level=%s", atrPct, drawdown, level),
		ProducedAt: time.Now().UTC(),
		RiskLevel:  level,
		// Stop distance of roughly two ATRs decides how much a losing
		// trade surrenders.
		MaxLossPct: -clamp01(2 * atrPct),
	}

	switch level {
	case engine.RiskLow:
		op.RecommendedExposure = 0.20
		op.Confidence = 0.7
	case engine.RiskMedium:
		op.RecommendedExposure = 0.10
	case engine.RiskHigh:
		op.Action = engine.ActionSell
		op.RecommendedExposure = 0.05
		op.Confidence = 0.65
	case engine.RiskExtreme:
		op.Action = engine.ActionSell
		op.RecommendedExposure = 0
		op.Confidence = 0.9
	}
	if op.MaxLossPct == 0 {
		op.MaxLossPct = -0.02
	}
	return op, nil
}
