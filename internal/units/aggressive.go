package units

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/engine"
)

// AggressiveUnit hunts momentum. It votes BUY when trend and oscillator trend
// agree to the upside, SELL on the mirror setup, and HOLD otherwise.
type AggressiveUnit struct {
	id string
}

func NewAggressiveUnit(id string) *AggressiveUnit {
	if id == "" {
		id = "aggressive-momentum"
	}
	return &AggressiveUnit{id: id}
}

func (u *AggressiveUnit) ID() string        { return u.id }
func (u *AggressiveUnit) Role() engine.Role { return engine.RoleAggressive }

func (u *AggressiveUnit) Analyze(ctx context.Context, req engine.AnalysisRequest) (engine.Opinion, error) {
	if err := ctx.Err(); err != nil {
		return engine.Opinion{}, err
	}
	rep, ok := reportFrom(req.Context.Market)
	if !ok {
		return engine.Opinion{}, fmt.Errorf("indicator report missing for %s", req.Symbol)
	}

	macd := rep.Get("macd")
	rsi := rep.Get("rsi")
	emaFast := rep.Get("ema_fast")

	var bull, bear int
	if macd.State == "bullish" {
		bull++
	}
	if macd.State == "bearish" {
		bear++
	}
	if emaFast.State == "above" {
		bull++
	}
	if emaFast.State == "below" {
		bear++
	}
	// Oversold favors entries, overbought favors exits.
	if rsi.State == "oversold" {
		bull++
	}
	if rsi.State == "overbought" {
		bear++
	}

	op := engine.Opinion{
		UnitID:     u.id,
		Role:       engine.RoleAggressive,
		Action:     engine.ActionHold,
		Confidence: 0.3,
		Reasoning:  fmt.Sprintf("macd=%s rsi=%.1f(%s) ema_fast=%s", macd.State, rsi.Latest, rsi.State, emaFast.State),
		ProducedAt: time.Now().UTC(),
	}
	switch {
	case bull >= 2 && bear == 0:
		op.Action = engine.ActionBuy
		op.Confidence = clamp01(0.5 + 0.15*float64(bull))
	case bear >= 2 && bull == 0:
		op.Action = engine.ActionSell
		op.Confidence = clamp01(0.5 + 0.15*float64(bear))
	}
	return op, nil
}
