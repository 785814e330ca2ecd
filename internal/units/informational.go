package units

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/engine"
	"quorum/internal/snapshot"
)

// InformationalUnit reads crowd positioning from funding and turnover. Its
// signals are weak on their own so confidence stays modest.
type InformationalUnit struct {
	id string
	// Funding rates beyond this magnitude read as a crowded trade.
	CrowdedFunding float64
}

func NewInformationalUnit(id string) *InformationalUnit {
	if id == "" {
		id = "informational-flows"
	}
	return &InformationalUnit{id: id, CrowdedFunding: 0.0005}
}

func (u *InformationalUnit) ID() string        { return u.id }
func (u *InformationalUnit) Role() engine.Role { return engine.RoleInformational }

func (u *InformationalUnit) Analyze(ctx context.Context, req engine.AnalysisRequest) (engine.Opinion, error) {
	if err := ctx.Err(); err != nil {
		return engine.Opinion{}, err
	}
	funding, haveFunding := floatFrom(req.Context.Market, snapshot.KeyFundingRate)
	volume, _ := floatFrom(req.Context.Market, snapshot.KeyVolume24h)

	op := engine.Opinion{
		UnitID:     u.id,
		Role:       engine.RoleInformational,
		Action:     engine.ActionHold,
		Confidence: 0.3,
		ProducedAt: time.Now().UTC(),
	}
	if !haveFunding {
		op.Action = engine.ActionPass
		op.Confidence = 0
		op.Reasoning = "funding rate unavailable"
		return op, nil
	}

	// Crowded longs pay heavy positive funding; fade them, and vice versa.
	switch {
	case funding >= u.CrowdedFunding:
		op.Action = engine.ActionSell
		op.Confidence = clamp01(0.35 + 100*funding)
	case funding <= -u.CrowdedFunding:
		op.Action = engine.ActionBuy
		op.Confidence = clamp01(0.35 - 100*funding)
	}
	if op.Confidence > 0.6 {
		op.Confidence = 0.6
	}
	op.Reasoning = fmt.Sprintf("funding=%.5f volume_24h=%.0f", funding, volume)
	return op, nil
}
