package engine

import (
	"time"

	"quorum/internal/logger"
)

// fastTrackOrder fixes the priority when several flags are raised at once.
// Exiting existing risk outranks freezing new activity.
var fastTrackOrder = []TriggerFlag{
	TriggerStopLossHit,
	TriggerDailyLossBreach,
	TriggerDataOutage,
	TriggerFlashMove,
}

// ExecutionRouter classifies each request: any raised trigger flag takes the
// fast track and never consults an analysis unit; everything else runs the
// full deep-dive pipeline. The router keeps no state between calls.
type ExecutionRouter struct {
	cfg Config
}

func NewExecutionRouter(cfg Config) *ExecutionRouter {
	return &ExecutionRouter{cfg: cfg}
}

// FastTrack maps the highest-priority raised flag to its deterministic
// action. Returns nil when no flag is raised.
func (r *ExecutionRouter) FastTrack(dc DecisionContext) *Decision {
	if dc.Triggers.Empty() {
		return nil
	}
	for _, flag := range fastTrackOrder {
		if !dc.Triggers.Has(flag) {
			continue
		}
		d := r.decisionFor(flag, dc)
		logger.Infof("fast track symbol=%s flag=%s action=%s", dc.Symbol, flag, d.Action)
		return d
	}
	return nil
}

func (r *ExecutionRouter) decisionFor(flag TriggerFlag, dc DecisionContext) *Decision {
	d := &Decision{
		Symbol:      dc.Symbol,
		Path:        PathFastTrack,
		DecidedAt:   time.Now().UTC(),
		Confidence:  1.0,
		DataQuality: dc.DataQuality,
	}
	switch flag {
	case TriggerStopLossHit:
		d.ReasonCode = ReasonFastTrackStopLoss
		if pos, ok := dc.Portfolio.PositionFor(dc.Symbol); ok && pos.Quantity > 0 {
			d.Action = ActionSell
			d.Exposure = closeOutExposure(dc.Portfolio, pos, r.cfg.ExposureCap)
		} else {
			// Stop loss on a flat book: nothing to exit.
			d.Action = ActionHold
		}
	case TriggerDailyLossBreach:
		d.ReasonCode = ReasonFastTrackDailyLoss
		d.Action = ActionHold
		d.HaltNewEntries = true
	case TriggerDataOutage:
		d.ReasonCode = ReasonFastTrackDataOutage
		d.Action = ActionHold
	case TriggerFlashMove:
		d.ReasonCode = ReasonFastTrackFlashMove
		d.Action = ActionHold
	}
	if d.Action == ActionHold {
		d.Exposure = 0
	}
	return d
}
