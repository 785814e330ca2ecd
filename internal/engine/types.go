package engine

import (
	"strings"
	"time"
)

// Action is a directional call on a symbol. PASS is reserved for units that
// failed, timed out or deliberately abstained; it never appears as the final
// action of a Decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
	ActionPass Action = "PASS"
)

// ParseAction normalizes free-form action text. Unknown input maps to PASS.
func ParseAction(s string) Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG", "OPEN_LONG":
		return ActionBuy
	case "SELL", "SHORT", "OPEN_SHORT", "CLOSE":
		return ActionSell
	case "HOLD", "WAIT":
		return ActionHold
	default:
		return ActionPass
	}
}

// Role identifies the stance of an analysis unit. Weights are assigned per
// unit id, risk fields are trusted only from the defensive role.
type Role string

const (
	RoleAggressive    Role = "aggressive"
	RoleDefensive     Role = "defensive"
	RoleInformational Role = "informational"
)

// RiskLevel is the defensive unit's qualitative risk read. The zero value
// means the unit did not report one.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// ParseRiskLevel maps free-form risk text to a RiskLevel, empty on unknown.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return RiskLow
	case "MEDIUM", "MID":
		return RiskMedium
	case "HIGH":
		return RiskHigh
	case "EXTREME":
		return RiskExtreme
	default:
		return ""
	}
}

// Opinion is one unit's read on a symbol for a single decision cycle.
// Immutable once produced; the risk fields are populated only by the
// defensive role.
type Opinion struct {
	UnitID     string    `json:"unit_id"`
	Role       Role      `json:"role"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
	ProducedAt time.Time `json:"produced_at"`

	RiskLevel           RiskLevel `json:"risk_level,omitempty"`
	RecommendedExposure float64   `json:"recommended_exposure,omitempty"`
	MaxLossPct          float64   `json:"max_loss_pct,omitempty"` // negative fraction, e.g. -0.02
}

// IsPass reports whether the opinion abstained (or was substituted after a
// unit failure).
func (o Opinion) IsPass() bool { return o.Action == ActionPass }

// PassOpinion is the substitute recorded when a unit fails, times out or is
// skipped by its breaker.
func PassOpinion(unitID string, role Role, reason string) Opinion {
	if strings.TrimSpace(reason) == "" {
		reason = "unit unavailable"
	}
	return Opinion{
		UnitID:     unitID,
		Role:       role,
		Action:     ActionPass,
		Confidence: 0,
		Reasoning:  reason,
		ProducedAt: time.Now().UTC(),
	}
}

// Position is a holding inside a portfolio snapshot.
type Position struct {
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// PortfolioState is a read-only snapshot owned by the external account
// service. The engine never mutates it.
type PortfolioState struct {
	TotalValue    float64             `json:"total_value"`
	AvailableCash float64             `json:"available_cash"`
	Positions     map[string]Position `json:"positions,omitempty"`
	DailyPnLPct   float64             `json:"daily_pnl_pct"`
	OpenRiskPct   float64             `json:"open_risk_pct"`
}

// PositionFor returns the holding for symbol, if any.
func (p PortfolioState) PositionFor(symbol string) (Position, bool) {
	pos, ok := p.Positions[strings.ToUpper(strings.TrimSpace(symbol))]
	return pos, ok
}

// TriggerFlag marks an emergency condition that routes a request onto the
// fast track.
type TriggerFlag string

const (
	TriggerStopLossHit     TriggerFlag = "stop_loss_hit"
	TriggerDailyLossBreach TriggerFlag = "daily_loss_breach"
	TriggerDataOutage      TriggerFlag = "data_outage"
	TriggerFlashMove       TriggerFlag = "flash_move"
)

// TriggerSet is the set of flags raised on a request.
type TriggerSet map[TriggerFlag]bool

// NewTriggerSet builds a set from raw flag names, dropping unknown ones.
func NewTriggerSet(flags ...string) TriggerSet {
	set := TriggerSet{}
	for _, f := range flags {
		switch TriggerFlag(strings.ToLower(strings.TrimSpace(f))) {
		case TriggerStopLossHit:
			set[TriggerStopLossHit] = true
		case TriggerDailyLossBreach:
			set[TriggerDailyLossBreach] = true
		case TriggerDataOutage:
			set[TriggerDataOutage] = true
		case TriggerFlashMove:
			set[TriggerFlashMove] = true
		}
	}
	return set
}

func (s TriggerSet) Has(f TriggerFlag) bool { return s[f] }
func (s TriggerSet) Empty() bool            { return len(s) == 0 }

// Names returns the raised flags in a stable order.
func (s TriggerSet) Names() []string {
	ordered := []TriggerFlag{TriggerStopLossHit, TriggerDailyLossBreach, TriggerDataOutage, TriggerFlashMove}
	out := make([]string, 0, len(s))
	for _, f := range ordered {
		if s[f] {
			out = append(out, string(f))
		}
	}
	return out
}

// DecisionContext carries everything one decision cycle may read. Built fresh
// per request; each unit receives its own copy.
type DecisionContext struct {
	Symbol        string         `json:"symbol"`
	ActionContext string         `json:"action_context"` // "new_position" | "rebalance"
	Portfolio     PortfolioState `json:"portfolio"`
	Market        map[string]any `json:"market,omitempty"`
	Triggers      TriggerSet     `json:"-"`
	DataQuality   float64        `json:"data_quality"`
}

// Path records which route produced a Decision.
type Path string

const (
	PathFastTrack Path = "FAST_TRACK"
	PathDeepDive  Path = "DEEP_DIVE"
)

// ReasonCode explains why a Decision came out the way it did. Every Decision
// carries exactly one.
type ReasonCode string

const (
	ReasonConsensus ReasonCode = "CONSENSUS"

	ReasonHardRuleExtremeRisk    ReasonCode = "HARD_RULE_EXTREME_RISK"
	ReasonHardRuleLossLimit      ReasonCode = "HARD_RULE_LOSS_LIMIT"
	ReasonHardRuleCircuitBreaker ReasonCode = "HARD_RULE_CIRCUIT_BREAKER"

	ReasonSilenceLowConviction ReasonCode = "SILENCE_LOW_CONVICTION"
	ReasonSilenceDivergence    ReasonCode = "SILENCE_DIVERGENCE"

	ReasonFastTrackStopLoss   ReasonCode = "FAST_TRACK_STOP_LOSS"
	ReasonFastTrackDailyLoss  ReasonCode = "FAST_TRACK_DAILY_LOSS"
	ReasonFastTrackDataOutage ReasonCode = "FAST_TRACK_DATA_OUTAGE"
	ReasonFastTrackFlashMove  ReasonCode = "FAST_TRACK_FLASH_MOVE"
)

// IsHardRule reports whether the code records a hard-rule override.
func (r ReasonCode) IsHardRule() bool {
	return strings.HasPrefix(string(r), "HARD_RULE_")
}

// IsSilence reports whether the code records an abstention.
func (r ReasonCode) IsSilence() bool {
	return strings.HasPrefix(string(r), "SILENCE_")
}

// Decision is the sole output of the engine. Immutable once emitted.
type Decision struct {
	TraceID        string     `json:"trace_id"`
	Symbol         string     `json:"symbol"`
	Action         Action     `json:"final_action"`
	Confidence     float64    `json:"final_confidence"`
	Exposure       float64    `json:"exposure_fraction"`
	ReasonCode     ReasonCode `json:"reason_code"`
	Opinions       []Opinion  `json:"opinions,omitempty"`
	DecidedAt      time.Time  `json:"decided_at"`
	Path           Path       `json:"path"`
	Silent         bool       `json:"silent"`
	HaltNewEntries bool       `json:"halt_new_entries,omitempty"`
	DataQuality    float64    `json:"data_quality"`
}

// Executable reports whether the decision may be handed to the order sink
// once it clears the validator.
func (d Decision) Executable() bool {
	return d.Action != ActionHold && !d.Silent && d.Exposure > 0
}

// AccountSnapshot is the execution-time account view the validator checks
// against. It is distinct from PortfolioState: the portfolio is what the
// engine reasoned about, the account is what is true now.
type AccountSnapshot struct {
	Equity            float64 `json:"equity"`
	BuyingPower       float64 `json:"buying_power"`
	DailyLossBreached bool    `json:"daily_loss_breached"`
}
