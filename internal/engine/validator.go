package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RejectReason is the typed rejection a caller receives instead of an
// executable decision. It deliberately carries no knowledge of why the
// decision was made, only why it is unsafe to execute now.
type RejectReason struct {
	Code   string
	Detail string
}

const (
	RejectExposureCap = "REJECT_EXPOSURE_CAP"
	RejectBuyingPower = "REJECT_BUYING_POWER"
	RejectDailyLoss   = "REJECT_DAILY_LOSS"
	RejectDataQuality = "REJECT_DATA_QUALITY"
)

func (r *RejectReason) Error() string {
	return fmt.Sprintf("order rejected (%s): %s", r.Code, r.Detail)
}

// OrderValidator is the final stateless gate between a Decision and the
// order sink. It re-checks absolute limits on every call and is idempotent:
// validating the same decision twice yields the same verdict.
type OrderValidator struct {
	exposureCap    decimal.Decimal
	minDataQuality float64
}

func NewOrderValidator(cfg Config) *OrderValidator {
	return &OrderValidator{
		exposureCap:    decimal.NewFromFloat(cfg.ExposureCap),
		minDataQuality: cfg.MinDataQuality,
	}
}

// Validate returns nil when the decision is safe to hand to the order sink,
// or a *RejectReason describing the first failed check. HOLD and silent
// decisions are trivially valid: they never become orders.
func (v *OrderValidator) Validate(d Decision, account AccountSnapshot) *RejectReason {
	if !d.Executable() {
		return nil
	}

	exposure := decimal.NewFromFloat(d.Exposure)
	if exposure.GreaterThan(v.exposureCap) {
		return &RejectReason{
			Code:   RejectExposureCap,
			Detail: fmt.Sprintf("exposure %s exceeds cap %s", exposure, v.exposureCap),
		}
	}

	// Buying power and the loss halt gate entries only. A SELL reduces
	// risk and must stay executable even when the account is constrained.
	notional := exposure.Mul(decimal.NewFromFloat(account.Equity))
	buyingPower := decimal.NewFromFloat(account.BuyingPower)
	if d.Action == ActionBuy && notional.GreaterThan(buyingPower) {
		return &RejectReason{
			Code:   RejectBuyingPower,
			Detail: fmt.Sprintf("notional %s exceeds buying power %s", notional.StringFixed(2), buyingPower.StringFixed(2)),
		}
	}

	if account.DailyLossBreached && d.Action == ActionBuy {
		return &RejectReason{
			Code:   RejectDailyLoss,
			Detail: "daily loss limit already breached, new entries halted",
		}
	}

	if d.DataQuality < v.minDataQuality {
		return &RejectReason{
			Code:   RejectDataQuality,
			Detail: fmt.Sprintf("data quality %.2f below floor %.2f", d.DataQuality, v.minDataQuality),
		}
	}

	return nil
}
