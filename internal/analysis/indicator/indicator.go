package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"quorum/internal/market"
)

// Settings selects the indicator parameters for one report.
type Settings struct {
	Symbol     string
	Interval   string
	EMAFast    int
	EMASlow    int
	RSIPeriod  int
	ATRPeriod  int
	Overbought float64
	Oversold   float64
}

func (s Settings) withDefaults() Settings {
	if s.EMAFast <= 0 {
		s.EMAFast = 21
	}
	if s.EMASlow <= 0 {
		s.EMASlow = 50
	}
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = 14
	}
	if s.ATRPeriod <= 0 {
		s.ATRPeriod = 14
	}
	if s.Overbought == 0 {
		s.Overbought = 70
	}
	if s.Oversold == 0 {
		s.Oversold = 30
	}
	return s
}

// Value holds one indicator's latest reading and qualitative state.
type Value struct {
	Latest float64 `json:"latest"`
	State  string  `json:"state,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// Report aggregates the indicator readings for one symbol+interval.
type Report struct {
	Symbol   string           `json:"symbol"`
	Interval string           `json:"interval"`
	Count    int              `json:"count"`
	Values   map[string]Value `json:"values"`
}

// Get returns a named value, zero when missing.
func (r Report) Get(name string) Value { return r.Values[name] }

// Compute derives RSI, fast/slow EMA, MACD and ATR from candles.
func Compute(candles []market.Candle, cfg Settings) (Report, error) {
	cfg = cfg.withDefaults()
	rep := Report{
		Symbol:   cfg.Symbol,
		Interval: cfg.Interval,
		Count:    len(candles),
		Values:   make(map[string]Value),
	}
	if len(candles) == 0 {
		return rep, fmt.Errorf("no candles")
	}
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	lastClose := closes[len(closes)-1]

	emaFast := lastValid(talib.Ema(closes, cfg.EMAFast))
	emaSlow := lastValid(talib.Ema(closes, cfg.EMASlow))
	rep.Values["ema_fast"] = Value{Latest: emaFast, State: relativeState(lastClose, emaFast), Note: fmt.Sprintf("EMA%d vs price", cfg.EMAFast)}
	rep.Values["ema_slow"] = Value{Latest: emaSlow, State: relativeState(lastClose, emaSlow), Note: fmt.Sprintf("EMA%d vs price", cfg.EMASlow)}

	rsiVal := lastValid(talib.Rsi(closes, cfg.RSIPeriod))
	rsiState := "neutral"
	switch {
	case rsiVal >= cfg.Overbought:
		rsiState = "overbought"
	case rsiVal <= cfg.Oversold:
		rsiState = "oversold"
	}
	rep.Values["rsi"] = Value{Latest: rsiVal, State: rsiState, Note: fmt.Sprintf("period=%d", cfg.RSIPeriod)}

	_, signal, hist := talib.Macd(closes, 12, 26, 9)
	histVal := lastValid(hist)
	macdState := "flat"
	switch {
	case histVal > 0:
		macdState = "bullish"
	case histVal < 0:
		macdState = "bearish"
	}
	rep.Values["macd"] = Value{Latest: histVal, State: macdState, Note: fmt.Sprintf("signal=%.4f", lastValid(signal))}

	atrVal := lastValid(talib.Atr(highs, lows, closes, cfg.ATRPeriod))
	atrPct := 0.0
	if lastClose > 0 {
		atrPct = atrVal / lastClose
	}
	rep.Values["atr"] = Value{Latest: atrVal, State: "volatility", Note: fmt.Sprintf("pct=%.4f", atrPct)}
	rep.Values["atr_pct"] = Value{Latest: atrPct, State: "volatility"}

	rep.Values["close"] = Value{Latest: lastClose}
	return rep, nil
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v != 0 {
			return v
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	switch {
	case ref == 0:
		return "unknown"
	case price > ref:
		return "above"
	case price < ref:
		return "below"
	default:
		return "at"
	}
}
