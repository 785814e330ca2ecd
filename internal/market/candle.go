package market

import "time"

// Candle is one OHLCV bar in engine-native form.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Age returns how far behind now the candle's close is.
func (c Candle) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(c.CloseTime))
}

// Closes extracts the close series, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
