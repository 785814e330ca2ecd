package snapshot

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/analysis/indicator"
	"quorum/internal/logger"
	"quorum/internal/market"
)

// Well-known keys of the market map handed to analysis units. Units treat the
// map as read-only input; absent keys mean the data was unavailable.
const (
	KeyCandles     = "candles"
	KeyIndicators  = "indicators"
	KeyLastPrice   = "last_price"
	KeyVolume24h   = "volume_24h"
	KeyFundingRate = "funding_rate"
	KeyInterval    = "interval"
	KeyFetchedAt   = "fetched_at"
)

// Config tunes one builder instance.
type Config struct {
	Interval   string
	KlineLimit int
	// MaxStaleness is how old the newest candle may be before quality
	// starts degrading. Zero means twice the interval.
	MaxStaleness time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval == "" {
		c.Interval = "15m"
	}
	if c.KlineLimit <= 0 {
		c.KlineLimit = 200
	}
	if c.MaxStaleness <= 0 {
		if d, err := market.ParseInterval(c.Interval); err == nil {
			c.MaxStaleness = 2 * d
		} else {
			c.MaxStaleness = 30 * time.Minute
		}
	}
	return c
}

// Builder assembles the per-symbol market view for one decision cycle.
type Builder struct {
	source market.Source
	cfg    Config
}

func NewBuilder(source market.Source, cfg Config) *Builder {
	return &Builder{source: source, cfg: cfg.withDefaults()}
}

// Result is the snapshot plus its quality score in [0,1].
type Result struct {
	Market    map[string]any
	Quality   float64
	FetchedAt time.Time
}

// Build fetches candles and funding data and computes indicators. A snapshot
// is still returned on partial failure with a reduced quality score; only a
// total kline failure is an error.
func (b *Builder) Build(ctx context.Context, symbol string) (Result, error) {
	now := time.Now()
	candles, err := b.source.FetchKlines(ctx, symbol, b.cfg.Interval, b.cfg.KlineLimit)
	if err != nil {
		return Result{}, fmt.Errorf("fetch klines %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return Result{}, fmt.Errorf("fetch klines %s: empty response", symbol)
	}

	m := map[string]any{
		KeyCandles:   candles,
		KeyInterval:  b.cfg.Interval,
		KeyFetchedAt: now.UnixMilli(),
	}
	quality := freshnessScore(candles, now, b.cfg.MaxStaleness)
	quality *= completenessScore(len(candles), b.cfg.KlineLimit)

	last := candles[len(candles)-1]
	m[KeyLastPrice] = last.Close
	m[KeyVolume24h] = rollingVolume(candles, now, 24*time.Hour)

	rep, err := indicator.Compute(candles, indicator.Settings{Symbol: symbol, Interval: b.cfg.Interval})
	if err != nil {
		logger.Warnf("snapshot: indicators unavailable for %s: %v", symbol, err)
		quality *= 0.8
	} else {
		m[KeyIndicators] = rep
	}

	rate, err := b.source.FetchFundingRate(ctx, symbol)
	if err != nil {
		logger.Warnf("snapshot: funding rate unavailable for %s: %v", symbol, err)
		quality *= 0.9
	} else {
		m[KeyFundingRate] = rate
	}

	return Result{Market: m, Quality: clamp01(quality), FetchedAt: now}, nil
}

// freshnessScore is 1.0 for a candle closed within maxAge and decays linearly
// to 0 at 3x maxAge. Stale data should push the engine toward abstaining.
func freshnessScore(candles []market.Candle, now time.Time, maxAge time.Duration) float64 {
	age := candles[len(candles)-1].Age(now)
	if age <= maxAge {
		return 1.0
	}
	excess := float64(age-maxAge) / float64(2*maxAge)
	return clamp01(1.0 - excess)
}

func completenessScore(got, want int) float64 {
	if want <= 0 || got >= want {
		return 1.0
	}
	// Indicator warm-up needs most of the window; penalize short history.
	return clamp01(float64(got) / float64(want))
}

func rollingVolume(candles []market.Candle, now time.Time, window time.Duration) float64 {
	cutoff := now.Add(-window).UnixMilli()
	var total float64
	for _, c := range candles {
		if c.CloseTime >= cutoff {
			total += c.Volume
		}
	}
	return total
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
