package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quorum/internal/logger"
	"quorum/internal/pkg/circuit"

	"golang.org/x/sync/errgroup"
)

// Collector fans a decision request out to every configured unit in
// parallel and fans results back in. A unit that errors, panics, times out
// or sits behind an open breaker contributes a PASS opinion instead of
// blocking or invalidating the cycle; total latency is bounded by the
// per-unit timeout, not the sum of unit latencies.
type Collector struct {
	units    []AnalysisUnit
	timeout  time.Duration
	breakers map[string]*circuit.Breaker
}

// NewCollector wires one breaker per unit. Breaker trips only skip the unit
// temporarily; the roster itself never shrinks mid-flight.
func NewCollector(units []AnalysisUnit, perUnitTimeout time.Duration) *Collector {
	breakers := make(map[string]*circuit.Breaker, len(units))
	for _, u := range units {
		b := circuit.NewBreaker(u.ID(), 3, 2*time.Minute)
		b.OnStateChange(func(name string, from, to circuit.State) {
			logger.Warnf("unit breaker %s: %s -> %s", name, from, to)
		})
		breakers[u.ID()] = b
	}
	return &Collector{units: units, timeout: perUnitTimeout, breakers: breakers}
}

// Units returns the configured roster.
func (c *Collector) Units() []AnalysisUnit { return c.units }

// Collect invokes every unit concurrently and returns exactly one Opinion
// per unit, sorted by unit id so the merge is independent of arrival order.
// Each unit gets its own copy of the request; there is no shared mutable
// state across the parallel calls.
func (c *Collector) Collect(ctx context.Context, req AnalysisRequest) []Opinion {
	if len(c.units) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]Opinion, len(c.units))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, u := range c.units {
		i, u := i, u
		eg.Go(func() error {
			results[i] = c.collectOne(egCtx, u, req)
			return nil
		})
	}
	_ = eg.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].UnitID < results[b].UnitID })
	return results
}

func (c *Collector) collectOne(ctx context.Context, u AnalysisUnit, req AnalysisRequest) Opinion {
	br := c.breakers[u.ID()]
	if br != nil && !br.Allow() {
		logger.Debugf("unit %s skipped: breaker open", u.ID())
		return PassOpinion(u.ID(), u.Role(), "unit breaker open")
	}

	cctx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	op, err := c.invokeSafe(cctx, u, req)
	elapsed := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		if br != nil {
			br.RecordFailure()
		}
		logger.Warnf("unit %s failed symbol=%s elapsed=%s err=%v", u.ID(), req.Symbol, elapsed, err)
		return PassOpinion(u.ID(), u.Role(), fmt.Sprintf("unit unavailable: %v", err))
	}
	if br != nil {
		br.RecordSuccess()
	}

	// Units cannot be trusted to fill identity fields consistently.
	op.UnitID = u.ID()
	op.Role = u.Role()
	op.Confidence = clamp01(op.Confidence)
	if op.ProducedAt.IsZero() {
		op.ProducedAt = time.Now().UTC()
	}
	logger.Debugf("unit %s symbol=%s action=%s confidence=%.2f elapsed=%s", u.ID(), req.Symbol, op.Action, op.Confidence, elapsed)
	return op
}

// invokeSafe shields the cycle from a panicking unit and converts a context
// deadline into a plain unit failure.
func (c *Collector) invokeSafe(ctx context.Context, u AnalysisUnit, req AnalysisRequest) (op Opinion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	opinion, aerr := u.Analyze(ctx, req)
	if aerr != nil {
		return Opinion{}, aerr
	}
	if cerr := ctx.Err(); cerr != nil {
		return Opinion{}, cerr
	}
	return opinion, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
