package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"quorum/internal/logger"

	"github.com/google/uuid"
)

// ErrDecisionInFlight is returned when a second decision is requested for a
// symbol whose previous decision has not finished. Same-symbol requests are
// serialized to rule out contradictory concurrent orders; the caller is
// expected to retry on the next cycle.
var ErrDecisionInFlight = errors.New("decision already in flight for symbol")

// Engine is the consensus decision engine: it routes a request onto the
// fast track or through collect -> hard rules -> silence -> vote -> size,
// and always emits a Decision with a reason code.
type Engine struct {
	cfg       Config
	collector *Collector
	rules     *HardRuleEvaluator
	silence   *SilencePolicy
	votes     *VoteAggregator
	sizer     *PositionSizer
	router    *ExecutionRouter

	mu       sync.Mutex
	inflight map[string]bool
}

// New validates cfg and wires the pipeline. Construction is the only moment
// configuration errors can surface; Decide never fails on config.
func New(cfg Config, units []AnalysisUnit) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("engine: at least one analysis unit is required")
	}
	for _, u := range units {
		if _, ok := cfg.Weights[u.ID()]; !ok {
			return nil, fmt.Errorf("engine: unit %s has no configured weight", u.ID())
		}
	}
	return &Engine{
		cfg:       cfg,
		collector: NewCollector(units, cfg.PerUnitTimeout),
		rules:     NewHardRuleEvaluator(cfg),
		silence:   NewSilencePolicy(cfg),
		votes:     NewVoteAggregator(cfg.Weights),
		sizer:     NewPositionSizer(cfg),
		router:    NewExecutionRouter(cfg),
		inflight:  make(map[string]bool),
	}, nil
}

// Config returns the engine's immutable configuration.
func (e *Engine) Config() Config { return e.cfg }

// SwapUnits replaces the unit set and weights, validating the new pair the
// same way construction does. In-flight decisions finish on the old set.
func (e *Engine) SwapUnits(units []AnalysisUnit, weights map[string]float64) error {
	if len(units) == 0 {
		return fmt.Errorf("engine: at least one analysis unit is required")
	}
	cfg := e.cfg
	cfg.Weights = weights
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, u := range units {
		if _, ok := weights[u.ID()]; !ok {
			return fmt.Errorf("engine: unit %s has no configured weight", u.ID())
		}
	}
	e.mu.Lock()
	e.cfg = cfg
	e.collector = NewCollector(units, cfg.PerUnitTimeout)
	e.votes = NewVoteAggregator(weights)
	e.mu.Unlock()
	return nil
}

// Decide runs one full decision cycle for dc.Symbol. Requests for distinct
// symbols run concurrently without coordination; a request for a symbol that
// is already deciding returns ErrDecisionInFlight.
func (e *Engine) Decide(ctx context.Context, dc DecisionContext) (Decision, error) {
	symbol := strings.ToUpper(strings.TrimSpace(dc.Symbol))
	if symbol == "" {
		return Decision{}, fmt.Errorf("engine: symbol cannot be empty")
	}
	dc.Symbol = symbol

	if !e.acquire(symbol) {
		return Decision{}, fmt.Errorf("%w: %s", ErrDecisionInFlight, symbol)
	}
	defer e.release(symbol)

	if ctx == nil {
		ctx = context.Background()
	}

	e.mu.Lock()
	deadline := e.cfg.DecisionDeadline
	collector, votes := e.collector, e.votes
	e.mu.Unlock()

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	traceID := uuid.NewString()
	start := time.Now()

	var decision Decision
	if fast := e.router.FastTrack(dc); fast != nil {
		decision = *fast
	} else {
		decision = e.deepDive(ctx, dc, collector, votes)
	}
	decision.TraceID = traceID

	logger.Infof("decision symbol=%s path=%s action=%s confidence=%.2f exposure=%.4f reason=%s silent=%v elapsed=%s",
		symbol, decision.Path, decision.Action, decision.Confidence, decision.Exposure,
		decision.ReasonCode, decision.Silent, time.Since(start).Truncate(time.Millisecond))
	return decision, nil
}

// deepDive runs the full consensus pipeline. Every branch returns a
// complete Decision; there is no path out without a reason code.
func (e *Engine) deepDive(ctx context.Context, dc DecisionContext, collector *Collector, votes *VoteAggregator) Decision {
	opinions := collector.Collect(ctx, AnalysisRequest{Symbol: dc.Symbol, Context: dc})

	if forced := e.rules.Evaluate(dc, opinions); forced != nil {
		return *forced
	}

	if abstain, code := e.silence.ShouldAbstain(opinions); abstain {
		logger.Infof("silence symbol=%s reason=%s", dc.Symbol, code)
		return Decision{
			Symbol:      dc.Symbol,
			Action:      ActionHold,
			Confidence:  0,
			Exposure:    0,
			ReasonCode:  code,
			Opinions:    opinions,
			DecidedAt:   time.Now().UTC(),
			Path:        PathDeepDive,
			Silent:      true,
			DataQuality: dc.DataQuality,
		}
	}

	action, confidence := votes.Aggregate(opinions)
	exposure := e.sizer.Size(action, confidence, findDefensive(opinions))

	return Decision{
		Symbol:      dc.Symbol,
		Action:      action,
		Confidence:  confidence,
		Exposure:    exposure,
		ReasonCode:  ReasonConsensus,
		Opinions:    opinions,
		DecidedAt:   time.Now().UTC(),
		Path:        PathDeepDive,
		DataQuality: dc.DataQuality,
	}
}

func (e *Engine) acquire(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[symbol] {
		return false
	}
	e.inflight[symbol] = true
	return true
}

func (e *Engine) release(symbol string) {
	e.mu.Lock()
	delete(e.inflight, symbol)
	e.mu.Unlock()
}
