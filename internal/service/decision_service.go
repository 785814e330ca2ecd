// Package service runs full decision cycles: snapshot, engine, audit trail,
// validation and hand-off to the order sink.
package service

import (
	"context"
	"fmt"

	"quorum/internal/engine"
	"quorum/internal/logger"
	"quorum/internal/notifier"
	"quorum/internal/sink"
	"quorum/internal/snapshot"
	"quorum/internal/store/decisionlog"
	"quorum/internal/store/orderlog"
)

// AccountProvider supplies the portfolio and account views a cycle reads.
// The engine never mutates either.
type AccountProvider interface {
	Portfolio(ctx context.Context) (engine.PortfolioState, error)
	Account(ctx context.Context) (engine.AccountSnapshot, error)
}

// StaticAccount is a fixed paper account for runs without an external
// account service.
type StaticAccount struct {
	Equity      float64
	BuyingPower float64
}

func (a StaticAccount) Portfolio(context.Context) (engine.PortfolioState, error) {
	return engine.PortfolioState{
		TotalValue:    a.Equity,
		AvailableCash: a.BuyingPower,
	}, nil
}

func (a StaticAccount) Account(context.Context) (engine.AccountSnapshot, error) {
	return engine.AccountSnapshot{Equity: a.Equity, BuyingPower: a.BuyingPower}, nil
}

// DecideRequest is one cycle's input. Portfolio and Account override the
// provider when non-nil, which lets callers replay historical states.
type DecideRequest struct {
	Symbol        string
	ActionContext string
	Triggers      []string
	Portfolio     *engine.PortfolioState
	Account       *engine.AccountSnapshot
}

// DecideResult bundles the decision with the validation verdict.
type DecideResult struct {
	Decision engine.Decision
	Reject   *engine.RejectReason
	Notional float64
}

// DecisionService owns one engine and its supporting stores.
type DecisionService struct {
	eng       *engine.Engine
	builder   *snapshot.Builder
	validator *engine.OrderValidator
	decisions *decisionlog.Store
	orders    *orderlog.Store
	orderSink sink.OrderSink
	accounts  AccountProvider
	alerts    *alerter
}

// Options carries the service dependencies. Engine, Builder and Accounts are
// required; stores, sink and alerts are optional and skipped when nil.
type Options struct {
	Engine    *engine.Engine
	Builder   *snapshot.Builder
	Accounts  AccountProvider
	Decisions *decisionlog.Store
	Orders    *orderlog.Store
	OrderSink sink.OrderSink

	// Alerts receives hard-rule trips, validator rejections and silence
	// streaks. SilenceStreakFloor overrides how many consecutive silent
	// decisions per symbol raise an alert; zero keeps the default.
	Alerts             notifier.TextNotifier
	SilenceStreakFloor int
}

func New(opts Options) (*DecisionService, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("decision service requires an engine")
	}
	if opts.Builder == nil {
		return nil, fmt.Errorf("decision service requires a snapshot builder")
	}
	if opts.Accounts == nil {
		return nil, fmt.Errorf("decision service requires an account provider")
	}
	return &DecisionService{
		eng:       opts.Engine,
		builder:   opts.Builder,
		validator: engine.NewOrderValidator(opts.Engine.Config()),
		decisions: opts.Decisions,
		orders:    opts.Orders,
		orderSink: opts.OrderSink,
		accounts:  opts.Accounts,
		alerts:    newAlerter(opts.Alerts, opts.SilenceStreakFloor),
	}, nil
}

// Decide runs one cycle for req.Symbol. A market data failure does not abort
// the cycle: it raises the data outage trigger so the fast track can answer.
func (s *DecisionService) Decide(ctx context.Context, req DecideRequest) (DecideResult, error) {
	portfolio, err := s.portfolio(ctx, req)
	if err != nil {
		return DecideResult{}, fmt.Errorf("load portfolio: %w", err)
	}

	triggers := req.Triggers
	dc := engine.DecisionContext{
		Symbol:        req.Symbol,
		ActionContext: req.ActionContext,
		Portfolio:     portfolio,
	}
	snap, err := s.builder.Build(ctx, req.Symbol)
	if err != nil {
		logger.Warnf("snapshot build failed for %s: %v", req.Symbol, err)
		triggers = append(triggers, string(engine.TriggerDataOutage))
	} else {
		dc.Market = snap.Market
		dc.DataQuality = snap.Quality
	}
	dc.Triggers = engine.NewTriggerSet(triggers...)

	decision, err := s.eng.Decide(ctx, dc)
	if err != nil {
		return DecideResult{}, err
	}
	s.persistDecision(ctx, decision)
	s.alerts.observe(decision)

	account, err := s.account(ctx, req)
	if err != nil {
		return DecideResult{Decision: decision}, fmt.Errorf("load account: %w", err)
	}
	account.DailyLossBreached = account.DailyLossBreached || decision.HaltNewEntries

	result := DecideResult{
		Decision: decision,
		Notional: decision.Exposure * account.Equity,
	}
	if !decision.Executable() {
		return result, nil
	}

	if reject := s.validator.Validate(decision, account); reject != nil {
		result.Reject = reject
		logger.Warnf("order rejected trace=%s symbol=%s code=%s: %s",
			decision.TraceID, decision.Symbol, reject.Code, reject.Detail)
		s.persistOrderRejected(ctx, decision, result.Notional, *reject)
		s.alerts.rejected(decision, *reject, result.Notional)
		return result, nil
	}
	s.persistOrderAccepted(ctx, decision, result.Notional)

	if s.orderSink != nil {
		if err := s.orderSink.Submit(ctx, sink.OrderIntent{Decision: decision, Notional: result.Notional}); err != nil {
			logger.Errorf("order sink submit failed trace=%s: %v", decision.TraceID, err)
		}
	}
	return result, nil
}

// History lists persisted decisions, newest first.
func (s *DecisionService) History(ctx context.Context, symbol string, limit int) ([]decisionlog.Record, error) {
	if s.decisions == nil {
		return nil, fmt.Errorf("decision log is not enabled")
	}
	return s.decisions.List(ctx, decisionlog.Query{Symbol: symbol, Limit: limit})
}

// Trace returns all records for one trace ID.
func (s *DecisionService) Trace(ctx context.Context, traceID string) ([]decisionlog.Record, error) {
	if s.decisions == nil {
		return nil, fmt.Errorf("decision log is not enabled")
	}
	return s.decisions.GetByTrace(ctx, traceID)
}

// Orders lists persisted order intents for a symbol, newest first.
func (s *DecisionService) Orders(ctx context.Context, symbol string, limit int) ([]orderlog.OrderModel, error) {
	if s.orders == nil {
		return nil, fmt.Errorf("order log is not enabled")
	}
	return s.orders.ListBySymbol(ctx, symbol, limit)
}

func (s *DecisionService) portfolio(ctx context.Context, req DecideRequest) (engine.PortfolioState, error) {
	if req.Portfolio != nil {
		return *req.Portfolio, nil
	}
	return s.accounts.Portfolio(ctx)
}

func (s *DecisionService) account(ctx context.Context, req DecideRequest) (engine.AccountSnapshot, error) {
	if req.Account != nil {
		return *req.Account, nil
	}
	return s.accounts.Account(ctx)
}

func (s *DecisionService) persistDecision(ctx context.Context, d engine.Decision) {
	if s.decisions == nil {
		return
	}
	if _, err := s.decisions.Append(ctx, d); err != nil {
		logger.Errorf("decision log append failed trace=%s: %v", d.TraceID, err)
	}
}

func (s *DecisionService) persistOrderAccepted(ctx context.Context, d engine.Decision, notional float64) {
	if s.orders == nil {
		return
	}
	if _, err := s.orders.RecordAccepted(ctx, d, notional); err != nil {
		logger.Errorf("order log append failed trace=%s: %v", d.TraceID, err)
	}
}

func (s *DecisionService) persistOrderRejected(ctx context.Context, d engine.Decision, notional float64, reject engine.RejectReason) {
	if s.orders == nil {
		return
	}
	if _, err := s.orders.RecordRejected(ctx, d, notional, reject); err != nil {
		logger.Errorf("order log append failed trace=%s: %v", d.TraceID, err)
	}
}
