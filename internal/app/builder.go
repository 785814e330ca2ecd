package app

import (
	"context"
	"fmt"
	"time"

	qcfg "quorum/internal/config"
	"quorum/internal/engine"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/notifier"
	"quorum/internal/provider"
	"quorum/internal/roster"
	"quorum/internal/scheduler"
	"quorum/internal/service"
	"quorum/internal/sink"
	"quorum/internal/snapshot"
	"quorum/internal/store/decisionlog"
	"quorum/internal/store/orderlog"
	enginehttp "quorum/internal/transport/http"
)

// AppBuilder assembles the application. The build functions are swappable so
// tests can stub heavy dependencies.
type AppBuilder struct {
	cfg *qcfg.Config

	marketSourceFn func(qcfg.MarketConfig) (market.Source, error)
	providersFn    func(qcfg.ModelsConfig) []provider.ModelProvider
	rosterFn       func(qcfg.UnitsConfig) (*roster.Registry, error)
	notifierFn     func(qcfg.NotifyConfig) notifier.TextNotifier
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *qcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:            cfg,
		marketSourceFn: buildMarketSource,
		providersFn:    buildProviders,
		rosterFn:       buildRoster,
		notifierFn:     buildNotifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithMarketSource overrides the market source, for tests.
func WithMarketSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		b.marketSourceFn = func(qcfg.MarketConfig) (market.Source, error) { return src, nil }
	}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg

	source, err := b.marketSourceFn(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("build market source: %w", err)
	}
	builder := snapshot.NewBuilder(source, snapshot.Config{
		Interval:   cfg.Market.Interval,
		KlineLimit: cfg.Market.KlineLimit,
	})

	providers := b.providersFn(cfg.Models)
	providerIndex := provider.ByID(providers)

	reg, err := b.rosterFn(cfg.Units)
	if err != nil {
		return nil, fmt.Errorf("build unit roster: %w", err)
	}
	snap := reg.Snapshot()
	units, err := roster.BuildUnits(snap, providerIndex)
	if err != nil {
		return nil, fmt.Errorf("build units: %w", err)
	}

	engCfg := cfg.Engine.ToEngine()
	if len(engCfg.Weights) == 0 {
		engCfg.Weights = snap.Weights()
	}
	eng, err := engine.New(engCfg, units)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	reg.OnChange(func(s roster.Snapshot) {
		swapped, err := roster.BuildUnits(s, providerIndex)
		if err != nil {
			logger.Errorf("roster reload: build units failed: %v", err)
			return
		}
		weights := engCfg.Weights
		if len(cfg.Engine.Weights) == 0 {
			weights = s.Weights()
		}
		if err := eng.SwapUnits(swapped, weights); err != nil {
			logger.Errorf("roster reload: swap rejected: %v", err)
			return
		}
		logger.Infof("roster reload: %d units active (version %d)", len(swapped), s.Version)
	})

	decisions, err := decisionlog.New(cfg.Store.DecisionLogPath)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}
	orders, err := orderlog.New(cfg.Store.OrderLogPath)
	if err != nil {
		decisions.Close()
		return nil, fmt.Errorf("open order log: %w", err)
	}

	notify := b.notifierFn(cfg.Notify)
	svc, err := service.New(service.Options{
		Engine:  eng,
		Builder: builder,
		Accounts: service.StaticAccount{
			Equity:      cfg.Account.Equity,
			BuyingPower: cfg.Account.BuyingPower,
		},
		Decisions: decisions,
		Orders:    orders,
		OrderSink: sink.NewLogSink(notify),
		Alerts:    notify,
	})
	if err != nil {
		decisions.Close()
		orders.Close()
		return nil, err
	}

	httpServer, err := enginehttp.NewServer(enginehttp.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Service: svc,
	})
	if err != nil {
		decisions.Close()
		orders.Close()
		return nil, fmt.Errorf("build http server: %w", err)
	}

	app := &App{
		cfg:       cfg,
		svc:       svc,
		http:      httpServer,
		decisions: decisions,
		orders:    orders,
	}
	if cfg.Scheduler.Enabled {
		interval, err := market.ParseInterval(cfg.Scheduler.Interval)
		if err != nil {
			decisions.Close()
			orders.Close()
			return nil, fmt.Errorf("scheduler interval: %w", err)
		}
		sched := scheduler.NewAligned(ctx, interval, 5*time.Second)
		sched.Name = "decision-cycle"
		app.sched = sched
		app.symbols = cfg.Scheduler.Symbols
	}
	return app, nil
}

func buildMarketSource(cfg qcfg.MarketConfig) (market.Source, error) {
	return market.NewBinanceSource(market.BinanceConfig{
		RESTBaseURL: cfg.RESTBaseURL,
		HTTPTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		ProxyURL:    cfg.ProxyURL,
	})
}

func buildProviders(cfg qcfg.ModelsConfig) []provider.ModelProvider {
	return provider.BuildFromConfig(cfg.ToProvider(), time.Duration(cfg.TimeoutSeconds)*time.Second)
}

func buildRoster(cfg qcfg.UnitsConfig) (*roster.Registry, error) {
	return roster.NewRegistry(cfg.RosterPath, cfg.HotReload)
}

func buildNotifier(cfg qcfg.NotifyConfig) notifier.TextNotifier {
	if cfg.Telegram.Enabled {
		return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	return notifier.Noop{}
}
