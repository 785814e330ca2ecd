package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	qcfg "quorum/internal/config"
	"quorum/internal/logger"
	"quorum/internal/scheduler"
	"quorum/internal/service"
	"quorum/internal/store/decisionlog"
	"quorum/internal/store/orderlog"
	enginehttp "quorum/internal/transport/http"
)

// App owns the wired components and their lifecycle.
type App struct {
	cfg       *qcfg.Config
	svc       *service.DecisionService
	http      *enginehttp.Server
	sched     *scheduler.AlignedScheduler
	symbols   []string
	decisions *decisionlog.Store
	orders    *orderlog.Store
}

// NewApp builds the application from configuration without starting it.
func NewApp(cfg *qcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Service exposes the decision service for replay harnesses and tests.
func (a *App) Service() *service.DecisionService {
	if a == nil {
		return nil
	}
	return a.svc
}

// Run starts the HTTP server and, when enabled, the cycle scheduler. It
// blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	if a.http != nil {
		group.Go(func() error {
			logger.Infof("engine http listening on %s", a.http.Addr())
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("engine http server error: %w", err)
			}
			return nil
		})
	}

	if a.sched != nil {
		group.Go(func() error {
			a.sched.Start(func() { a.runCycle(ctx) })
			return nil
		})
	}

	return group.Wait()
}

func (a *App) runCycle(ctx context.Context) {
	for _, symbol := range a.symbols {
		if ctx.Err() != nil {
			return
		}
		result, err := a.svc.Decide(ctx, service.DecideRequest{
			Symbol:        symbol,
			ActionContext: "new_position",
		})
		if err != nil {
			logger.Errorf("scheduled cycle failed symbol=%s: %v", symbol, err)
			continue
		}
		d := result.Decision
		logger.Infof("cycle symbol=%s action=%s exposure=%.4f reason=%s",
			d.Symbol, d.Action, d.Exposure, d.ReasonCode)
	}
}

func (a *App) close() {
	if a.decisions != nil {
		if err := a.decisions.Close(); err != nil {
			logger.Warnf("closing decision log: %v", err)
		}
	}
	if a.orders != nil {
		if err := a.orders.Close(); err != nil {
			logger.Warnf("closing order log: %v", err)
		}
	}
}
