// Package sink is the boundary where validated decisions leave the engine.
// Execution itself belongs to an external collaborator; the sinks here log,
// persist and announce the intent.
package sink

import (
	"context"
	"fmt"

	"quorum/internal/engine"
	"quorum/internal/logger"
	"quorum/internal/notifier"
)

// OrderIntent is a validated, executable decision plus the notional it
// commits at the account's current equity.
type OrderIntent struct {
	Decision engine.Decision
	Notional float64
}

// OrderSink receives validated intents.
type OrderSink interface {
	Submit(ctx context.Context, intent OrderIntent) error
}

// LogSink writes intents to the application log and optionally to a
// notifier. It never fails the decision path on notify errors.
type LogSink struct {
	notify notifier.TextNotifier
}

func NewLogSink(notify notifier.TextNotifier) *LogSink {
	if notify == nil {
		notify = notifier.Noop{}
	}
	return &LogSink{notify: notify}
}

func (s *LogSink) Submit(ctx context.Context, intent OrderIntent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := intent.Decision
	logger.Infof("order intent: trace=%s %s %s exposure=%.4f notional=%.2f reason=%s",
		d.TraceID, d.Symbol, d.Action, d.Exposure, intent.Notional, d.ReasonCode)
	msg := fmt.Sprintf("*%s* %s\nexposure: %.2f%%\nnotional: %.2f\nreason: %s\ntrace: `%s`",
		d.Action, d.Symbol, d.Exposure*100, intent.Notional, d.ReasonCode, d.TraceID)
	if err := s.notify.SendText(msg); err != nil {
		logger.Warnf("order intent notify failed: %v", err)
	}
	return nil
}
