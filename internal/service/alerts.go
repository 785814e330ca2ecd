package service

import (
	"fmt"
	"sync"

	"quorum/internal/engine"
	"quorum/internal/logger"
	"quorum/internal/notifier"
)

// defaultSilenceStreakFloor is how many consecutive silent decisions on one
// symbol trigger a push. Single abstentions are routine and stay quiet.
const defaultSilenceStreakFloor = 3

// alerter pushes operator-facing events: hard-rule trips, validator
// rejections and sustained silence. Notify failures never affect the
// decision path.
type alerter struct {
	notify      notifier.TextNotifier
	streakFloor int

	mu      sync.Mutex
	streaks map[string]int
}

func newAlerter(notify notifier.TextNotifier, streakFloor int) *alerter {
	if notify == nil {
		notify = notifier.Noop{}
	}
	if streakFloor <= 0 {
		streakFloor = defaultSilenceStreakFloor
	}
	return &alerter{
		notify:      notify,
		streakFloor: streakFloor,
		streaks:     make(map[string]int),
	}
}

// observe inspects every decision the engine emits. Hard-rule overrides push
// immediately; silent decisions accumulate per symbol and push once the
// streak reaches the floor, then the counter restarts.
func (a *alerter) observe(d engine.Decision) {
	if d.ReasonCode.IsHardRule() {
		a.send(fmt.Sprintf("*HARD RULE* %s\nrule: %s\naction: %s\ntrace: `%s`",
			d.Symbol, d.ReasonCode, d.Action, d.TraceID))
	}
	if streak := a.bumpStreak(d.Symbol, d.Silent); streak > 0 {
		a.send(fmt.Sprintf("*SILENCE STREAK* %s\n%d consecutive abstentions, last: %s\ntrace: `%s`",
			d.Symbol, streak, d.ReasonCode, d.TraceID))
	}
}

// rejected pushes every validator rejection.
func (a *alerter) rejected(d engine.Decision, reject engine.RejectReason, notional float64) {
	a.send(fmt.Sprintf("*REJECTED* %s %s\ncode: %s\ndetail: %s\nnotional: %.2f\ntrace: `%s`",
		d.Symbol, d.Action, reject.Code, reject.Detail, notional, d.TraceID))
}

// bumpStreak returns the streak length when it just reached the floor, else 0.
func (a *alerter) bumpStreak(symbol string, silent bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !silent {
		delete(a.streaks, symbol)
		return 0
	}
	a.streaks[symbol]++
	if a.streaks[symbol] < a.streakFloor {
		return 0
	}
	streak := a.streaks[symbol]
	a.streaks[symbol] = 0
	return streak
}

func (a *alerter) send(msg string) {
	if err := a.notify.SendText(msg); err != nil {
		logger.Warnf("alert notify failed: %v", err)
	}
}
