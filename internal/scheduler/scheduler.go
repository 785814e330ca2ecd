// Package scheduler drives the periodic decision cycles, aligned to candle
// close so units never see a half-formed bar.
package scheduler

import (
	"context"
	"time"

	"quorum/internal/logger"
)

// AlignedScheduler fires a task aligned to interval boundaries. The first run
// waits for the next boundary plus offset; later runs repeat on a fixed grid
// anchored at the first run, so a slow task does not drift the schedule.
type AlignedScheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewAligned(ctx context.Context, interval, offset time.Duration) *AlignedScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &AlignedScheduler{
		Interval: interval,
		Offset:   offset,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks until the context is cancelled, running task once per
// interval boundary.
func (s *AlignedScheduler) Start(task func()) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("scheduler %s: invalid interval=%s, exit", s.Name, s.Interval)
		return
	}
	if s.Offset < 0 {
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	logger.Infof("scheduler %s: started interval=%s offset=%s run_immediately=%v",
		s.Name, s.Interval, s.Offset, s.RunImmediately)
	if s.RunImmediately {
		task()
	}

	now := s.nowFn().UTC()
	firstAt := now.Truncate(s.Interval).Add(s.Interval).Add(s.Offset)
	if !s.waitUntil(firstAt) {
		return
	}
	task()

	anchor := firstAt
	for {
		nextAt := nextOnGrid(anchor, s.Interval, s.nowFn().UTC())
		logger.Debugf("scheduler %s: next run at %s", s.Name, nextAt.Format(time.RFC3339))
		if !s.waitUntil(nextAt) {
			return
		}
		task()
	}
}

func (s *AlignedScheduler) waitUntil(target time.Time) bool {
	wait := target.Sub(s.nowFn().UTC())
	if wait <= 0 {
		select {
		case <-s.ctx.Done():
			logger.Infof("scheduler %s: ctx done, exit", s.Name)
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(wait)
	select {
	case <-s.ctx.Done():
		timer.Stop()
		logger.Infof("scheduler %s: ctx done, exit", s.Name)
		return false
	case <-timer.C:
		return true
	}
}

// nextOnGrid returns the first anchor+k*interval strictly after now.
func nextOnGrid(anchor time.Time, interval time.Duration, now time.Time) time.Time {
	anchor = anchor.UTC()
	now = now.UTC()
	if interval <= 0 {
		return now
	}
	delta := now.Sub(anchor)
	if delta < 0 {
		return anchor
	}
	k := delta / interval
	return anchor.Add((k + 1) * interval)
}
