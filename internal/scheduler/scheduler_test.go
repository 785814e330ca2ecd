package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextOnGrid(t *testing.T) {
	anchor := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	interval := 15 * time.Minute

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before anchor", anchor.Add(-time.Hour), anchor},
		{"at anchor", anchor, anchor.Add(interval)},
		{"mid slot", anchor.Add(7 * time.Minute), anchor.Add(interval)},
		{"exactly on boundary", anchor.Add(interval), anchor.Add(2 * interval)},
		{"after long stall", anchor.Add(interval*3 + time.Minute), anchor.Add(4 * interval)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, nextOnGrid(anchor, interval, tc.now))
		})
	}
}

func TestNextOnGridZeroInterval(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now, nextOnGrid(now.Add(-time.Hour), 0, now))
}

func TestStartRunImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewAligned(ctx, time.Hour, 0)
	s.Name = "test"
	s.RunImmediately = true

	ran := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(func() {
			ran <- struct{}{}
			cancel()
		})
	}()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("immediate run never fired")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestStartStopsOnCancelBeforeFirstBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewAligned(ctx, time.Hour, 0)
	s.Name = "test"

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(func() { t.Error("task must not run") })
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not exit after cancel")
	}
}

func TestStartRejectsBadInterval(t *testing.T) {
	s := NewAligned(context.Background(), 0, 0)
	done := make(chan struct{})
	go func() {
		s.Start(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero interval must return immediately")
	}
}

func TestStartAlignsToBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC)
	s := NewAligned(ctx, 2*time.Second, 0)
	s.Name = "test"
	// Freeze the clock just past a boundary so the first wait is short.
	s.nowFn = func() time.Time { return base }

	ran := make(chan struct{}, 1)
	go s.Start(func() {
		ran <- struct{}{}
		cancel()
	})

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("aligned first run never fired")
	}
}
