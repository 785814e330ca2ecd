package market

import (
	"context"
	"sync"
	"time"
)

// Source provides read-only market data for snapshot building. Implementations
// must be safe for concurrent use; decision cycles for different symbols call
// them in parallel.
type Source interface {
	// FetchKlines returns up to limit candles for symbol/interval, oldest
	// first.
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	// FetchFundingRate returns the latest funding rate for a futures symbol.
	FetchFundingRate(ctx context.Context, symbol string) (float64, error)
	Name() string
}

// SourceStats tracks request outcomes per source for health reporting.
type SourceStats struct {
	mu       sync.Mutex
	requests int64
	failures int64
	lastErr  string
	lastOK   time.Time
}

func (s *SourceStats) RecordSuccess() {
	s.mu.Lock()
	s.requests++
	s.lastOK = time.Now()
	s.mu.Unlock()
}

func (s *SourceStats) RecordFailure(err error) {
	s.mu.Lock()
	s.requests++
	s.failures++
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
}

// Summary returns counters in one consistent read.
func (s *SourceStats) Summary() (requests, failures int64, lastErr string, lastOK time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests, s.failures, s.lastErr, s.lastOK
}
