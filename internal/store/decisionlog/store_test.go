package decisionlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"quorum/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func decisionAt(trace, symbol string, at time.Time) engine.Decision {
	return engine.Decision{
		TraceID:    trace,
		Symbol:     symbol,
		Action:     engine.ActionBuy,
		Confidence: 0.7,
		Exposure:   0.1,
		ReasonCode: engine.ReasonConsensus,
		Path:       engine.PathDeepDive,
		DecidedAt:  at,
		Opinions: []engine.Opinion{
			{UnitID: "aggressive-momentum", Role: engine.RoleAggressive, Action: engine.ActionBuy, Confidence: 0.8},
		},
		DataQuality: 0.95,
	}
}

func TestAppendAndListRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Append(ctx, decisionAt("t-1", "BTCUSDT", time.Now()))
	require.NoError(t, err)
	assert.Positive(t, id)

	recs, err := s.List(ctx, Query{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "t-1", rec.TraceID)
	assert.Equal(t, "BUY", rec.Action)
	assert.Equal(t, "CONSENSUS", rec.ReasonCode)
	assert.Equal(t, 0.95, rec.DataQuality)
	require.Len(t, rec.Opinions, 1)
	assert.Equal(t, "aggressive-momentum", rec.Opinions[0].UnitID)
}

func TestListNewestFirstWithFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, trace := range []string{"t-1", "t-2", "t-3"} {
		_, err := s.Append(ctx, decisionAt(trace, "BTCUSDT", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := s.Append(ctx, decisionAt("t-eth", "ETHUSDT", base.Add(10*time.Minute)))
	require.NoError(t, err)

	recs, err := s.List(ctx, Query{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "t-3", recs[0].TraceID, "newest first")

	recs, err = s.List(ctx, Query{Symbol: "btcusdt", Since: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, recs, 1, "since filter and lower-case symbol both apply")
	assert.Equal(t, "t-3", recs[0].TraceID)

	recs, err = s.List(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestGetByTraceOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	_, err := s.Append(ctx, decisionAt("shared", "BTCUSDT", base))
	require.NoError(t, err)
	_, err = s.Append(ctx, decisionAt("shared", "BTCUSDT", base.Add(time.Second)))
	require.NoError(t, err)
	_, err = s.Append(ctx, decisionAt("other", "BTCUSDT", base))
	require.NoError(t, err)

	recs, err := s.GetByTrace(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.LessOrEqual(t, recs[0].Timestamp, recs[1].Timestamp)

	recs, err = s.GetByTrace(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	_, err := s.Append(context.Background(), engine.Decision{})
	assert.Error(t, err)
	_, err = s.List(context.Background(), Query{})
	assert.Error(t, err)
	assert.NoError(t, s.Close())
}
