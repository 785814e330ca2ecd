package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngineConfig() Config {
	cfg := DefaultConfig()
	cfg.Weights = map[string]float64{"agg": 0.4, "def": 0.35, "info": 0.25}
	cfg.PerUnitTimeout = 200 * time.Millisecond
	cfg.DecisionDeadline = 200 * time.Millisecond
	return cfg
}

func testUnits() []AnalysisUnit {
	return []AnalysisUnit{
		&stubUnit{id: "agg", role: RoleAggressive, opinion: Opinion{Action: ActionBuy, Confidence: 0.8}},
		&stubUnit{id: "def", role: RoleDefensive, opinion: Opinion{
			Action: ActionBuy, Confidence: 0.7, RiskLevel: RiskLow, MaxLossPct: -0.02, RecommendedExposure: 0.2,
		}},
		&stubUnit{id: "info", role: RoleInformational, opinion: Opinion{Action: ActionHold, Confidence: 0.6}},
	}
}

func TestNewRejectsInvalidWeights(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Weights = map[string]float64{"agg": 0.4, "def": 0.35, "info": 0.35}
	_, err := New(cfg, testUnits())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum")
}

func TestNewRejectsUnitWithoutWeight(t *testing.T) {
	cfg := testEngineConfig()
	units := append(testUnits(), buyUnit("stranger", 0.5))
	_, err := New(cfg, units)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stranger")
}

func TestDecideConsensusBuy(t *testing.T) {
	eng, err := New(testEngineConfig(), testUnits())
	require.NoError(t, err)

	d, err := eng.Decide(context.Background(), DecisionContext{
		Symbol:        "btcusdt",
		ActionContext: "new_position",
		Portfolio:     PortfolioState{TotalValue: 100000},
		DataQuality:   0.95,
	})
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", d.Symbol)
	assert.Equal(t, PathDeepDive, d.Path)
	assert.Equal(t, ActionBuy, d.Action)
	assert.Equal(t, ReasonConsensus, d.ReasonCode)
	assert.NotEmpty(t, d.TraceID)
	assert.Len(t, d.Opinions, 3)
	assert.Greater(t, d.Exposure, 0.0)
	assert.LessOrEqual(t, d.Exposure, eng.Config().ExposureCap)
	assert.True(t, d.Executable())
}

func TestDecideSilenceKeepsExposureZero(t *testing.T) {
	units := []AnalysisUnit{
		&stubUnit{id: "agg", role: RoleAggressive, opinion: Opinion{Action: ActionBuy, Confidence: 0.3}},
		&stubUnit{id: "def", role: RoleDefensive, opinion: Opinion{Action: ActionHold, Confidence: 0.2, RiskLevel: RiskLow, MaxLossPct: -0.02}},
		&stubUnit{id: "info", role: RoleInformational, opinion: Opinion{Action: ActionHold, Confidence: 0.4}},
	}
	eng, err := New(testEngineConfig(), units)
	require.NoError(t, err)

	d, err := eng.Decide(context.Background(), DecisionContext{
		Symbol:    "ETHUSDT",
		Portfolio: PortfolioState{TotalValue: 100000},
	})
	require.NoError(t, err)
	assert.True(t, d.Silent)
	assert.Equal(t, ActionHold, d.Action)
	assert.Zero(t, d.Exposure)
	assert.Equal(t, ReasonSilenceLowConviction, d.ReasonCode)
	assert.False(t, d.Executable())
}

func TestDecideHardRuleShortCircuitsVoting(t *testing.T) {
	units := []AnalysisUnit{
		&stubUnit{id: "agg", role: RoleAggressive, opinion: Opinion{Action: ActionBuy, Confidence: 0.95}},
		&stubUnit{id: "def", role: RoleDefensive, opinion: Opinion{
			Action: ActionSell, Confidence: 0.9, RiskLevel: RiskExtreme, MaxLossPct: -0.02,
		}},
		&stubUnit{id: "info", role: RoleInformational, opinion: Opinion{Action: ActionBuy, Confidence: 0.9}},
	}
	eng, err := New(testEngineConfig(), units)
	require.NoError(t, err)

	d, err := eng.Decide(context.Background(), DecisionContext{
		Symbol: "BTCUSDT",
		Portfolio: PortfolioState{
			TotalValue: 100000,
			Positions:  map[string]Position{"BTCUSDT": {Quantity: 0.1, AvgPrice: 50000}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonHardRuleExtremeRisk, d.ReasonCode)
	assert.Equal(t, ActionSell, d.Action)
}

func TestDecideFastTrackSkipsUnits(t *testing.T) {
	units := testUnits()
	eng, err := New(testEngineConfig(), units)
	require.NoError(t, err)

	d, err := eng.Decide(context.Background(), DecisionContext{
		Symbol:    "BTCUSDT",
		Portfolio: PortfolioState{TotalValue: 100000},
		Triggers:  NewTriggerSet("daily_loss_breach"),
	})
	require.NoError(t, err)
	assert.Equal(t, PathFastTrack, d.Path)
	assert.True(t, d.HaltNewEntries)
	for _, u := range units {
		assert.Zero(t, u.(*stubUnit).calls, "fast track must not consult units")
	}
}

func TestDecideEmptySymbolFails(t *testing.T) {
	eng, err := New(testEngineConfig(), testUnits())
	require.NoError(t, err)
	_, err = eng.Decide(context.Background(), DecisionContext{Symbol: "   "})
	assert.Error(t, err)
}

func TestDecideSameSymbolSerialized(t *testing.T) {
	gated := newGatedUnit("agg")

	cfg := testEngineConfig()
	cfg.Weights = map[string]float64{"agg": 1.0}
	cfg.PerUnitTimeout = time.Second
	cfg.DecisionDeadline = time.Second
	eng, err := New(cfg, []AnalysisUnit{gated})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = eng.Decide(context.Background(), DecisionContext{Symbol: "BTCUSDT", Portfolio: PortfolioState{TotalValue: 1}})
	}()

	// Wait for the first request to enter the collector.
	select {
	case <-gated.entered:
	case <-time.After(time.Second):
		t.Fatal("first decision never started")
	}

	_, err = eng.Decide(context.Background(), DecisionContext{Symbol: "btcusdt"})
	assert.ErrorIs(t, err, ErrDecisionInFlight)

	// A different symbol is not blocked by the BTCUSDT decision.
	_, err = eng.Decide(context.Background(), DecisionContext{Symbol: "ETHUSDT", Portfolio: PortfolioState{TotalValue: 1}})
	assert.NoError(t, err)

	close(gated.gate)
	wg.Wait()

	// Once released, the symbol accepts requests again.
	_, err = eng.Decide(context.Background(), DecisionContext{Symbol: "BTCUSDT", Portfolio: PortfolioState{TotalValue: 1}})
	assert.NoError(t, err)
}

// gatedUnit blocks its first Analyze call until gate closes; later calls
// answer immediately so other symbols stay usable during the test.
type gatedUnit struct {
	id      string
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newGatedUnit(id string) *gatedUnit {
	return &gatedUnit{
		id:      id,
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
}

func (g *gatedUnit) ID() string { return g.id }
func (g *gatedUnit) Role() Role { return RoleAggressive }

func (g *gatedUnit) Analyze(ctx context.Context, req AnalysisRequest) (Opinion, error) {
	g.once.Do(func() {
		g.entered <- struct{}{}
		select {
		case <-g.gate:
		case <-ctx.Done():
		}
	})
	return Opinion{Action: ActionHold, Confidence: 0.6}, nil
}

func TestSwapUnitsRevalidates(t *testing.T) {
	eng, err := New(testEngineConfig(), testUnits())
	require.NoError(t, err)

	err = eng.SwapUnits([]AnalysisUnit{buyUnit("solo", 0.9)}, map[string]float64{"solo": 0.9})
	require.Error(t, err, "weights must still sum to 1.0")

	err = eng.SwapUnits([]AnalysisUnit{buyUnit("solo", 0.9)}, map[string]float64{"solo": 1.0})
	require.NoError(t, err)

	d, err := eng.Decide(context.Background(), DecisionContext{Symbol: "BTCUSDT", Portfolio: PortfolioState{TotalValue: 1}})
	require.NoError(t, err)
	assert.Len(t, d.Opinions, 1)
	assert.Equal(t, "solo", d.Opinions[0].UnitID)
}

func TestDecideIsRepeatableForIdenticalInputs(t *testing.T) {
	eng, err := New(testEngineConfig(), testUnits())
	require.NoError(t, err)

	dc := DecisionContext{
		Symbol:        "BTCUSDT",
		ActionContext: "new_position",
		Portfolio:     PortfolioState{TotalValue: 100000},
		DataQuality:   0.95,
	}
	first, err := eng.Decide(context.Background(), dc)
	require.NoError(t, err)
	second, err := eng.Decide(context.Background(), dc)
	require.NoError(t, err)

	// Only trace identity and timestamps may differ between the runs.
	assert.NotEqual(t, first.TraceID, second.TraceID)
	assert.Equal(t, first.Action, second.Action)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Exposure, second.Exposure)
	assert.Equal(t, first.ReasonCode, second.ReasonCode)
	assert.Equal(t, first.Silent, second.Silent)
	assert.Equal(t, first.Path, second.Path)

	require.Len(t, second.Opinions, len(first.Opinions))
	for i := range first.Opinions {
		assert.Equal(t, first.Opinions[i].UnitID, second.Opinions[i].UnitID)
		assert.Equal(t, first.Opinions[i].Action, second.Opinions[i].Action)
		assert.Equal(t, first.Opinions[i].Confidence, second.Opinions[i].Confidence)
	}
}
