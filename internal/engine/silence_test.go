package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testSilencePolicy() *SilencePolicy {
	return &SilencePolicy{ConfidenceFloor: 0.5, Divergence: 0.6}
}

func TestAbstainOnLowConviction(t *testing.T) {
	s := testSilencePolicy()
	abstain, code := s.ShouldAbstain([]Opinion{
		{UnitID: "a", Action: ActionBuy, Confidence: 0.4},
		{UnitID: "b", Action: ActionHold, Confidence: 0.3},
		{UnitID: "c", Action: ActionBuy, Confidence: 0.5},
	})
	assert.True(t, abstain)
	assert.Equal(t, ReasonSilenceLowConviction, code)
}

func TestAbstainOnDivergence(t *testing.T) {
	s := testSilencePolicy()
	abstain, code := s.ShouldAbstain([]Opinion{
		{UnitID: "a", Action: ActionBuy, Confidence: 0.95},
		{UnitID: "b", Action: ActionSell, Confidence: 0.9},
		{UnitID: "c", Action: ActionHold, Confidence: 0.2},
	})
	assert.True(t, abstain)
	assert.Equal(t, ReasonSilenceDivergence, code)
}

func TestAbstainWhenAllPass(t *testing.T) {
	s := testSilencePolicy()
	abstain, code := s.ShouldAbstain([]Opinion{
		PassOpinion("a", RoleAggressive, ""),
		PassOpinion("b", RoleDefensive, ""),
		PassOpinion("c", RoleInformational, ""),
	})
	assert.True(t, abstain)
	assert.Equal(t, ReasonSilenceLowConviction, code)
}

func TestNoAbstainOnHealthyConsensus(t *testing.T) {
	s := testSilencePolicy()
	abstain, _ := s.ShouldAbstain([]Opinion{
		{UnitID: "a", Action: ActionBuy, Confidence: 0.8},
		{UnitID: "b", Action: ActionBuy, Confidence: 0.7},
		{UnitID: "c", Action: ActionHold, Confidence: 0.6},
	})
	assert.False(t, abstain)
}

func TestPassExcludedFromDivergenceSpread(t *testing.T) {
	// The PASS opinion's zero confidence must not widen the spread.
	s := testSilencePolicy()
	abstain, _ := s.ShouldAbstain([]Opinion{
		PassOpinion("a", RoleAggressive, ""),
		{UnitID: "b", Action: ActionBuy, Confidence: 0.8},
		{UnitID: "c", Action: ActionBuy, Confidence: 0.7},
	})
	assert.False(t, abstain)
}
