package engine

// VoteAggregator computes the weighted consensus over BUY/SELL/HOLD.
// Weights are fixed per unit id at construction; PASS opinions contribute
// nothing. Deterministic and side-effect free.
type VoteAggregator struct {
	weights map[string]float64
}

func NewVoteAggregator(weights map[string]float64) *VoteAggregator {
	return &VoteAggregator{weights: weights}
}

// Aggregate returns the winning action and its weighted score. Ties break
// toward inaction: if HOLD shares the top score it wins, and a dead heat
// between BUY and SELL also resolves to HOLD (with HOLD's own score).
func (v *VoteAggregator) Aggregate(opinions []Opinion) (Action, float64) {
	scores := map[Action]float64{
		ActionBuy:  0,
		ActionSell: 0,
		ActionHold: 0,
	}
	for _, op := range opinions {
		if op.IsPass() {
			continue
		}
		w, ok := v.weights[op.UnitID]
		if !ok || w <= 0 {
			continue
		}
		scores[op.Action] += w * op.Confidence
	}

	best := ActionHold
	bestScore := scores[ActionHold]
	for _, a := range []Action{ActionBuy, ActionSell} {
		if scores[a] > bestScore {
			best = a
			bestScore = scores[a]
		}
	}
	// HOLD already wins equal scores by not being replaced above. The
	// remaining ambiguity is BUY == SELL above HOLD; inaction wins there too.
	if best != ActionHold && scores[ActionBuy] == scores[ActionSell] && scores[ActionBuy] > scores[ActionHold] {
		return ActionHold, scores[ActionHold]
	}
	return best, bestScore
}

// Score exposes the weighted score a single action would receive, used by
// audit output.
func (v *VoteAggregator) Score(opinions []Opinion, action Action) float64 {
	total := 0.0
	for _, op := range opinions {
		if op.IsPass() || op.Action != action {
			continue
		}
		total += v.weights[op.UnitID] * op.Confidence
	}
	return total
}
