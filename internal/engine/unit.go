package engine

import "context"

// AnalysisRequest is the slice of a decision cycle a single unit sees. The
// context value is a copy: units must not share mutable state through it.
type AnalysisRequest struct {
	Symbol  string
	Context DecisionContext
}

// AnalysisUnit produces one Opinion per decision cycle. Implementations may
// be backed by anything (indicator math, external model calls); the engine
// depends only on this interface. Analyze must honor ctx cancellation; the
// collector enforces a per-unit deadline around every call.
type AnalysisUnit interface {
	ID() string
	Role() Role
	Analyze(ctx context.Context, req AnalysisRequest) (Opinion, error)
}
