// Package units provides the built-in analysis units and the model-backed
// unit that delegates to an upstream LLM provider.
package units

import (
	"quorum/internal/analysis/indicator"
	"quorum/internal/snapshot"
)

func reportFrom(m map[string]any) (indicator.Report, bool) {
	if m == nil {
		return indicator.Report{}, false
	}
	rep, ok := m[snapshot.KeyIndicators].(indicator.Report)
	return rep, ok
}

func floatFrom(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[key].(float64)
	return v, ok
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
