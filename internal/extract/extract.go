// Package extract turns retrieved documents into structured findings. Two
// implementations share one interface: the model-backed extractor and the
// heuristic emergency extractor that needs no external calls. The scheduler
// picks per call, so degrading is a selection change, not a separate pipeline.
package extract

import (
	"context"

	"deepresearch/internal/types"
)

// Extractor produces a Finding from one document, using the overall research
// goal for context.
type Extractor interface {
	Extract(ctx context.Context, doc types.Document, researchGoal string) (types.Finding, error)
}

// clamp keeps model-reported relevance scores inside [0,1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncate caps document content before it reaches a prompt.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
