package retrieval

import (
	"strings"

	"deepresearch/internal/types"
)

// ScoreSource rates a document's usefulness in [0,1] from cheap signals:
// content volume, source class, and URL/title hygiene. Used to rank merged
// search results before capping at the source limit.
func ScoreSource(doc types.Document) float64 {
	score := 0.0

	switch {
	case len(doc.Content) > 2000:
		score += 0.35
	case len(doc.Content) > 500:
		score += 0.25
	case len(doc.Content) >= minContentLength:
		score += 0.1
	}

	if doc.SourceType == types.SourceAcademic {
		score += 0.3
	}
	if doc.Title != "" {
		score += 0.15
	}
	if strings.HasPrefix(doc.URL, "https://") {
		score += 0.1
	}
	if len(doc.Authors) > 0 {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}
