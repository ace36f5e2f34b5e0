package critique

import (
	"fmt"

	"deepresearch/internal/citation"
	"deepresearch/internal/types"
)

// FinalReview scores the whole run. It is fully deterministic: every
// sub-score is computed from the accumulated findings, citations, and phase
// count against fixed expectations.
func (r *Reviewer) FinalReview(allFindings []types.Finding, allCitations []types.Citation, completedPhases int, goal types.Goal) types.QualityAssessment {
	content := contentScore(allFindings)
	citations := citationScore(allCitations)
	coverage := coverageScore(allFindings)
	methodology := methodologyScore(completedPhases)

	overall := finalContentWeight*content +
		finalCitationWeight*citations +
		finalCoverageWeight*coverage +
		finalMethodologyWeight*methodology

	assessment := types.QualityAssessment{
		OverallScore: overall,
		ContentQuality: fmt.Sprintf("%d findings from %d sources (score %.2f)",
			len(allFindings), uniqueSources(allFindings), content),
		CitationQuality: fmt.Sprintf("%d citations, completeness %.2f",
			len(allCitations), citations),
		CoverageAssessment: fmt.Sprintf("%.0f%% of findings highly relevant to %q",
			coverage*100, goal.MainGoal),
		MethodologyReview: fmt.Sprintf("%d phases completed (score %.2f)",
			completedPhases, methodology),
		Grade:          AssignGrade(overall),
		ApprovalStatus: approval(overall),
		Improvements:   SuggestImprovements(allFindings, allCitations),
	}
	return assessment
}

// contentScore blends finding quantity, source diversity, and mean relevance.
func contentScore(findings []types.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}

	quantity := float64(len(findings)) / expectedFindingCount
	if quantity > 1 {
		quantity = 1
	}
	diversity := float64(uniqueSources(findings)) / expectedSourceCount
	if diversity > 1 {
		diversity = 1
	}
	meanRelevance := 0.0
	for _, f := range findings {
		meanRelevance += f.Relevance
	}
	meanRelevance /= float64(len(findings))

	return 0.3*quantity + 0.3*diversity + 0.4*meanRelevance
}

// citationScore is the completeness fraction from the citation quality
// validator: citations carrying both title and url over the total.
func citationScore(citations []types.Citation) float64 {
	if len(citations) == 0 {
		return 0
	}
	return citation.ValidateQuality(citations).Completeness
}

// coverageScore is the fraction of findings clearing the high-relevance bar.
func coverageScore(findings []types.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	covered := 0
	for _, f := range findings {
		if f.Relevance > coverageRelevanceThreshold {
			covered++
		}
	}
	return float64(covered) / float64(len(findings))
}

func methodologyScore(completedPhases int) float64 {
	score := float64(completedPhases) / expectedPhaseCount
	if score > 1 {
		score = 1
	}
	return score
}

// SuggestImprovements derives concrete follow-ups from weak signals in the
// collected material.
func SuggestImprovements(findings []types.Finding, citations []types.Citation) []string {
	var suggestions []string

	if len(findings) == 0 {
		return []string{"no findings collected; retry with broader search terms"}
	}

	meanRelevance := 0.0
	hasStatistics := false
	for _, f := range findings {
		meanRelevance += f.Relevance
		if len(f.Statistics) > 0 {
			hasStatistics = true
		}
	}
	meanRelevance /= float64(len(findings))

	if meanRelevance < 0.6 {
		suggestions = append(suggestions, "refine search terms toward the main goal; average relevance is low")
	}
	if uniqueSources(findings) < 3 {
		suggestions = append(suggestions, "diversify sources; most findings come from the same few pages")
	}
	if !hasStatistics {
		suggestions = append(suggestions, "seek quantitative sources; no statistics were extracted")
	}
	if citations != nil && citationScore(citations) < 0.8 {
		suggestions = append(suggestions, "fill in missing citation titles and urls")
	}
	return suggestions
}
