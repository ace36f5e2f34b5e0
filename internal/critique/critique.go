// Package critique scores phase and run outputs against fixed rubrics. A
// critique never aborts a run: any internal failure yields the neutral
// fallback assessment instead of an error.
package critique

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deepresearch/internal/llm"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/types"
)

const (
	// Phase critique blend.
	llmWeight           = 0.6
	deterministicWeight = 0.4

	// Sub-weights of the deterministic findings analysis.
	relevanceWeight = 0.4
	diversityWeight = 0.3
	richnessWeight  = 0.3

	// expectedFindingsPerSource caps the content richness signal.
	expectedFindingsPerSource = 3.0

	// Final review blend.
	finalContentWeight     = 0.4
	finalCitationWeight    = 0.2
	finalCoverageWeight    = 0.3
	finalMethodologyWeight = 0.1

	// Expectations the final sub-scores are measured against.
	expectedFindingCount = 20.0
	expectedSourceCount  = 10.0
	expectedPhaseCount   = 5.0

	// coverageRelevanceThreshold marks a finding as covering the goal.
	coverageRelevanceThreshold = 0.7

	// approvalThreshold gates approved vs needs_revision.
	approvalThreshold = 0.7
)

// Reviewer is the QualityReviewer.
type Reviewer struct {
	client llm.Client
	gov    *ratelimit.Governor
	logger *zap.Logger
}

// NewReviewer wires a reviewer to its collaborators.
func NewReviewer(client llm.Client, gov *ratelimit.Governor, logger *zap.Logger) *Reviewer {
	return &Reviewer{
		client: client,
		gov:    gov,
		logger: logger.Named("reviewer"),
	}
}

// AssignGrade maps an overall score to a letter grade. Boundary values take
// the higher grade.
func AssignGrade(score float64) types.Grade {
	switch {
	case score >= 0.9:
		return types.GradeA
	case score >= 0.8:
		return types.GradeB
	case score >= 0.7:
		return types.GradeC
	case score >= 0.6:
		return types.GradeD
	default:
		return types.GradeF
	}
}

// Fallback is the neutral assessment returned when a critique cannot be
// computed.
func Fallback() types.QualityAssessment {
	return types.QualityAssessment{
		OverallScore:       0.5,
		ContentQuality:     "not assessed",
		CitationQuality:    "not assessed",
		CoverageAssessment: "not assessed",
		MethodologyReview:  "not assessed",
		Grade:              types.GradeC,
		ApprovalStatus:     types.StatusNeedsReview,
	}
}

const critiquePromptTemplate = `Critique this research phase output.

Phase: %s
Summary: %s
Findings (%d):
%s

Rate the output on relevance to the phase, source diversity and credibility,
completeness, and clarity. Respond with JSON only:
{"score": 0.0, "assessment": "one-sentence overall assessment"}

score is 0 to 1.`

type parsedCritique struct {
	Score      float64 `json:"score"`
	Assessment string  `json:"assessment"`
}

// CritiquePhase blends a model rubric critique with a deterministic findings
// analysis.
func (r *Reviewer) CritiquePhase(ctx context.Context, phase types.Phase, findings []types.Finding, summary string) types.QualityAssessment {
	var lines []string
	for _, f := range findings {
		if len(f.KeyFindings) > 0 {
			lines = append(lines, "- "+f.KeyFindings[0])
		}
	}
	prompt := fmt.Sprintf(critiquePromptTemplate, phase.Title, summary, len(findings), strings.Join(lines, "\n"))

	var response string
	err := r.gov.Do(ctx, llm.EstimateTokens(prompt), "critique", func(model string) error {
		var genErr error
		response, genErr = r.client.Generate(ctx, llm.Request{
			Prompt:      prompt,
			MaxTokens:   400,
			Temperature: 0.2,
			Model:       model,
		})
		return genErr
	})
	if err != nil {
		r.logger.Warn("critique call failed, using fallback assessment", zap.Error(err))
		return Fallback()
	}

	var parsed parsedCritique
	if err := llm.DecodeObject(response, &parsed); err != nil {
		r.logger.Warn("critique response unparseable, using fallback assessment")
		return Fallback()
	}

	llmScore := clamp(parsed.Score)
	detScore := analyzeFindings(findings)
	overall := llmWeight*llmScore + deterministicWeight*detScore

	assessment := types.QualityAssessment{
		OverallScore:       overall,
		ContentQuality:     parsed.Assessment,
		CitationQuality:    "assessed at final review",
		CoverageAssessment: fmt.Sprintf("%d findings from %d sources", len(findings), uniqueSources(findings)),
		MethodologyReview:  fmt.Sprintf("phase %q critique", phase.ID),
		Grade:              AssignGrade(overall),
		ApprovalStatus:     approval(overall),
	}
	assessment.Improvements = SuggestImprovements(findings, nil)
	return assessment
}

// analyzeFindings is the deterministic findings-quality signal: mean
// relevance, source diversity, and content richness with fixed sub-weights.
func analyzeFindings(findings []types.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}

	meanRelevance := 0.0
	for _, f := range findings {
		meanRelevance += f.Relevance
	}
	meanRelevance /= float64(len(findings))

	diversity := float64(uniqueSources(findings)) / float64(len(findings))

	perSource := float64(totalItems(findings)) / float64(uniqueSources(findings))
	richness := perSource / expectedFindingsPerSource
	if richness > 1 {
		richness = 1
	}

	return relevanceWeight*meanRelevance + diversityWeight*diversity + richnessWeight*richness
}

func uniqueSources(findings []types.Finding) int {
	seen := make(map[string]bool)
	for _, f := range findings {
		seen[f.SourceURL] = true
	}
	return len(seen)
}

func totalItems(findings []types.Finding) int {
	total := 0
	for _, f := range findings {
		total += len(f.KeyFindings)
	}
	return total
}

func approval(score float64) types.ApprovalStatus {
	if score >= approvalThreshold {
		return types.StatusApproved
	}
	return types.StatusNeedsRevision
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
