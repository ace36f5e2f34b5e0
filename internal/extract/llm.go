package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"deepresearch/internal/llm"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/types"
)

const extractPromptTemplate = `Extract research findings from this source.

Research goal: %s

Source title: %s
Source content:
%s

Respond with JSON only:
{
  "key_findings": ["finding 1"],
  "relevant_facts": ["fact 1"],
  "statistics": ["any numeric claims, verbatim"],
  "conclusions": ["conclusions the source draws"],
  "relevance_score": 0.0,
  "confidence_level": "low|medium|high"
}

relevance_score is how relevant this source is to the research goal, 0 to 1.`

// LLMExtractor extracts findings with a model call. Any generation or parse
// failure falls back to the heuristic extractor, so extraction itself never
// fails a document.
type LLMExtractor struct {
	client   llm.Client
	gov      *ratelimit.Governor
	fallback *HeuristicExtractor
	logger   *zap.Logger
}

// NewLLMExtractor wires an extractor to its collaborators.
func NewLLMExtractor(client llm.Client, gov *ratelimit.Governor, logger *zap.Logger) *LLMExtractor {
	return &LLMExtractor{
		client:   client,
		gov:      gov,
		fallback: NewHeuristicExtractor(),
		logger:   logger.Named("extractor"),
	}
}

type parsedFinding struct {
	KeyFindings   []string `json:"key_findings"`
	RelevantFacts []string `json:"relevant_facts"`
	Statistics    []string `json:"statistics"`
	Conclusions   []string `json:"conclusions"`
	Relevance     float64  `json:"relevance_score"`
	Confidence    string   `json:"confidence_level"`
}

// Extract asks the model for a structured finding.
func (e *LLMExtractor) Extract(ctx context.Context, doc types.Document, researchGoal string) (types.Finding, error) {
	prompt := fmt.Sprintf(extractPromptTemplate, researchGoal, doc.Title, truncate(doc.Content, 3000))

	var response string
	err := e.gov.Do(ctx, llm.EstimateTokens(prompt), "extraction", func(model string) error {
		var genErr error
		response, genErr = e.client.Generate(ctx, llm.Request{
			Prompt:      prompt,
			MaxTokens:   1000,
			Temperature: 0.2,
			Model:       model,
		})
		return genErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return types.Finding{}, ctx.Err()
		}
		e.logger.Warn("extraction call failed, using heuristic fallback",
			zap.String("url", doc.URL), zap.Error(err))
		return e.fallback.Extract(ctx, doc, researchGoal)
	}

	var parsed parsedFinding
	if err := llm.DecodeObject(response, &parsed); err != nil {
		e.logger.Warn("extraction response unparseable, using heuristic fallback",
			zap.String("url", doc.URL))
		return e.fallback.Extract(ctx, doc, researchGoal)
	}

	return types.Finding{
		SourceTitle:   doc.Title,
		SourceURL:     doc.URL,
		KeyFindings:   parsed.KeyFindings,
		RelevantFacts: parsed.RelevantFacts,
		Statistics:    parsed.Statistics,
		Conclusions:   parsed.Conclusions,
		Relevance:     clamp(parsed.Relevance),
		Confidence:    normalizeConfidence(parsed.Confidence),
	}, nil
}

func normalizeConfidence(s string) types.Confidence {
	switch s {
	case "high":
		return types.ConfidenceHigh
	case "low":
		return types.ConfidenceLow
	default:
		return types.ConfidenceMedium
	}
}
