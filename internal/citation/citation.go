// Package citation extracts attributable references from documents and
// formats them into bibliographies. The model-backed extraction path and the
// heuristic basic path produce the same Citation shape, so the scheduler can
// pick either per call.
package citation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"deepresearch/internal/llm"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/types"
)

// Engine is the citation engine.
type Engine struct {
	client llm.Client
	gov    *ratelimit.Governor
	logger *zap.Logger
}

// NewEngine wires a citation engine to its collaborators.
func NewEngine(client llm.Client, gov *ratelimit.Governor, logger *zap.Logger) *Engine {
	return &Engine{
		client: client,
		gov:    gov,
		logger: logger.Named("citations"),
	}
}

const citationPromptTemplate = `Identify citable statements in this source.

Source title: %s
Source URL: %s
Content:
%s

Respond with JSON only:
{
  "citations": [
    {
      "type": "claim|statistic|insight",
      "content": "the citable statement",
      "quote": "verbatim supporting quote",
      "context": "surrounding context"
    }
  ]
}`

type parsedCitations struct {
	Citations []struct {
		Type    string `json:"type"`
		Content string `json:"content"`
		Quote   string `json:"quote"`
		Context string `json:"context"`
	} `json:"citations"`
}

// Extract pulls claims, statistics, and insights out of a document with a
// model call. Any failure degrades to the basic source citation; a document
// always yields at least one citation.
func (e *Engine) Extract(ctx context.Context, doc types.Document) []types.Citation {
	prompt := fmt.Sprintf(citationPromptTemplate, doc.Title, doc.URL, truncate(doc.Content, 2500))

	var response string
	err := e.gov.Do(ctx, llm.EstimateTokens(prompt), "citation", func(model string) error {
		var genErr error
		response, genErr = e.client.Generate(ctx, llm.Request{
			Prompt:      prompt,
			MaxTokens:   800,
			Temperature: 0.2,
			Model:       model,
		})
		return genErr
	})
	if err != nil {
		e.logger.Warn("citation call failed, using basic citation",
			zap.String("url", doc.URL), zap.Error(err))
		return e.Basic(doc)
	}

	var parsed parsedCitations
	if err := llm.DecodeObject(response, &parsed); err != nil || len(parsed.Citations) == 0 {
		return e.Basic(doc)
	}

	var citations []types.Citation
	for _, pc := range parsed.Citations {
		citations = append(citations, types.Citation{
			Type:       normalizeType(pc.Type),
			Title:      doc.Title,
			URL:        doc.URL,
			Authors:    doc.Authors,
			Date:       doc.Published,
			SourceType: doc.SourceType,
			Content:    pc.Content,
			Context:    pc.Context,
			Quote:      pc.Quote,
		})
	}
	return citations
}

// Basic is the emergency path: one source-level citation per document, no
// model involved.
func (e *Engine) Basic(doc types.Document) []types.Citation {
	content := doc.Title
	if content == "" {
		content = doc.URL
	}
	return []types.Citation{{
		Type:       types.CitationSource,
		Title:      doc.Title,
		URL:        doc.URL,
		Authors:    doc.Authors,
		Date:       doc.Published,
		SourceType: doc.SourceType,
		Content:    content,
	}}
}

func normalizeType(s string) types.CitationType {
	switch s {
	case "claim":
		return types.CitationClaim
	case "statistic":
		return types.CitationStatistic
	case "insight":
		return types.CitationInsight
	default:
		return types.CitationSource
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
