package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deepresearch/internal/llm"
	"deepresearch/internal/report"
	"deepresearch/internal/types"
)

const phaseSummaryPromptTemplate = `Summarize these research findings for the phase "%s" in 2-3 sentences.
Focus on what was learned, not on the research process.

Findings:
%s

Summary:`

const holisticPromptTemplate = `Write a cohesive narrative synthesis of this research.

Research goal: %s

Themes discovered:
%s

Top findings:
%s

Write 2-3 paragraphs connecting the themes into an overall answer to the goal. Plain prose, no headings.`

// phaseSummary produces a short text summary of a phase from its top
// findings. Falls back to a one-line statistic when the model path is
// unavailable or fails.
func (s *Scheduler) phaseSummary(ctx context.Context, ph types.Phase, findings []types.Finding) string {
	if len(findings) == 0 {
		return fmt.Sprintf("Phase %q completed without relevant findings.", ph.Title)
	}

	top := findings
	if len(top) > phaseSummaryFindings {
		top = top[:phaseSummaryFindings]
	}
	var lines []string
	for _, f := range top {
		for _, kf := range f.KeyFindings {
			lines = append(lines, "- "+kf)
		}
	}

	if !s.degraded() && s.deps.Client != nil {
		prompt := fmt.Sprintf(phaseSummaryPromptTemplate, ph.Title, strings.Join(lines, "\n"))
		if text, err := s.generate(ctx, prompt, 400); err == nil {
			return text
		} else {
			s.logger.Warn("phase summary generation failed, using fallback",
				zap.String("phase", ph.ID), zap.Error(err))
		}
	}

	// Model-free fallback: lead with a concrete statistic when one exists.
	for _, f := range findings {
		if len(f.Statistics) > 0 {
			return fmt.Sprintf("Key statistic from %q: %s", ph.Title, f.Statistics[0])
		}
	}
	return fmt.Sprintf("Phase %q gathered %d relevant findings from %d sources.",
		ph.Title, len(findings), uniqueSourceCount(findings))
}

// holisticSynthesis groups the accumulated findings into themes and asks the
// model for an overall narrative, falling back to a count-based sentence.
func (s *Scheduler) holisticSynthesis(ctx context.Context, st *runState) string {
	themes := report.GroupThemes(st.findings)

	if !s.degraded() && s.deps.Client != nil && len(st.findings) > 0 {
		var themeLines, findingLines []string
		for _, th := range themes {
			themeLines = append(themeLines, fmt.Sprintf("- %s (%d findings)", th.Name, len(th.Findings)))
		}
		for i, f := range st.findings {
			if i >= phaseSummaryFindings {
				break
			}
			if len(f.KeyFindings) > 0 {
				findingLines = append(findingLines, "- "+f.KeyFindings[0])
			}
		}
		prompt := fmt.Sprintf(holisticPromptTemplate,
			st.goal.MainGoal,
			strings.Join(themeLines, "\n"),
			strings.Join(findingLines, "\n"))
		if text, err := s.generate(ctx, prompt, 800); err == nil {
			return text
		}
		s.logger.Warn("holistic synthesis generation failed, using fallback")
	}

	return fmt.Sprintf("Research into %q gathered %d findings from %d sources across %d themes.",
		st.goal.MainGoal, len(st.findings), uniqueSourceCount(st.findings), len(themes))
}

// generate runs one governed model call for the scheduler's own prompts.
func (s *Scheduler) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var response string
	err := s.deps.Governor.Do(ctx, llm.EstimateTokens(prompt), "synthesis", func(model string) error {
		var genErr error
		response, genErr = s.deps.Client.Generate(ctx, llm.Request{
			Prompt:      prompt,
			MaxTokens:   maxTokens,
			Temperature: 0.4,
			Model:       model,
		})
		return genErr
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

func uniqueSourceCount(findings []types.Finding) int {
	seen := make(map[string]bool)
	for _, f := range findings {
		if f.SourceURL != "" {
			seen[f.SourceURL] = true
		}
	}
	return len(seen)
}
