// Package report assembles the final Markdown research report from every
// other component's output. Assembly is deterministic templating; the model
// contributes only the executive summary and analysis narratives, each with a
// templated fallback, so a report is always produced.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"deepresearch/internal/citation"
	"deepresearch/internal/llm"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/types"
)

const (
	// topFindingsCount caps the findings section.
	topFindingsCount = 10

	// topConclusionsCount caps the conclusions section.
	topConclusionsCount = 7
)

// Data is everything the assembler consumes.
type Data struct {
	Goal         types.Goal
	Plan         types.Plan
	PhaseResults []types.PhaseResult
	Findings     []types.Finding
	Citations    []types.Citation
	Synthesis    string
	Quality      types.QualityAssessment
	SessionID    string
	Duration     time.Duration

	// Emergency skips all model calls and uses templated narratives.
	Emergency bool
}

// Assembler is the ReportAssembler.
type Assembler struct {
	client llm.Client
	gov    *ratelimit.Governor
	style  citation.Style
	logger *zap.Logger
}

// NewAssembler wires an assembler to its collaborators.
func NewAssembler(client llm.Client, gov *ratelimit.Governor, style citation.Style, logger *zap.Logger) *Assembler {
	if style == "" {
		style = citation.StyleAPA
	}
	return &Assembler{
		client: client,
		gov:    gov,
		style:  style,
		logger: logger.Named("report"),
	}
}

// Assemble renders the full Markdown report.
func (a *Assembler) Assemble(ctx context.Context, data Data) string {
	var sb strings.Builder

	a.writeHeader(&sb, data)
	a.writeExecutiveSummary(ctx, &sb, data)
	a.writeMethodology(&sb, data)
	a.writeFindings(&sb, data)
	a.writeAnalysis(ctx, &sb, data)
	a.writeConclusions(&sb, data)
	a.writeBibliography(&sb, data)
	a.writeAppendices(&sb, data)

	return sb.String()
}

// Minimal is the last-resort report: raw counts only. Used when assembly
// inputs are too broken for the full template.
func Minimal(data Data) string {
	return fmt.Sprintf(`# Research Report: %s

Report assembly was degraded. Raw results:

- Findings collected: %d
- Citations collected: %d
- Phases executed: %d
- Session: %s
`, data.Goal.MainGoal, len(data.Findings), len(data.Citations), len(data.PhaseResults), data.SessionID)
}

func (a *Assembler) writeHeader(sb *strings.Builder, data Data) {
	fmt.Fprintf(sb, "# Research Report: %s\n\n", data.Goal.MainGoal)
	fmt.Fprintf(sb, "*Generated %s", time.Now().Format("2006-01-02"))
	if data.SessionID != "" {
		fmt.Fprintf(sb, " | Session %s", data.SessionID)
	}
	if data.Quality.Grade != "" {
		fmt.Fprintf(sb, " | Quality grade: %s", data.Quality.Grade)
	}
	sb.WriteString("*\n\n")
}

const summaryPromptTemplate = `Write a concise executive summary (3-5 sentences) for a research report.

Research goal: %s
Key findings:
%s

Respond with the summary text only.`

func (a *Assembler) writeExecutiveSummary(ctx context.Context, sb *strings.Builder, data Data) {
	sb.WriteString("## Executive Summary\n\n")

	var top []string
	for _, f := range topFindings(data.Findings, 5) {
		if len(f.KeyFindings) > 0 {
			top = append(top, "- "+f.KeyFindings[0])
		}
	}

	prompt := fmt.Sprintf(summaryPromptTemplate, data.Goal.MainGoal, strings.Join(top, "\n"))
	narrative := a.generateSection(ctx, data, prompt)
	if narrative == "" {
		narrative = fmt.Sprintf(
			"This report covers research into %s. %d findings were collected from %d sources across %d phases.",
			data.Goal.MainGoal, len(data.Findings), uniqueSourceCount(data.Findings), len(data.PhaseResults))
	}
	sb.WriteString(narrative + "\n\n")
}

func (a *Assembler) writeMethodology(sb *strings.Builder, data Data) {
	sb.WriteString("## Methodology\n\n")
	if data.Plan.Strategy != "" {
		fmt.Fprintf(sb, "Strategy: %s\n\n", data.Plan.Strategy)
	}
	for _, pr := range data.PhaseResults {
		fmt.Fprintf(sb, "- **%s** (%s): %d documents retrieved, %d findings",
			pr.Title, pr.PhaseID, pr.DocumentsFound, len(pr.Findings))
		if pr.Status == types.PhaseFailed {
			fmt.Fprintf(sb, " — failed: %s", pr.FailureReason)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (a *Assembler) writeFindings(sb *strings.Builder, data Data) {
	sb.WriteString("## Findings\n\n")

	themes := GroupThemes(data.Findings)
	if len(themes) > 0 {
		sb.WriteString("### Themes\n\n")
		for _, theme := range themes {
			fmt.Fprintf(sb, "- **%s**: %d related findings\n", theme.Name, len(theme.Findings))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("### Top Findings\n\n")
	for i, f := range topFindings(data.Findings, topFindingsCount) {
		if len(f.KeyFindings) == 0 {
			continue
		}
		fmt.Fprintf(sb, "%d. %s (relevance %.2f, source: %s)\n",
			i+1, f.KeyFindings[0], f.Relevance, f.SourceTitle)
	}
	sb.WriteString("\n")
}

const analysisPromptTemplate = `Write an analysis section (2-3 paragraphs) for a research report.

Research goal: %s
Synthesis so far: %s
Statistics observed:
%s

Respond with the analysis text only.`

func (a *Assembler) writeAnalysis(ctx context.Context, sb *strings.Builder, data Data) {
	sb.WriteString("## Analysis\n\n")

	var stats []string
	for _, f := range data.Findings {
		stats = append(stats, f.Statistics...)
	}
	prompt := fmt.Sprintf(analysisPromptTemplate, data.Goal.MainGoal, data.Synthesis,
		strings.Join(stats, "\n"))

	narrative := a.generateSection(ctx, data, prompt)
	if narrative == "" {
		narrative = data.Synthesis
		if narrative == "" {
			narrative = fmt.Sprintf("Analysis of %d findings suggests multiple relevant themes; see the findings section.", len(data.Findings))
		}
	}
	sb.WriteString(narrative + "\n\n")
}

func (a *Assembler) writeConclusions(sb *strings.Builder, data Data) {
	sb.WriteString("## Conclusions\n\n")

	for i, c := range topConclusions(data.Findings, topConclusionsCount) {
		fmt.Fprintf(sb, "%d. %s\n", i+1, c)
	}

	sb.WriteString("\n### Quality Assessment\n\n")
	fmt.Fprintf(sb, "- Overall score: %.2f (grade %s, %s)\n",
		data.Quality.OverallScore, data.Quality.Grade, data.Quality.ApprovalStatus)
	fmt.Fprintf(sb, "- Content: %s\n", data.Quality.ContentQuality)
	fmt.Fprintf(sb, "- Citations: %s\n", data.Quality.CitationQuality)
	fmt.Fprintf(sb, "- Coverage: %s\n", data.Quality.CoverageAssessment)
	sb.WriteString("\n")
}

func (a *Assembler) writeBibliography(sb *strings.Builder, data Data) {
	sb.WriteString("## Bibliography\n\n")
	entries := citation.Bibliography(data.Citations, a.style)
	if len(entries) == 0 {
		sb.WriteString("No citations collected.\n\n")
		return
	}
	for _, entry := range entries {
		sb.WriteString(entry + "\n")
	}
	sb.WriteString("\n")
}

func (a *Assembler) writeAppendices(sb *strings.Builder, data Data) {
	sb.WriteString("## Appendices\n\n")

	sb.WriteString("### Execution Plan\n\n")
	for _, ph := range data.Plan.Phases {
		deps := "none"
		if len(ph.Dependencies) > 0 {
			deps = strings.Join(ph.Dependencies, ", ")
		}
		fmt.Fprintf(sb, "- %s: %s (depends on: %s)\n", ph.ID, ph.Title, deps)
	}

	sb.WriteString("\n### Sources\n\n")
	seen := make(map[string]bool)
	for _, f := range data.Findings {
		if f.SourceURL == "" || seen[f.SourceURL] {
			continue
		}
		seen[f.SourceURL] = true
		fmt.Fprintf(sb, "- %s (%s)\n", f.SourceTitle, f.SourceURL)
	}

	sb.WriteString("\n### Statistics\n\n")
	fmt.Fprintf(sb, "- Findings: %d\n", len(data.Findings))
	fmt.Fprintf(sb, "- Citations: %d\n", len(data.Citations))
	fmt.Fprintf(sb, "- Phases executed: %d\n", len(data.PhaseResults))
	if data.Duration > 0 {
		fmt.Fprintf(sb, "- Execution time: %s\n", data.Duration.Round(time.Second))
	}
}

// generateSection runs one narrative model call. Returns "" on any failure or
// in emergency mode; callers substitute their templated fallback.
func (a *Assembler) generateSection(ctx context.Context, data Data, prompt string) string {
	if data.Emergency || a.client == nil {
		return ""
	}

	var response string
	err := a.gov.Do(ctx, llm.EstimateTokens(prompt), "report", func(model string) error {
		var genErr error
		response, genErr = a.client.Generate(ctx, llm.Request{
			Prompt:      prompt,
			MaxTokens:   600,
			Temperature: 0.4,
			Model:       model,
		})
		return genErr
	})
	if err != nil {
		a.logger.Warn("report narrative call failed, using template", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(response)
}

func uniqueSourceCount(findings []types.Finding) int {
	seen := make(map[string]bool)
	for _, f := range findings {
		seen[f.SourceURL] = true
	}
	return len(seen)
}
