package agent

import (
	"context"
	"errors"
	"fmt"

	"deepresearch/internal/llm"
	"deepresearch/internal/report"
	"deepresearch/internal/types"
)

type stubDecomposer struct {
	goal types.Goal
}

func (d *stubDecomposer) Decompose(_ context.Context, _ string) types.Goal {
	return d.goal
}

type stubPlanner struct {
	plan          types.Plan
	updateCalls   int
	lastInsights  []string
	appendOnWrite bool
}

func (p *stubPlanner) Build(_ context.Context, _ types.Goal) types.Plan {
	return p.plan
}

func (p *stubPlanner) Update(_ context.Context, current types.Plan, insights, _ []string) types.Plan {
	p.updateCalls++
	p.lastInsights = insights
	if !p.appendOnWrite {
		return current
	}
	id := fmt.Sprintf("phase_%d", len(current.Phases)+1)
	updated := current
	updated.Phases = append(append([]types.Phase{}, current.Phases...), types.Phase{
		ID:          id,
		Title:       "Follow-up investigation",
		SearchTerms: []string{id},
	})
	return updated
}

// scriptedRetriever returns canned documents keyed by the first search term.
type scriptedRetriever struct {
	byTerm map[string][]types.Document
	calls  int
}

func (r *scriptedRetriever) Retrieve(_ context.Context, terms []string, _ []types.SourceKind) []types.Document {
	r.calls++
	if len(terms) == 0 {
		return nil
	}
	return r.byTerm[terms[0]]
}

// stubExtractor scores documents by URL and counts invocations.
type stubExtractor struct {
	relevance map[string]float64
	calls     int
	err       error
}

func (e *stubExtractor) Extract(_ context.Context, doc types.Document, _ string) (types.Finding, error) {
	e.calls++
	if e.err != nil {
		return types.Finding{}, e.err
	}
	rel, ok := e.relevance[doc.URL]
	if !ok {
		rel = 0.5
	}
	return types.Finding{
		SourceTitle: doc.Title,
		SourceURL:   doc.URL,
		KeyFindings: []string{"observation from " + doc.Title},
		Relevance:   rel,
		Confidence:  types.ConfidenceMedium,
	}, nil
}

type stubCitations struct {
	extractCalls int
	basicCalls   int
}

func (c *stubCitations) Extract(_ context.Context, doc types.Document) []types.Citation {
	c.extractCalls++
	return []types.Citation{{Type: types.CitationSource, Title: doc.Title, URL: doc.URL, Content: doc.Content}}
}

func (c *stubCitations) Basic(doc types.Document) []types.Citation {
	c.basicCalls++
	return []types.Citation{{Type: types.CitationSource, Title: doc.Title, URL: doc.URL, Content: doc.Content}}
}

type stubCritic struct {
	finalCalls int
	lastPhases int
}

func (c *stubCritic) CritiquePhase(_ context.Context, _ types.Phase, _ []types.Finding, _ string) types.QualityAssessment {
	return types.QualityAssessment{OverallScore: 0.8, Grade: types.GradeB, ApprovalStatus: types.StatusApproved}
}

func (c *stubCritic) FinalReview(_ []types.Finding, _ []types.Citation, completedPhases int, _ types.Goal) types.QualityAssessment {
	c.finalCalls++
	c.lastPhases = completedPhases
	return types.QualityAssessment{OverallScore: 0.75, Grade: types.GradeC, ApprovalStatus: types.StatusApproved}
}

type stubReporter struct {
	calls int
	last  report.Data
}

func (r *stubReporter) Assemble(_ context.Context, data report.Data) string {
	r.calls++
	r.last = data
	return "# Research Report\n"
}

// memStore records persistence calls in memory. failAll makes every call
// error to exercise the logged-and-swallowed contract.
type memStore struct {
	failAll   bool
	sessions  int
	statuses  []string
	phases    []types.PhaseResult
	findings  int
	citations int
}

func (m *memStore) CreateSession(_ types.Goal, _ any) (string, error) {
	if m.failAll {
		return "", errors.New("db unavailable")
	}
	m.sessions++
	return "session-1", nil
}

func (m *memStore) UpdateSessionStatus(_ string, status string, _ map[string]any) error {
	if m.failAll {
		return errors.New("db unavailable")
	}
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memStore) SavePhase(_ string, pr types.PhaseResult) error {
	if m.failAll {
		return errors.New("db unavailable")
	}
	m.phases = append(m.phases, pr)
	return nil
}

func (m *memStore) SaveFindings(_ string, findings []types.Finding) (int, error) {
	if m.failAll {
		return 0, errors.New("db unavailable")
	}
	m.findings += len(findings)
	return len(findings), nil
}

func (m *memStore) SaveCitations(_ string, citations []types.Citation) (int, error) {
	if m.failAll {
		return 0, errors.New("db unavailable")
	}
	m.citations += len(citations)
	return len(citations), nil
}

// countingClient fails the test indirectly: tests assert calls stays zero in
// emergency mode.
type countingClient struct {
	calls    int
	response string
	err      error
}

func (c *countingClient) Generate(_ context.Context, _ llm.Request) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}
