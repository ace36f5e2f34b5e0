package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"deepresearch/internal/config"
	"deepresearch/internal/llm"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testGoal() types.Goal {
	return types.Goal{
		MainGoal: "renewable energy adoption in europe",
		Subgoals: []types.Subgoal{
			{ID: "sg_1", Title: "Policy landscape", SearchTerms: []string{"renewable"}},
		},
	}
}

func linearPlan(ids ...string) types.Plan {
	p := types.Plan{PlanID: "plan-test", ResearchGoal: "renewable energy adoption in europe"}
	for i, id := range ids {
		ph := types.Phase{
			ID:          id,
			Title:       "Phase " + id,
			SearchTerms: []string{id},
			SourceKinds: []types.SourceKind{types.SourceWeb},
		}
		if i > 0 {
			ph.Dependencies = []string{ids[i-1]}
		}
		p.Phases = append(p.Phases, ph)
	}
	return p
}

func doc(url, title, content string) types.Document {
	return types.Document{Title: title, URL: url, Content: content, SourceType: types.SourceWeb}
}

type fixture struct {
	decomposer *stubDecomposer
	planner    *stubPlanner
	retriever  *scriptedRetriever
	extractor  *stubExtractor
	citations  *stubCitations
	critic     *stubCritic
	reporter   *stubReporter
	store      *memStore
}

func newFixture(p types.Plan) *fixture {
	return &fixture{
		decomposer: &stubDecomposer{goal: testGoal()},
		planner:    &stubPlanner{plan: p},
		retriever:  &scriptedRetriever{byTerm: map[string][]types.Document{}},
		extractor:  &stubExtractor{relevance: map[string]float64{}},
		citations:  &stubCitations{},
		critic:     &stubCritic{},
		reporter:   &stubReporter{},
		store:      &memStore{},
	}
}

func (f *fixture) scheduler(opts ...Option) *Scheduler {
	return New(Deps{
		Decomposer: f.decomposer,
		Planner:    f.planner,
		Retriever:  f.retriever,
		Extractor:  f.extractor,
		Citations:  f.citations,
		Reviewer:   f.critic,
		Reporter:   f.reporter,
		Store:      f.store,
		Logger:     zap.NewNop(),
	}, opts...)
}

func TestRunCompletesAllPhases(t *testing.T) {
	f := newFixture(linearPlan("phase_1", "phase_2"))
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "Source A", "content a")}
	f.retriever.byTerm["phase_2"] = []types.Document{doc("https://b.example", "Source B", "content b")}
	f.extractor.relevance["https://a.example"] = 0.6
	f.extractor.relevance["https://b.example"] = 0.7

	var events []EventKind
	s := f.scheduler(WithProgress(func(ev ProgressEvent) { events = append(events, ev.Kind) }))
	res := s.Run(context.Background(), "renewable energy adoption in europe")

	assert.True(t, res.Success)
	assert.Equal(t, "session-1", res.SessionID)
	require.Len(t, res.PhaseResults, 2)
	assert.Equal(t, types.PhaseCompleted, res.PhaseResults[0].Status)
	assert.Equal(t, types.PhaseCompleted, res.PhaseResults[1].Status)
	assert.Len(t, res.Findings, 2)
	assert.Len(t, res.Citations, 2)
	assert.NotEmpty(t, res.Synthesis)
	assert.Equal(t, "# Research Report\n", res.Report)
	assert.NotEmpty(t, res.ExecutionLog)
	assert.Equal(t, 2, f.critic.lastPhases)

	wantEvents := []EventKind{
		EventPlanReady,
		EventPhaseStarted, EventPhaseCompleted,
		EventPhaseStarted, EventPhaseCompleted,
		EventSynthesis, EventFinished,
	}
	if diff := cmp.Diff(wantEvents, events); diff != "" {
		t.Errorf("event sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"completed"}, f.store.statuses)
}

func TestRelevanceGateDropsFindingButKeepsCitations(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.retriever.byTerm["phase_1"] = []types.Document{
		doc("https://weak.example", "Weak", "c1"),
		doc("https://strong.example", "Strong", "c2"),
	}
	f.extractor.relevance["https://weak.example"] = 0.2
	f.extractor.relevance["https://strong.example"] = 0.6

	res := f.scheduler().Run(context.Background(), "goal")

	require.Len(t, res.Findings, 1)
	assert.Equal(t, "https://strong.example", res.Findings[0].SourceURL)
	for _, found := range res.Findings {
		assert.Greater(t, found.Relevance, 0.3)
	}
	// Both documents still produce citations.
	assert.Len(t, res.Citations, 2)
}

func TestPhaseFailsWithoutDocuments(t *testing.T) {
	f := newFixture(linearPlan("phase_1", "phase_2"))
	// phase_1 retrieves nothing; phase_2 depends on it and never runs.
	f.retriever.byTerm["phase_2"] = []types.Document{doc("https://b.example", "B", "c")}

	res := f.scheduler().Run(context.Background(), "goal")

	assert.True(t, res.Success)
	require.Len(t, res.PhaseResults, 1)
	assert.Equal(t, types.PhaseFailed, res.PhaseResults[0].Status)
	assert.Equal(t, "no documents retrieved", res.PhaseResults[0].FailureReason)
	assert.Equal(t, 1, f.retriever.calls)
	assert.Equal(t, 0, f.critic.lastPhases)
}

func TestPartialFailureSurvival(t *testing.T) {
	// Three phases; phase_3 depends only on phase_1, phase_2 fails retrieval.
	p := linearPlan("phase_1", "phase_2")
	p.Phases = append(p.Phases, types.Phase{
		ID: "phase_3", Title: "Phase phase_3",
		SearchTerms:  []string{"phase_3"},
		Dependencies: []string{"phase_1"},
	})
	f := newFixture(p)
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "A", "c")}
	f.retriever.byTerm["phase_3"] = []types.Document{doc("https://c.example", "C", "c")}
	f.extractor.relevance["https://a.example"] = 0.8
	f.extractor.relevance["https://c.example"] = 0.8

	res := f.scheduler().Run(context.Background(), "goal")

	assert.True(t, res.Success)
	statuses := map[string]types.PhaseState{}
	for _, pr := range res.PhaseResults {
		statuses[pr.PhaseID] = pr.Status
	}
	assert.Equal(t, types.PhaseCompleted, statuses["phase_1"])
	assert.Equal(t, types.PhaseFailed, statuses["phase_2"])
	assert.Equal(t, types.PhaseCompleted, statuses["phase_3"])
	assert.NotEmpty(t, res.Findings)
	assert.NotEmpty(t, res.Citations)
}

func TestCancellationAtPhaseBoundaryKeepsPartials(t *testing.T) {
	f := newFixture(linearPlan("phase_1", "phase_2"))
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "A", "c")}
	f.retriever.byTerm["phase_2"] = []types.Document{doc("https://b.example", "B", "c")}
	f.extractor.relevance["https://a.example"] = 0.9

	ctx, cancel := context.WithCancel(context.Background())
	s := f.scheduler(WithProgress(func(ev ProgressEvent) {
		if ev.Kind == EventPhaseCompleted {
			cancel()
		}
	}))
	defer cancel()

	res := s.Run(ctx, "goal")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "cancelled")
	require.Len(t, res.PhaseResults, 1)
	assert.NotEmpty(t, res.Findings)
	assert.Equal(t, []string{"failed"}, f.store.statuses)
}

func TestNewInsightTriggersPlanUpdate(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "A", "c")}
	f.extractor.relevance["https://a.example"] = 0.95

	f.scheduler().Run(context.Background(), "goal")

	assert.Equal(t, 1, f.planner.updateCalls)
	require.Len(t, f.planner.lastInsights, 1)
	assert.Contains(t, f.planner.lastInsights[0], "Source A")
}

func TestModestFindingsSkipPlanUpdate(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "A", "c")}
	f.extractor.relevance["https://a.example"] = 0.5

	f.scheduler().Run(context.Background(), "goal")

	assert.Zero(t, f.planner.updateCalls)
}

func TestPlanUpdateAppendsPhase(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.planner.appendOnWrite = true
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "A", "c")}
	f.retriever.byTerm["phase_2"] = []types.Document{doc("https://b.example", "B", "c")}
	f.extractor.relevance["https://a.example"] = 0.95
	f.extractor.relevance["https://b.example"] = 0.5

	res := f.scheduler().Run(context.Background(), "goal")

	// The appended follow-up phase ran too.
	assert.Len(t, res.ExecutionPlan.Phases, 2)
	assert.Len(t, res.PhaseResults, 2)
}

func TestResponseCacheSkipsDuplicateExtraction(t *testing.T) {
	shared := doc("https://a.example", "A", "identical content")
	f := newFixture(linearPlan("phase_1", "phase_2"))
	f.retriever.byTerm["phase_1"] = []types.Document{shared}
	f.retriever.byTerm["phase_2"] = []types.Document{shared}
	f.extractor.relevance["https://a.example"] = 0.6

	res := f.scheduler().Run(context.Background(), "goal")

	assert.Equal(t, 1, f.extractor.calls)
	// Both phases still record the finding under their own id.
	require.Len(t, res.Findings, 2)
	assert.Equal(t, "phase_1", res.Findings[0].PhaseID)
	assert.Equal(t, "phase_2", res.Findings[1].PhaseID)
}

func TestFindingsListOnlyGrows(t *testing.T) {
	f := newFixture(linearPlan("phase_1", "phase_2", "phase_3"))
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "A", "c1")}
	f.retriever.byTerm["phase_2"] = []types.Document{doc("https://b.example", "B", "c2")}
	f.retriever.byTerm["phase_3"] = []types.Document{doc("https://c.example", "C", "c3")}
	f.extractor.relevance["https://a.example"] = 0.6
	f.extractor.relevance["https://b.example"] = 0.2 // gated out, list stays flat
	f.extractor.relevance["https://c.example"] = 0.6

	var counts []int
	s := f.scheduler(WithProgress(func(ev ProgressEvent) {
		if ev.Kind == EventPhaseCompleted || ev.Kind == EventPhaseFailed {
			counts = append(counts, f.store.findings)
		}
	}))
	res := s.Run(context.Background(), "goal")

	assert.True(t, res.Success)
	for i := 1; i < len(counts); i++ {
		assert.GreaterOrEqual(t, counts[i], counts[i-1])
	}
	// Appended order survives into the result untouched.
	require.Len(t, res.Findings, 2)
	assert.Equal(t, "phase_1", res.Findings[0].PhaseID)
	assert.Equal(t, "phase_3", res.Findings[1].PhaseID)
}

func TestExtractionFailureSkipsDocumentOnly(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "A", "c")}
	f.extractor.err = assert.AnError

	res := f.scheduler().Run(context.Background(), "goal")

	assert.True(t, res.Success)
	require.Len(t, res.PhaseResults, 1)
	assert.Equal(t, types.PhaseCompleted, res.PhaseResults[0].Status)
	assert.Empty(t, res.Findings)
	assert.Len(t, res.Citations, 1)
}

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.store.failAll = true
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "A", "c")}
	f.extractor.relevance["https://a.example"] = 0.6

	res := f.scheduler().Run(context.Background(), "goal")

	assert.True(t, res.Success)
	assert.Empty(t, res.SessionID)
	assert.Len(t, res.Findings, 1)
}

func TestNilStoreSupported(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "A", "c")}

	s := New(Deps{
		Decomposer: f.decomposer,
		Planner:    f.planner,
		Retriever:  f.retriever,
		Extractor:  f.extractor,
		Citations:  f.citations,
		Reviewer:   f.critic,
		Reporter:   f.reporter,
		Logger:     zap.NewNop(),
	})
	res := s.Run(context.Background(), "goal")
	assert.True(t, res.Success)
}

func TestEmergencyModeAvoidsModelCalls(t *testing.T) {
	gov := ratelimit.NewGovernor(ratelimit.Config{
		MinInterval:       time.Nanosecond,
		BaseDelay:         time.Nanosecond,
		DegradedThreshold: 1,
	}, zap.NewNop())
	// Exhaust retries once to trip the degradation threshold.
	err := gov.Do(context.Background(), 10, "extraction", func(string) error {
		return &llm.RateLimitError{Message: "rate limit reached"}
	})
	require.Error(t, err)
	require.True(t, gov.Degraded())

	client := &countingClient{response: "should never be used"}
	f := newFixture(linearPlan("phase_1"))
	f.retriever.byTerm["phase_1"] = []types.Document{
		doc("https://a.example", "A", "The study found that solar output increased by 20% last year. In conclusion, adoption is accelerating."),
	}

	s := New(Deps{
		Decomposer: f.decomposer,
		Planner:    f.planner,
		Retriever:  f.retriever,
		Extractor:  f.extractor, // bypassed while degraded
		Citations:  f.citations,
		Reviewer:   f.critic,
		Reporter:   f.reporter,
		Client:     client,
		Governor:   gov,
		Store:      f.store,
		Logger:     zap.NewNop(),
	})
	res := s.Run(context.Background(), "goal")

	assert.True(t, res.Success)
	assert.Zero(t, client.calls)
	assert.Zero(t, f.extractor.calls)
	assert.Zero(t, f.citations.extractCalls)
	assert.Equal(t, 1, f.citations.basicCalls)
	// Heuristic extraction still produced a finding from the statistic text.
	require.NotEmpty(t, res.Findings)
	assert.NotEmpty(t, res.Findings[0].Statistics)
	assert.True(t, f.reporter.last.Emergency)
}

func TestMaxFindingsPerPhaseCap(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.retriever.byTerm["phase_1"] = []types.Document{
		doc("https://a.example", "A", "c1"),
		doc("https://b.example", "B", "c2"),
		doc("https://c.example", "C", "c3"),
	}
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		f.extractor.relevance[u] = 0.6
	}

	res := f.scheduler(WithMaxFindingsPerPhase(2)).Run(context.Background(), "goal")

	assert.Len(t, res.Findings, 2)
	// Citations are unaffected by the cap.
	assert.Len(t, res.Citations, 3)
}

func TestExecutionSteps(t *testing.T) {
	log := []types.LogEntry{
		{Timestamp: time.Date(2026, 3, 1, 14, 3, 5, 0, time.UTC), Description: "research started", CompletedPhases: 0},
		{Timestamp: time.Date(2026, 3, 1, 14, 5, 40, 0, time.UTC), Description: "phase completed: phase_1", CompletedPhases: 1},
	}
	steps := ExecutionSteps(log)
	require.Len(t, steps, 2)
	assert.Equal(t, "1. [14:03:05] research started (0 phases complete)", steps[0])
	assert.True(t, strings.HasPrefix(steps[1], "2. [14:05:40]"))
}

func TestPlanReadyEventCarriesEstimate(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://a.example", "A", "c")}
	f.extractor.relevance["https://a.example"] = 0.6

	var ready ProgressEvent
	s := f.scheduler(WithProgress(func(ev ProgressEvent) {
		if ev.Kind == EventPlanReady {
			ready = ev
		}
	}))
	s.Run(context.Background(), "goal")

	assert.Equal(t, EventPlanReady, ready.Kind)
	assert.Equal(t, 1, ready.Total)
	assert.Contains(t, ready.Message, "estimated duration")
}

func TestConfiguredRelevanceGate(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.retriever.byTerm["phase_1"] = []types.Document{doc("https://mid.example", "Mid", "c")}
	f.extractor.relevance["https://mid.example"] = 0.5

	// The default gate keeps a 0.5 finding; a configured 0.55 gate drops it.
	res := f.scheduler().Run(context.Background(), "goal")
	assert.Len(t, res.Findings, 1)

	f2 := newFixture(linearPlan("phase_1"))
	f2.retriever.byTerm["phase_1"] = []types.Document{doc("https://mid.example", "Mid", "c")}
	f2.extractor.relevance["https://mid.example"] = 0.5

	res = f2.scheduler(WithMinRelevance(0.55)).Run(context.Background(), "goal")
	assert.Empty(t, res.Findings)
	assert.Len(t, res.Citations, 1, "citations ignore the relevance gate")
}

// deadlineRetriever records whether the phase context carried a deadline.
type deadlineRetriever struct {
	hadDeadline bool
}

func (r *deadlineRetriever) Retrieve(ctx context.Context, _ []string, _ []types.SourceKind) []types.Document {
	_, r.hadDeadline = ctx.Deadline()
	return nil
}

func TestPhaseTimeoutBoundsPhaseContext(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	dr := &deadlineRetriever{}

	s := New(Deps{
		Decomposer: f.decomposer,
		Planner:    f.planner,
		Retriever:  dr,
		Extractor:  f.extractor,
		Citations:  f.citations,
		Reviewer:   f.critic,
		Reporter:   f.reporter,
		Store:      f.store,
		Logger:     zap.NewNop(),
	}, WithPhaseTimeout(time.Minute))
	s.Run(context.Background(), "goal")

	assert.True(t, dr.hadDeadline, "phase work runs under a deadline")
}

func TestRetuneAppliesReloadedConfig(t *testing.T) {
	f := newFixture(linearPlan("phase_1"))
	f.retriever.byTerm["phase_1"] = []types.Document{
		doc("https://low.example", "Low", "c1"),
		doc("https://high.example", "High", "c2"),
	}
	f.extractor.relevance["https://low.example"] = 0.6
	f.extractor.relevance["https://high.example"] = 0.8

	s := f.scheduler()
	cfg := config.DefaultConfig()
	cfg.Research.MinRelevanceScore = 0.7
	cfg.Research.MaxFindingsPerPhase = 5
	s.Retune(cfg)

	res := s.Run(context.Background(), "goal")
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "https://high.example", res.Findings[0].SourceURL)
}

func TestCloseRunsRegisteredCleanups(t *testing.T) {
	var closed []string
	f := newFixture(linearPlan("phase_1"))
	s := f.scheduler(
		WithCloser(func() error { closed = append(closed, "browser"); return nil }),
		WithCloser(func() error { closed = append(closed, "cache"); return errors.New("close failed") }),
	)

	err := s.Close()
	require.Error(t, err)
	assert.Equal(t, []string{"browser", "cache"}, closed)

	assert.NoError(t, f.scheduler().Close(), "no cleanups registered")
}
