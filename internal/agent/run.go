package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"deepresearch/internal/plan"
	"deepresearch/internal/report"
	"deepresearch/internal/types"
)

// runState is the mutable state of one run: the plan, the append-only global
// finding and citation lists, and the execution log. Findings and citations
// only grow; nothing is removed or rewritten after append.
type runState struct {
	goal      types.Goal
	plan      types.Plan
	sessionID string

	results   []types.PhaseResult
	findings  []types.Finding
	citations []types.Citation
	log       []types.LogEntry

	completed map[string]bool
	failed    map[string]bool
	cache     *ResponseCache
}

func (st *runState) appendLog(description string) {
	st.log = append(st.log, types.LogEntry{
		Timestamp:       time.Now(),
		Description:     description,
		CompletedPhases: len(st.completed),
	})
}

// Run executes a research goal end to end and always returns a structured
// result. A cancelled or aborted run reports success=false but keeps every
// finding and citation accumulated so far.
func (s *Scheduler) Run(ctx context.Context, goalText string) types.ResearchResult {
	start := time.Now()

	st := &runState{
		completed: make(map[string]bool),
		failed:    make(map[string]bool),
		cache:     s.cache,
	}
	if st.cache == nil {
		st.cache = NewResponseCache()
	}

	st.appendLog("research started: " + goalText)
	st.goal = s.deps.Decomposer.Decompose(ctx, goalText)
	st.appendLog("goal decomposed")

	s.persist("create session", func() error {
		id, err := s.deps.Store.CreateSession(st.goal, s.sessionConfig)
		if err == nil {
			st.sessionID = id
		}
		return err
	})

	if err := ctx.Err(); err != nil {
		return s.failureResult(st, start, "run cancelled: "+err.Error())
	}

	st.plan = s.deps.Planner.Build(ctx, st.goal)
	st.appendLog("plan built")
	estimate := plan.EstimateDuration(st.plan)
	s.logger.Info("plan ready",
		zap.String("plan_id", st.plan.PlanID),
		zap.Int("phases", len(st.plan.Phases)),
		zap.Duration("estimated_duration", estimate))
	s.emit(ProgressEvent{
		Kind:    EventPlanReady,
		Total:   len(st.plan.Phases),
		Message: "estimated duration " + estimate.String(),
	})

	if cancelled := s.runPhases(ctx, st); cancelled {
		return s.failureResult(st, start, "run cancelled: "+ctx.Err().Error())
	}

	synthesis := s.holisticSynthesis(ctx, st)
	st.appendLog("holistic synthesis complete")
	s.emit(ProgressEvent{Kind: EventSynthesis, Message: synthesis})

	quality := s.deps.Reviewer.FinalReview(st.findings, st.citations, len(st.completed), st.goal)
	st.appendLog("final quality review: grade " + string(quality.Grade))

	reportText := s.assembleReport(ctx, st, synthesis, quality, time.Since(start))
	st.appendLog("report assembled")

	s.persist("complete session", func() error {
		return s.deps.Store.UpdateSessionStatus(st.sessionID, "completed", map[string]any{
			"quality_score": quality.OverallScore,
			"quality_grade": string(quality.Grade),
			"synthesis":     synthesis,
			"report":        reportText,
		})
	})

	s.emit(ProgressEvent{
		Kind:      EventFinished,
		Completed: len(st.completed),
		Total:     len(st.plan.Phases),
		Message:   string(quality.Grade),
	})

	return types.ResearchResult{
		Success:          true,
		SessionID:        st.sessionID,
		ResearchGoal:     st.goal,
		ExecutionPlan:    st.plan,
		PhaseResults:     st.results,
		Synthesis:        synthesis,
		QualityCheck:     quality,
		Findings:         st.findings,
		Citations:        st.citations,
		ExecutionLog:     st.log,
		ExecutionSeconds: time.Since(start).Seconds(),
		Report:           reportText,
	}
}

// runPhases drives the phase state machine until no eligible phase remains.
// Returns true if the context was cancelled at a phase boundary. Failed
// phases are excluded from selection; phases depending on a failed phase
// never become eligible and simply stay pending when the loop ends.
func (s *Scheduler) runPhases(ctx context.Context, st *runState) (cancelled bool) {
	for {
		if ctx.Err() != nil {
			st.appendLog("stop signal received at phase boundary")
			return true
		}

		ph, ok := plan.NextPhase(st.plan, st.completed, st.failed)
		if !ok {
			return false
		}

		pr := s.executePhase(ctx, st, ph)
		st.results = append(st.results, pr)

		if pr.Status == types.PhaseFailed {
			st.failed[ph.ID] = true
			st.appendLog("phase failed: " + ph.ID + " (" + pr.FailureReason + ")")
			s.emit(ProgressEvent{
				Kind:    EventPhaseFailed,
				PhaseID: ph.ID,
				Title:   ph.Title,
				Message: pr.FailureReason,
			})
			s.persist("save phase", func() error {
				return s.deps.Store.SavePhase(st.sessionID, pr)
			})
			continue
		}

		// Re-plan before marking completion so the update prompt sees the
		// phase as in flight, matching the insight-then-complete order.
		if insights := newInsights(pr.Findings); len(insights) > 0 {
			updated := s.deps.Planner.Update(ctx, st.plan, insights, completedIDs(st.completed))
			if len(updated.Phases) != len(st.plan.Phases) {
				st.appendLog("plan updated with new phases")
				s.emit(ProgressEvent{Kind: EventPlanUpdated, PhaseID: ph.ID, Total: len(updated.Phases)})
			}
			st.plan = updated
		}

		st.completed[ph.ID] = true
		st.appendLog("phase completed: " + ph.ID)
		s.emit(ProgressEvent{
			Kind:      EventPhaseCompleted,
			PhaseID:   ph.ID,
			Title:     ph.Title,
			Completed: len(st.completed),
			Total:     len(st.plan.Phases),
		})

		s.persist("save phase", func() error {
			return s.deps.Store.SavePhase(st.sessionID, pr)
		})
		s.persist("save findings", func() error {
			_, err := s.deps.Store.SaveFindings(st.sessionID, pr.Findings)
			return err
		})
	}
}

// newInsights collects re-planning triggers: one line per finding whose
// relevance is high enough or which drew an explicit conclusion.
func newInsights(findings []types.Finding) []string {
	var insights []string
	for _, f := range findings {
		if f.Relevance <= newInsightRelevance && len(f.Conclusions) == 0 {
			continue
		}
		switch {
		case len(f.KeyFindings) > 0:
			insights = append(insights, f.KeyFindings[0])
		case len(f.Conclusions) > 0:
			insights = append(insights, f.Conclusions[0])
		default:
			insights = append(insights, f.SourceTitle)
		}
	}
	return insights
}

func completedIDs(completed map[string]bool) []string {
	ids := make([]string, 0, len(completed))
	for id := range completed {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) assembleReport(ctx context.Context, st *runState, synthesis string, quality types.QualityAssessment, elapsed time.Duration) string {
	data := report.Data{
		Goal:         st.goal,
		Plan:         st.plan,
		PhaseResults: st.results,
		Findings:     st.findings,
		Citations:    st.citations,
		Synthesis:    synthesis,
		Quality:      quality,
		SessionID:    st.sessionID,
		Duration:     elapsed,
		Emergency:    s.degraded(),
	}
	if s.deps.Reporter == nil {
		return report.Minimal(data)
	}
	return s.deps.Reporter.Assemble(ctx, data)
}

// failureResult converts an aborted run into the structured failure contract:
// the error string plus every partial finding and citation gathered so far.
func (s *Scheduler) failureResult(st *runState, start time.Time, msg string) types.ResearchResult {
	st.appendLog("run aborted: " + msg)
	s.logger.Error("run aborted", zap.String("error", msg))

	s.persist("fail session", func() error {
		return s.deps.Store.UpdateSessionStatus(st.sessionID, "failed", map[string]any{
			"error": msg,
		})
	})

	return types.ResearchResult{
		Success:          false,
		SessionID:        st.sessionID,
		ResearchGoal:     st.goal,
		ExecutionPlan:    st.plan,
		PhaseResults:     st.results,
		Findings:         st.findings,
		Citations:        st.citations,
		ExecutionLog:     st.log,
		ExecutionSeconds: time.Since(start).Seconds(),
		Error:            msg,
	}
}
