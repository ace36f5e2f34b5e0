package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"deepresearch/internal/types"
)

// executePhase runs one phase: retrieval, per-document extraction and
// citation capture, summary, critique. Documents are processed in retrieval
// order and each one is independent — a failed extraction is logged and
// skipped, never fatal to the phase.
func (s *Scheduler) executePhase(ctx context.Context, st *runState, ph types.Phase) types.PhaseResult {
	minRelevance, maxFindings, phaseTimeout := s.tunables()
	if phaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, phaseTimeout)
		defer cancel()
	}

	pr := types.PhaseResult{
		PhaseID:   ph.ID,
		Title:     ph.Title,
		Status:    types.PhaseRunning,
		StartedAt: time.Now(),
	}
	s.emit(ProgressEvent{Kind: EventPhaseStarted, PhaseID: ph.ID, Title: ph.Title})
	s.logger.Info("phase started",
		zap.String("phase", ph.ID),
		zap.Strings("terms", ph.SearchTerms))

	docs := s.deps.Retriever.Retrieve(ctx, ph.SearchTerms, ph.SourceKinds)
	pr.DocumentsFound = len(docs)
	if len(docs) == 0 {
		pr.Status = types.PhaseFailed
		pr.FailureReason = "no documents retrieved"
		pr.CompletedAt = time.Now()
		return pr
	}

	for _, doc := range docs {
		if maxFindings <= 0 || len(pr.Findings) < maxFindings {
			f, err := s.extractFinding(ctx, st, doc, st.goal.MainGoal)
			if err != nil {
				s.logger.Warn("extraction failed, skipping document",
					zap.String("phase", ph.ID),
					zap.String("url", doc.URL),
					zap.Error(err))
			} else if f.Relevance > minRelevance {
				f.PhaseID = ph.ID
				pr.Findings = append(pr.Findings, f)
				st.findings = append(st.findings, f)
			}
		}

		// Citations are kept regardless of the relevance gate.
		cits := s.extractCitations(ctx, doc)
		st.citations = append(st.citations, cits...)
		s.persist("save citations", func() error {
			_, err := s.deps.Store.SaveCitations(st.sessionID, cits)
			return err
		})
	}

	pr.Summary = s.phaseSummary(ctx, ph, pr.Findings)
	pr.Critique = s.deps.Reviewer.CritiquePhase(ctx, ph, pr.Findings, pr.Summary)
	pr.Status = types.PhaseCompleted
	pr.CompletedAt = time.Now()

	s.logger.Info("phase finished",
		zap.String("phase", ph.ID),
		zap.Int("documents", pr.DocumentsFound),
		zap.Int("findings", len(pr.Findings)),
		zap.Float64("score", pr.Critique.OverallScore))
	return pr
}

// extractFinding runs the current extractor over a document, memoizing by
// content hash so a document retrieved by two phases costs one model call.
func (s *Scheduler) extractFinding(ctx context.Context, st *runState, doc types.Document, researchGoal string) (types.Finding, error) {
	key := cacheKey(doc)
	if f, ok := st.cache.get(key); ok {
		return f, nil
	}

	extractor := s.deps.Extractor
	if s.degraded() || extractor == nil {
		extractor = s.deps.Heuristic
	}
	f, err := extractor.Extract(ctx, doc, researchGoal)
	if err != nil {
		return types.Finding{}, err
	}

	st.cache.put(key, f)
	return f, nil
}

func (s *Scheduler) extractCitations(ctx context.Context, doc types.Document) []types.Citation {
	if s.deps.Citations == nil {
		return nil
	}
	if s.degraded() {
		return s.deps.Citations.Basic(doc)
	}
	return s.deps.Citations.Extract(ctx, doc)
}
