package agent

import (
	"context"

	"go.uber.org/zap"

	"deepresearch/internal/citation"
	"deepresearch/internal/config"
	"deepresearch/internal/critique"
	"deepresearch/internal/extract"
	"deepresearch/internal/goal"
	"deepresearch/internal/llm"
	"deepresearch/internal/plan"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/report"
	"deepresearch/internal/retrieval"
	"deepresearch/internal/store"
)

// NewPipeline wires a full scheduler from configuration: one governor shared
// by every collaborator, retrieval with the configured source budget, and
// the citation style the report will use. The store may be nil. Callers own
// the returned scheduler's Close, which releases the browser fetcher when
// one was launched.
func NewPipeline(cfg *config.Config, client llm.Client, st *store.Store, logger *zap.Logger, opts ...Option) *Scheduler {
	gov := ratelimit.NewGovernor(ratelimit.Config{
		MinInterval:       cfg.GetMinInterval(),
		BaseDelay:         cfg.GetBaseDelay(),
		MaxRetries:        cfg.RateLimit.MaxRetries,
		DegradedThreshold: cfg.RateLimit.DegradedThreshold,
	}, logger)

	retrieverOpts := []retrieval.Option{
		retrieval.WithSearchDepth(cfg.Research.SearchDepth),
		retrieval.WithFetchTimeout(cfg.GetFetchTimeout()),
	}
	var cleanup []Option
	if cfg.Research.UseBrowser {
		if fetcher, err := retrieval.NewRodFetcher(context.Background(), logger); err != nil {
			logger.Warn("browser fetch unavailable, using plain HTTP", zap.Error(err))
		} else {
			retrieverOpts = append(retrieverOpts, retrieval.WithFetcher(fetcher))
			cleanup = append(cleanup, WithCloser(fetcher.Close))
		}
	}
	retriever := retrieval.NewRetriever(cfg.Research.MaxSources, logger, retrieverOpts...)

	style := citation.Style(cfg.Research.CitationStyle)

	deps := Deps{
		Decomposer: goal.NewDecomposer(client, gov, logger),
		Planner:    plan.NewBuilder(client, gov, logger),
		Retriever:  retriever,
		Extractor:  extract.NewLLMExtractor(client, gov, logger),
		Heuristic:  extract.NewHeuristicExtractor(),
		Citations:  citation.NewEngine(client, gov, logger),
		Reviewer:   critique.NewReviewer(client, gov, logger),
		Reporter:   report.NewAssembler(client, gov, style, logger),
		Client:     client,
		Governor:   gov,
		Logger:     logger,
	}
	if st != nil {
		deps.Store = st
	}

	base := []Option{
		WithMaxFindingsPerPhase(cfg.Research.MaxFindingsPerPhase),
		WithMinRelevance(cfg.Research.MinRelevanceScore),
		WithPhaseTimeout(cfg.GetPhaseTimeout()),
		WithSessionConfig(cfg.Research),
	}
	base = append(base, cleanup...)
	opts = append(base, opts...)
	return New(deps, opts...)
}

// Retune applies a reloaded configuration to a live scheduler. Only the
// research tunables change; collaborators and the governor keep their
// original wiring. New values take effect at the next phase boundary.
func (s *Scheduler) Retune(cfg *config.Config) {
	s.setTunables(
		cfg.Research.MinRelevanceScore,
		cfg.Research.MaxFindingsPerPhase,
		cfg.GetPhaseTimeout(),
	)
}
