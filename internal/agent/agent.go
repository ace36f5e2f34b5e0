// Package agent contains the phase scheduler: the control loop that turns a
// research goal into an executed plan. It runs phases strictly sequentially,
// absorbing per-document failures, mutating the plan when a phase surfaces
// high-relevance insights, and degrading to model-free heuristics when the
// rate governor reports sustained quota pressure.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"deepresearch/internal/extract"
	"deepresearch/internal/llm"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/report"
	"deepresearch/internal/types"
)

const (
	// defaultRelevanceGate is the minimum relevance for a finding to be kept
	// when the config does not set one.
	defaultRelevanceGate = 0.3

	// newInsightRelevance marks a finding as a re-planning trigger.
	newInsightRelevance = 0.8

	// phaseSummaryFindings caps the findings fed to the phase summary prompt.
	phaseSummaryFindings = 5
)

// GoalDecomposer turns free-form goal text into a structured Goal.
type GoalDecomposer interface {
	Decompose(ctx context.Context, goalText string) types.Goal
}

// Planner builds the initial plan and applies insight-driven updates.
type Planner interface {
	Build(ctx context.Context, g types.Goal) types.Plan
	Update(ctx context.Context, p types.Plan, newInsights, completedIDs []string) types.Plan
}

// Retriever is the document retrieval collaborator. A failed search yields
// an empty slice, never an error.
type Retriever interface {
	Retrieve(ctx context.Context, terms []string, kinds []types.SourceKind) []types.Document
}

// CitationSource extracts citations from a document. Basic is the model-free
// path used in emergency mode.
type CitationSource interface {
	Extract(ctx context.Context, doc types.Document) []types.Citation
	Basic(doc types.Document) []types.Citation
}

// Critic reviews phase output and the whole run.
type Critic interface {
	CritiquePhase(ctx context.Context, phase types.Phase, findings []types.Finding, summary string) types.QualityAssessment
	FinalReview(allFindings []types.Finding, allCitations []types.Citation, completedPhases int, goal types.Goal) types.QualityAssessment
}

// ReportAssembler renders the final report.
type ReportAssembler interface {
	Assemble(ctx context.Context, data report.Data) string
}

// Persister is the optional persistence collaborator. Every call the
// scheduler makes is logged-and-swallowed; the in-memory result is
// authoritative.
type Persister interface {
	CreateSession(goal types.Goal, config any) (string, error)
	UpdateSessionStatus(sessionID, status string, fields map[string]any) error
	SavePhase(sessionID string, pr types.PhaseResult) error
	SaveFindings(sessionID string, findings []types.Finding) (int, error)
	SaveCitations(sessionID string, citations []types.Citation) (int, error)
}

// EventKind classifies a progress event.
type EventKind string

const (
	EventPlanReady      EventKind = "plan_ready"
	EventPhaseStarted   EventKind = "phase_started"
	EventPhaseCompleted EventKind = "phase_completed"
	EventPhaseFailed    EventKind = "phase_failed"
	EventPlanUpdated    EventKind = "plan_updated"
	EventSynthesis      EventKind = "synthesis"
	EventFinished       EventKind = "finished"
)

// ProgressEvent is emitted synchronously after each discrete step. The
// callback runs on the scheduler's goroutine; keep it fast.
type ProgressEvent struct {
	Kind      EventKind
	PhaseID   string
	Title     string
	Message   string
	Completed int
	Total     int
}

// Deps are the scheduler's collaborators. Client and Governor back the
// scheduler's own synthesis prompts; Store may be nil.
type Deps struct {
	Decomposer GoalDecomposer
	Planner    Planner
	Retriever  Retriever
	Extractor  extract.Extractor
	Heuristic  extract.Extractor
	Citations  CitationSource
	Reviewer   Critic
	Reporter   ReportAssembler
	Client     llm.Client
	Governor   *ratelimit.Governor
	Store      Persister
	Logger     *zap.Logger
}

// Scheduler executes research plans phase by phase.
type Scheduler struct {
	deps   Deps
	logger *zap.Logger

	progress      func(ProgressEvent)
	sessionConfig any
	cache         *ResponseCache
	closers       []func() error

	// Tunables may be updated by a config reload while a run is in
	// progress; phases pick the new values up at their next boundary.
	mu           sync.Mutex
	minRelevance float64
	maxFindings  int
	phaseTimeout time.Duration
}

// Option customizes a scheduler.
type Option func(*Scheduler)

// WithProgress registers a synchronous progress callback.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(s *Scheduler) { s.progress = fn }
}

// WithSessionConfig attaches a config snapshot to persisted sessions.
func WithSessionConfig(cfg any) Option {
	return func(s *Scheduler) { s.sessionConfig = cfg }
}

// WithMaxFindingsPerPhase caps findings kept per phase. Zero means unbounded.
func WithMaxFindingsPerPhase(n int) Option {
	return func(s *Scheduler) { s.maxFindings = n }
}

// WithMinRelevance sets the minimum relevance for a finding to be kept.
// Non-positive values keep the default gate.
func WithMinRelevance(v float64) Option {
	return func(s *Scheduler) {
		if v > 0 {
			s.minRelevance = v
		}
	}
}

// WithPhaseTimeout bounds the wall-clock time of a single phase. Zero means
// no per-phase deadline.
func WithPhaseTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.phaseTimeout = d
		}
	}
}

// WithCloser registers a cleanup function to run on Close, such as shutting
// down a headless browser owned by the retrieval layer.
func WithCloser(fn func() error) Option {
	return func(s *Scheduler) { s.closers = append(s.closers, fn) }
}

// WithCache supplies a shared response cache. By default each run gets a
// fresh one.
func WithCache(c *ResponseCache) Option {
	return func(s *Scheduler) { s.cache = c }
}

// New creates a scheduler. Heuristic defaults to the standard heuristic
// extractor when unset so emergency mode is always available.
func New(deps Deps, opts ...Option) *Scheduler {
	if deps.Heuristic == nil {
		deps.Heuristic = extract.NewHeuristicExtractor()
	}
	s := &Scheduler{
		deps:         deps,
		logger:       deps.Logger.Named("scheduler"),
		minRelevance: defaultRelevanceGate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// setTunables atomically replaces the run-time adjustable settings.
func (s *Scheduler) setTunables(minRelevance float64, maxFindings int, phaseTimeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if minRelevance > 0 {
		s.minRelevance = minRelevance
	}
	s.maxFindings = maxFindings
	if phaseTimeout > 0 {
		s.phaseTimeout = phaseTimeout
	}
}

// tunables snapshots the run-time adjustable settings for one phase.
func (s *Scheduler) tunables() (minRelevance float64, maxFindings int, phaseTimeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minRelevance, s.maxFindings, s.phaseTimeout
}

// Close releases resources held on behalf of collaborators, such as a
// headless browser fetcher. Call it once after the last Run returns.
func (s *Scheduler) Close() error {
	var errs []error
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// degraded reports whether the pipeline should use the model-free paths.
func (s *Scheduler) degraded() bool {
	return s.deps.Governor != nil && s.deps.Governor.Degraded()
}

func (s *Scheduler) emit(ev ProgressEvent) {
	if s.progress != nil {
		s.progress(ev)
	}
}

// persist runs one persistence call, logging and swallowing any error.
func (s *Scheduler) persist(what string, fn func() error) {
	if s.deps.Store == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.Warn("persistence call failed", zap.String("op", what), zap.Error(err))
	}
}

// ResponseCache memoizes extraction results by document content hash so a
// document seen twice in one run costs one model call. Owned by the caller
// or the run, never package-global.
type ResponseCache struct {
	mu sync.Mutex
	m  map[string]types.Finding
}

// NewResponseCache creates an empty cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{m: make(map[string]types.Finding)}
}

func (c *ResponseCache) get(key string) (types.Finding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.m[key]
	return f, ok
}

func (c *ResponseCache) put(key string, f types.Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = f
}

// cacheKey hashes document content for the response cache.
func cacheKey(doc types.Document) string {
	h := sha256.Sum256([]byte(doc.Content))
	return hex.EncodeToString(h[:])
}
