// Package types provides shared type definitions used across deepresearch packages.
// This package exists to break import cycles between the scheduler, the quality
// reviewer, and the report assembler. Types here are foundational data structures
// with no behavior beyond hashing and formatting helpers.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Complexity classifies how demanding a research goal is expected to be.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Priority orders subgoals and phases relative to each other.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// SourceKind identifies the class of source a document came from.
type SourceKind string

const (
	SourceWeb      SourceKind = "web"
	SourceAcademic SourceKind = "academic"
	SourceReport   SourceKind = "report"
)

// Confidence expresses how much trust the extractor places in a finding.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// PhaseKind classifies what a plan phase does.
type PhaseKind string

const (
	PhaseResearch   PhaseKind = "research"
	PhaseAnalysis   PhaseKind = "analysis"
	PhaseSynthesis  PhaseKind = "synthesis"
	PhaseValidation PhaseKind = "validation"
)

// PhaseState is the scheduler-side lifecycle of a phase.
// Transitions: pending -> running -> completed | failed. A failed phase
// never re-enters pending.
type PhaseState string

const (
	PhasePending   PhaseState = "pending"
	PhaseRunning   PhaseState = "running"
	PhaseCompleted PhaseState = "completed"
	PhaseFailed    PhaseState = "failed"
)

// Grade is the letter grade assigned by the quality reviewer.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// ApprovalStatus gates whether a run's output is considered acceptable.
type ApprovalStatus string

const (
	StatusApproved      ApprovalStatus = "approved"
	StatusNeedsRevision ApprovalStatus = "needs_revision"
	StatusNeedsReview   ApprovalStatus = "needs_review"
)

// CitationType classifies what a citation attributes.
type CitationType string

const (
	CitationClaim     CitationType = "claim"
	CitationStatistic CitationType = "statistic"
	CitationInsight   CitationType = "insight"
	CitationSource    CitationType = "source"
)

// Goal is the structured form of a free-text research goal. Immutable once
// decomposed; created once per research run.
type Goal struct {
	MainGoal        string     `json:"main_goal"`
	Domain          string     `json:"research_domain"`
	TimeScope       string     `json:"time_scope"`
	Subgoals        []Subgoal  `json:"subgoals"`
	SuccessCriteria []string   `json:"success_criteria"`
	Complexity      Complexity `json:"estimated_complexity"`
}

// Subgoal is one themed sub-investigation of the main goal. Always carries at
// least one search term.
type Subgoal struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	SearchTerms []string     `json:"search_terms"`
	Priority    Priority     `json:"priority"`
	SourceKinds []SourceKind `json:"expected_source_kinds"`
}

// Plan is the dependency-ordered phase plan for a run. Mutable: phases may be
// appended or updated in place after the scheduler discovers high-relevance
// insights. Owned exclusively by the scheduler during a run.
type Plan struct {
	PlanID       string    `json:"plan_id"`
	Strategy     string    `json:"strategy"`
	Phases       []Phase   `json:"phases"`
	QualityGates []string  `json:"quality_gates"`
	RiskFactors  []string  `json:"risk_factors"`
	ResearchGoal string    `json:"research_goal"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated,omitempty"`
}

// Phase is one unit of the execution plan. A phase becomes eligible when every
// id in Dependencies is in the scheduler's completed set.
type Phase struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Kind            PhaseKind    `json:"type"`
	SearchTerms     []string     `json:"search_terms"`
	SourceKinds     []SourceKind `json:"expected_source_kinds"`
	Dependencies    []string     `json:"dependencies"`
	SuccessCriteria []string     `json:"success_criteria"`
	Priority        Priority     `json:"priority"`
}

// Document is one retrieved source as returned by the retrieval collaborator.
type Document struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content"`
	SourceType  SourceKind `json:"source_type"`
	Authors     []string   `json:"authors,omitempty"`
	Published   string     `json:"published,omitempty"`
	RetrievedAt time.Time  `json:"retrieved_at"`
}

// Finding is a structured extraction from one retrieved document. Created only
// for documents that clear the relevance gate; never mutated after creation.
type Finding struct {
	SourceTitle   string     `json:"source_title"`
	SourceURL     string     `json:"source_url"`
	KeyFindings   []string   `json:"key_findings"`
	RelevantFacts []string   `json:"relevant_facts"`
	Statistics    []string   `json:"statistics"`
	Conclusions   []string   `json:"conclusions"`
	Relevance     float64    `json:"relevance_score"`
	Confidence    Confidence `json:"confidence_level"`
	PhaseID       string     `json:"phase_id"`
}

// ContentHash returns the hash used for persistence-time deduplication.
// Two findings with identical key findings are the same finding.
func (f Finding) ContentHash() string {
	h := sha256.Sum256([]byte(strings.Join(f.KeyFindings, "\n")))
	return hex.EncodeToString(h[:])
}

// Citation is an attributable reference tied to a document.
type Citation struct {
	Type        CitationType `json:"type"`
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Authors     []string     `json:"authors,omitempty"`
	Date        string       `json:"date,omitempty"`
	SourceType  SourceKind   `json:"source_type"`
	Content     string       `json:"content"`
	Context     string       `json:"context,omitempty"`
	Quote       string       `json:"quote,omitempty"`
	PageSection string       `json:"page_section,omitempty"`
}

// QualityAssessment is the reviewer's verdict for one phase or a whole run.
// Produced once, never mutated.
type QualityAssessment struct {
	OverallScore       float64        `json:"overall_score"`
	ContentQuality     string         `json:"content_quality"`
	CitationQuality    string         `json:"citation_quality"`
	CoverageAssessment string         `json:"coverage_assessment"`
	MethodologyReview  string         `json:"methodology_review"`
	Grade              Grade          `json:"quality_grade"`
	ApprovalStatus     ApprovalStatus `json:"approval_status"`
	Improvements       []string       `json:"improvement_suggestions,omitempty"`
}

// PhaseResult records the outcome of executing one phase.
type PhaseResult struct {
	PhaseID        string            `json:"phase_id"`
	Title          string            `json:"title"`
	Status         PhaseState        `json:"status"`
	DocumentsFound int               `json:"documents_found"`
	Findings       []Finding         `json:"findings"`
	Summary        string            `json:"summary"`
	Critique       QualityAssessment `json:"critique"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    time.Time         `json:"completed_at"`
}

// LogEntry is one append-only execution log record. Process-local; not
// persisted beyond the session summary.
type LogEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	Description     string    `json:"description"`
	CompletedPhases int       `json:"completed_phases"`
}

// ResearchResult is the top-level contract returned to any caller. A failed
// run still carries whatever partial findings and citations were accumulated.
type ResearchResult struct {
	Success          bool              `json:"success"`
	SessionID        string            `json:"session_id"`
	ResearchGoal     Goal              `json:"research_goal"`
	ExecutionPlan    Plan              `json:"execution_plan"`
	PhaseResults     []PhaseResult     `json:"phase_results"`
	Synthesis        string            `json:"synthesis"`
	QualityCheck     QualityAssessment `json:"quality_check"`
	Findings         []Finding         `json:"findings"`
	Citations        []Citation        `json:"citations"`
	ExecutionLog     []LogEntry        `json:"execution_log"`
	ExecutionSeconds float64           `json:"execution_time_seconds"`
	Error            string            `json:"error,omitempty"`
	Report           string            `json:"report,omitempty"`
}
