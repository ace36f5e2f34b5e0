package config

import "fmt"

var validDepths = map[string]bool{"shallow": true, "medium": true, "deep": true}

var validStyles = map[string]bool{"apa": true, "mla": true, "chicago": true}

// Validation is the outcome of Validate. Issues make the config unusable;
// warnings are tolerable but worth surfacing.
type Validation struct {
	Issues   []string
	Warnings []string
}

// OK reports whether the config can be used as-is.
func (v Validation) OK() bool { return len(v.Issues) == 0 }

// Validate checks the configuration for hard errors and soft problems.
func (c *Config) Validate() Validation {
	var v Validation

	switch c.LLM.Provider {
	case "gemini", "groq":
	case "":
		v.Issues = append(v.Issues, "llm.provider is required (gemini or groq)")
	default:
		v.Issues = append(v.Issues, fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider))
	}
	if c.ProviderKey() == "" {
		v.Warnings = append(v.Warnings, "no API key configured; model calls will fail")
	}

	if c.Research.MaxSources <= 0 {
		v.Issues = append(v.Issues, "research.max_sources must be positive")
	}
	if !validDepths[c.Research.SearchDepth] {
		v.Issues = append(v.Issues, fmt.Sprintf("research.search_depth must be shallow, medium or deep, got %q", c.Research.SearchDepth))
	}
	if !validStyles[c.Research.CitationStyle] {
		v.Issues = append(v.Issues, fmt.Sprintf("research.citation_style must be apa, mla or chicago, got %q", c.Research.CitationStyle))
	}
	if c.Research.MinRelevanceScore < 0 || c.Research.MinRelevanceScore > 1 {
		v.Issues = append(v.Issues, "research.min_relevance_score must be in [0, 1]")
	}
	if c.Research.MaxFindingsPerPhase <= 0 {
		v.Warnings = append(v.Warnings, "research.max_findings_per_phase is not positive; using unbounded findings")
	}

	if c.RateLimit.MaxRetries < 0 {
		v.Issues = append(v.Issues, "rate_limit.max_retries must not be negative")
	}
	if c.RateLimit.DegradedThreshold <= 0 {
		v.Warnings = append(v.Warnings, "rate_limit.degraded_threshold is not positive; emergency mode disabled")
	}

	if c.Storage.Enabled && c.Storage.DatabasePath == "" {
		v.Issues = append(v.Issues, "storage.database_path is required when storage is enabled")
	}

	return v
}
