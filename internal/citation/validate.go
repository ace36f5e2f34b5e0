package citation

import (
	"fmt"

	"deepresearch/internal/types"
)

// QualityReport summarizes how complete a citation set is.
type QualityReport struct {
	Total        int
	Complete     int
	Completeness float64
	Issues       []string
}

// ValidateQuality checks every citation for the fields a bibliography needs.
// Completeness is the fraction of citations carrying both a title and a URL.
func ValidateQuality(citations []types.Citation) QualityReport {
	report := QualityReport{Total: len(citations)}
	if len(citations) == 0 {
		report.Issues = append(report.Issues, "no citations collected")
		return report
	}

	for i, c := range citations {
		complete := true
		if c.Title == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("citation %d has no title", i+1))
			complete = false
		}
		if c.URL == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("citation %d has no url", i+1))
			complete = false
		}
		if c.Content == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("citation %d has no content", i+1))
		}
		if complete {
			report.Complete++
		}
	}

	report.Completeness = float64(report.Complete) / float64(report.Total)
	return report
}
