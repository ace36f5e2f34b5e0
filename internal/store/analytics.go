package store

import (
	"fmt"
)

// Analytics summarizes everything the store has seen across sessions.
type Analytics struct {
	TotalSessions     int            `json:"total_sessions"`
	CompletedSessions int            `json:"completed_sessions"`
	FailedSessions    int            `json:"failed_sessions"`
	TotalFindings     int            `json:"total_findings"`
	TotalCitations    int            `json:"total_citations"`
	AvgQualityScore   float64        `json:"avg_quality_score"`
	GradeCounts       map[string]int `json:"grade_counts"`
}

// GetAnalytics aggregates session counts, finding/citation totals and
// quality score distribution across all sessions.
func (s *Store) GetAnalytics() (Analytics, error) {
	if s == nil {
		return Analytics{}, fmt.Errorf("store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a Analytics
	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(quality_score), 0)
		FROM sessions`)
	if err := row.Scan(&a.TotalSessions, &a.CompletedSessions, &a.FailedSessions, &a.AvgQualityScore); err != nil {
		return Analytics{}, fmt.Errorf("failed to aggregate sessions: %w", err)
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM findings").Scan(&a.TotalFindings); err != nil {
		return Analytics{}, fmt.Errorf("failed to count findings: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM citations").Scan(&a.TotalCitations); err != nil {
		return Analytics{}, fmt.Errorf("failed to count citations: %w", err)
	}

	a.GradeCounts = make(map[string]int)
	rows, err := s.db.Query(`
		SELECT quality_grade, COUNT(*) FROM sessions
		WHERE quality_grade IS NOT NULL AND quality_grade != ''
		GROUP BY quality_grade`)
	if err != nil {
		return Analytics{}, fmt.Errorf("failed to count grades: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var grade string
		var count int
		if err := rows.Scan(&grade, &count); err != nil {
			return Analytics{}, fmt.Errorf("failed to scan grade: %w", err)
		}
		a.GradeCounts[grade] = count
	}
	return a, rows.Err()
}
