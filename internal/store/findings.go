package store

import (
	"encoding/json"
	"fmt"
	"time"

	"deepresearch/internal/types"
)

// SaveFindings persists findings for a session and returns how many were
// actually stored. Findings whose content hash already exists for the
// session are skipped silently.
func (s *Store) SaveFindings(sessionID string, findings []types.Finding) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	now := time.Now().UTC()
	for _, f := range findings {
		blob, err := json.Marshal(f)
		if err != nil {
			return saved, fmt.Errorf("failed to marshal finding: %w", err)
		}
		res, err := s.db.Exec(`
			INSERT OR IGNORE INTO findings (session_id, content_hash, finding_json, created_at)
			VALUES (?, ?, ?, ?)`,
			sessionID, f.ContentHash(), string(blob), now)
		if err != nil {
			return saved, fmt.Errorf("failed to save finding: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			saved++
		}
	}
	return saved, nil
}

// SaveCitations persists citations for a session and returns how many were
// stored. A citation with the same url and content as an existing row is
// skipped.
func (s *Store) SaveCitations(sessionID string, citations []types.Citation) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	now := time.Now().UTC()
	for _, c := range citations {
		blob, err := json.Marshal(c)
		if err != nil {
			return saved, fmt.Errorf("failed to marshal citation: %w", err)
		}
		res, err := s.db.Exec(`
			INSERT OR IGNORE INTO citations (session_id, url, content, citation_json, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			sessionID, c.URL, c.Content, string(blob), now)
		if err != nil {
			return saved, fmt.Errorf("failed to save citation: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			saved++
		}
	}
	return saved, nil
}

// GetFindings returns every stored finding for a session in insertion order.
func (s *Store) GetFindings(sessionID string) ([]types.Finding, error) {
	if s == nil {
		return nil, fmt.Errorf("store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT finding_json FROM findings WHERE session_id = ? ORDER BY id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []types.Finding
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		var f types.Finding
		if err := json.Unmarshal([]byte(blob), &f); err != nil {
			return nil, fmt.Errorf("failed to decode finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// GetCitations returns every stored citation for a session in insertion order.
func (s *Store) GetCitations(sessionID string) ([]types.Citation, error) {
	if s == nil {
		return nil, fmt.Errorf("store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT citation_json FROM citations WHERE session_id = ? ORDER BY id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query citations: %w", err)
	}
	defer rows.Close()

	var citations []types.Citation
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan citation: %w", err)
		}
		var c types.Citation
		if err := json.Unmarshal([]byte(blob), &c); err != nil {
			return nil, fmt.Errorf("failed to decode citation: %w", err)
		}
		citations = append(citations, c)
	}
	return citations, rows.Err()
}
