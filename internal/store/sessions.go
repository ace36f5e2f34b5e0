package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deepresearch/internal/types"
)

// SessionRecord is one persisted research session.
type SessionRecord struct {
	ID           string
	Goal         string
	Status       string
	QualityScore float64
	QualityGrade string
	Synthesis    string
	Report       string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateSession inserts a new session and returns its id. Config may be any
// JSON-marshalable value.
func (s *Store) CreateSession(goal types.Goal, config any) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	goalJSON, err := json.Marshal(goal)
	if err != nil {
		return "", fmt.Errorf("failed to marshal goal: %w", err)
	}
	configJSON, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, goal, goal_json, config_json, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'running', ?, ?)`,
		id, goal.MainGoal, string(goalJSON), string(configJSON), now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// sessionUpdateColumns whitelists the columns UpdateSessionStatus may touch.
var sessionUpdateColumns = map[string]bool{
	"quality_score": true,
	"quality_grade": true,
	"synthesis":     true,
	"report":        true,
	"error":         true,
}

// UpdateSessionStatus sets the session status and any whitelisted extra
// fields. Unknown field names are rejected.
func (s *Store) UpdateSessionStatus(sessionID, status string, fields map[string]any) error {
	if s == nil {
		return fmt.Errorf("store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "UPDATE sessions SET status = ?, updated_at = ?"
	args := []any{status, time.Now().UTC()}
	for name, value := range fields {
		if !sessionUpdateColumns[name] {
			return fmt.Errorf("unknown session field %q", name)
		}
		query += ", " + name + " = ?"
		args = append(args, value)
	}
	query += " WHERE id = ?"
	args = append(args, sessionID)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %q not found", sessionID)
	}
	return nil
}

// SavePhase records one phase result.
func (s *Store) SavePhase(sessionID string, pr types.PhaseResult) error {
	if s == nil {
		return fmt.Errorf("store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	critiqueJSON, err := json.Marshal(pr.Critique)
	if err != nil {
		return fmt.Errorf("failed to marshal critique: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO phases (session_id, phase_id, title, status, documents_found, summary, critique_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, pr.PhaseID, pr.Title, string(pr.Status), pr.DocumentsFound,
		pr.Summary, string(critiqueJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save phase: %w", err)
	}
	return nil
}

// GetSession loads one session record.
func (s *Store) GetSession(sessionID string) (SessionRecord, error) {
	if s == nil {
		return SessionRecord{}, fmt.Errorf("store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, goal, status,
		       COALESCE(quality_score, 0), COALESCE(quality_grade, ''),
		       COALESCE(synthesis, ''), COALESCE(report, ''), COALESCE(error, ''),
		       created_at, updated_at
		FROM sessions WHERE id = ?`, sessionID)

	var rec SessionRecord
	err := row.Scan(&rec.ID, &rec.Goal, &rec.Status,
		&rec.QualityScore, &rec.QualityGrade,
		&rec.Synthesis, &rec.Report, &rec.Error,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return SessionRecord{}, fmt.Errorf("session %q not found", sessionID)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("failed to load session: %w", err)
	}
	return rec, nil
}

// GetRecentSessions lists the newest sessions, most recent first.
func (s *Store) GetRecentSessions(limit int) ([]SessionRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("store is not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, goal, status,
		       COALESCE(quality_score, 0), COALESCE(quality_grade, ''),
		       COALESCE(synthesis, ''), COALESCE(report, ''), COALESCE(error, ''),
		       created_at, updated_at
		FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Goal, &rec.Status,
			&rec.QualityScore, &rec.QualityGrade,
			&rec.Synthesis, &rec.Report, &rec.Error,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteSession removes a session and all of its dependent rows.
func (s *Store) DeleteSession(sessionID string) error {
	if s == nil {
		return fmt.Errorf("store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"phases", "findings", "citations"} {
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
