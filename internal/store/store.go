// Package store persists sessions, findings, and citations to SQLite. The
// pipeline treats persistence as a best-effort side effect: every scheduler-
// side call is logged and swallowed on failure, and a nil *Store is fully
// supported.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store wraps a single-connection SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	logger *zap.Logger
}

// Open initializes the database at the given path, creating directories and
// schema as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, path: path, logger: logger.Named("store")}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		goal          TEXT NOT NULL,
		goal_json     TEXT,
		config_json   TEXT,
		status        TEXT NOT NULL DEFAULT 'running',
		quality_score REAL,
		quality_grade TEXT,
		synthesis     TEXT,
		report        TEXT,
		error         TEXT,
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS phases (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id      TEXT NOT NULL,
		phase_id        TEXT NOT NULL,
		title           TEXT,
		status          TEXT,
		documents_found INTEGER,
		summary         TEXT,
		critique_json   TEXT,
		created_at      TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS findings (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		finding_json TEXT NOT NULL,
		created_at   TIMESTAMP NOT NULL,
		UNIQUE(session_id, content_hash)
	);
	CREATE TABLE IF NOT EXISTS citations (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id    TEXT NOT NULL,
		url           TEXT NOT NULL,
		content       TEXT NOT NULL,
		citation_json TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL,
		UNIQUE(session_id, url, content)
	);
	CREATE INDEX IF NOT EXISTS idx_phases_session ON phases(session_id);
	CREATE INDEX IF NOT EXISTS idx_findings_session ON findings(session_id);
	CREATE INDEX IF NOT EXISTS idx_citations_session ON citations(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
