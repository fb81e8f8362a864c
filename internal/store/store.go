// Package store persists stories, comments, evidence and the evidence
// episode claims behind the exactly-once guarantee. SQLite is the only
// backend; all access goes through database/sql.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when the database cannot be opened or
	// prepared.
	ErrUnavailable = errors.New("store unavailable")

	// ErrStateConflict is returned when a guarded state update finds the
	// story no longer in the expected state. It signals a lost race, not
	// corruption; the caller re-reads and re-evaluates.
	ErrStateConflict = errors.New("story state changed concurrently")
)

// Store handles all database operations.
type Store struct {
	db *sql.DB
}

// New creates a new Store with a SQLite backend at dbPath.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	// under concurrent claims.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		location TEXT,
		persona TEXT,
		state TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS story_state_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		story_id TEXT NOT NULL REFERENCES stories(id),
		state TEXT NOT NULL,
		cause TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		story_id TEXT NOT NULL REFERENCES stories(id),
		parent_id INTEGER REFERENCES comments(id),
		author TEXT,
		is_ai BOOLEAN NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS evidence (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		story_id TEXT NOT NULL REFERENCES stories(id),
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		synthesis_type TEXT NOT NULL,
		intensity REAL NOT NULL,
		seed INTEGER NOT NULL,
		trigger_threshold INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS evidence_episodes (
		story_id TEXT NOT NULL REFERENCES stories(id),
		trigger_threshold INTEGER NOT NULL,
		claimed_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT 0,
		PRIMARY KEY (story_id, trigger_threshold)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		story_id TEXT NOT NULL REFERENCES stories(id),
		content TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stories_state ON stories(state);
	CREATE INDEX IF NOT EXISTS idx_stories_created_at ON stories(created_at);
	CREATE INDEX IF NOT EXISTS idx_state_log_story ON story_state_log(story_id);
	CREATE INDEX IF NOT EXISTS idx_comments_story ON comments(story_id);
	CREATE INDEX IF NOT EXISTS idx_evidence_story ON evidence(story_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read);
	`

	_, err := s.db.Exec(schema)
	return err
}
