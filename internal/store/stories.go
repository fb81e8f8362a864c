package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// CreateStory inserts a story and its initial state-history entry in one
// transaction. The caller sets Story.State (normally seed) and the
// matching first StateChange is written from it.
func (s *Store) CreateStory(story *types.Story, trigger string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO stories (id, title, content, category, location, persona, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, story.ID, story.Title, story.Content, string(story.Category),
		story.Location, story.Persona, string(story.State), story.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO story_state_log (story_id, state, cause, created_at)
		VALUES (?, ?, ?, ?)
	`, story.ID, string(story.State), trigger, story.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert state log: %w", err)
	}

	return tx.Commit()
}

// UpdateStoryState applies a state transition with a compare-and-swap on
// the current state and appends the history entry atomically. A story no
// longer in the expected state yields ErrStateConflict, so a transition
// can never be applied twice concurrently.
func (s *Store) UpdateStoryState(storyID string, from, to types.StoryState, trigger string, at time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE stories SET state = ? WHERE id = ? AND state = ?
	`, string(to), storyID, string(from))
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("story %s not in state %s: %w", storyID, from, ErrStateConflict)
	}

	_, err = tx.Exec(`
		INSERT INTO story_state_log (story_id, state, cause, created_at)
		VALUES (?, ?, ?, ?)
	`, storyID, string(to), trigger, at)
	if err != nil {
		return fmt.Errorf("insert state log: %w", err)
	}

	return tx.Commit()
}

// GetStory returns a story with its full state history.
func (s *Store) GetStory(id string) (*types.Story, error) {
	var story types.Story
	var category, state string

	err := s.db.QueryRow(`
		SELECT id, title, content, category, location, persona, state, created_at
		FROM stories WHERE id = ?
	`, id).Scan(&story.ID, &story.Title, &story.Content, &category,
		&story.Location, &story.Persona, &state, &story.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	story.Category = types.Category(category)
	story.State = types.StoryState(state)

	history, err := s.StateHistory(id)
	if err != nil {
		return nil, err
	}
	story.StateHistory = history

	return &story, nil
}

// StateHistory returns the append-only state log for a story, oldest
// first.
func (s *Store) StateHistory(storyID string) ([]types.StateChange, error) {
	rows, err := s.db.Query(`
		SELECT state, cause, created_at
		FROM story_state_log WHERE story_id = ? ORDER BY id ASC
	`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []types.StateChange
	for rows.Next() {
		var change types.StateChange
		var state string
		if err := rows.Scan(&state, &change.Trigger, &change.At); err != nil {
			return nil, err
		}
		change.State = types.StoryState(state)
		history = append(history, change)
	}
	return history, rows.Err()
}

// RecentStories returns the most recent n stories, newest first. This is
// the similarity window; it is recomputed on demand, never cached.
func (s *Store) RecentStories(n int) ([]types.Story, error) {
	rows, err := s.db.Query(`
		SELECT id, title, content, category, location, persona, state, created_at
		FROM stories ORDER BY created_at DESC, id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStories(rows)
}

// CountNonTerminal counts stories not in a terminal state. The admission
// cap is enforced against this number.
func (s *Store) CountNonTerminal() (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM stories WHERE state != ?
	`, string(types.StateArchived)).Scan(&count)
	return count, err
}

// ListByStates returns all stories currently in any of the given states.
func (s *Store) ListByStates(states ...types.StoryState) ([]types.Story, error) {
	if len(states) == 0 {
		return nil, nil
	}

	query := `SELECT id, title, content, category, location, persona, state, created_at
		FROM stories WHERE state IN (?` + strings.Repeat(",?", len(states)-1) + `) ORDER BY created_at ASC`
	args := make([]any, len(states))
	for i, st := range states {
		args[i] = string(st)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStories(rows)
}

// LatestActivity returns the time of the most recent comment on a story,
// or the story's creation time when it has none.
func (s *Store) LatestActivity(storyID string) (time.Time, error) {
	var latest time.Time
	err := s.db.QueryRow(`
		SELECT created_at FROM comments WHERE story_id = ? ORDER BY id DESC LIMIT 1
	`, storyID).Scan(&latest)
	if err == nil {
		return latest, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, err
	}

	err = s.db.QueryRow(`SELECT created_at FROM stories WHERE id = ?`, storyID).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("story %s: %w", storyID, ErrNotFound)
	}
	if err != nil {
		return time.Time{}, err
	}
	return latest, nil
}

func scanStories(rows *sql.Rows) ([]types.Story, error) {
	var stories []types.Story
	for rows.Next() {
		var story types.Story
		var category, state string
		err := rows.Scan(&story.ID, &story.Title, &story.Content, &category,
			&story.Location, &story.Persona, &state, &story.CreatedAt)
		if err != nil {
			return nil, err
		}
		story.Category = types.Category(category)
		story.State = types.StoryState(state)
		stories = append(stories, story)
	}
	return stories, rows.Err()
}
