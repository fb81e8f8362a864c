package store

import (
	"database/sql"
	"time"

	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// CreateEvidence inserts an evidence row tagged with its synthesis
// parameters and the activity threshold that produced it.
func (s *Store) CreateEvidence(e *types.Evidence) error {
	res, err := s.db.Exec(`
		INSERT INTO evidence (story_id, kind, path, synthesis_type, intensity, seed, trigger_threshold, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.StoryID, string(e.Kind), e.Path, e.SynthesisType, e.Intensity, e.Seed, e.Threshold, e.CreatedAt)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// EvidenceByStory returns all evidence rows for a story, oldest first.
func (s *Store) EvidenceByStory(storyID string) ([]types.Evidence, error) {
	rows, err := s.db.Query(`
		SELECT id, story_id, kind, path, synthesis_type, intensity, seed, trigger_threshold, created_at
		FROM evidence WHERE story_id = ? ORDER BY id ASC
	`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Evidence
	for rows.Next() {
		var e types.Evidence
		var kind string
		if err := rows.Scan(&e.ID, &e.StoryID, &kind, &e.Path, &e.SynthesisType,
			&e.Intensity, &e.Seed, &e.Threshold, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = types.EvidenceKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClaimEpisode takes the exclusive generation-episode lease for a
// (story, threshold) pair. It returns false when the episode is already
// completed or another claim holds an unexpired lease. An expired lease
// from a crashed or timed-out task can be re-claimed.
func (s *Store) ClaimEpisode(storyID string, threshold int, now time.Time, ttl time.Duration) (bool, error) {
	expires := now.Add(ttl)

	res, err := s.db.Exec(`
		INSERT INTO evidence_episodes (story_id, trigger_threshold, claimed_at, expires_at, completed)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(story_id, trigger_threshold) DO UPDATE SET
			claimed_at = excluded.claimed_at,
			expires_at = excluded.expires_at
		WHERE completed = 0 AND expires_at < excluded.claimed_at
	`, storyID, threshold, now, expires)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CompleteEpisode marks a claimed episode as done; the (story, threshold)
// pair can never fire again.
func (s *Store) CompleteEpisode(storyID string, threshold int) error {
	_, err := s.db.Exec(`
		UPDATE evidence_episodes SET completed = 1
		WHERE story_id = ? AND trigger_threshold = ?
	`, storyID, threshold)
	return err
}

// ReleaseEpisode drops an unfinished claim so a future evaluation can
// retry the episode.
func (s *Store) ReleaseEpisode(storyID string, threshold int) error {
	_, err := s.db.Exec(`
		DELETE FROM evidence_episodes
		WHERE story_id = ? AND trigger_threshold = ? AND completed = 0
	`, storyID, threshold)
	return err
}

// EpisodeCompleted reports whether the (story, threshold) episode has
// already produced evidence.
func (s *Store) EpisodeCompleted(storyID string, threshold int) (bool, error) {
	var completed bool
	err := s.db.QueryRow(`
		SELECT completed FROM evidence_episodes
		WHERE story_id = ? AND trigger_threshold = ?
	`, storyID, threshold).Scan(&completed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return completed, nil
}
