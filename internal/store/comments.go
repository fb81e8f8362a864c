package store

import (
	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// CreateComment inserts a comment and fills in its assigned ID.
func (s *Store) CreateComment(c *types.Comment) error {
	res, err := s.db.Exec(`
		INSERT INTO comments (story_id, parent_id, author, is_ai, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.StoryID, c.ParentID, c.Author, c.IsAI, c.Content, c.CreatedAt)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// UserCommentCount counts the user-authored (non-AI) comments on a
// story. This is the activity signal behind the evidence trigger policy.
func (s *Store) UserCommentCount(storyID string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM comments WHERE story_id = ? AND is_ai = 0
	`, storyID).Scan(&count)
	return count, err
}

// RecentComments returns the newest n comments on a story, oldest first.
func (s *Store) RecentComments(storyID string, n int) ([]types.Comment, error) {
	rows, err := s.db.Query(`
		SELECT id, story_id, parent_id, author, is_ai, content, created_at
		FROM comments WHERE story_id = ?
		ORDER BY id DESC LIMIT ?
	`, storyID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []types.Comment
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.StoryID, &c.ParentID, &c.Author, &c.IsAI, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(comments)-1; i < j; i, j = i+1, j-1 {
		comments[i], comments[j] = comments[j], comments[i]
	}
	return comments, nil
}
