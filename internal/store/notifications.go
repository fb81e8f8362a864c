package store

import (
	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// CreateNotification inserts a notification row.
func (s *Store) CreateNotification(n *types.Notification) error {
	res, err := s.db.Exec(`
		INSERT INTO notifications (user_id, story_id, content, is_read, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, n.UserID, n.StoryID, n.Content, n.CreatedAt)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

// UnreadNotifications returns a user's unread notifications, newest
// first.
func (s *Store) UnreadNotifications(userID string) ([]types.Notification, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, story_id, content, is_read, created_at
		FROM notifications WHERE user_id = ? AND is_read = 0
		ORDER BY id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Notification
	for rows.Next() {
		var n types.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.StoryID, &n.Content, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationsRead marks all of a user's notifications as read.
func (s *Store) MarkNotificationsRead(userID string) error {
	_, err := s.db.Exec(`
		UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0
	`, userID)
	return err
}

// CommentAuthors returns the distinct non-AI comment authors on a story,
// used to fan notifications out to everyone in the thread.
func (s *Store) CommentAuthors(storyID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT author FROM comments
		WHERE story_id = ? AND is_ai = 0 AND author != ''
	`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}
