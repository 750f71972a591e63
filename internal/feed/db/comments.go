package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// CommentRow is a comments row joined with its author's profile.
type CommentRow struct {
	ID        string
	Content   string
	PostID    string
	UserID    string
	CreatedAt time.Time

	// Attachments is the raw JSON string stored in the column.
	Attachments string

	Author *schema.Profile
}

// InsertComment stores a comment on an existing post.
// Returns ErrNotFound if the post does not exist. Re-inserting an id is a
// no-op.
func (db *DB) InsertComment(ctx context.Context, c *CommentRow) error {
	if c.ID == "" || c.PostID == "" {
		return fmt.Errorf("invalid comment: id and post id are required")
	}

	var exists int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, c.PostID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("post %s: %w", c.PostID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up post %s: %w", c.PostID, err)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
	INSERT INTO comments (id, content, post_id, user_id, created_at, attachments)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`

	_, err = db.conn.ExecContext(ctx, query,
		c.ID,
		c.Content,
		c.PostID,
		nullString(c.UserID),
		formatTime(createdAt),
		c.Attachments,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment %s: %w", c.ID, err)
	}
	return nil
}

// ListComments returns a post's comments oldest first.
func (db *DB) ListComments(ctx context.Context, postID string) ([]*CommentRow, error) {
	query := `
	SELECT c.id, c.content, c.post_id, c.user_id, c.created_at, c.attachments,
	       pr.id, pr.username, pr.career, pr.bio, pr.term, pr.avatar, pr.created_at
	FROM comments c
	LEFT JOIN profiles pr ON pr.id = c.user_id
	WHERE c.post_id = ?
	ORDER BY c.created_at ASC, c.id ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments of %s: %w", postID, err)
	}
	defer rows.Close()

	var comments []*CommentRow
	for rows.Next() {
		var c CommentRow
		var userID sql.NullString
		var createdAt string
		var prID, prUsername, prCareer, prBio, prTerm, prAvatar, prCreated sql.NullString

		err := rows.Scan(
			&c.ID,
			&c.Content,
			&c.PostID,
			&userID,
			&createdAt,
			&c.Attachments,
			&prID,
			&prUsername,
			&prCareer,
			&prBio,
			&prTerm,
			&prAvatar,
			&prCreated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}

		c.UserID = userID.String
		c.CreatedAt = parseTime(createdAt)
		if prID.Valid {
			c.Author = &schema.Profile{
				ID:        prID.String,
				Username:  prUsername.String,
				Career:    prCareer.String,
				Bio:       prBio.String,
				Term:      prTerm.String,
				Avatar:    prAvatar.String,
				CreatedAt: parseTime(prCreated.String),
			}
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}
	return comments, nil
}
