package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// maxCASAttempts bounds the compare-and-swap loop of like updates.
const maxCASAttempts = 16

// PostRow is a posts row joined with its author's profile.
type PostRow struct {
	ID        string
	Content   string
	FileURL   string
	UserID    string
	CreatedAt time.Time
	LikedBy   []string
	Tag       string
	Version   int64

	// Author is nil for anonymous posts or authors without a profile row.
	Author *schema.Profile
}

// ListPostsFilter configures ListPosts.
type ListPostsFilter struct {
	// UserID restricts to one author (empty = all)
	UserID string
	// Tag restricts to one category (empty = all)
	Tag string
	// Since drops posts created before it (zero = no bound)
	Since time.Time
	// Limit restricts the number of results (0 = no limit)
	Limit int
}

const postColumns = `
	p.id, p.content, p.file_url, p.user_id, p.created_at, p.liked_by, p.tag, p.version,
	pr.id, pr.username, pr.career, pr.bio, pr.term, pr.avatar, pr.created_at`

// ListPosts returns posts newest first.
func (db *DB) ListPosts(ctx context.Context, filter ListPostsFilter) ([]*PostRow, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "p.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Tag != "" {
		conditions = append(conditions, "p.tag = ? COLLATE NOCASE")
		args = append(args, filter.Tag)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "p.created_at >= ?")
		args = append(args, formatTime(filter.Since))
	}

	query := `SELECT ` + postColumns + `
	FROM posts p
	LEFT JOIN profiles pr ON pr.id = p.user_id`

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*PostRow
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

// GetPost returns one post. Returns ErrNotFound if it does not exist.
func (db *DB) GetPost(ctx context.Context, id string) (*PostRow, error) {
	query := `SELECT ` + postColumns + `
	FROM posts p
	LEFT JOIN profiles pr ON pr.id = p.user_id
	WHERE p.id = ?`

	p, err := scanPost(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// InsertPost stores a new post.
//
// Inserting an id that already exists is a no-op, so replaying a queued
// create is safe. The author profile must exist (see EnsureProfile).
func (db *DB) InsertPost(ctx context.Context, p *PostRow) error {
	if p.ID == "" {
		return fmt.Errorf("invalid post: id is required")
	}

	likedBy := p.LikedBy
	if likedBy == nil {
		likedBy = []string{}
	}
	likedJSON, err := json.Marshal(likedBy)
	if err != nil {
		return fmt.Errorf("failed to marshal liked_by: %w", err)
	}

	tag := p.Tag
	if tag == "" {
		tag = schema.DefaultTag
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
	INSERT INTO posts (id, content, file_url, user_id, created_at, liked_by, tag, version)
	VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	ON CONFLICT(id) DO NOTHING
	`

	_, err = db.conn.ExecContext(ctx, query,
		p.ID,
		p.Content,
		nullString(p.FileURL),
		nullString(p.UserID),
		formatTime(createdAt),
		string(likedJSON),
		tag,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post %s: %w", p.ID, err)
	}
	return nil
}

// ToggleLike flips key's membership in the post's liked_by array and
// returns the resulting array.
func (db *DB) ToggleLike(ctx context.Context, postID, key string) ([]string, error) {
	return db.updateLikes(ctx, postID, func(likedBy []string) []string {
		p := schema.Post{LikedBy: likedBy}
		p.ToggleLike(key)
		return p.LikedBy
	})
}

// SetLike makes key's membership equal to liked. Repeating the call is a
// no-op, which is what replaying a queued like needs.
func (db *DB) SetLike(ctx context.Context, postID, key string, liked bool) ([]string, error) {
	return db.updateLikes(ctx, postID, func(likedBy []string) []string {
		p := schema.Post{LikedBy: likedBy}
		p.SetLiked(key, liked)
		return p.LikedBy
	})
}

func (db *DB) updateLikes(ctx context.Context, postID string, apply func([]string) []string) ([]string, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var likedJSON string
		var version int64
		err := db.conn.QueryRowContext(ctx,
			`SELECT liked_by, version FROM posts WHERE id = ?`, postID,
		).Scan(&likedJSON, &version)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %s: %w", postID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read likes of %s: %w", postID, err)
		}

		likedBy, err := decodeLikedBy(likedJSON)
		if err != nil {
			return nil, fmt.Errorf("post %s: %w", postID, err)
		}

		next := apply(likedBy)
		if next == nil {
			next = []string{}
		}
		nextJSON, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal liked_by: %w", err)
		}

		res, err := db.conn.ExecContext(ctx,
			`UPDATE posts SET liked_by = ?, version = version + 1 WHERE id = ? AND version = ?`,
			string(nextJSON), postID, version,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update likes of %s: %w", postID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to update likes of %s: %w", postID, err)
		}
		if n == 1 {
			return next, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("post %s: %w", postID, ErrConflict)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*PostRow, error) {
	var p PostRow
	var fileURL, userID sql.NullString
	var createdAt, likedJSON string
	var prID, prUsername, prCareer, prBio, prTerm, prAvatar, prCreated sql.NullString

	err := row.Scan(
		&p.ID,
		&p.Content,
		&fileURL,
		&userID,
		&createdAt,
		&likedJSON,
		&p.Tag,
		&p.Version,
		&prID,
		&prUsername,
		&prCareer,
		&prBio,
		&prTerm,
		&prAvatar,
		&prCreated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	p.FileURL = fileURL.String
	p.UserID = userID.String
	p.CreatedAt = parseTime(createdAt)

	p.LikedBy, err = decodeLikedBy(likedJSON)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", p.ID, err)
	}

	if prID.Valid {
		p.Author = &schema.Profile{
			ID:        prID.String,
			Username:  prUsername.String,
			Career:    prCareer.String,
			Bio:       prBio.String,
			Term:      prTerm.String,
			Avatar:    prAvatar.String,
			CreatedAt: parseTime(prCreated.String),
		}
	}
	return &p, nil
}

func decodeLikedBy(raw string) ([]string, error) {
	if raw == "" || raw == "null" {
		return []string{}, nil
	}
	var likedBy []string
	if err := json.Unmarshal([]byte(raw), &likedBy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal liked_by: %w", err)
	}
	if likedBy == nil {
		likedBy = []string{}
	}
	return likedBy, nil
}
