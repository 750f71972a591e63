package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// GetProfile returns one profile. Returns ErrNotFound if it does not exist.
func (db *DB) GetProfile(ctx context.Context, id string) (*schema.Profile, error) {
	return getProfile(ctx, db.conn, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getProfile(ctx context.Context, q queryRower, id string) (*schema.Profile, error) {
	var p schema.Profile
	var createdAt string
	err := q.QueryRowContext(ctx, `
		SELECT id, username, career, bio, term, avatar, created_at
		FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Username, &p.Career, &p.Bio, &p.Term, &p.Avatar, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// UpsertProfile merges a partial update into the profile, creating it if
// needed. A new profile without a username takes its id as username.
func (db *DB) UpsertProfile(ctx context.Context, up schema.ProfileUpdate) (*schema.Profile, error) {
	if err := up.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile update: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getProfile(ctx, tx, up.ID)
	if errors.Is(err, ErrNotFound) {
		current = &schema.Profile{ID: up.ID, Username: up.ID, CreatedAt: time.Now()}
	} else if err != nil {
		return nil, err
	}
	up.Apply(current)

	query := `
	INSERT INTO profiles (id, username, career, bio, term, avatar, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		username = excluded.username,
		career = excluded.career,
		bio = excluded.bio,
		term = excluded.term,
		avatar = excluded.avatar
	`
	_, err = tx.ExecContext(ctx, query,
		current.ID,
		current.Username,
		current.Career,
		current.Bio,
		current.Term,
		current.Avatar,
		formatTime(current.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile %s: %w", up.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return current, nil
}

// EnsureProfile creates p if no profile with its id exists. Existing rows
// are left untouched.
func (db *DB) EnsureProfile(ctx context.Context, p *schema.Profile) error {
	if p.ID == "" {
		return fmt.Errorf("invalid profile: id is required")
	}
	username := p.Username
	if username == "" {
		username = p.ID
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO profiles (id, username, career, bio, term, avatar, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		p.ID, username, p.Career, p.Bio, p.Term, p.Avatar, formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure profile %s: %w", p.ID, err)
	}
	return nil
}
