// Package db is the relational store behind the remote data gateway.
//
// The store runs on embedded SQLite (ncruces/go-sqlite3, WAL mode) by
// default; a libsql:// DSN selects a hosted libSQL database when the binary
// is built with the libsql tag.
//
// Schema:
//   - profiles: one row per user (username, career, bio, term, avatar)
//   - posts: content, single file_url, liked_by JSON array, tag, version
//   - comments: content, post_id, user_id, attachments JSON string
//
// Like membership changes are compare-and-swap updates on posts.version, so
// concurrent toggles on one post never lose an update.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var (
	// ErrNotFound is returned when a post, comment or profile does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a compare-and-swap update kept losing
	// to concurrent writers.
	ErrConflict = errors.New("concurrent update conflict")
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps the database connection with the feed's queries.
type DB struct {
	conn *sql.DB
	dsn  string
}

// Open connects to the database named by dsn.
//
// A dsn is either a filesystem path (embedded SQLite, parent directory
// created on demand) or a libsql:// URL.
//
// The caller MUST call Close() when done.
func Open(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn cannot be empty")
	}

	if isRemoteDSN(dsn) {
		driverName, err := remoteDriver(dsn)
		if err != nil {
			return nil, err
		}
		conn, err := sql.Open(driverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := conn.Ping(); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return &DB{conn: conn, dsn: dsn}, nil
	}

	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{conn: conn, dsn: path}, nil
}

func isRemoteDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "https://") ||
		strings.HasPrefix(dsn, "http://")
}

// DSN returns the path or URL the database was opened with.
func (db *DB) DSN() string {
	return db.dsn
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Local databases get a WAL checkpoint first.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if !isRemoteDSN(db.dsn) {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the tables and indexes if they don't exist.
// Safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		career TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		term TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		file_url TEXT,
		user_id TEXT REFERENCES profiles(id),
		created_at TEXT NOT NULL,
		liked_by TEXT NOT NULL DEFAULT '[]',  -- JSON array of liker keys
		tag TEXT NOT NULL DEFAULT 'General',
		version INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		post_id TEXT NOT NULL,
		user_id TEXT REFERENCES profiles(id),
		created_at TEXT NOT NULL,
		attachments TEXT NOT NULL DEFAULT '',  -- JSON array as a string
		FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_user ON posts(user_id);
	CREATE INDEX IF NOT EXISTS idx_posts_tag ON posts(tag);
	CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, created_at);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// PostCount returns the number of posts.
func (db *DB) PostCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get post count: %w", err)
	}
	return count, nil
}

// CommentCount returns the number of comments.
func (db *DB) CommentCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get comment count: %w", err)
	}
	return count, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
