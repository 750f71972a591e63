// Package migrate moves posts in and out of the feed: JSONL or YAML export
// for backups, and JSONL import into the local cache or the remote store for
// seeding.
package migrate

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/campuscircle/campusfeed/internal/feed/localstore"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// Format is an export encoding.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts "jsonl", "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jsonl", "json":
		return FormatJSONL, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want jsonl or yaml)", s)
}

// Sink is where a remote import writes. *gateway.Gateway implements it.
type Sink interface {
	InsertPost(ctx context.Context, draft schema.Post) (schema.Post, error)
	InsertComment(ctx context.Context, postID string, c schema.Comment) (schema.Comment, error)
}

// ImportOptions contains configuration for an import.
type ImportOptions struct {
	From   string // Input JSONL file path
	DryRun bool   // Parse and count without writing
	Backup bool   // Copy the local cache aside before a cache import
}

// ImportResult contains statistics about an import.
type ImportResult struct {
	PostsRead      int
	PostsImported  int
	PostsSkipped   int
	CommentsStored int
	BackupCreated  string
	Errors         []string
}

// FromJSONL reads one post per line. Counters are restored from the
// collections and missing defaults are filled in.
func FromJSONL(path string) ([]schema.Post, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer file.Close()

	return ReadJSONL(file)
}

// ReadJSONL decodes posts from r.
func ReadJSONL(r io.Reader) ([]schema.Post, error) {
	var posts []schema.Post
	decoder := json.NewDecoder(r)
	now := time.Now()

	for lineNum := 1; ; lineNum++ {
		var post schema.Post
		if err := decoder.Decode(&post); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at record %d: %w", lineNum, err)
		}
		if post.CommentsList == nil {
			post.CommentsList = []schema.Comment{}
		}
		post.SetDefaults(now)
		posts = append(posts, post)
	}

	return posts, nil
}

// WriteJSONL encodes one post per line.
func WriteJSONL(w io.Writer, posts []schema.Post) error {
	encoder := json.NewEncoder(w)
	for i := range posts {
		if err := encoder.Encode(posts[i]); err != nil {
			return fmt.Errorf("failed to encode post %s: %w", posts[i].ID, err)
		}
	}
	return nil
}

// WriteYAML encodes the posts as one YAML sequence using the same field
// names as the JSON cache.
func WriteYAML(w io.Writer, posts []schema.Post) error {
	docs := make([]yamlPost, len(posts))
	for i := range posts {
		docs[i] = toYAML(posts[i])
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(docs); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return encoder.Close()
}

// Export writes posts to path in the given format, atomically.
func Export(path string, posts []schema.Post, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmpPath := path + ".tmp"
	// #nosec G304 - controlled path from CLI
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	w := bufio.NewWriter(file)
	switch format {
	case FormatYAML:
		err = WriteYAML(w, posts)
	default:
		err = WriteJSONL(w, posts)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ImportToCache merges a JSONL file into the local cache. Posts already
// cached are kept as they are; the merged list is ordered newest first.
func ImportToCache(ctx context.Context, opts ImportOptions, cache *localstore.PostCache) (*ImportResult, error) {
	posts, err := readInput(opts.From)
	if err != nil {
		return nil, err
	}
	result := &ImportResult{PostsRead: len(posts)}

	existing := cache.Load()
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.ID] = true
	}

	merged := existing
	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			result.PostsSkipped++
			continue
		}
		if err := p.Validate(); err != nil {
			result.PostsSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("post %s: %v", p.ID, err))
			continue
		}
		seen[p.ID] = true
		merged = append(merged, p)
		result.PostsImported++
	}

	if opts.DryRun || result.PostsImported == 0 {
		return result, nil
	}

	if opts.Backup {
		backup, err := backupFile(cache.Path())
		if err != nil {
			return nil, err
		}
		result.BackupCreated = backup
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if err := cache.Save(merged); err != nil {
		return nil, fmt.Errorf("failed to save cache: %w", err)
	}
	return result, nil
}

// ImportToRemote inserts every post of a JSONL file, with its comments, into
// the remote store. Inserts are idempotent so re-running an import is safe.
func ImportToRemote(ctx context.Context, opts ImportOptions, sink Sink) (*ImportResult, error) {
	posts, err := readInput(opts.From)
	if err != nil {
		return nil, err
	}
	result := &ImportResult{PostsRead: len(posts)}

	// oldest first so created_at order matches insertion order
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})

	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			result.PostsSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("post %s: %v", p.ID, err))
			continue
		}
		if opts.DryRun {
			result.PostsImported++
			result.CommentsStored += len(p.CommentsList)
			continue
		}

		if _, err := sink.InsertPost(ctx, p); err != nil {
			result.PostsSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to insert post %s: %v", p.ID, err))
			continue
		}
		result.PostsImported++

		for _, c := range p.CommentsList {
			if _, err := sink.InsertComment(ctx, p.ID, c); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to insert comment %s: %v", c.ID, err))
				continue
			}
			result.CommentsStored++
		}
	}

	return result, nil
}

func readInput(path string) ([]schema.Post, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file does not exist: %w", err)
	}
	posts, err := FromJSONL(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSONL: %w", err)
	}
	return posts, nil
}

// backupFile copies path aside and returns the copy's path, or "" if there
// was nothing to back up.
func backupFile(path string) (string, error) {
	// #nosec G304 - controlled path
	input, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cache for backup: %w", err)
	}
	backupPath := path + ".backup." + time.Now().Format("20060102-150405")
	if err := os.WriteFile(backupPath, input, 0600); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return backupPath, nil
}
