// Package objstore stores post attachments and avatars in two public
// buckets on an afero filesystem.
//
// Object paths follow {userId|anon}/{unixMillis}_{safeName} for the posts
// bucket and {userId}/{userId}_{unixMillis}.{ext} for avatars. Objects are
// addressed by {publicURL}/{bucket}/{path}; Handler serves them.
package objstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	BucketPosts   = "posts"
	BucketAvatars = "avatars"
)

var unsafeChars = regexp.MustCompile(`(?i)[^a-z0-9.\-_/]`)

// Store is a bucketed object store rooted at a directory of an afero.Fs.
type Store struct {
	fs        afero.Fs
	publicURL string
	now       func() time.Time
}

// New returns a store over fs, restricted to root. publicURL is the prefix
// of returned object URLs (for example http://localhost:8080/storage).
func New(fs afero.Fs, root, publicURL string) *Store {
	if root != "" {
		fs = afero.NewBasePathFs(fs, root)
	}
	return &Store{
		fs:        fs,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// NewOS returns a store on the local disk under dir.
func NewOS(dir, publicURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return New(afero.NewOsFs(), dir, publicURL), nil
}

// SafeName replaces every character outside [A-Za-z0-9.-_/] with an
// underscore. Case is kept.
func SafeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// PublicURL returns the URL of an object.
func (s *Store) PublicURL(bucket, objectPath string) string {
	return s.publicURL + "/" + bucket + "/" + strings.TrimLeft(objectPath, "/")
}

// Upload stores an attachment in the posts bucket and returns its public URL.
// An empty userID stores the object under anon/.
func (s *Store) Upload(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	owner := userID
	if owner == "" {
		owner = "anon"
	}
	name := SafeName(filepath.Base(filename))
	if name == "" || name == "." {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	objectPath := path.Join(SafeName(owner), fmt.Sprintf("%d_%s", s.now().UnixMilli(), name))
	if err := s.put(ctx, BucketPosts, objectPath, r); err != nil {
		return "", err
	}
	return s.PublicURL(BucketPosts, objectPath), nil
}

// UploadAvatar stores an avatar image in the avatars bucket.
func (s *Store) UploadAvatar(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("avatar upload requires a user id")
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = "png"
	}
	owner := SafeName(userID)
	objectPath := path.Join(owner, fmt.Sprintf("%s_%d.%s", owner, s.now().UnixMilli(), SafeName(ext)))
	if err := s.put(ctx, BucketAvatars, objectPath, r); err != nil {
		return "", err
	}
	return s.PublicURL(BucketAvatars, objectPath), nil
}

// Handler serves objects at /{bucket}/{path}. Mount it under the public
// URL prefix with http.StripPrefix.
func (s *Store) Handler() http.Handler {
	return http.FileServer(afero.NewHttpFs(s.fs).Dir("/"))
}

func (s *Store) put(ctx context.Context, bucket, objectPath string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := path.Join("/", bucket, objectPath)
	if err := s.fs.MkdirAll(path.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create bucket path: %w", err)
	}
	f, err := s.fs.Create(full)
	if err != nil {
		return fmt.Errorf("failed to create object %s: %w", full, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(full)
		return fmt.Errorf("failed to write object %s: %w", full, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close object %s: %w", full, err)
	}
	return nil
}
