// Package gateway is the remote data gateway: it maps the relational store
// and the object buckets onto the post/comment/profile shapes the feed uses,
// and publishes a push change after every successful remote mutation.
//
// Gateway methods return wrapped errors. Only sub-failures that cannot make
// the whole call meaningless are absorbed here: a post whose comments fail
// to load is returned with no comments, and unreadable comment attachments
// are dropped. Both are logged.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/campuscircle/campusfeed/internal/feed/db"
	"github.com/campuscircle/campusfeed/internal/feed/objstore"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// DefaultCommentConcurrency bounds parallel per-post comment fetches.
const DefaultCommentConcurrency = 8

// Publisher receives the push change of every remote mutation.
type Publisher interface {
	Publish(change schema.PostChange)
}

// Config holds optional gateway collaborators.
type Config struct {
	// Publisher receives push changes (nil = none)
	Publisher Publisher
	// Logger defaults to stderr with a [gateway] prefix
	Logger *log.Logger
	// CommentConcurrency bounds parallel comment fetches (0 = default)
	CommentConcurrency int
}

// Gateway is the remote side of post synchronization.
type Gateway struct {
	db          *db.DB
	objects     *objstore.Store
	publisher   Publisher
	logger      *log.Logger
	concurrency int
}

// New creates a gateway over an initialized database. objects may be nil
// when uploads are not needed.
func New(database *db.DB, objects *objstore.Store, cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[gateway] ", log.LstdFlags)
	}
	concurrency := cfg.CommentConcurrency
	if concurrency <= 0 {
		concurrency = DefaultCommentConcurrency
	}
	return &Gateway{
		db:          database,
		objects:     objects,
		publisher:   cfg.Publisher,
		logger:      logger,
		concurrency: concurrency,
	}
}

// SetPublisher replaces the push-change publisher.
func (g *Gateway) SetPublisher(p Publisher) {
	g.publisher = p
}

// FetchPosts returns every post newest first, each with its comments.
func (g *Gateway) FetchPosts(ctx context.Context) ([]schema.Post, error) {
	return g.FetchPostsFiltered(ctx, db.ListPostsFilter{})
}

// FetchPostsByUser returns one author's posts newest first.
func (g *Gateway) FetchPostsByUser(ctx context.Context, userID string) ([]schema.Post, error) {
	return g.FetchPostsFiltered(ctx, db.ListPostsFilter{UserID: userID})
}

// FetchPostsFiltered returns the posts matching filter with their comments.
// Comments are fetched per post in parallel.
func (g *Gateway) FetchPostsFiltered(ctx context.Context, filter db.ListPostsFilter) ([]schema.Post, error) {
	rows, err := g.db.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}

	posts := make([]schema.Post, len(rows))
	for i, row := range rows {
		posts[i] = mapPost(row)
	}

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i := range posts {
		i := i
		eg.Go(func() error {
			comments, err := g.FetchComments(ctx, posts[i].ID)
			if err != nil {
				g.logger.Printf("Warning: failed to fetch comments of %s: %v", posts[i].ID, err)
				comments = []schema.Comment{}
			}
			posts[i].CommentsList = comments
			posts[i].Normalize()
			return nil
		})
	}
	_ = eg.Wait()

	return posts, nil
}

// GetPost returns one post with its comments.
func (g *Gateway) GetPost(ctx context.Context, id string) (schema.Post, error) {
	row, err := g.db.GetPost(ctx, id)
	if err != nil {
		return schema.Post{}, err
	}
	post := mapPost(row)
	comments, err := g.FetchComments(ctx, id)
	if err != nil {
		g.logger.Printf("Warning: failed to fetch comments of %s: %v", id, err)
		comments = []schema.Comment{}
	}
	post.CommentsList = comments
	post.Normalize()
	return post, nil
}

// InsertPost stores a draft and returns the stored post.
//
// The draft's author profile is created from its snapshot if missing. Only
// the first attachment is kept (posts carry one file_url).
func (g *Gateway) InsertPost(ctx context.Context, draft schema.Post) (schema.Post, error) {
	if err := draft.Validate(); err != nil {
		return schema.Post{}, fmt.Errorf("%w: post: %v", schema.ErrInvalid, err)
	}

	if err := g.ensureAuthor(ctx, draft.User); err != nil {
		return schema.Post{}, err
	}

	row := &db.PostRow{
		ID:        draft.ID,
		Content:   draft.Content,
		UserID:    draft.AuthorID(),
		CreatedAt: draft.CreatedAt,
		LikedBy:   draft.LikedBy,
		Tag:       draft.Tag,
	}
	if len(draft.Files) > 0 {
		row.FileURL = draft.Files[0].URL
		if len(draft.Files) > 1 {
			g.logger.Printf("Warning: post %s has %d attachments, keeping the first", draft.ID, len(draft.Files))
		}
	}

	if err := g.db.InsertPost(ctx, row); err != nil {
		return schema.Post{}, fmt.Errorf("failed to insert post: %w", err)
	}

	stored, err := g.db.GetPost(ctx, draft.ID)
	if err != nil {
		return schema.Post{}, fmt.Errorf("failed to read back post %s: %w", draft.ID, err)
	}
	post := mapPost(stored)
	if post.User != nil && draft.User != nil && post.User.Email == "" {
		post.User.Email = draft.User.Email
	}

	g.publish(schema.PostChange{Type: schema.ChangePostCreated, PostID: post.ID, Post: &post})
	return post, nil
}

// ToggleLike flips key's membership in the post's liked_by array.
func (g *Gateway) ToggleLike(ctx context.Context, postID, key string) (schema.LikeState, error) {
	likedBy, err := g.db.ToggleLike(ctx, postID, key)
	if err != nil {
		return schema.LikeState{}, fmt.Errorf("failed to toggle like: %w", err)
	}
	g.publish(schema.PostChange{Type: schema.ChangePostUpdated, PostID: postID, LikedBy: likedBy})
	return schema.LikeState{Likes: len(likedBy), LikedBy: likedBy}, nil
}

// SetLike sets key's membership in the post's liked_by array.
func (g *Gateway) SetLike(ctx context.Context, postID, key string, liked bool) (schema.LikeState, error) {
	likedBy, err := g.db.SetLike(ctx, postID, key, liked)
	if err != nil {
		return schema.LikeState{}, fmt.Errorf("failed to set like: %w", err)
	}
	g.publish(schema.PostChange{Type: schema.ChangePostUpdated, PostID: postID, LikedBy: likedBy})
	return schema.LikeState{Likes: len(likedBy), LikedBy: likedBy}, nil
}

// InsertComment stores a comment. The returned comment's author is resolved
// from the commenter's profile when one exists.
func (g *Gateway) InsertComment(ctx context.Context, postID string, c schema.Comment) (schema.Comment, error) {
	if err := c.Validate(); err != nil {
		return schema.Comment{}, fmt.Errorf("%w: comment: %v", schema.ErrInvalid, err)
	}

	if err := g.ensureAuthor(ctx, c.User); err != nil {
		return schema.Comment{}, err
	}

	attachments, err := schema.EncodeAttachments(c.Attachments)
	if err != nil {
		return schema.Comment{}, err
	}

	row := &db.CommentRow{
		ID:          c.ID,
		Content:     c.Text,
		PostID:      postID,
		UserID:      c.AuthorID(),
		CreatedAt:   c.CreatedAt,
		Attachments: attachments,
	}
	if err := g.db.InsertComment(ctx, row); err != nil {
		return schema.Comment{}, fmt.Errorf("failed to insert comment: %w", err)
	}

	out := c.Clone()
	if out.User != nil && out.User.ID != "" {
		if profile, err := g.db.GetProfile(ctx, out.User.ID); err == nil {
			author := profile.Author()
			author.Email = out.User.Email
			out.User = author
		}
	}

	g.publish(schema.PostChange{Type: schema.ChangeCommentAdded, PostID: postID, Comment: &out})
	return out, nil
}

// FetchComments returns a post's comments oldest first.
func (g *Gateway) FetchComments(ctx context.Context, postID string) ([]schema.Comment, error) {
	rows, err := g.db.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	comments := make([]schema.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, g.mapComment(row))
	}
	return comments, nil
}

// GetProfile returns a profile. Errors wrap db.ErrNotFound when missing.
func (g *Gateway) GetProfile(ctx context.Context, id string) (*schema.Profile, error) {
	return g.db.GetProfile(ctx, id)
}

// UpsertProfile merges a partial profile update.
func (g *Gateway) UpsertProfile(ctx context.Context, up schema.ProfileUpdate) (*schema.Profile, error) {
	if err := up.Validate(); err != nil {
		return nil, fmt.Errorf("%w: profile: %v", schema.ErrInvalid, err)
	}
	p, err := g.db.UpsertProfile(ctx, up)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

// UploadFile stores an attachment in the posts bucket and returns it as a
// PostFile.
func (g *Gateway) UploadFile(ctx context.Context, userID, filename string, r io.Reader) (schema.PostFile, error) {
	if g.objects == nil {
		return schema.PostFile{}, fmt.Errorf("object storage is not configured")
	}
	url, err := g.objects.Upload(ctx, userID, filename, r)
	if err != nil {
		return schema.PostFile{}, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	f := schema.FileFromURL(schema.NewPostID(), url)
	f.Label = filename
	return f, nil
}

// UploadAvatar stores an avatar and returns its public URL.
func (g *Gateway) UploadAvatar(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	if g.objects == nil {
		return "", fmt.Errorf("object storage is not configured")
	}
	url, err := g.objects.UploadAvatar(ctx, userID, filename, r)
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}
	return url, nil
}

func (g *Gateway) ensureAuthor(ctx context.Context, a *schema.Author) error {
	if a == nil || a.ID == "" {
		return nil
	}
	err := g.db.EnsureProfile(ctx, &schema.Profile{
		ID:       a.ID,
		Username: a.Name,
		Career:   a.Major,
		Term:     a.Semester,
		Avatar:   a.Avatar,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure author profile: %w", err)
	}
	return nil
}

func (g *Gateway) publish(change schema.PostChange) {
	if g.publisher != nil {
		g.publisher.Publish(change)
	}
}
