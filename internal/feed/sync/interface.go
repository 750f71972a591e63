package sync

import (
	"context"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// Remote is the remote data gateway as the core sees it.
// *gateway.Gateway implements it.
//
// Every method makes one attempt and returns an error on failure. Errors
// wrapping db.ErrNotFound or schema.ErrInvalid are permanent (see
// IsPermanent); anything else is treated as transient.
type Remote interface {
	// FetchPosts returns all posts newest first, each with its comments.
	FetchPosts(ctx context.Context) ([]schema.Post, error)

	// InsertPost stores a draft and returns the stored post. Inserting an
	// id that already exists must succeed without a duplicate.
	InsertPost(ctx context.Context, draft schema.Post) (schema.Post, error)

	// ToggleLike flips key's membership in the post's liker set.
	ToggleLike(ctx context.Context, postID, key string) (schema.LikeState, error)

	// SetLike makes key's membership equal to liked.
	SetLike(ctx context.Context, postID, key string, liked bool) (schema.LikeState, error)

	// InsertComment stores a comment and returns it with its author
	// resolved from the profile.
	InsertComment(ctx context.Context, postID string, c schema.Comment) (schema.Comment, error)

	// UpsertProfile merges a partial profile update.
	UpsertProfile(ctx context.Context, up schema.ProfileUpdate) (*schema.Profile, error)
}
