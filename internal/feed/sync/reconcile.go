package sync

import (
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// Reconcile merges a remote fetch with the local cache.
//
// The result keeps the remote order and remote field values; stale local
// fields are dropped. Pending intents are then re-applied in queue order:
// posts created locally and missing remotely are put in front (newest
// first), like memberships are set, comments are appended unless already
// present, and profile edits patch author snapshots.
//
// Reconcile does not modify its arguments.
func Reconcile(remote, local []schema.Post, pending []Intent) []schema.Post {
	merged := schema.ClonePosts(remote)
	for i := range merged {
		if merged[i].CommentsList == nil {
			merged[i].CommentsList = []schema.Comment{}
		}
		merged[i].Normalize()
	}

	for _, in := range pending {
		if in.Status != IntentPending {
			continue
		}
		merged, _ = applyIntent(merged, local, in)
	}
	return merged
}

// applyIntent applies one intent to posts and reports whether it changed
// anything. local is consulted for the body of locally created posts.
func applyIntent(posts, local []schema.Post, in Intent) ([]schema.Post, bool) {
	switch in.Kind {
	case IntentCreatePost:
		if schema.FindPost(posts, in.PostID) >= 0 {
			return posts, false
		}
		var post schema.Post
		if i := schema.FindPost(local, in.PostID); i >= 0 {
			post = local[i].Clone()
		} else if in.Post != nil {
			post = in.Post.Clone()
		} else {
			return posts, false
		}
		post.Normalize()
		return append([]schema.Post{post}, posts...), true

	case IntentSetLike:
		i := schema.FindPost(posts, in.PostID)
		if i < 0 {
			return posts, false
		}
		return posts, posts[i].SetLiked(in.LikerKey, in.Liked)

	case IntentAddComment:
		i := schema.FindPost(posts, in.PostID)
		if i < 0 || in.Comment == nil {
			return posts, false
		}
		return posts, posts[i].AppendComment(in.Comment.Clone())

	case IntentUpdateProfile:
		if in.Profile == nil {
			return posts, false
		}
		return posts, patchAuthors(posts, in.Profile.ID, in.Profile.AuthorPatch()) > 0
	}
	return posts, false
}

// patchAuthors applies patch to every post and comment authored by userID
// and returns the number of posts that changed.
func patchAuthors(posts []schema.Post, userID string, patch schema.AuthorPatch) int {
	if userID == "" || patch.IsEmpty() {
		return 0
	}
	changed := 0
	for i := range posts {
		p := &posts[i]
		postChanged := false
		if p.User != nil && p.User.ID == userID {
			if patch.Apply(p.User) {
				postChanged = true
			}
		}
		for j := range p.CommentsList {
			c := &p.CommentsList[j]
			if c.User != nil && c.User.ID == userID {
				if patch.Apply(c.User) {
					postChanged = true
				}
			}
		}
		if postChanged {
			changed++
		}
	}
	return changed
}
