package sync

import (
	"testing"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

func TestReconcile_RemoteWins(t *testing.T) {
	remote := []schema.Post{
		{ID: "p2", Content: "two", LikedBy: []string{"u1"}},
		{ID: "p1", Content: "one"},
	}
	local := []schema.Post{
		{ID: "p1", Content: "one (edited offline)", LikedBy: []string{"u1", "u2"}, Likes: 2},
		{ID: "p0", Content: "deleted remotely"},
	}

	merged := Reconcile(remote, local, nil)

	if len(merged) != 2 || merged[0].ID != "p2" || merged[1].ID != "p1" {
		t.Fatalf("merged = %+v, want remote order p2, p1", merged)
	}
	if merged[1].Content != "one" || merged[1].Likes != 0 {
		t.Errorf("stale local fields kept: %+v", merged[1])
	}
	if merged[0].Likes != 1 {
		t.Errorf("likes not normalized: %+v", merged[0])
	}
	for _, p := range merged {
		if p.CommentsList == nil {
			t.Errorf("post %s has nil commentsList", p.ID)
		}
	}
}

func TestReconcile_ReappliesPending(t *testing.T) {
	remote := []schema.Post{
		{ID: "p1", Content: "one", LikedBy: []string{"u9"},
			CommentsList: []schema.Comment{{ID: "c1", Text: "already synced"}}},
	}
	localOnly := schema.Post{ID: "draft", Content: "offline draft"}
	local := []schema.Post{localOnly}
	older := schema.Post{ID: "older", Content: "queued first"}

	pending := []Intent{
		{Kind: IntentCreatePost, Status: IntentPending, PostID: "older", Post: &older},
		{Kind: IntentCreatePost, Status: IntentPending, PostID: "draft"},
		{Kind: IntentSetLike, Status: IntentPending, PostID: "p1", LikerKey: "u9", Liked: false},
		{Kind: IntentSetLike, Status: IntentPending, PostID: "p1", LikerKey: "me", Liked: true},
		{Kind: IntentAddComment, Status: IntentPending, PostID: "p1", Comment: &schema.Comment{ID: "c1", Text: "dup"}},
		{Kind: IntentAddComment, Status: IntentPending, PostID: "p1", Comment: &schema.Comment{ID: "c2", Text: "new"}},
		{Kind: IntentSetLike, Status: IntentFailed, PostID: "p1", LikerKey: "ignored", Liked: true},
	}

	merged := Reconcile(remote, local, pending)

	ids := []string{}
	for _, p := range merged {
		ids = append(ids, p.ID)
	}
	if len(ids) != 3 || ids[0] != "draft" || ids[1] != "older" || ids[2] != "p1" {
		t.Fatalf("order = %v, want [draft older p1]", ids)
	}

	p1 := merged[2]
	if p1.HasLiker("u9") || !p1.HasLiker("me") || p1.HasLiker("ignored") || p1.Likes != 1 {
		t.Errorf("likes = %v", p1.LikedBy)
	}
	if p1.Comments != 2 || p1.CommentsList[0].Text != "already synced" || p1.CommentsList[1].ID != "c2" {
		t.Errorf("comments = %+v", p1.CommentsList)
	}
}

func TestReconcile_CreateAlreadyRemote(t *testing.T) {
	remote := []schema.Post{{ID: "p1", Content: "remote copy"}}
	local := []schema.Post{{ID: "p1", Content: "local copy"}}
	pending := []Intent{{Kind: IntentCreatePost, Status: IntentPending, PostID: "p1"}}

	merged := Reconcile(remote, local, pending)
	if len(merged) != 1 || merged[0].Content != "remote copy" {
		t.Errorf("merged = %+v", merged)
	}
}

func TestReconcile_ProfileIntent(t *testing.T) {
	remote := []schema.Post{
		{ID: "p1", Content: "x", User: &schema.Author{ID: "u1", Name: "old"}},
		{ID: "p2", Content: "y", User: &schema.Author{ID: "u2", Name: "bo"}},
	}
	name := "new"
	pending := []Intent{{Kind: IntentUpdateProfile, Status: IntentPending, Profile: &schema.ProfileUpdate{ID: "u1", Username: &name}}}

	merged := Reconcile(remote, nil, pending)
	if merged[0].User.Name != "new" || merged[1].User.Name != "bo" {
		t.Errorf("authors = %+v / %+v", merged[0].User, merged[1].User)
	}
}

func TestReconcile_DoesNotModifyInputs(t *testing.T) {
	remote := []schema.Post{{ID: "p1", Content: "x", LikedBy: []string{"a"}, User: &schema.Author{ID: "u1", Name: "old"}}}
	name := "new"
	pending := []Intent{
		{Kind: IntentSetLike, Status: IntentPending, PostID: "p1", LikerKey: "b", Liked: true},
		{Kind: IntentUpdateProfile, Status: IntentPending, Profile: &schema.ProfileUpdate{ID: "u1", Username: &name}},
	}

	Reconcile(remote, nil, pending)

	if len(remote[0].LikedBy) != 1 || remote[0].User.Name != "old" {
		t.Errorf("remote input modified: %+v", remote[0])
	}
}

func TestPatchAuthors_EmptyPatch(t *testing.T) {
	posts := []schema.Post{{ID: "p1", User: &schema.Author{ID: "u1", Name: "x"}}}
	name := "y"
	if n := patchAuthors(posts, "u1", schema.AuthorPatch{}); n != 0 {
		t.Errorf("patchAuthors() = %d, want 0", n)
	}
	if n := patchAuthors(posts, "", schema.AuthorPatch{Name: &name}); n != 0 {
		t.Errorf("patchAuthors() with empty id = %d, want 0", n)
	}
}
