package gateway

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/campuscircle/campusfeed/internal/feed/db"
	"github.com/campuscircle/campusfeed/internal/feed/objstore"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []schema.PostChange
}

func (r *recordingPublisher) Publish(c schema.PostChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recordingPublisher) all() []schema.PostChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.PostChange(nil), r.changes...)
}

func setupGateway(t *testing.T) (*Gateway, *db.DB, *recordingPublisher) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := database.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	pub := &recordingPublisher{}
	objects := objstore.New(afero.NewMemMapFs(), "", "http://localhost/storage")
	g := New(database, objects, Config{
		Publisher: pub,
		Logger:    log.New(io.Discard, "", 0),
	})
	return g, database, pub
}

func draftPost(id, userID string, at time.Time) schema.Post {
	p := schema.Post{
		ID:        id,
		Content:   "Study group " + id + "\nThursday 6pm",
		CreatedAt: at,
		Tag:       "Math",
	}
	if userID != "" {
		p.User = &schema.Author{ID: userID, Name: "Ana", Email: "ana@campus.edu", Major: "Physics"}
	}
	return p
}

func TestInsertPost_RoundTrip(t *testing.T) {
	g, _, pub := setupGateway(t)
	ctx := context.Background()

	draft := draftPost("p1", "u1", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	draft.Files = []schema.PostFile{{ID: "tmp", Type: schema.FileTypePDF, URL: "http://localhost/storage/posts/u1/1_notes.pdf"}}

	got, err := g.InsertPost(ctx, draft)
	if err != nil {
		t.Fatalf("InsertPost() failed: %v", err)
	}

	if got.ID != "p1" || got.Tag != "Math" || got.Likes != 0 || got.Comments != 0 {
		t.Errorf("unexpected post %+v", got)
	}
	if got.User == nil || got.User.Name != "Ana" || got.User.Major != "Physics" || got.User.Avatar != schema.DefaultAvatar {
		t.Errorf("author = %+v", got.User)
	}
	if got.User.Email != "ana@campus.edu" {
		t.Errorf("email not kept from draft: %+v", got.User)
	}
	if len(got.Files) != 1 || got.Files[0].ID != "f_p1" || got.Files[0].Type != schema.FileTypePDF || got.Files[0].Label != "1_notes.pdf" {
		t.Errorf("files = %+v", got.Files)
	}

	changes := pub.all()
	if len(changes) != 1 || changes[0].Type != schema.ChangePostCreated || changes[0].Post == nil {
		t.Errorf("changes = %+v", changes)
	}
}

func TestInsertPost_Invalid(t *testing.T) {
	g, _, pub := setupGateway(t)
	_, err := g.InsertPost(context.Background(), schema.Post{ID: "p1", Content: "   "})
	if !errors.Is(err, schema.ErrInvalid) {
		t.Fatalf("InsertPost() error = %v, want schema.ErrInvalid", err)
	}
	if len(pub.all()) != 0 {
		t.Error("failed insert published a change")
	}
}

func TestFetchPosts_WithComments(t *testing.T) {
	g, _, _ := setupGateway(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2", "p3"} {
		if _, err := g.InsertPost(ctx, draftPost(id, "u1", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("InsertPost(%s) failed: %v", id, err)
		}
	}
	for i := 0; i < 2; i++ {
		c := schema.Comment{
			ID:        schema.NewCommentID(),
			Text:      "count me in",
			User:      &schema.Author{ID: "u2", Name: "Bo"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := g.InsertComment(ctx, "p2", c); err != nil {
			t.Fatalf("InsertComment() failed: %v", err)
		}
	}

	posts, err := g.FetchPosts(ctx)
	if err != nil {
		t.Fatalf("FetchPosts() failed: %v", err)
	}
	if len(posts) != 3 || posts[0].ID != "p3" || posts[2].ID != "p1" {
		t.Fatalf("posts order = %v", ids(posts))
	}
	if posts[1].Comments != 2 || len(posts[1].CommentsList) != 2 {
		t.Errorf("p2 comments = %d/%d, want 2", posts[1].Comments, len(posts[1].CommentsList))
	}
	if posts[0].CommentsList == nil || posts[0].Comments != 0 {
		t.Errorf("p3 comments = %+v", posts[0].CommentsList)
	}
	if posts[1].CommentsList[0].User == nil || posts[1].CommentsList[0].User.Name != "Bo" {
		t.Errorf("comment author = %+v", posts[1].CommentsList[0].User)
	}
}

func TestFetchPostsByUser(t *testing.T) {
	g, _, _ := setupGateway(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := g.InsertPost(ctx, draftPost("p1", "u1", now)); err != nil {
		t.Fatalf("InsertPost() failed: %v", err)
	}
	if _, err := g.InsertPost(ctx, draftPost("p2", "u2", now)); err != nil {
		t.Fatalf("InsertPost() failed: %v", err)
	}

	posts, err := g.FetchPostsByUser(ctx, "u2")
	if err != nil {
		t.Fatalf("FetchPostsByUser() failed: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "p2" {
		t.Errorf("posts = %v", ids(posts))
	}
}

func TestToggleLike_Publishes(t *testing.T) {
	g, _, pub := setupGateway(t)
	ctx := context.Background()
	if _, err := g.InsertPost(ctx, draftPost("p1", "", time.Now())); err != nil {
		t.Fatalf("InsertPost() failed: %v", err)
	}

	state, err := g.ToggleLike(ctx, "p1", "u1")
	if err != nil {
		t.Fatalf("ToggleLike() failed: %v", err)
	}
	if state.Likes != 1 || len(state.LikedBy) != 1 {
		t.Errorf("state = %+v", state)
	}

	changes := pub.all()
	last := changes[len(changes)-1]
	if last.Type != schema.ChangePostUpdated || last.PostID != "p1" || len(last.LikedBy) != 1 {
		t.Errorf("last change = %+v", last)
	}

	if _, err := g.ToggleLike(ctx, "missing", "u1"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("ToggleLike(missing) error = %v, want db.ErrNotFound", err)
	}
}

func TestSetLike(t *testing.T) {
	g, _, _ := setupGateway(t)
	ctx := context.Background()
	if _, err := g.InsertPost(ctx, draftPost("p1", "", time.Now())); err != nil {
		t.Fatalf("InsertPost() failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		state, err := g.SetLike(ctx, "p1", "u1", true)
		if err != nil {
			t.Fatalf("SetLike() failed: %v", err)
		}
		if state.Likes != 1 {
			t.Errorf("Likes = %d after %d calls", state.Likes, i+1)
		}
	}
}

func TestInsertComment_ResolvesAuthorFromProfile(t *testing.T) {
	g, _, pub := setupGateway(t)
	ctx := context.Background()
	if _, err := g.InsertPost(ctx, draftPost("p1", "u1", time.Now())); err != nil {
		t.Fatalf("InsertPost() failed: %v", err)
	}

	name := "Bo Renamed"
	if _, err := g.UpsertProfile(ctx, schema.ProfileUpdate{ID: "u2", Username: &name}); err != nil {
		t.Fatalf("UpsertProfile() failed: %v", err)
	}

	c := schema.Comment{
		ID:          schema.NewCommentID(),
		Text:        "see attached",
		User:        &schema.Author{ID: "u2", Name: "Bo (stale)"},
		Attachments: []schema.PostFile{{ID: "a1", Type: schema.FileTypeImage, URL: "http://x/a.png"}},
	}
	got, err := g.InsertComment(ctx, "p1", c)
	if err != nil {
		t.Fatalf("InsertComment() failed: %v", err)
	}
	if got.User.Name != "Bo Renamed" {
		t.Errorf("author name = %q, want profile name", got.User.Name)
	}

	comments, err := g.FetchComments(ctx, "p1")
	if err != nil {
		t.Fatalf("FetchComments() failed: %v", err)
	}
	if len(comments) != 1 || len(comments[0].Attachments) != 1 || comments[0].Attachments[0].URL != "http://x/a.png" {
		t.Errorf("comments = %+v", comments)
	}

	changes := pub.all()
	if changes[len(changes)-1].Type != schema.ChangeCommentAdded {
		t.Errorf("last change = %+v", changes[len(changes)-1])
	}
}

func TestInsertComment_UnknownPost(t *testing.T) {
	g, _, _ := setupGateway(t)
	c := schema.Comment{ID: "c1", Text: "hello"}
	if _, err := g.InsertComment(context.Background(), "missing", c); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("InsertComment() error = %v, want db.ErrNotFound", err)
	}
}

func TestFetchComments_BadAttachments(t *testing.T) {
	g, database, _ := setupGateway(t)
	ctx := context.Background()
	if _, err := g.InsertPost(ctx, draftPost("p1", "", time.Now())); err != nil {
		t.Fatalf("InsertPost() failed: %v", err)
	}
	err := database.InsertComment(ctx, &db.CommentRow{ID: "c1", Content: "x", PostID: "p1", Attachments: "{broken"})
	if err != nil {
		t.Fatalf("InsertComment() failed: %v", err)
	}

	comments, err := g.FetchComments(ctx, "p1")
	if err != nil {
		t.Fatalf("FetchComments() failed: %v", err)
	}
	if len(comments) != 1 || comments[0].Attachments != nil {
		t.Errorf("comments = %+v, want one comment without attachments", comments)
	}
}

func TestUploadFile(t *testing.T) {
	g, _, _ := setupGateway(t)
	f, err := g.UploadFile(context.Background(), "u1", "Syllabus.pdf", strings.NewReader("pdf"))
	if err != nil {
		t.Fatalf("UploadFile() failed: %v", err)
	}
	if f.Type != schema.FileTypePDF || !strings.HasPrefix(f.URL, "http://localhost/storage/posts/u1/") || f.Label != "Syllabus.pdf" {
		t.Errorf("file = %+v", f)
	}

	noObjects := New(nil, nil, Config{Logger: log.New(io.Discard, "", 0)})
	if _, err := noObjects.UploadFile(context.Background(), "u1", "a.pdf", strings.NewReader("x")); err == nil {
		t.Error("UploadFile() without object storage should fail")
	}
}

func ids(posts []schema.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}
