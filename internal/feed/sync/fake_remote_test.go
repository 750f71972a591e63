package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/campuscircle/campusfeed/internal/feed/db"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

var errOffline = errors.New("remote unreachable")

// fakeRemote is an in-memory Remote. Setting fail makes every call return
// it; failInsert only affects InsertPost.
type fakeRemote struct {
	mu         gosync.Mutex
	fail       error
	failInsert error
	posts      []schema.Post
	profiles   map[string]*schema.Profile
	calls      map[string]int
}

func newFakeRemote(posts ...schema.Post) *fakeRemote {
	r := &fakeRemote{
		profiles: make(map[string]*schema.Profile),
		calls:    make(map[string]int),
	}
	for _, p := range posts {
		p = p.Clone()
		if p.CommentsList == nil {
			p.CommentsList = []schema.Comment{}
		}
		p.Normalize()
		r.posts = append(r.posts, p)
	}
	return r
}

func (r *fakeRemote) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *fakeRemote) callCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *fakeRemote) post(id string) (schema.Post, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := schema.FindPost(r.posts, id)
	if i < 0 {
		return schema.Post{}, false
	}
	return r.posts[i].Clone(), true
}

func (r *fakeRemote) begin(name string) error {
	r.calls[name]++
	return r.fail
}

func (r *fakeRemote) FetchPosts(ctx context.Context) ([]schema.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin("FetchPosts"); err != nil {
		return nil, err
	}
	return schema.ClonePosts(r.posts), nil
}

func (r *fakeRemote) InsertPost(ctx context.Context, draft schema.Post) (schema.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin("InsertPost"); err != nil {
		return schema.Post{}, err
	}
	if r.failInsert != nil {
		return schema.Post{}, r.failInsert
	}
	if err := draft.Validate(); err != nil {
		return schema.Post{}, fmt.Errorf("%w: %v", schema.ErrInvalid, err)
	}
	if i := schema.FindPost(r.posts, draft.ID); i >= 0 {
		return r.posts[i].Clone(), nil
	}
	p := draft.Clone()
	p.SetDefaults(time.Now())
	p.CommentsList = []schema.Comment{}
	p.LikedBy = []string{}
	p.Normalize()
	r.posts = append([]schema.Post{p}, r.posts...)
	return p.Clone(), nil
}

func (r *fakeRemote) ToggleLike(ctx context.Context, postID, key string) (schema.LikeState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin("ToggleLike"); err != nil {
		return schema.LikeState{}, err
	}
	i := schema.FindPost(r.posts, postID)
	if i < 0 {
		return schema.LikeState{}, fmt.Errorf("post %s: %w", postID, db.ErrNotFound)
	}
	return r.posts[i].ToggleLike(key), nil
}

func (r *fakeRemote) SetLike(ctx context.Context, postID, key string, liked bool) (schema.LikeState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin("SetLike"); err != nil {
		return schema.LikeState{}, err
	}
	i := schema.FindPost(r.posts, postID)
	if i < 0 {
		return schema.LikeState{}, fmt.Errorf("post %s: %w", postID, db.ErrNotFound)
	}
	r.posts[i].SetLiked(key, liked)
	return r.posts[i].LikeState(), nil
}

func (r *fakeRemote) InsertComment(ctx context.Context, postID string, c schema.Comment) (schema.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin("InsertComment"); err != nil {
		return schema.Comment{}, err
	}
	i := schema.FindPost(r.posts, postID)
	if i < 0 {
		return schema.Comment{}, fmt.Errorf("post %s: %w", postID, db.ErrNotFound)
	}
	if c.User != nil {
		if p, ok := r.profiles[c.User.ID]; ok {
			c.User = p.Author()
		}
	}
	r.posts[i].AppendComment(c.Clone())
	return c, nil
}

func (r *fakeRemote) UpsertProfile(ctx context.Context, up schema.ProfileUpdate) (*schema.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin("UpsertProfile"); err != nil {
		return nil, err
	}
	if err := up.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInvalid, err)
	}
	p, ok := r.profiles[up.ID]
	if !ok {
		p = &schema.Profile{ID: up.ID, Username: up.ID}
		r.profiles[up.ID] = p
	}
	up.Apply(p)
	// authors come from the profile join on the next fetch
	patchAuthors(r.posts, up.ID, schema.PatchFromProfile(p))
	out := *p
	return &out, nil
}
