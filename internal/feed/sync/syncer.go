package sync

import (
	"context"
	"log"
	"os"
	"strings"
	gosync "sync"
	"time"

	"github.com/campuscircle/campusfeed/internal/feed/events"
	"github.com/campuscircle/campusfeed/internal/feed/localstore"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// Config holds optional collaborators of a Syncer.
type Config struct {
	// Remote is the gateway (nil = not configured, local cache only)
	Remote Remote
	// Bus receives change events (nil = a private bus)
	Bus *events.Bus
	// Logger defaults to stderr with a [sync] prefix
	Logger *log.Logger
	// MaxAttempts bounds replays of a transiently failing intent
	MaxAttempts int
}

// Syncer is the post synchronization core.
type Syncer struct {
	cache       *localstore.PostCache
	intents     *IntentQueue
	remote      Remote
	bus         *events.Bus
	logger      *log.Logger
	maxAttempts int
	now         func() time.Time

	mu    gosync.Mutex
	posts []schema.Post

	// serializes ReplayPending passes
	replayMu gosync.Mutex
}

// New creates a Syncer over the local store and loads the cached posts.
//
// Example:
//
//	store, err := localstore.Open(dataDir)
//	if err != nil {
//	    return err
//	}
//	s := sync.New(store, sync.Config{Remote: gw})
//	posts := s.FetchAll(ctx)
func New(store *localstore.Store, cfg Config) *Syncer {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	bus := cfg.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	s := &Syncer{
		cache:       localstore.NewPostCache(store, bus),
		intents:     NewIntentQueue(store),
		remote:      cfg.Remote,
		bus:         bus,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
	s.posts = s.cache.Load()
	return s
}

// RemoteConfigured reports whether a remote gateway is set.
func (s *Syncer) RemoteConfigured() bool {
	return s.remote != nil
}

// Intents returns the intent queue.
func (s *Syncer) Intents() *IntentQueue {
	return s.intents
}

// Subscribe registers for change events. The cancel function unregisters.
func (s *Syncer) Subscribe(buffer int) (<-chan events.Event, func()) {
	return s.bus.Subscribe(buffer)
}

// Posts returns a copy of the in-memory post list.
func (s *Syncer) Posts() []schema.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schema.ClonePosts(s.posts)
}

// Post returns a copy of one post.
func (s *Syncer) Post(id string) (schema.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := schema.FindPost(s.posts, id)
	if i < 0 {
		return schema.Post{}, false
	}
	return s.posts[i].Clone(), true
}

// Reload re-reads the cache after an external write and returns the number
// of posts loaded.
func (s *Syncer) Reload() int {
	s.mu.Lock()
	s.posts = s.cache.Load()
	n := len(s.posts)
	s.mu.Unlock()

	s.publish(events.TypePostsReplaced, "", n)
	return n
}

// FetchAll returns all posts.
//
// With no remote, or when the remote fails, the cached posts are returned
// unmodified. A successful remote fetch is reconciled with pending intents
// and overwrites the cache.
func (s *Syncer) FetchAll(ctx context.Context) []schema.Post {
	if s.remote == nil {
		return s.loadCache()
	}

	remote, err := s.remote.FetchPosts(ctx)
	if err != nil {
		s.logger.Printf("Warning: remote fetch failed, serving cache: %v", err)
		return s.loadCache()
	}

	s.mu.Lock()
	merged := Reconcile(remote, s.posts, s.intents.Pending())
	s.posts = merged
	if err := s.cache.Save(merged); err != nil {
		s.logger.Printf("Warning: failed to write cache: %v", err)
	}
	out := schema.ClonePosts(merged)
	s.mu.Unlock()

	s.publish(events.TypePostsReplaced, "", len(out))
	return out
}

// loadCache replaces the in-memory list with the cache and returns a copy.
func (s *Syncer) loadCache() []schema.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = s.cache.Load()
	return schema.ClonePosts(s.posts)
}

// Create publishes a draft.
//
// Defaults (id, timestamp, tag, counters) are filled in first. The remote
// insert is tried once; on failure the draft itself is prepended to the
// cache and queued for replay. Create returns nil only for an invalid draft
// or when the cache write also fails.
func (s *Syncer) Create(ctx context.Context, draft schema.Post) *schema.Post {
	post := draft.Clone()
	post.SetDefaults(s.now())
	if post.CommentsList == nil {
		post.CommentsList = []schema.Comment{}
	}
	if err := post.Validate(); err != nil {
		s.logger.Printf("Warning: rejected draft %s: %v", post.ID, err)
		return nil
	}

	if s.remote != nil {
		created, err := s.remote.InsertPost(ctx, post)
		if err == nil {
			if created.CommentsList == nil {
				created.CommentsList = []schema.Comment{}
			}
			if err := s.prepend(created); err != nil {
				s.logger.Printf("Warning: failed to write cache: %v", err)
			}
			s.publish(events.TypePostCreated, created.ID, 1)
			return &created
		}
		s.logger.Printf("Warning: remote create of %s failed, keeping it locally: %v", post.ID, err)
	}

	if err := s.prepend(post); err != nil {
		s.logger.Printf("Error: failed to store post %s locally: %v", post.ID, err)
		return nil
	}
	if s.remote != nil {
		snapshot := post.Clone()
		s.enqueue(Intent{Kind: IntentCreatePost, PostID: post.ID, Post: &snapshot})
	}
	s.publish(events.TypePostCreated, post.ID, 1)
	return &post
}

// prepend puts p at index 0 of the list, replacing an older copy with the
// same id, and writes the cache.
func (s *Syncer) prepend(p schema.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]schema.Post, 0, len(s.posts)+1)
	next = append(next, p.Clone())
	for _, existing := range s.posts {
		if existing.ID != p.ID {
			next = append(next, existing)
		}
	}
	if err := s.cache.Save(next); err != nil {
		return err
	}
	s.posts = next
	return nil
}

// ToggleLike flips likerKey's membership in a post's liker set and returns
// the new state, or nil if the post is unknown everywhere.
//
// The remote toggle is tried first. On failure the same flip is applied to
// the cache and the resulting membership is queued for replay. While such
// a membership is still queued the remote lags the cache, so the next
// toggle sets the opposite of the queued membership instead of flipping
// the remote, and the queued intent is dropped.
func (s *Syncer) ToggleLike(ctx context.Context, postID, likerKey string) *schema.LikeState {
	if postID == "" || likerKey == "" {
		return nil
	}

	if s.remote != nil {
		state, err := s.remoteToggle(ctx, postID, likerKey)
		if err == nil {
			s.mu.Lock()
			if i := schema.FindPost(s.posts, postID); i >= 0 {
				s.posts[i].ApplyLikeState(state)
				if err := s.cache.Save(s.posts); err != nil {
					s.logger.Printf("Warning: failed to write cache: %v", err)
				}
			}
			s.mu.Unlock()
			s.publish(events.TypeLikeToggled, postID, state.Likes)
			return &state
		}
		s.logger.Printf("Warning: remote like toggle on %s failed, applying locally: %v", postID, err)
	}

	s.mu.Lock()
	i := schema.FindPost(s.posts, postID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	state := s.posts[i].ToggleLike(likerKey)
	if err := s.cache.Save(s.posts); err != nil {
		s.logger.Printf("Warning: failed to write cache: %v", err)
	}
	s.mu.Unlock()

	if s.remote != nil {
		s.enqueue(Intent{
			Kind:     IntentSetLike,
			PostID:   postID,
			LikerKey: likerKey,
			Liked:    containsKey(state.LikedBy, likerKey),
		})
	}
	s.publish(events.TypeLikeToggled, postID, state.Likes)
	return &state
}

func (s *Syncer) remoteToggle(ctx context.Context, postID, likerKey string) (schema.LikeState, error) {
	// no replay may push the queued membership after we supersede it
	s.replayMu.Lock()
	defer s.replayMu.Unlock()

	pending, ok := s.intents.PendingLike(postID, likerKey)
	if !ok {
		return s.remote.ToggleLike(ctx, postID, likerKey)
	}
	state, err := s.remote.SetLike(ctx, postID, likerKey, !pending.Liked)
	if err != nil {
		return state, err
	}
	if err := s.intents.DropPendingLike(postID, likerKey); err != nil {
		s.logger.Printf("Warning: %v", err)
	}
	return state, nil
}

// AddComment appends a comment to a post and returns it.
//
// author is the commenter's snapshot, nil for anonymous comments. Blank
// text without attachments is ignored (nil). On remote failure a client-side
// comment is appended to the cached post, when there is one, and queued for
// replay. The comment is returned either way.
func (s *Syncer) AddComment(ctx context.Context, postID string, author *schema.Author, text string, attachments []schema.PostFile) *schema.Comment {
	text = strings.TrimSpace(text)
	if postID == "" || (text == "" && len(attachments) == 0) {
		return nil
	}

	c := schema.Comment{
		ID:          schema.NewCommentID(),
		Text:        text,
		CreatedAt:   s.now(),
		Attachments: append([]schema.PostFile(nil), attachments...),
	}
	if author != nil {
		a := *author
		c.User = &a
	}

	if s.remote != nil {
		stored, err := s.remote.InsertComment(ctx, postID, c)
		if err == nil {
			s.appendComment(postID, stored)
			s.publish(events.TypeCommentAdded, postID, 1)
			return &stored
		}
		s.logger.Printf("Warning: remote comment on %s failed, appending locally: %v", postID, err)
	}

	if !s.appendComment(postID, c) {
		s.logger.Printf("Warning: post %s is not cached, comment kept for replay only", postID)
	}
	if s.remote != nil {
		snapshot := c.Clone()
		s.enqueue(Intent{Kind: IntentAddComment, PostID: postID, Comment: &snapshot})
	}
	s.publish(events.TypeCommentAdded, postID, 1)
	return &c
}

// appendComment adds c to the cached post and reports whether the post was
// found.
func (s *Syncer) appendComment(postID string, c schema.Comment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := schema.FindPost(s.posts, postID)
	if i < 0 {
		return false
	}
	if s.posts[i].AppendComment(c.Clone()) {
		if err := s.cache.Save(s.posts); err != nil {
			s.logger.Printf("Warning: failed to write cache: %v", err)
		}
	}
	return true
}

// UpdateAuthorSnapshot patches the author snapshot of every cached post and
// comment written by userID. Posts by other authors are untouched. It
// returns the number of posts changed.
func (s *Syncer) UpdateAuthorSnapshot(userID string, patch schema.AuthorPatch) int {
	s.mu.Lock()
	changed := patchAuthors(s.posts, userID, patch)
	if changed > 0 {
		if err := s.cache.Save(s.posts); err != nil {
			s.logger.Printf("Warning: failed to write cache: %v", err)
		}
	}
	s.mu.Unlock()

	if changed > 0 {
		s.publish(events.TypeAuthorsPatched, "", changed)
	}
	return changed
}

// UpdateProfile applies a profile edit and always patches the author
// snapshots that follow from it. It returns the number of posts patched.
//
// When the remote upsert fails the edit is queued for replay and the
// snapshots are patched from the update itself.
func (s *Syncer) UpdateProfile(ctx context.Context, up schema.ProfileUpdate) int {
	if err := up.Validate(); err != nil {
		s.logger.Printf("Warning: rejected profile update: %v", err)
		return 0
	}

	patch := up.AuthorPatch()
	if s.remote != nil {
		profile, err := s.remote.UpsertProfile(ctx, up)
		if err == nil {
			patch = schema.PatchFromProfile(profile)
		} else {
			s.logger.Printf("Warning: remote profile update of %s failed: %v", up.ID, err)
			snapshot := up
			s.enqueue(Intent{Kind: IntentUpdateProfile, Profile: &snapshot})
		}
	}

	return s.UpdateAuthorSnapshot(up.ID, patch)
}

// ApplyRemoteChange patches the in-memory list with a push change and
// reports whether anything changed. Changes for posts that are not loaded
// are ignored, except for created posts which are prepended.
func (s *Syncer) ApplyRemoteChange(change schema.PostChange) bool {
	s.mu.Lock()
	changed := false
	i := schema.FindPost(s.posts, change.PostID)

	switch change.Type {
	case schema.ChangePostUpdated:
		if i >= 0 {
			before := s.posts[i].LikeState()
			s.posts[i].ApplyLikeState(schema.LikeState{LikedBy: change.LikedBy})
			for _, in := range s.intents.Pending() {
				if in.Kind == IntentSetLike && in.PostID == change.PostID {
					s.posts, _ = applyIntent(s.posts, nil, in)
				}
			}
			changed = !sameKeys(before.LikedBy, s.posts[i].LikedBy)
		}

	case schema.ChangePostCreated:
		if i < 0 && change.Post != nil {
			p := change.Post.Clone()
			if p.CommentsList == nil {
				p.CommentsList = []schema.Comment{}
			}
			p.Normalize()
			s.posts = append([]schema.Post{p}, s.posts...)
			changed = true
		}

	case schema.ChangeCommentAdded:
		if i >= 0 && change.Comment != nil {
			changed = s.posts[i].AppendComment(change.Comment.Clone())
		}
	}

	if changed {
		if err := s.cache.Save(s.posts); err != nil {
			s.logger.Printf("Warning: failed to write cache: %v", err)
		}
	}
	s.mu.Unlock()

	if changed {
		s.publish(events.TypeRemotePatched, change.PostID, 1)
	}
	return changed
}

func (s *Syncer) enqueue(in Intent) {
	if _, err := s.intents.Enqueue(in); err != nil {
		s.logger.Printf("Warning: failed to queue %s intent for %s: %v", in.Kind, in.PostID, err)
	}
}

func (s *Syncer) publish(typ events.Type, postID string, count int) {
	s.bus.Publish(events.Event{Type: typ, PostID: postID, Count: count, At: s.now()})
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, k := range a {
		set[k] = struct{}{}
	}
	for _, k := range b {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}
