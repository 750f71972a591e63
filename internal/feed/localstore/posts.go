package localstore

import (
	"github.com/campuscircle/campusfeed/internal/feed/events"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// PostsKey is the single key holding the cached post list.
const PostsKey = "posts"

// PostCache reads and writes the full post list under PostsKey.
type PostCache struct {
	store *Store
	bus   *events.Bus
}

// NewPostCache returns a cache over store. Every Save publishes
// events.TypeCacheWritten on bus; bus may be nil.
func NewPostCache(store *Store, bus *events.Bus) *PostCache {
	return &PostCache{store: store, bus: bus}
}

// Path returns the file backing the cache.
func (c *PostCache) Path() string {
	return c.store.Path(PostsKey)
}

// Load returns the cached posts. A missing or corrupt cache yields an empty
// list, never an error.
func (c *PostCache) Load() []schema.Post {
	var posts []schema.Post
	if !c.store.Get(PostsKey, &posts) || posts == nil {
		return []schema.Post{}
	}
	return posts
}

// Save replaces the cached posts and notifies subscribers.
func (c *PostCache) Save(posts []schema.Post) error {
	if posts == nil {
		posts = []schema.Post{}
	}
	if err := c.store.Set(PostsKey, posts); err != nil {
		return err
	}
	c.bus.Publish(events.Event{Type: events.TypeCacheWritten, Count: len(posts)})
	return nil
}
