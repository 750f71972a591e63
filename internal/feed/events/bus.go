// Package events provides the typed change notification that replaces a
// global "posts changed" signal. Views subscribe to a Bus owned by the sync
// core and receive one Event per cache mutation.
package events

import (
	"sync"
	"time"
)

// Type identifies what changed.
type Type string

const (
	// TypeCacheWritten is published by the local cache after every write.
	TypeCacheWritten Type = "cache_written"
	// TypePostsReplaced follows a successful remote fetch or a reload.
	TypePostsReplaced Type = "posts_replaced"
	// TypePostCreated follows a create, remote or local.
	TypePostCreated Type = "post_created"
	// TypeLikeToggled follows a like toggle.
	TypeLikeToggled Type = "like_toggled"
	// TypeCommentAdded follows a comment append.
	TypeCommentAdded Type = "comment_added"
	// TypeAuthorsPatched follows a bulk author snapshot patch.
	TypeAuthorsPatched Type = "authors_patched"
	// TypeRemotePatched follows a push change applied from the realtime feed.
	TypeRemotePatched Type = "remote_patched"
	// TypeIntentsReplayed follows a replay pass that confirmed or failed intents.
	TypeIntentsReplayed Type = "intents_replayed"
)

// Event is a single change notification.
type Event struct {
	Type   Type      `json:"type"`
	PostID string    `json:"post_id,omitempty"`
	Count  int       `json:"count,omitempty"`
	At     time.Time `json:"at"`
}

// Bus fans events out to subscribers. A slow subscriber loses events rather
// than blocking the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber with the given buffer size.
// The returned cancel function unregisters it and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers ev to every subscriber without blocking.
// A nil bus is a valid no-op publisher.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
