package sync

import (
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuscircle/campusfeed/internal/feed/db"
	"github.com/campuscircle/campusfeed/internal/feed/localstore"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// IntentsKey is the local store key holding the intent queue.
const IntentsKey = "intents"

// DefaultMaxAttempts bounds replays of a transiently failing intent.
const DefaultMaxAttempts = 5

// IntentKind names the mutation an intent replays.
type IntentKind string

const (
	IntentCreatePost    IntentKind = "create_post"
	IntentSetLike       IntentKind = "set_like"
	IntentAddComment    IntentKind = "add_comment"
	IntentUpdateProfile IntentKind = "update_profile"
)

// IntentStatus is the lifecycle state of an intent.
type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentConfirmed IntentStatus = "confirmed"
	IntentFailed    IntentStatus = "failed"
)

// Intent is a mutation applied locally but not yet confirmed by the remote.
//
// Like intents carry the desired membership (Liked) rather than a toggle, so
// replaying one twice is harmless.
type Intent struct {
	ID        string                `json:"id"`
	Kind      IntentKind            `json:"kind"`
	Status    IntentStatus          `json:"status"`
	PostID    string                `json:"post_id,omitempty"`
	Post      *schema.Post          `json:"post,omitempty"`
	LikerKey  string                `json:"liker_key,omitempty"`
	Liked     bool                  `json:"liked,omitempty"`
	Comment   *schema.Comment       `json:"comment,omitempty"`
	Profile   *schema.ProfileUpdate `json:"profile,omitempty"`
	Attempts  int                   `json:"attempts"`
	LastError string                `json:"last_error,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// IsPermanent reports whether a remote error will not go away on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, db.ErrNotFound) || errors.Is(err, schema.ErrInvalid)
}

// IntentQueue is the durable, ordered list of intents.
type IntentQueue struct {
	store *localstore.Store
	mu    gosync.Mutex
	now   func() time.Time
}

// NewIntentQueue returns the queue persisted in store.
func NewIntentQueue(store *localstore.Store) *IntentQueue {
	return &IntentQueue{store: store, now: time.Now}
}

func (q *IntentQueue) load() []Intent {
	var intents []Intent
	if !q.store.Get(IntentsKey, &intents) {
		return []Intent{}
	}
	return intents
}

func (q *IntentQueue) save(intents []Intent) error {
	if err := q.store.Set(IntentsKey, intents); err != nil {
		return fmt.Errorf("failed to save intents: %w", err)
	}
	return nil
}

// Enqueue appends a pending intent.
//
// A like intent replaces a pending like intent for the same post and key,
// keeping only the latest desired membership.
func (q *IntentQueue) Enqueue(in Intent) (Intent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	in.Status = IntentPending
	in.CreatedAt = now
	in.UpdatedAt = now

	intents := q.load()
	if in.Kind == IntentSetLike {
		for i := range intents {
			existing := &intents[i]
			if existing.Status == IntentPending && existing.Kind == IntentSetLike &&
				existing.PostID == in.PostID && existing.LikerKey == in.LikerKey {
				existing.Liked = in.Liked
				existing.UpdatedAt = now
				return *existing, q.save(intents)
			}
		}
	}

	intents = append(intents, in)
	return in, q.save(intents)
}

// PendingLike returns the pending like intent for postID and key, if any.
func (q *IntentQueue) PendingLike(postID, key string) (Intent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, in := range q.load() {
		if in.Status == IntentPending && in.Kind == IntentSetLike &&
			in.PostID == postID && in.LikerKey == key {
			return in, true
		}
	}
	return Intent{}, false
}

// DropPendingLike removes the pending like intents for postID and key.
func (q *IntentQueue) DropPendingLike(postID, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	intents := q.load()
	kept := intents[:0]
	for _, in := range intents {
		if in.Status == IntentPending && in.Kind == IntentSetLike &&
			in.PostID == postID && in.LikerKey == key {
			continue
		}
		kept = append(kept, in)
	}
	if len(kept) == len(intents) {
		return nil
	}
	return q.save(kept)
}

// List returns every intent in queue order.
func (q *IntentQueue) List() []Intent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// Pending returns the pending intents in queue order.
func (q *IntentQueue) Pending() []Intent {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Intent
	for _, in := range q.load() {
		if in.Status == IntentPending {
			out = append(out, in)
		}
	}
	return out
}

// Update applies fn to the intent with id and persists the queue.
func (q *IntentQueue) Update(id string, fn func(*Intent)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	intents := q.load()
	for i := range intents {
		if intents[i].ID == id {
			fn(&intents[i])
			intents[i].UpdatedAt = q.now()
			return q.save(intents)
		}
	}
	return fmt.Errorf("intent %s not found", id)
}

// Prune drops confirmed intents and returns how many were removed.
func (q *IntentQueue) Prune() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	intents := q.load()
	kept := intents[:0]
	for _, in := range intents {
		if in.Status != IntentConfirmed {
			kept = append(kept, in)
		}
	}
	removed := len(intents) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, q.save(kept)
}

// Counts returns the number of intents per status.
func (q *IntentQueue) Counts() map[IntentStatus]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := map[IntentStatus]int{}
	for _, in := range q.load() {
		counts[in.Status]++
	}
	return counts
}
