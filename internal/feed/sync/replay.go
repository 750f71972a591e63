package sync

import (
	"context"
	"fmt"

	"github.com/campuscircle/campusfeed/internal/feed/events"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// ReplayResult summarizes one replay pass.
type ReplayResult struct {
	Attempted int `json:"attempted"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// ReplayPending retries pending intents against the remote in queue order.
//
// Confirmed intents are pruned from the queue. Permanent errors mark an
// intent failed at once; transient errors leave it pending until it has
// been tried MaxAttempts times. Likes and comments on a post whose create is
// still pending are held back until the create is confirmed. When anything
// was confirmed the posts are refetched so the cache carries remote truth.
//
// Only one pass runs at a time. With no remote configured it does nothing.
func (s *Syncer) ReplayPending(ctx context.Context) ReplayResult {
	var res ReplayResult
	if s.remote == nil {
		return res
	}

	s.replayMu.Lock()
	defer s.replayMu.Unlock()

	blocked := make(map[string]bool)
	for _, in := range s.intents.Pending() {
		if ctx.Err() != nil {
			break
		}
		if (in.Kind == IntentSetLike || in.Kind == IntentAddComment) && blocked[in.PostID] {
			res.Pending++
			continue
		}

		res.Attempted++
		err := s.replayOne(ctx, in)

		status := IntentConfirmed
		if err != nil {
			status = IntentPending
			if IsPermanent(err) || in.Attempts+1 >= s.maxAttempts {
				status = IntentFailed
			}
			s.logger.Printf("Warning: replay of %s intent %s failed (%s): %v", in.Kind, in.ID, status, err)
		}

		if uerr := s.intents.Update(in.ID, func(stored *Intent) {
			stored.Attempts++
			stored.Status = status
			if err != nil {
				stored.LastError = err.Error()
			} else {
				stored.LastError = ""
			}
		}); uerr != nil {
			s.logger.Printf("Warning: %v", uerr)
		}

		switch status {
		case IntentConfirmed:
			res.Confirmed++
		case IntentFailed:
			res.Failed++
		default:
			res.Pending++
		}
		if in.Kind == IntentCreatePost && status != IntentConfirmed {
			blocked[in.PostID] = true
		}
	}

	if _, err := s.intents.Prune(); err != nil {
		s.logger.Printf("Warning: %v", err)
	}
	if res.Confirmed > 0 {
		s.FetchAll(ctx)
	}
	if res.Attempted > 0 {
		s.publish(events.TypeIntentsReplayed, "", res.Confirmed)
	}
	return res
}

func (s *Syncer) replayOne(ctx context.Context, in Intent) error {
	switch in.Kind {
	case IntentCreatePost:
		if in.Post == nil {
			return fmt.Errorf("%w: create intent without post", schema.ErrInvalid)
		}
		_, err := s.remote.InsertPost(ctx, *in.Post)
		return err

	case IntentSetLike:
		_, err := s.remote.SetLike(ctx, in.PostID, in.LikerKey, in.Liked)
		return err

	case IntentAddComment:
		if in.Comment == nil {
			return fmt.Errorf("%w: comment intent without comment", schema.ErrInvalid)
		}
		_, err := s.remote.InsertComment(ctx, in.PostID, *in.Comment)
		return err

	case IntentUpdateProfile:
		if in.Profile == nil {
			return fmt.Errorf("%w: profile intent without update", schema.ErrInvalid)
		}
		_, err := s.remote.UpsertProfile(ctx, *in.Profile)
		return err
	}
	return fmt.Errorf("%w: unknown intent kind %q", schema.ErrInvalid, in.Kind)
}
