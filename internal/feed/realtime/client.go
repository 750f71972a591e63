package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// ErrClosed reports that the server closed the feed.
var ErrClosed = errors.New("feed closed by server")

// Subscribe connects to a feed server and calls handle for every post change
// until ctx is canceled (returns nil) or the connection fails.
//
// Frames that are not post changes, or that fail to decode, are skipped.
func Subscribe(ctx context.Context, url string, handle func(schema.PostChange)) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 20)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return ErrClosed
			}
			return fmt.Errorf("failed to read from feed: %w", err)
		}

		change, ok := decodeChange(data)
		if ok {
			handle(change)
		}
	}
}

func decodeChange(data []byte) (schema.PostChange, bool) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return schema.PostChange{}, false
	}
	switch msg.Type {
	case MessageTypePostUpdate, MessageTypePostCreated, MessageTypeCommentAdded:
	default:
		return schema.PostChange{}, false
	}

	var change schema.PostChange
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		return schema.PostChange{}, false
	}
	if change.Type == "" {
		change.Type = schema.ChangeType(msg.Type)
	}
	if change.PostID == "" {
		return schema.PostChange{}, false
	}
	return change, true
}
