package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// Poster forwards post changes to a running feed server over HTTP. It
// satisfies gateway.Publisher for processes that mutate the remote without
// hosting the feed themselves.
type Poster struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

// NewPoster returns a poster for the server whose WebSocket endpoint is
// feedURL (ws://host:port/ws). http and https URLs are accepted too.
func NewPoster(feedURL string, logger *log.Logger) (*Poster, error) {
	endpoint, err := PublishURL(feedURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[feed] ", log.LstdFlags)
	}
	return &Poster{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 2 * time.Second},
		logger:   logger,
	}, nil
}

// PublishURL maps a feed URL onto the server's /publish endpoint.
func PublishURL(feedURL string) (string, error) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %q: %w", feedURL, err)
	}
	switch u.Scheme {
	case "ws", "http":
		u.Scheme = "http"
	case "wss", "https":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("invalid feed url %q: unsupported scheme", feedURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid feed url %q: missing host", feedURL)
	}
	u.Path = "/publish"
	u.RawQuery = ""
	return u.String(), nil
}

// Publish sends change. Failures are logged and dropped; the mutation
// itself already succeeded.
func (p *Poster) Publish(change schema.PostChange) {
	if err := p.Send(context.Background(), change); err != nil {
		p.logger.Printf("Warning: failed to publish %s for %s: %v", change.Type, change.PostID, err)
	}
}

// Send posts change and reports the outcome.
func (p *Poster) Send(ctx context.Context, change schema.PostChange) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("feed server returned %s", resp.Status)
	}
	return nil
}
