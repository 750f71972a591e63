// Package daemon runs the background side of the sync core.
//
// The daemon:
//  1. Watches the local store directory and reloads the post cache after
//     another process (usually the CLI) rewrites it
//  2. Replays pending intents against the remote on a ticker
//  3. Follows the realtime feed and patches loaded posts with pushed changes
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campuscircle/campusfeed/internal/feed/localstore"
	"github.com/campuscircle/campusfeed/internal/feed/realtime"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
	feedsync "github.com/campuscircle/campusfeed/internal/feed/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// ReplayInterval is how often pending intents are replayed
	ReplayInterval time.Duration

	// DebounceInterval is how long to wait before reloading after a cache
	// write. This batches rapid updates together
	DebounceInterval time.Duration

	// FeedURL is the realtime feed to follow (empty = no subscription)
	FeedURL string

	// ReconnectDelay is the pause before redialing a dropped feed
	ReconnectDelay time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReplayInterval:   30 * time.Second,
		DebounceInterval: 100 * time.Millisecond,
		ReconnectDelay:   2 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Stats counts what the daemon has done since it started.
type Stats struct {
	Reloads       int64 `json:"reloads"`
	Replays       int64 `json:"replays"`
	Confirmed     int64 `json:"confirmed"`
	RemoteChanges int64 `json:"remote_changes"`
}

// Daemon keeps a Syncer current while it runs.
type Daemon struct {
	syncer *feedsync.Syncer
	dir    string
	config *Config

	watcher       *FileWatcher
	changeQueue   map[string]time.Time // key -> last event
	changeQueueMu sync.Mutex

	reloads       atomic.Int64
	replays       atomic.Int64
	confirmed     atomic.Int64
	remoteChanges atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon for syncer over the store's directory.
func New(syncer *feedsync.Syncer, store *localstore.Store) (*Daemon, error) {
	return NewWithConfig(syncer, store, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration. Zero intervals
// take their default.
func NewWithConfig(syncer *feedsync.Syncer, store *localstore.Store, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.ReplayInterval <= 0 {
		config.ReplayInterval = defaults.ReplayInterval
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = defaults.DebounceInterval
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = defaults.ReconnectDelay
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		syncer:      syncer,
		dir:         store.Dir(),
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start runs the daemon until ctx is cancelled.
//
// It first fetches the posts and replays whatever is pending, then starts
// watching the store directory, the replay ticker, and the feed
// subscription when a feed URL is configured.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	posts := d.syncer.FetchAll(ctx)
	d.config.Logger.Printf("Loaded %d posts", len(posts))
	d.replay()

	if err := d.watcher.Start(d.dir); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.dir)

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.processChangeQueue()
	go d.replayLoop()

	if d.config.FeedURL != "" {
		d.wg.Add(1)
		go d.followFeed()
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Stop(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// Stats returns a snapshot of the daemon counters.
func (d *Daemon) Stats() Stats {
	return Stats{
		Reloads:       d.reloads.Load(),
		Replays:       d.replays.Load(),
		Confirmed:     d.confirmed.Load(),
		RemoteChanges: d.remoteChanges.Load(),
	}
}

func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			// intents are replayed on the ticker; reacting to their writes
			// would feed the replay its own output
			if event.Key != localstore.PostsKey {
				continue
			}
			d.queueChange(event.Key)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) queueChange(key string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[key] = time.Now()
}

func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges reloads keys that have been quiet for a full
// debounce interval.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	now := time.Now()
	reload := false
	for key, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		if key == localstore.PostsKey {
			reload = true
		}
		delete(d.changeQueue, key)
	}
	d.changeQueueMu.Unlock()

	if reload {
		n := d.syncer.Reload()
		d.reloads.Add(1)
		d.config.Logger.Printf("Reloaded %d posts", n)
	}
}

func (d *Daemon) replayLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ReplayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.replay()
		}
	}
}

func (d *Daemon) replay() {
	if !d.syncer.RemoteConfigured() {
		return
	}
	res := d.syncer.ReplayPending(d.ctx)
	d.replays.Add(1)
	d.confirmed.Add(int64(res.Confirmed))
	if res.Attempted > 0 {
		d.config.Logger.Printf("Replayed %d intents: %d confirmed, %d failed, %d pending",
			res.Attempted, res.Confirmed, res.Failed, res.Pending)
	}
}

// followFeed keeps a subscription to the realtime feed open, redialing after
// ReconnectDelay when it drops.
func (d *Daemon) followFeed() {
	defer d.wg.Done()

	for {
		err := realtime.Subscribe(d.ctx, d.config.FeedURL, d.applyChange)
		if d.ctx.Err() != nil {
			return
		}
		if errors.Is(err, realtime.ErrClosed) {
			d.config.Logger.Printf("Feed closed by server, reconnecting")
		} else if err != nil {
			d.config.Logger.Printf("Feed error: %v", err)
		}

		select {
		case <-d.ctx.Done():
			return
		case <-time.After(d.config.ReconnectDelay):
		}
	}
}

func (d *Daemon) applyChange(change schema.PostChange) {
	if d.syncer.ApplyRemoteChange(change) {
		d.remoteChanges.Add(1)
	}
}
