package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/campuscircle/campusfeed/internal/config"
	"github.com/campuscircle/campusfeed/internal/feed/auth"
	"github.com/campuscircle/campusfeed/internal/feed/db"
	"github.com/campuscircle/campusfeed/internal/feed/gateway"
	"github.com/campuscircle/campusfeed/internal/feed/localstore"
	"github.com/campuscircle/campusfeed/internal/feed/objstore"
	"github.com/campuscircle/campusfeed/internal/feed/realtime"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
	feedsync "github.com/campuscircle/campusfeed/internal/feed/sync"
	"github.com/campuscircle/campusfeed/internal/logging"
)

// app is everything a command needs, opened from the effective config.
type app struct {
	cfg      *config.Config
	logs     *logging.Sink
	store    *localstore.Store
	accounts *auth.Accounts
	objects  *objstore.Store

	// database and gateway are nil when no remote is configured or the
	// remote could not be opened
	database *db.DB
	gateway  *gateway.Gateway

	syncer *feedsync.Syncer
}

func loadConfig() *config.Config {
	if dataDirFlag != "" {
		if err := os.Setenv(config.EnvPrefix+"_DATA_DIR", dataDirFlag); err != nil {
			fatalf("%v", err)
		}
	}
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		fatalf("%v", err)
	}
	return cfg
}

// openApp wires the feed from the config. A configured remote that cannot
// be opened does not stop the command: the syncer still gets a remote, one
// that fails every call, so changes are queued instead of lost.
func openApp() *app {
	cfg := loadConfig()
	a, err := newApp(cfg)
	if err != nil {
		fatalf("%v", err)
	}
	return a
}

func newApp(cfg *config.Config) (*app, error) {
	logs, err := logging.Open(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}

	store, err := localstore.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}

	objects, err := objstore.NewOS(cfg.StorageDir(), cfg.Storage.PublicURL)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logs:     logs,
		store:    store,
		accounts: auth.New(store),
		objects:  objects,
	}

	var remote feedsync.Remote
	if cfg.RemoteConfigured() {
		database, err := openRemote(cfg.Remote.DSN)
		if err != nil {
			logs.Logger("campusfeed").Printf("Warning: remote unavailable, working offline: %v", err)
			remote = unavailableRemote{err: err}
		} else {
			a.database = database
			a.gateway = gateway.New(database, objects, gateway.Config{Logger: logs.Logger("gateway")})
			if cfg.Feed.URL != "" {
				poster, err := realtime.NewPoster(cfg.Feed.URL, logs.Logger("feed"))
				if err != nil {
					logs.Logger("campusfeed").Printf("Warning: %v", err)
				} else {
					a.gateway.SetPublisher(poster)
				}
			}
			remote = a.gateway
		}
	}

	a.syncer = feedsync.New(store, feedsync.Config{
		Remote:      remote,
		Logger:      logs.Logger("sync"),
		MaxAttempts: cfg.Sync.MaxAttempts,
	})
	return a, nil
}

func openRemote(dsn string) (*db.DB, error) {
	database, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := database.InitSchema(); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

func (a *app) Close() {
	if a.database != nil {
		_ = a.database.Close()
	}
	_ = a.logs.Close()
}

// currentUser returns the signed-in user, or nil for guests.
func (a *app) currentUser() *schema.User {
	u, ok := a.accounts.Current()
	if !ok {
		return nil
	}
	return u
}

// findPost returns a post from the cache, falling back to the remote for
// posts the cache has not seen yet.
func (a *app) findPost(ctx context.Context, id string) (schema.Post, bool) {
	if p, ok := a.syncer.Post(id); ok {
		return p, true
	}
	if a.gateway == nil {
		return schema.Post{}, false
	}
	p, err := a.gateway.GetPost(ctx, id)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			a.logs.Logger("campusfeed").Printf("Warning: failed to fetch post %s: %v", id, err)
		}
		return schema.Post{}, false
	}
	return p, true
}

// remoteCounts returns the post and comment totals of the opened remote.
func (a *app) remoteCounts(ctx context.Context) (posts, comments int, err error) {
	if a.database == nil {
		return 0, 0, fmt.Errorf("remote is not open")
	}
	if posts, err = a.database.PostCount(ctx); err != nil {
		return 0, 0, err
	}
	if comments, err = a.database.CommentCount(ctx); err != nil {
		return 0, 0, err
	}
	return posts, comments, nil
}

// uploadFile stores a local file in the posts bucket, through the gateway
// when there is one.
func (a *app) uploadFile(ctx context.Context, userID, path string) (schema.PostFile, error) {
	// #nosec G304 - path from CLI flag
	f, err := os.Open(path)
	if err != nil {
		return schema.PostFile{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	if a.gateway != nil {
		return a.gateway.UploadFile(ctx, userID, name, f)
	}
	url, err := a.objects.Upload(ctx, userID, name, f)
	if err != nil {
		return schema.PostFile{}, err
	}
	pf := schema.FileFromURL(schema.NewPostID(), url)
	pf.Label = name
	return pf, nil
}

func (a *app) uploadAvatar(ctx context.Context, userID, path string) (string, error) {
	// #nosec G304 - path from CLI flag
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if a.gateway != nil {
		return a.gateway.UploadAvatar(ctx, userID, filepath.Base(path), f)
	}
	return a.objects.UploadAvatar(ctx, userID, filepath.Base(path), f)
}

// unavailableRemote stands in for a remote that failed to open. Every call
// fails with a transient error, so the syncer queues the change.
type unavailableRemote struct {
	err error
}

func (r unavailableRemote) fail() error {
	return fmt.Errorf("remote unavailable: %w", r.err)
}

func (r unavailableRemote) FetchPosts(context.Context) ([]schema.Post, error) {
	return nil, r.fail()
}

func (r unavailableRemote) InsertPost(context.Context, schema.Post) (schema.Post, error) {
	return schema.Post{}, r.fail()
}

func (r unavailableRemote) ToggleLike(context.Context, string, string) (schema.LikeState, error) {
	return schema.LikeState{}, r.fail()
}

func (r unavailableRemote) SetLike(context.Context, string, string, bool) (schema.LikeState, error) {
	return schema.LikeState{}, r.fail()
}

func (r unavailableRemote) InsertComment(context.Context, string, schema.Comment) (schema.Comment, error) {
	return schema.Comment{}, r.fail()
}

func (r unavailableRemote) UpsertProfile(context.Context, schema.ProfileUpdate) (*schema.Profile, error) {
	return nil, r.fail()
}
