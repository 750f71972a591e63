package daemon

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/campuscircle/campusfeed/internal/feed/localstore"
)

// TestNewFileWatcher verifies that creating a new FileWatcher succeeds.
func TestNewFileWatcher(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
}

// TestFileWatcher_StartStop verifies that the watcher can start and stop cleanly.
func TestFileWatcher_StartStop(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if err := fw.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if err := fw.Start(dir); err == nil {
		t.Error("Second Start() should fail when watcher is already running")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
}

// TestFileWatcher_StoreWrite verifies that an atomic store write surfaces as
// a write of the key.
func TestFileWatcher_StoreWrite(t *testing.T) {
	store, err := localstore.Open(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(store.Dir()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := store.Set(localstore.PostsKey, []string{}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-fw.Events():
			if event.Key != localstore.PostsKey {
				t.Fatalf("unexpected event %+v", event)
			}
			if event.Op == OpWrite {
				return
			}
		case <-deadline:
			t.Fatal("Timeout waiting for posts write event")
		}
	}
}

func TestFileWatcher_ConvertEvent(t *testing.T) {
	fw := &FileWatcher{dir: "/data"}

	tests := []struct {
		name    string
		event   fsnotify.Event
		wantOK  bool
		wantKey string
		wantOp  EventOp
	}{
		{"rename into place", fsnotify.Event{Name: "/data/posts.json", Op: fsnotify.Create}, true, "posts", OpWrite},
		{"in-place write", fsnotify.Event{Name: "/data/intents.json", Op: fsnotify.Write}, true, "intents", OpWrite},
		{"removed", fsnotify.Event{Name: "/data/session.json", Op: fsnotify.Remove}, true, "session", OpDelete},
		{"temp file", fsnotify.Event{Name: "/data/.posts.123.tmp", Op: fsnotify.Create}, false, "", 0},
		{"hidden json", fsnotify.Event{Name: "/data/.lock.json", Op: fsnotify.Create}, false, "", 0},
		{"lock file", fsnotify.Event{Name: "/data/.lock", Op: fsnotify.Write}, false, "", 0},
		{"other dir", fsnotify.Event{Name: "/elsewhere/posts.json", Op: fsnotify.Create}, false, "", 0},
		{"chmod", fsnotify.Event{Name: "/data/posts.json", Op: fsnotify.Chmod}, false, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := fw.convertEvent(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("convertEvent() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (got.Key != tt.wantKey || got.Op != tt.wantOp) {
				t.Errorf("convertEvent() = %+v, want key %q op %v", got, tt.wantKey, tt.wantOp)
			}
		})
	}
}

func TestEventOp_String(t *testing.T) {
	if OpWrite.String() != "write" || OpDelete.String() != "delete" || EventOp(9).String() != "unknown" {
		t.Error("unexpected EventOp names")
	}
}
