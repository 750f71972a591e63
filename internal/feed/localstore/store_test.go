package localstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/campuscircle/campusfeed/internal/feed/events"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return store
}

func TestOpen_EmptyDir(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") should fail")
	}
}

func TestStore_SetGetRemove(t *testing.T) {
	store := setupStore(t)

	type session struct {
		Email string `json:"email"`
	}

	if err := store.Set("session", session{Email: "ana@campus.edu"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	var got session
	if !store.Get("session", &got) {
		t.Fatal("Get() returned false for existing key")
	}
	if got.Email != "ana@campus.edu" {
		t.Errorf("Email = %q", got.Email)
	}

	if err := store.Remove("session"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if store.Get("session", &got) {
		t.Error("Get() returned true after Remove")
	}
	if err := store.Remove("session"); err != nil {
		t.Errorf("Remove() of missing key failed: %v", err)
	}
}

func TestStore_InvalidKey(t *testing.T) {
	store := setupStore(t)
	if err := store.Set("../escape", 1); err == nil {
		t.Error("Set() should reject path traversal")
	}
	var v int
	if store.Get("../escape", &v) {
		t.Error("Get() should reject path traversal")
	}
}

func TestStore_NoTempFilesLeft(t *testing.T) {
	store := setupStore(t)
	for i := 0; i < 5; i++ {
		if err := store.Set("counter", i); err != nil {
			t.Fatalf("Set() failed: %v", err)
		}
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestPostCache_LoadMissing(t *testing.T) {
	cache := NewPostCache(setupStore(t), nil)
	posts := cache.Load()
	if posts == nil || len(posts) != 0 {
		t.Errorf("Load() = %v, want empty non-nil list", posts)
	}
}

func TestPostCache_LoadCorrupt(t *testing.T) {
	store := setupStore(t)
	cache := NewPostCache(store, nil)

	if err := os.WriteFile(cache.Path(), []byte("{this is not json"), 0644); err != nil {
		t.Fatalf("failed to write corrupt cache: %v", err)
	}

	posts := cache.Load()
	if len(posts) != 0 {
		t.Errorf("Load() on corrupt cache = %v, want []", posts)
	}
}

func TestPostCache_SaveLoadPreservesOrder(t *testing.T) {
	cache := NewPostCache(setupStore(t), nil)
	now := time.Now().UTC().Truncate(time.Second)

	in := []schema.Post{
		{ID: "p2", Content: "second", CreatedAt: now, Tag: "Math"},
		{ID: "p1", Content: "first", CreatedAt: now.Add(-time.Hour), Tag: "Design"},
	}
	if err := cache.Save(in); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	out := cache.Load()
	if len(out) != 2 || out[0].ID != "p2" || out[1].ID != "p1" {
		t.Fatalf("Load() = %+v", out)
	}
	if !out[1].CreatedAt.Equal(in[1].CreatedAt) || out[1].Tag != "Design" {
		t.Errorf("fields not preserved: %+v", out[1])
	}
}

func TestPostCache_SavePublishes(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(2)
	defer cancel()

	cache := NewPostCache(setupStore(t), bus)
	if err := cache.Save([]schema.Post{{ID: "p1", Content: "x"}}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != events.TypeCacheWritten || ev.Count != 1 {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event after Save")
	}
}
