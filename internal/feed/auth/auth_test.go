package auth

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/campuscircle/campusfeed/internal/feed/localstore"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

func setupAccounts(t *testing.T) (*Accounts, *localstore.Store) {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	a := New(store)
	a.cost = bcrypt.MinCost
	return a, store
}

func TestSignUp_Validation(t *testing.T) {
	tests := []struct {
		name     string
		user     schema.User
		password string
		errMsg   string
	}{
		{"missing name", schema.User{Email: "ana@campus.edu"}, "secret1", "name is required"},
		{"bad email", schema.User{Name: "Ana", Email: "not-an-email"}, "secret1", "invalid email"},
		{"short password", schema.User{Name: "Ana", Email: "ana@campus.edu"}, "123", "password must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := setupAccounts(t)
			_, err := a.SignUp(tt.user, tt.password)
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("SignUp() error = %v, want %q", err, tt.errMsg)
			}
		})
	}
}

func TestSignUp_SignsIn(t *testing.T) {
	a, store := setupAccounts(t)

	u, err := a.SignUp(schema.User{Name: " Ana ", Email: "Ana@Campus.edu", Major: "Math"}, "secret1")
	if err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}
	if u.ID == "" || u.Name != "Ana" || u.Email != "ana@campus.edu" {
		t.Errorf("user = %+v", u)
	}
	if u.PasswordHash != "" {
		t.Error("SignUp() leaked the password hash")
	}

	cur, ok := a.Current()
	if !ok || cur.ID != u.ID {
		t.Fatalf("Current() = %+v, %v", cur, ok)
	}

	var stored schema.User
	if !store.Get(UserKey, &stored) || stored.PasswordHash == "" || stored.PasswordHash == "secret1" {
		t.Errorf("stored hash = %q", stored.PasswordHash)
	}
}

func TestSignIn(t *testing.T) {
	a, _ := setupAccounts(t)
	if _, err := a.SignIn("ana@campus.edu", "secret1"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("SignIn() before sign-up = %v, want ErrNotRegistered", err)
	}

	if _, err := a.SignUp(schema.User{Name: "Ana", Email: "ana@campus.edu"}, "secret1"); err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}
	if err := a.SignOut(); err != nil {
		t.Fatalf("SignOut() failed: %v", err)
	}
	if _, ok := a.Current(); ok {
		t.Error("Current() should be empty after SignOut")
	}

	if _, err := a.SignIn("bo@campus.edu", "secret1"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("SignIn() other email = %v, want ErrNotRegistered", err)
	}
	if _, err := a.SignIn("ana@campus.edu", "wrong-pass"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("SignIn() wrong password = %v, want ErrInvalidPassword", err)
	}
	u, err := a.SignIn(" ANA@campus.edu ", "secret1")
	if err != nil {
		t.Fatalf("SignIn() failed: %v", err)
	}
	if cur, ok := a.Current(); !ok || cur.ID != u.ID {
		t.Errorf("Current() = %+v, %v", cur, ok)
	}
}

func TestUpdateProfile_MergesPartial(t *testing.T) {
	a, _ := setupAccounts(t)
	if _, err := a.UpdateProfile(ProfilePatch{}); !errors.Is(err, ErrNoUser) {
		t.Errorf("UpdateProfile() without account = %v, want ErrNoUser", err)
	}

	if _, err := a.SignUp(schema.User{Name: "Ana", Email: "ana@campus.edu", Major: "Math", Semester: "3"}, "secret1"); err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}

	name := "Ana Maria"
	avatar := "https://cdn/avatars/a.png"
	u, err := a.UpdateProfile(ProfilePatch{Name: &name, Avatar: &avatar})
	if err != nil {
		t.Fatalf("UpdateProfile() failed: %v", err)
	}
	if u.Name != name || u.Avatar != avatar || u.Major != "Math" || u.Semester != "3" {
		t.Errorf("user = %+v", u)
	}

	empty := " "
	if _, err := a.UpdateProfile(ProfilePatch{Name: &empty}); err == nil {
		t.Error("expected error for blank name")
	}

	// password still works after an edit
	if _, err := a.SignIn("ana@campus.edu", "secret1"); err != nil {
		t.Errorf("SignIn() after edit failed: %v", err)
	}
}

func TestLikerKey(t *testing.T) {
	a, _ := setupAccounts(t)

	guest, err := a.LikerKey()
	if err != nil {
		t.Fatalf("LikerKey() failed: %v", err)
	}
	if !strings.HasPrefix(guest, "guest_") {
		t.Errorf("guest key = %q", guest)
	}
	again, _ := a.LikerKey()
	if again != guest {
		t.Errorf("guest key changed: %q then %q", guest, again)
	}

	u, err := a.SignUp(schema.User{Name: "Ana", Email: "ana@campus.edu"}, "secret1")
	if err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}
	if key, _ := a.LikerKey(); key != u.ID {
		t.Errorf("signed-in key = %q, want %q", key, u.ID)
	}

	a.SignOut()
	if key, _ := a.LikerKey(); key != guest {
		t.Errorf("key after sign-out = %q, want guest %q", key, guest)
	}
}
