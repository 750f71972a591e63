// Package auth keeps the local account: one registered user per data
// directory, a session naming the signed-in email, and a guest liker key
// for anonymous likes.
package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuscircle/campusfeed/internal/feed/localstore"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// Store keys.
const (
	UserKey    = "user"
	SessionKey = "session"
	GuestKey   = "guest_id"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	// ErrNotRegistered means no account exists for the email.
	ErrNotRegistered = errors.New("invalid email or user not registered")
	// ErrInvalidPassword means the password does not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrNoUser means no account has been registered yet.
	ErrNoUser = errors.New("no local account")
)

// Session records who is signed in.
type Session struct {
	Email      string    `json:"email"`
	SignedInAt time.Time `json:"signed_in_at"`
}

// ProfilePatch is a partial edit of the local account. Nil fields are left
// unchanged.
type ProfilePatch struct {
	Name     *string
	Avatar   *string
	Bio      *string
	Major    *string
	Semester *string
}

// Accounts manages the local account in a store.
type Accounts struct {
	store *localstore.Store
	cost  int
	now   func() time.Time
}

// New returns the accounts kept in store.
func New(store *localstore.Store) *Accounts {
	return &Accounts{store: store, cost: bcrypt.DefaultCost, now: time.Now}
}

// SignUp registers u with password, replacing any previous local account,
// and signs it in. A missing id is generated.
func (a *Accounts) SignUp(u schema.User, password string) (*schema.User, error) {
	u.Email = normalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return nil, fmt.Errorf("invalid email %q", u.Email)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	if err := a.store.Set(UserKey, u); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	if err := a.setSession(u.Email); err != nil {
		return nil, err
	}
	return public(u), nil
}

// SignIn starts a session for the registered email.
func (a *Accounts) SignIn(email, password string) (*schema.User, error) {
	email = normalizeEmail(email)
	u, ok := a.user()
	if !ok || u.Email != email {
		return nil, ErrNotRegistered
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}
	if err := a.setSession(u.Email); err != nil {
		return nil, err
	}
	return public(u), nil
}

// SignOut ends the session. The account is kept.
func (a *Accounts) SignOut() error {
	if err := a.store.Remove(SessionKey); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// Current returns the signed-in user, or false when nobody is signed in or
// the session does not match the stored account.
func (a *Accounts) Current() (*schema.User, bool) {
	var s Session
	if !a.store.Get(SessionKey, &s) || s.Email == "" {
		return nil, false
	}
	u, ok := a.user()
	if !ok || u.Email != s.Email {
		return nil, false
	}
	return public(u), true
}

// UpdateProfile merges patch into the stored account and returns it.
func (a *Accounts) UpdateProfile(patch ProfilePatch) (*schema.User, error) {
	u, ok := a.user()
	if !ok {
		return nil, ErrNoUser
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("name cannot be empty")
		}
		u.Name = name
	}
	if patch.Avatar != nil {
		u.Avatar = *patch.Avatar
	}
	if patch.Bio != nil {
		u.Bio = *patch.Bio
	}
	if patch.Major != nil {
		u.Major = *patch.Major
	}
	if patch.Semester != nil {
		u.Semester = *patch.Semester
	}

	if err := a.store.Set(UserKey, u); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	return public(u), nil
}

// LikerKey returns the key likes are recorded under: the signed-in user's
// id, or a guest key generated once per data directory.
func (a *Accounts) LikerKey() (string, error) {
	if u, ok := a.Current(); ok {
		return u.ID, nil
	}

	var key string
	if a.store.Get(GuestKey, &key) && key != "" {
		return key, nil
	}
	key = "guest_" + uuid.NewString()
	if err := a.store.Set(GuestKey, key); err != nil {
		return "", fmt.Errorf("failed to save guest key: %w", err)
	}
	return key, nil
}

func (a *Accounts) user() (schema.User, bool) {
	var u schema.User
	if !a.store.Get(UserKey, &u) || u.ID == "" {
		return schema.User{}, false
	}
	return u, true
}

func (a *Accounts) setSession(email string) error {
	if err := a.store.Set(SessionKey, Session{Email: email, SignedInAt: a.now().UTC()}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// public strips the password hash.
func public(u schema.User) *schema.User {
	u.PasswordHash = ""
	return &u
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
