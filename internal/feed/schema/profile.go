package schema

import (
	"fmt"
	"time"
)

// Profile is a row of the remote profiles table.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Career    string    `json:"career,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	Term      string    `json:"term,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Author maps the remote profile onto the snapshot embedded in posts.
func (p *Profile) Author() *Author {
	avatar := p.Avatar
	if avatar == "" {
		avatar = DefaultAvatar
	}
	return &Author{
		ID:       p.ID,
		Name:     p.Username,
		Major:    p.Career,
		Semester: p.Term,
		Avatar:   avatar,
	}
}

// ProfileUpdate is a partial profile edit. Nil fields are left unchanged.
type ProfileUpdate struct {
	ID       string  `json:"id"`
	Username *string `json:"username,omitempty"`
	Career   *string `json:"career,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Term     *string `json:"term,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// Validate checks that the update targets a profile.
func (u *ProfileUpdate) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("profile id is required")
	}
	if u.Username != nil && *u.Username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	return nil
}

// Apply merges the update into p.
func (u *ProfileUpdate) Apply(p *Profile) {
	p.ID = u.ID
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.Career != nil {
		p.Career = *u.Career
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.Term != nil {
		p.Term = *u.Term
	}
	if u.Avatar != nil {
		p.Avatar = *u.Avatar
	}
}

// AuthorPatch returns the snapshot fields the update changes. A field set
// to "" clears the snapshot field.
func (u *ProfileUpdate) AuthorPatch() AuthorPatch {
	return AuthorPatch{
		Name:     u.Username,
		Major:    u.Career,
		Semester: u.Term,
		Avatar:   u.Avatar,
	}
}

// AuthorPatch carries the snapshot fields replaced by a bulk author patch.
// Nil fields are left as they are; an empty name is never applied.
type AuthorPatch struct {
	Name     *string
	Major    *string
	Semester *string
	Avatar   *string
}

// PatchFromProfile builds the author patch that follows a profile edit.
// Every field is set, so the snapshots end up equal to p.Author().
func PatchFromProfile(p *Profile) AuthorPatch {
	a := p.Author()
	return AuthorPatch{
		Name:     &a.Name,
		Major:    &a.Major,
		Semester: &a.Semester,
		Avatar:   &a.Avatar,
	}
}

// Apply replaces the snapshot fields of a.
// It reports whether any field changed.
func (ap AuthorPatch) Apply(a *Author) bool {
	changed := false
	set := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	if ap.Name != nil && *ap.Name != "" {
		set(&a.Name, ap.Name)
	}
	set(&a.Major, ap.Major)
	set(&a.Semester, ap.Semester)
	set(&a.Avatar, ap.Avatar)
	return changed
}

// IsEmpty reports whether the patch carries no field.
func (ap AuthorPatch) IsEmpty() bool {
	return ap.Name == nil && ap.Major == nil && ap.Semester == nil && ap.Avatar == nil
}

// User is the local account shape kept by the auth package.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Avatar       string `json:"avatar,omitempty"`
	Bio          string `json:"bio,omitempty"`
	Major        string `json:"major,omitempty"`
	Semester     string `json:"semester,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
}

// Author returns the snapshot written into new posts and comments.
func (u *User) Author() *Author {
	return &Author{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Major:    u.Major,
		Semester: u.Semester,
	}
}

// ProfileUpdate maps the local account onto the remote profile columns.
func (u *User) ProfileUpdate() ProfileUpdate {
	up := ProfileUpdate{ID: u.ID}
	if u.Name != "" {
		up.Username = &u.Name
	}
	if u.Major != "" {
		up.Career = &u.Major
	}
	if u.Semester != "" {
		up.Term = &u.Semester
	}
	if u.Bio != "" {
		up.Bio = &u.Bio
	}
	if u.Avatar != "" {
		up.Avatar = &u.Avatar
	}
	return up
}
