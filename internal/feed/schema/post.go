package schema

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTag is applied to posts created without a category.
	DefaultTag = "General"

	// DefaultAvatar is shown for authors that never uploaded an avatar.
	DefaultAvatar = "/assets/defaultuser.png"
)

// ErrInvalid marks a post, comment or profile rejected by validation.
var ErrInvalid = errors.New("invalid input")

// FileType is the coarse kind of an attachment.
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeImage FileType = "img"
	FileTypeDoc   FileType = "doc"
	FileTypeOther FileType = "other"
)

// PostFile is an attachment carried by a post or a comment.
// URL is either a public object-store URL or a transient local reference.
type PostFile struct {
	ID    string   `json:"id"`
	Type  FileType `json:"type"`
	URL   string   `json:"url"`
	Label string   `json:"label,omitempty"`
}

// Author is the denormalized author snapshot stored inside posts and comments.
type Author struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Major    string `json:"major,omitempty"`
	Semester string `json:"semester,omitempty"`
}

// Post is a feed entry as seen by the view layer and stored in the local cache.
type Post struct {
	ID           string     `json:"id"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"createdAt"`
	User         *Author    `json:"user,omitempty"`
	Files        []PostFile `json:"files,omitempty"`
	Likes        int        `json:"likes"`
	Comments     int        `json:"comments"`
	CommentsList []Comment  `json:"commentsList,omitempty"`
	LikedBy      []string   `json:"likedBy,omitempty"`
	Tag          string     `json:"tag,omitempty"`
}

// LikeState is the result of a like toggle.
type LikeState struct {
	Likes   int      `json:"likes"`
	LikedBy []string `json:"likedBy"`
}

// NewPostID returns a fresh post identifier.
func NewPostID() string {
	return uuid.NewString()
}

// Title returns the first non-empty line of the content.
func (p *Post) Title() string {
	for _, line := range strings.Split(p.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// AuthorID returns the snapshot author id or "" for anonymous posts.
func (p *Post) AuthorID() string {
	if p.User == nil {
		return ""
	}
	return p.User.ID
}

// Validate checks the fields a draft must carry before it is published.
func (p *Post) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(p.Content) == "" && len(p.Files) == 0 {
		return fmt.Errorf("content or attachment is required")
	}
	for _, f := range p.Files {
		if f.URL == "" {
			return fmt.Errorf("attachment %q has no url", f.ID)
		}
	}
	return nil
}

// SetDefaults fills optional fields and restores the counters.
func (p *Post) SetDefaults(now time.Time) {
	if p.ID == "" {
		p.ID = NewPostID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.Tag == "" {
		p.Tag = DefaultTag
	}
	p.Normalize()
}

// Normalize deduplicates LikedBy and recomputes Likes and Comments.
func (p *Post) Normalize() {
	p.LikedBy = dedupe(p.LikedBy)
	p.Likes = len(p.LikedBy)
	p.Comments = len(p.CommentsList)
}

// HasLiker reports whether key is in LikedBy.
func (p *Post) HasLiker(key string) bool {
	for _, k := range p.LikedBy {
		if k == key {
			return true
		}
	}
	return false
}

// SetLiked sets the membership of key and recomputes the count.
// It reports whether anything changed.
func (p *Post) SetLiked(key string, liked bool) bool {
	if p.HasLiker(key) == liked {
		return false
	}
	if liked {
		p.LikedBy = append(append([]string(nil), p.LikedBy...), key)
	} else {
		next := make([]string, 0, len(p.LikedBy))
		for _, k := range p.LikedBy {
			if k != key {
				next = append(next, k)
			}
		}
		p.LikedBy = next
	}
	p.Normalize()
	return true
}

// ToggleLike flips the membership of key and returns the new state.
func (p *Post) ToggleLike(key string) LikeState {
	p.SetLiked(key, !p.HasLiker(key))
	return p.LikeState()
}

// LikeState returns a copy of the like fields.
func (p *Post) LikeState() LikeState {
	likedBy := append([]string{}, p.LikedBy...)
	return LikeState{Likes: len(likedBy), LikedBy: likedBy}
}

// ApplyLikeState overwrites the like fields with a remote result.
func (p *Post) ApplyLikeState(s LikeState) {
	p.LikedBy = append([]string(nil), s.LikedBy...)
	p.Normalize()
}

// AppendComment appends c unless a comment with the same id is present.
func (p *Post) AppendComment(c Comment) bool {
	for _, existing := range p.CommentsList {
		if existing.ID == c.ID {
			return false
		}
	}
	p.CommentsList = append(append([]Comment(nil), p.CommentsList...), c)
	p.Normalize()
	return true
}

// Clone returns a deep copy of p.
func (p Post) Clone() Post {
	out := p
	if p.User != nil {
		u := *p.User
		out.User = &u
	}
	out.Files = append([]PostFile(nil), p.Files...)
	out.LikedBy = append([]string(nil), p.LikedBy...)
	if p.CommentsList != nil {
		out.CommentsList = make([]Comment, len(p.CommentsList))
		for i, c := range p.CommentsList {
			out.CommentsList[i] = c.Clone()
		}
	}
	return out
}

// ClonePosts deep-copies a post list.
func ClonePosts(posts []Post) []Post {
	out := make([]Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}

// FindPost returns the index of the post with id, or -1.
func FindPost(posts []Post, id string) int {
	for i := range posts {
		if posts[i].ID == id {
			return i
		}
	}
	return -1
}

var fileTypesByExt = map[string]FileType{
	".pdf":  FileTypePDF,
	".png":  FileTypeImage,
	".jpg":  FileTypeImage,
	".jpeg": FileTypeImage,
	".gif":  FileTypeImage,
	".webp": FileTypeImage,
	".svg":  FileTypeImage,
	".doc":  FileTypeDoc,
	".docx": FileTypeDoc,
	".odt":  FileTypeDoc,
	".txt":  FileTypeDoc,
	".md":   FileTypeDoc,
}

// ClassifyFile derives the attachment type from the URL extension.
func ClassifyFile(url string) FileType {
	clean := url
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if t, ok := fileTypesByExt[strings.ToLower(path.Ext(clean))]; ok {
		return t
	}
	return FileTypeOther
}

// FileFromURL builds the attachment stored in a post row's file_url column.
func FileFromURL(postID, url string) PostFile {
	label := url
	if i := strings.LastIndex(url, "/"); i >= 0 {
		label = url[i+1:]
	}
	return PostFile{
		ID:    "f_" + postID,
		Type:  ClassifyFile(url),
		URL:   url,
		Label: label,
	}
}

func dedupe(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
