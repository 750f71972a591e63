package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Comment is owned by its parent post and is append-only.
type Comment struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	User        *Author    `json:"user,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	Attachments []PostFile `json:"attachments,omitempty"`
}

// NewCommentID returns a fresh comment identifier.
func NewCommentID() string {
	return "c_" + uuid.NewString()
}

// Validate checks that the comment carries text or an attachment.
func (c *Comment) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(c.Text) == "" && len(c.Attachments) == 0 {
		return fmt.Errorf("text or attachment is required")
	}
	return nil
}

// AuthorID returns the snapshot author id or "".
func (c *Comment) AuthorID() string {
	if c.User == nil {
		return ""
	}
	return c.User.ID
}

// Clone returns a deep copy of c.
func (c Comment) Clone() Comment {
	out := c
	if c.User != nil {
		u := *c.User
		out.User = &u
	}
	out.Attachments = append([]PostFile(nil), c.Attachments...)
	return out
}

// EncodeAttachments serializes attachments for the comments.attachments column.
// An empty list is stored as "".
func EncodeAttachments(files []PostFile) (string, error) {
	if len(files) == 0 {
		return "", nil
	}
	data, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attachments: %w", err)
	}
	return string(data), nil
}

// DecodeAttachments parses the comments.attachments column.
func DecodeAttachments(raw string) ([]PostFile, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var files []PostFile
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		return nil, fmt.Errorf("failed to parse attachments: %w", err)
	}
	return files, nil
}
