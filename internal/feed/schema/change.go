package schema

// ChangeType identifies a push-change payload.
type ChangeType string

const (
	ChangePostUpdated  ChangeType = "post_update"
	ChangePostCreated  ChangeType = "post_created"
	ChangeCommentAdded ChangeType = "comment_added"
)

// PostChange is published by the gateway after a remote mutation and
// consumed by subscribers to patch posts they already loaded.
type PostChange struct {
	Type    ChangeType `json:"type"`
	PostID  string     `json:"post_id"`
	LikedBy []string   `json:"liked_by,omitempty"`
	Post    *Post      `json:"post,omitempty"`
	Comment *Comment   `json:"comment,omitempty"`
}
