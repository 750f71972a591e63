package gateway

import (
	"github.com/campuscircle/campusfeed/internal/feed/db"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

func mapPost(row *db.PostRow) schema.Post {
	p := schema.Post{
		ID:        row.ID,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
		User:      mapAuthor(row.UserID, row.Author),
		LikedBy:   append([]string{}, row.LikedBy...),
		Tag:       row.Tag,
	}
	if row.FileURL != "" {
		p.Files = []schema.PostFile{schema.FileFromURL(row.ID, row.FileURL)}
	}
	if p.Tag == "" {
		p.Tag = schema.DefaultTag
	}
	p.CommentsList = []schema.Comment{}
	p.Normalize()
	return p
}

func (g *Gateway) mapComment(row *db.CommentRow) schema.Comment {
	c := schema.Comment{
		ID:        row.ID,
		Text:      row.Content,
		CreatedAt: row.CreatedAt,
		User:      mapAuthor(row.UserID, row.Author),
	}
	files, err := schema.DecodeAttachments(row.Attachments)
	if err != nil {
		g.logger.Printf("Warning: comment %s: %v", row.ID, err)
	} else {
		c.Attachments = files
	}
	return c
}

func mapAuthor(userID string, profile *schema.Profile) *schema.Author {
	if profile != nil {
		return profile.Author()
	}
	if userID == "" {
		return nil
	}
	return &schema.Author{ID: userID, Avatar: schema.DefaultAvatar}
}
