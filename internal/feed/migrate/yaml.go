package migrate

import (
	"time"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// yaml.v3 reads yaml tags only, so the export goes through mirrors that
// keep the cache's field names.

type yamlPost struct {
	ID           string            `yaml:"id"`
	Content      string            `yaml:"content"`
	CreatedAt    time.Time         `yaml:"createdAt"`
	User         *schema.Author    `yaml:"user,omitempty"`
	Files        []schema.PostFile `yaml:"files,omitempty"`
	Likes        int               `yaml:"likes"`
	LikedBy      []string          `yaml:"likedBy,omitempty"`
	Comments     int               `yaml:"comments"`
	CommentsList []yamlComment     `yaml:"commentsList,omitempty"`
	Tag          string            `yaml:"tag,omitempty"`
}

type yamlComment struct {
	ID          string            `yaml:"id"`
	Text        string            `yaml:"text"`
	User        *schema.Author    `yaml:"user,omitempty"`
	CreatedAt   time.Time         `yaml:"createdAt"`
	Attachments []schema.PostFile `yaml:"attachments,omitempty"`
}

func toYAML(p schema.Post) yamlPost {
	out := yamlPost{
		ID:        p.ID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		User:      p.User,
		Files:     p.Files,
		Likes:     p.Likes,
		LikedBy:   p.LikedBy,
		Comments:  p.Comments,
		Tag:       p.Tag,
	}
	for _, c := range p.CommentsList {
		out.CommentsList = append(out.CommentsList, yamlComment{
			ID:          c.ID,
			Text:        c.Text,
			User:        c.User,
			CreatedAt:   c.CreatedAt,
			Attachments: c.Attachments,
		})
	}
	return out
}
