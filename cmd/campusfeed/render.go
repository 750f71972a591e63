package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
	"github.com/campuscircle/campusfeed/internal/ui"
)

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func authorName(a *schema.Author) string {
	if a == nil || a.Name == "" {
		return "anonymous"
	}
	return a.Name
}

// relativeTime renders t the way the feed shows timestamps.
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// printPost writes one feed entry. likerKey marks posts the viewer liked.
func printPost(w io.Writer, p schema.Post, likerKey string, withComments bool, now time.Time) {
	heart := "♡"
	if likerKey != "" && p.HasLiker(likerKey) {
		heart = "♥"
	}

	fmt.Fprintf(w, "%s %s %s\n",
		ui.RenderAccent(p.ID),
		ui.RenderTag(p.Tag),
		ui.RenderMuted(authorName(p.User)+" · "+relativeTime(p.CreatedAt, now)))

	title := p.Title()
	fmt.Fprintf(w, "  %s\n", ui.RenderBold(title))
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p.Content), title))
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) != "" {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	for _, f := range p.Files {
		label := f.Label
		if label == "" {
			label = f.URL
		}
		fmt.Fprintf(w, "  📎 [%s] %s\n", f.Type, label)
	}
	fmt.Fprintf(w, "  %s %d  💬 %d\n", heart, p.Likes, p.Comments)

	if withComments {
		for _, c := range p.CommentsList {
			fmt.Fprintf(w, "    %s %s\n", ui.RenderBold(authorName(c.User)+":"), c.Text)
			for _, f := range c.Attachments {
				fmt.Fprintf(w, "      📎 [%s] %s\n", f.Type, f.URL)
			}
		}
	}
}

func printPosts(w io.Writer, posts []schema.Post, likerKey string, now time.Time) {
	if len(posts) == 0 {
		fmt.Fprintln(w, "No posts yet")
		return
	}
	for i, p := range posts {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printPost(w, p, likerKey, false, now)
	}
}
