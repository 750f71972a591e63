// Package query filters post listings for the feed and profile views.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/campuscircle/campusfeed/internal/feed/db"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// Filter selects posts. Zero fields match everything.
type Filter struct {
	Tag      string
	AuthorID string
	Since    time.Time
	Text     string
	Limit    int
}

var shortDuration = regexp.MustCompile(`^(\d+)\s*([dw])$`)

var parser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseSince turns a --since value into a point in time. It accepts
// RFC 3339 timestamps, dates (2006-01-02), Go durations ("36h"), day and
// week counts ("3d", "2w"), and natural language ("yesterday",
// "last monday", "3 days ago").
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if m := shortDuration.FindStringSubmatch(strings.ToLower(s)); m != nil {
		n, _ := strconv.Atoi(m[1])
		if m[2] == "w" {
			n *= 7
		}
		return now.AddDate(0, 0, -n), nil
	}

	r, err := parser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("no date found in %q", s)
	}
	return r.Time, nil
}

// Match reports whether p passes the filter, ignoring Limit.
func (f Filter) Match(p schema.Post) bool {
	if f.Tag != "" && !strings.EqualFold(p.Tag, f.Tag) {
		return false
	}
	if f.AuthorID != "" && p.AuthorID() != f.AuthorID {
		return false
	}
	if !f.Since.IsZero() && p.CreatedAt.Before(f.Since) {
		return false
	}
	if f.Text != "" && !strings.Contains(strings.ToLower(p.Content), strings.ToLower(f.Text)) {
		return false
	}
	return true
}

// Apply returns the matching posts in their original order, at most Limit
// of them when Limit is positive.
func Apply(posts []schema.Post, f Filter) []schema.Post {
	out := []schema.Post{}
	for _, p := range posts {
		if !f.Match(p) {
			continue
		}
		out = append(out, p)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// DB maps the filter onto the remote listing. Text has no column filter and
// is applied afterwards with Apply.
func (f Filter) DB() db.ListPostsFilter {
	return db.ListPostsFilter{
		UserID: f.AuthorID,
		Tag:    f.Tag,
		Since:  f.Since,
		Limit:  f.Limit,
	}
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Tag == "" && f.AuthorID == "" && f.Since.IsZero() && f.Text == "" && f.Limit <= 0
}
