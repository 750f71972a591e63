package schema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPost_Validate(t *testing.T) {
	tests := []struct {
		name    string
		post    Post
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid post",
			post: Post{ID: "p1", Content: "Hello\nWorld"},
		},
		{
			name: "attachment only",
			post: Post{ID: "p1", Files: []PostFile{{ID: "f1", URL: "https://x/a.pdf"}}},
		},
		{
			name:    "missing id",
			post:    Post{Content: "Hello"},
			wantErr: true,
			errMsg:  "id is required",
		},
		{
			name:    "blank content",
			post:    Post{ID: "p1", Content: "   "},
			wantErr: true,
			errMsg:  "content or attachment is required",
		},
		{
			name: "long content",
			post: Post{ID: "p1", Content: strings.Repeat("a", 6000)},
		},
		{
			name:    "attachment without url",
			post:    Post{ID: "p1", Content: "x", Files: []PostFile{{ID: "f1"}}},
			wantErr: true,
			errMsg:  "has no url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.post.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestPost_Title(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"Hello\nWorld", "Hello"},
		{"\n\n  Study group  \nThursday", "Study group"},
		{"", ""},
		{"single", "single"},
	}
	for _, tt := range tests {
		p := Post{Content: tt.content}
		if got := p.Title(); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestPost_SetDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Post{Content: "x", LikedBy: []string{"a", "a", "b"}, Likes: 99}
	p.SetDefaults(now)

	if p.ID == "" {
		t.Error("expected generated id")
	}
	if !p.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, now)
	}
	if p.Tag != DefaultTag {
		t.Errorf("Tag = %q, want %q", p.Tag, DefaultTag)
	}
	if p.Likes != 2 || len(p.LikedBy) != 2 {
		t.Errorf("likes = %d likedBy = %v, want 2 unique keys", p.Likes, p.LikedBy)
	}
}

func TestPost_ToggleLike(t *testing.T) {
	p := Post{ID: "p1"}

	state := p.ToggleLike("u1")
	if state.Likes != 1 || len(state.LikedBy) != 1 || state.LikedBy[0] != "u1" {
		t.Fatalf("after first toggle: %+v", state)
	}

	state = p.ToggleLike("u1")
	if state.Likes != 0 || len(state.LikedBy) != 0 {
		t.Fatalf("after second toggle: %+v", state)
	}
}

func TestPost_ToggleLikeCountNeverDrifts(t *testing.T) {
	p := Post{ID: "p1"}
	keys := []string{"a", "b", "a", "c", "b", "a", "d", "c"}
	for _, k := range keys {
		p.ToggleLike(k)
		if p.Likes != len(p.LikedBy) {
			t.Fatalf("likes = %d, len(likedBy) = %d", p.Likes, len(p.LikedBy))
		}
	}
	// a toggled 3 times, b twice, c twice, d once
	if !p.HasLiker("a") || p.HasLiker("b") || p.HasLiker("c") || !p.HasLiker("d") {
		t.Errorf("unexpected likedBy %v", p.LikedBy)
	}
}

func TestPost_SetLikedIdempotent(t *testing.T) {
	p := Post{ID: "p1"}
	if !p.SetLiked("u1", true) {
		t.Fatal("first SetLiked(true) should change state")
	}
	if p.SetLiked("u1", true) {
		t.Error("second SetLiked(true) should be a no-op")
	}
	if p.Likes != 1 {
		t.Errorf("likes = %d, want 1", p.Likes)
	}
}

func TestPost_AppendComment(t *testing.T) {
	p := Post{ID: "p1"}
	c := Comment{ID: "c1", Text: "nice post"}
	if !p.AppendComment(c) {
		t.Fatal("AppendComment should add new comment")
	}
	if p.AppendComment(c) {
		t.Error("AppendComment should ignore duplicate id")
	}
	if p.Comments != 1 || len(p.CommentsList) != 1 {
		t.Errorf("comments = %d, list = %d", p.Comments, len(p.CommentsList))
	}
}

func TestPost_CloneIsDeep(t *testing.T) {
	p := Post{
		ID:           "p1",
		User:         &Author{ID: "u1", Name: "Ana"},
		LikedBy:      []string{"x"},
		CommentsList: []Comment{{ID: "c1", User: &Author{ID: "u2"}}},
	}
	c := p.Clone()
	c.User.Name = "changed"
	c.LikedBy[0] = "y"
	c.CommentsList[0].User.ID = "other"

	if p.User.Name != "Ana" || p.LikedBy[0] != "x" || p.CommentsList[0].User.ID != "u2" {
		t.Errorf("clone shares memory with original: %+v", p)
	}
}

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		url  string
		want FileType
	}{
		{"https://cdn/posts/u1/1_notes.PDF", FileTypePDF},
		{"https://cdn/posts/u1/photo.jpeg?token=abc", FileTypeImage},
		{"file:///tmp/essay.docx", FileTypeDoc},
		{"https://cdn/posts/u1/archive.zip", FileTypeOther},
		{"no-extension", FileTypeOther},
	}
	for _, tt := range tests {
		if got := ClassifyFile(tt.url); got != tt.want {
			t.Errorf("ClassifyFile(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestFileFromURL(t *testing.T) {
	f := FileFromURL("p1", "https://cdn/posts/u1/1700000000000_notes.pdf")
	if f.ID != "f_p1" {
		t.Errorf("ID = %q", f.ID)
	}
	if f.Label != "1700000000000_notes.pdf" {
		t.Errorf("Label = %q", f.Label)
	}
	if f.Type != FileTypePDF {
		t.Errorf("Type = %q", f.Type)
	}
}

func TestPost_JSONFieldNames(t *testing.T) {
	p := Post{ID: "p1", Content: "c", LikedBy: []string{"u1"}, Likes: 1, Tag: "Math"}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, field := range []string{`"id"`, `"content"`, `"createdAt"`, `"likedBy"`, `"likes"`, `"comments"`, `"tag"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("JSON %s missing field %s", data, field)
		}
	}
}

func TestAttachmentsRoundTrip(t *testing.T) {
	raw, err := EncodeAttachments(nil)
	if err != nil || raw != "" {
		t.Fatalf("EncodeAttachments(nil) = %q, %v", raw, err)
	}

	files := []PostFile{{ID: "a1", Type: FileTypeImage, URL: "https://x/a.png"}}
	raw, err = EncodeAttachments(files)
	if err != nil {
		t.Fatalf("EncodeAttachments failed: %v", err)
	}
	decoded, err := DecodeAttachments(raw)
	if err != nil {
		t.Fatalf("DecodeAttachments failed: %v", err)
	}
	if len(decoded) != 1 || decoded[0].URL != files[0].URL {
		t.Errorf("decoded = %+v", decoded)
	}

	if _, err := DecodeAttachments("{not json"); err == nil {
		t.Error("expected error for malformed attachments")
	}
}

func TestAuthorPatch_Apply(t *testing.T) {
	name, avatar := "New", "b.png"
	a := &Author{ID: "u1", Name: "Old", Major: "Math", Avatar: "a.png"}
	changed := AuthorPatch{Name: &name, Avatar: &avatar}.Apply(a)
	if !changed {
		t.Fatal("expected change")
	}
	if a.Name != "New" || a.Avatar != "b.png" || a.Major != "Math" {
		t.Errorf("author = %+v", a)
	}
	if (AuthorPatch{Name: &name}).Apply(a) {
		t.Error("reapplying the same patch should report no change")
	}
}

func TestAuthorPatch_ApplyClears(t *testing.T) {
	empty := ""
	a := &Author{ID: "u1", Name: "Ana", Major: "Math", Semester: "3", Avatar: "a.png"}
	if !(AuthorPatch{Name: &empty, Major: &empty, Semester: &empty}).Apply(a) {
		t.Fatal("expected change")
	}
	if a.Major != "" || a.Semester != "" {
		t.Errorf("author = %+v, want major and semester cleared", a)
	}
	if a.Name != "Ana" || a.Avatar != "a.png" {
		t.Errorf("author = %+v, want name and avatar kept", a)
	}
}

func TestProfileUpdate_AuthorPatch(t *testing.T) {
	empty := ""
	up := ProfileUpdate{ID: "u1", Career: &empty}
	patch := up.AuthorPatch()
	if patch.IsEmpty() {
		t.Fatal("clearing a field must not produce an empty patch")
	}
	if patch.Major == nil || *patch.Major != "" || patch.Name != nil {
		t.Errorf("patch = %+v", patch)
	}
	bare := ProfileUpdate{ID: "u1"}
	if !bare.AuthorPatch().IsEmpty() {
		t.Error("an update without fields should give an empty patch")
	}
}

func TestPatchFromProfile(t *testing.T) {
	p := &Profile{ID: "u1", Username: "ana", Term: "3"}
	a := &Author{ID: "u1", Name: "old", Major: "Math", Semester: "1", Avatar: "x.png"}
	PatchFromProfile(p).Apply(a)
	if *a != *p.Author() {
		t.Errorf("author = %+v, want %+v", a, p.Author())
	}
}

func TestProfile_AuthorDefaultsAvatar(t *testing.T) {
	p := &Profile{ID: "u1", Username: "ana", Career: "CS", Term: "3"}
	a := p.Author()
	if a.Avatar != DefaultAvatar {
		t.Errorf("Avatar = %q, want default", a.Avatar)
	}
	if a.Name != "ana" || a.Major != "CS" || a.Semester != "3" {
		t.Errorf("author = %+v", a)
	}
}
