package ui

import (
	"os"
	"strings"
	"testing"
)

func TestRender_PlainWhenColorDisabled(t *testing.T) {
	DisableColor()

	tests := []struct {
		name   string
		render func(string) string
	}{
		{"accent", RenderAccent},
		{"pass", RenderPass},
		{"warn", RenderWarn},
		{"fail", RenderFail},
		{"muted", RenderMuted},
		{"bold", RenderBold},
	}
	for _, tt := range tests {
		if got := tt.render("hello"); got != "hello" {
			t.Errorf("%s: got %q, want plain text", tt.name, got)
		}
	}

	if got := RenderTag("Math"); !strings.Contains(got, "Math") {
		t.Errorf("RenderTag() = %q", got)
	}
}

func TestIsTerminal_File(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatalf("CreateTemp failed: %v", err)
	}
	defer f.Close()

	if IsTerminal(f) {
		t.Error("a regular file is not a terminal")
	}
}
