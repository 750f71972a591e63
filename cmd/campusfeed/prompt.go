package main

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
	"github.com/campuscircle/campusfeed/internal/ui"
)

// Tags offered by the interactive post form.
var knownTags = []string{schema.DefaultTag, "Math", "Physics", "Programming", "Chemistry", "Biology", "Events", "Housing"}

// interactive reports whether prompts can be shown.
func interactive() bool {
	return ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout)
}

// runForm runs a huh form, turning a user abort into a clean exit.
func runForm(form *huh.Form) {
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			os.Exit(1)
		}
		fatalf("%v", err)
	}
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

func promptCredentials(email, password *string) {
	runForm(huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Email").Value(email).Validate(required("email")),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(password).Validate(required("password")),
	)))
}

func promptSignUp(name, email, password, major, semester *string) {
	runForm(huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Name").Value(name).Validate(required("name")),
		huh.NewInput().Title("Email").Value(email).Validate(required("email")),
		huh.NewInput().Title("Password").
			Description("At least 6 characters").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(required("password")),
		huh.NewInput().Title("Major").Value(major),
		huh.NewInput().Title("Semester").Value(semester),
	)))
}

func promptPost(content, tag *string) {
	if *tag == "" {
		*tag = schema.DefaultTag
	}
	runForm(huh.NewForm(huh.NewGroup(
		huh.NewText().Title("What's on your mind?").
			Description("The first line is shown as the title").
			Value(content).
			Validate(required("content")),
		huh.NewSelect[string]().Title("Tag").
			Options(huh.NewOptions(knownTags...)...).
			Value(tag),
	)))
}

func promptProfile(name, bio, major, semester *string) {
	runForm(huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Name").Value(name).Validate(required("name")),
		huh.NewText().Title("Bio").Value(bio),
		huh.NewInput().Title("Major").Value(major),
		huh.NewInput().Title("Semester").Value(semester),
	)))
}
