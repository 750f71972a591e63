package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/campuscircle/campusfeed/internal/feed/auth"
	"github.com/campuscircle/campusfeed/internal/feed/db"
	"github.com/campuscircle/campusfeed/internal/feed/query"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
	"github.com/campuscircle/campusfeed/internal/ui"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	GroupID: "account",
	Short:   "Show or edit profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show [user-id]",
	Short: "Show a profile and its posts",
	Long: `Show a profile and its most recent posts. Defaults to the signed-in user.

The profile comes from the remote when one is reachable; otherwise the
local account (for yourself) or the author snapshot of cached posts is used.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		a := openApp()
		defer a.Close()
		ctx := context.Background()

		me := a.currentUser()
		userID := ""
		if len(args) == 1 {
			userID = args[0]
		} else if me != nil {
			userID = me.ID
		} else {
			fatalf("not signed in; pass a user id")
		}

		filter := query.Filter{AuthorID: userID, Limit: limit}
		profile, posts := lookupProfile(ctx, a, filter)
		if profile == nil && me != nil && me.ID == userID {
			up := me.ProfileUpdate()
			profile = &schema.Profile{ID: me.ID}
			up.Apply(profile)
		}
		if profile == nil {
			for _, p := range posts {
				if p.User != nil {
					profile = &schema.Profile{ID: userID, Username: p.User.Name, Career: p.User.Major, Term: p.User.Semester, Avatar: p.User.Avatar}
					break
				}
			}
		}
		if profile == nil {
			fatalf("profile %s not found", userID)
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"profile": profile, "posts": posts})
			return
		}

		fmt.Printf("\n%s\n", ui.RenderBold(profile.Username))
		if line := joinNonEmpty(" · ", profile.Career, profile.Term); line != "" {
			fmt.Printf("%s\n", ui.RenderMuted(line))
		}
		if profile.Bio != "" {
			fmt.Printf("%s\n", profile.Bio)
		}
		fmt.Printf("%s\n\n", ui.RenderMuted(fmt.Sprintf("%d posts", len(posts))))

		key, _ := a.accounts.LikerKey()
		printPosts(os.Stdout, posts, key, time.Now())
	},
}

// lookupProfile reads the profile and the user's posts from the remote, or
// filters the cache when the remote is not there.
func lookupProfile(ctx context.Context, a *app, filter query.Filter) (*schema.Profile, []schema.Post) {
	if a.gateway != nil {
		posts, err := a.gateway.FetchPostsFiltered(ctx, filter.DB())
		if err == nil {
			profile, err := a.gateway.GetProfile(ctx, filter.AuthorID)
			if err != nil && !errors.Is(err, db.ErrNotFound) {
				a.logs.Logger("campusfeed").Printf("Warning: failed to load profile: %v", err)
			}
			return profile, posts
		}
		a.logs.Logger("campusfeed").Printf("Warning: remote unavailable, using cache: %v", err)
	}
	return nil, query.Apply(a.syncer.Posts(), filter)
}

var profileEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit your profile",
	Long: `Edit your profile. Only the flags you pass are changed; with no flags an
interactive form is shown.

Your name, major, term and avatar are copied into every post you wrote, so
old posts never show stale author details.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()
		ctx := context.Background()

		me := a.currentUser()
		if me == nil {
			fatalf("you must sign in to edit your profile")
		}

		var patch auth.ProfilePatch
		flagValue := func(name string) *string {
			if !cmd.Flags().Changed(name) {
				return nil
			}
			v, _ := cmd.Flags().GetString(name)
			return &v
		}
		patch.Name = flagValue("name")
		patch.Bio = flagValue("bio")
		patch.Major = flagValue("major")
		patch.Semester = flagValue("semester")

		if avatarPath, _ := cmd.Flags().GetString("avatar"); avatarPath != "" {
			url, err := a.uploadAvatar(ctx, me.ID, avatarPath)
			if err != nil {
				fatalf("%v", err)
			}
			patch.Avatar = &url
		}

		if patch == (auth.ProfilePatch{}) {
			if !interactive() {
				fatalf("nothing to change (see --help)")
			}
			name, bio, major, semester := me.Name, me.Bio, me.Major, me.Semester
			promptProfile(&name, &bio, &major, &semester)
			patch = auth.ProfilePatch{Name: &name, Bio: &bio, Major: &major, Semester: &semester}
		}

		u, err := a.accounts.UpdateProfile(patch)
		if err != nil {
			fatalf("%v", err)
		}

		up := schema.ProfileUpdate{
			ID:       u.ID,
			Username: patch.Name,
			Career:   patch.Major,
			Bio:      patch.Bio,
			Term:     patch.Semester,
			Avatar:   patch.Avatar,
		}
		n := a.syncer.UpdateProfile(ctx, up)

		if jsonOutput {
			outputJSON(map[string]interface{}{"user": u, "posts_updated": n})
			return
		}
		fmt.Printf("%s Profile updated", ui.RenderPass("✓"))
		if n > 0 {
			fmt.Printf(" (%d posts refreshed)", n)
		}
		fmt.Println()
	},
}

func init() {
	profileShowCmd.Flags().Int("limit", 20, "Maximum number of posts")

	profileEditCmd.Flags().String("name", "", "Display name")
	profileEditCmd.Flags().String("bio", "", "Short bio")
	profileEditCmd.Flags().String("major", "", "Program or major")
	profileEditCmd.Flags().String("semester", "", "Current term")
	profileEditCmd.Flags().String("avatar", "", "Avatar image file to upload")

	profileCmd.AddCommand(profileShowCmd, profileEditCmd)
	rootCmd.AddCommand(profileCmd)
}
