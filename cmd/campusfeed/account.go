package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
	"github.com/campuscircle/campusfeed/internal/ui"
)

var signupCmd = &cobra.Command{
	Use:     "signup",
	GroupID: "account",
	Short:   "Create the local account and sign in",
	Long: `Register the local account for this data directory and sign in.

With a remote configured the profile is created there too; offline the
profile is queued and pushed on the next sync.`,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		major, _ := cmd.Flags().GetString("major")
		semester, _ := cmd.Flags().GetString("semester")

		if name == "" || email == "" || password == "" {
			if !interactive() {
				fatalf("--name, --email and --password are required")
			}
			promptSignUp(&name, &email, &password, &major, &semester)
		}

		a := openApp()
		defer a.Close()

		u, err := a.accounts.SignUp(schema.User{
			Name:     name,
			Email:    email,
			Major:    major,
			Semester: semester,
		}, password)
		if err != nil {
			fatalf("%v", err)
		}

		if a.syncer.RemoteConfigured() {
			a.syncer.UpdateProfile(context.Background(), u.ProfileUpdate())
		}

		if jsonOutput {
			outputJSON(u)
			return
		}
		fmt.Printf("%s Signed up as %s <%s>\n", ui.RenderPass("✓"), u.Name, u.Email)
	},
}

var signinCmd = &cobra.Command{
	Use:     "signin",
	GroupID: "account",
	Short:   "Sign in to the local account",
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		if email == "" || password == "" {
			if !interactive() {
				fatalf("--email and --password are required")
			}
			promptCredentials(&email, &password)
		}

		a := openApp()
		defer a.Close()

		u, err := a.accounts.SignIn(email, password)
		if err != nil {
			fatalf("%v", err)
		}

		if jsonOutput {
			outputJSON(u)
			return
		}
		fmt.Printf("%s Signed in as %s\n", ui.RenderPass("✓"), u.Name)
	},
}

var signoutCmd = &cobra.Command{
	Use:     "signout",
	GroupID: "account",
	Short:   "Sign out",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		if err := a.accounts.SignOut(); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Signed out\n", ui.RenderPass("✓"))
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	GroupID: "account",
	Short:   "Show the signed-in user",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		u := a.currentUser()
		key, err := a.accounts.LikerKey()
		if err != nil {
			fatalf("%v", err)
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"signed_in": u != nil,
				"user":      u,
				"liker_key": key,
			})
			return
		}

		if u == nil {
			fmt.Printf("Not signed in %s\n", ui.RenderMuted("(guest key "+key+")"))
			return
		}
		fmt.Printf("%s <%s>\n", ui.RenderBold(u.Name), u.Email)
		fmt.Printf("  ID: %s\n", u.ID)
		if u.Major != "" || u.Semester != "" {
			fmt.Printf("  %s\n", joinNonEmpty(" · ", u.Major, u.Semester))
		}
	},
}

func init() {
	signupCmd.Flags().String("name", "", "Display name")
	signupCmd.Flags().String("email", "", "Email address")
	signupCmd.Flags().String("password", "", "Password (prompted when omitted)")
	signupCmd.Flags().String("major", "", "Program or major")
	signupCmd.Flags().String("semester", "", "Current term")

	signinCmd.Flags().String("email", "", "Email address")
	signinCmd.Flags().String("password", "", "Password (prompted when omitted)")

	rootCmd.AddCommand(signupCmd, signinCmd, signoutCmd, whoamiCmd)
}
