package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/campuscircle/campusfeed/internal/feed/localstore"
	"github.com/campuscircle/campusfeed/internal/feed/migrate"
	"github.com/campuscircle/campusfeed/internal/feed/query"
	"github.com/campuscircle/campusfeed/internal/feed/schema"
	feedsync "github.com/campuscircle/campusfeed/internal/feed/sync"
	"github.com/campuscircle/campusfeed/internal/ui"
)

var postsCmd = &cobra.Command{
	Use:     "posts",
	GroupID: "feed",
	Short:   "Read and write the feed",
}

var postsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts, newest first",
	Long: `List posts, newest first.

The feed is refreshed from the remote when one is configured and reachable;
otherwise the local cache is shown.

--since accepts dates (2026-03-01), durations (36h, 3d, 2w) and natural
language ("yesterday", "last monday", "3 days ago").`,
	Run: func(cmd *cobra.Command, args []string) {
		offline, _ := cmd.Flags().GetBool("offline")
		filter := filterFromFlags(cmd)

		a := openApp()
		defer a.Close()

		var posts []schema.Post
		if offline {
			posts = a.syncer.Posts()
		} else {
			posts = a.syncer.FetchAll(context.Background())
		}
		posts = query.Apply(posts, filter)

		if jsonOutput {
			outputJSON(posts)
			return
		}
		key, _ := a.accounts.LikerKey()
		printPosts(os.Stdout, posts, key, time.Now())
	},
}

var postsShowCmd = &cobra.Command{
	Use:   "show <post-id>",
	Short: "Show a post with its comments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		p, ok := a.findPost(context.Background(), args[0])
		if !ok {
			fatalf("post %s not found", args[0])
		}
		if jsonOutput {
			outputJSON(p)
			return
		}
		key, _ := a.accounts.LikerKey()
		printPost(os.Stdout, p, key, true, time.Now())
	},
}

var postsCreateCmd = &cobra.Command{
	Use:   "create [content]",
	Short: "Publish a post",
	Long: `Publish a post. The content is taken from the arguments, from a prompt
when running in a terminal, or from stdin with "-".

With a remote configured you must be signed in. Offline, the post is kept
locally and queued for sync.`,
	Run: func(cmd *cobra.Command, args []string) {
		tag, _ := cmd.Flags().GetString("tag")
		files, _ := cmd.Flags().GetStringSlice("file")
		content := strings.Join(args, " ")

		if content == "-" {
			content = readStdin()
		}
		if strings.TrimSpace(content) == "" && len(files) == 0 {
			if !interactive() {
				fatalf("post content is required")
			}
			promptPost(&content, &tag)
		}

		a := openApp()
		defer a.Close()
		ctx := context.Background()

		user := a.currentUser()
		if a.cfg.RemoteConfigured() && user == nil {
			fatalf("you must sign in to post (campusfeed signin)")
		}

		draft := schema.Post{Content: content, Tag: tag}
		userID := ""
		if user != nil {
			draft.User = user.Author()
			userID = user.ID
		}
		for _, path := range files {
			pf, err := a.uploadFile(ctx, userID, path)
			if err != nil {
				fatalf("%v", err)
			}
			draft.Files = append(draft.Files, pf)
		}

		post := a.syncer.Create(ctx, draft)
		if post == nil {
			fatalf("failed to create post")
		}

		if jsonOutput {
			outputJSON(post)
			return
		}
		fmt.Printf("%s Created post %s\n", ui.RenderPass("✓"), post.ID)
		if queued(a.syncer, feedsync.IntentCreatePost, post.ID) {
			fmt.Printf("   %s\n", ui.RenderWarn("Saved locally, queued for sync"))
		}
	},
}

var postsLikeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Like or unlike a post",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		key, err := a.accounts.LikerKey()
		if err != nil {
			fatalf("%v", err)
		}

		state := a.syncer.ToggleLike(context.Background(), args[0], key)
		if state == nil {
			fatalf("post %s not found", args[0])
		}

		if jsonOutput {
			outputJSON(state)
			return
		}
		liked := false
		for _, k := range state.LikedBy {
			if k == key {
				liked = true
				break
			}
		}
		if liked {
			fmt.Printf("%s Liked %s (%d likes)\n", ui.RenderAccent("♥"), args[0], state.Likes)
		} else {
			fmt.Printf("♡ Unliked %s (%d likes)\n", args[0], state.Likes)
		}
	},
}

var postsCommentCmd = &cobra.Command{
	Use:   "comment <post-id> [text]",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		files, _ := cmd.Flags().GetStringSlice("file")
		text := strings.Join(args[1:], " ")
		if text == "-" {
			text = readStdin()
		}

		a := openApp()
		defer a.Close()
		ctx := context.Background()

		// with a remote the post may exist there even if the cache is stale
		postID := args[0]
		if !a.syncer.RemoteConfigured() {
			if _, ok := a.syncer.Post(postID); !ok {
				fatalf("post %s not found", postID)
			}
		}

		user := a.currentUser()
		var author *schema.Author
		userID := ""
		if user != nil {
			author = user.Author()
			userID = user.ID
		}

		var attachments []schema.PostFile
		for _, path := range files {
			pf, err := a.uploadFile(ctx, userID, path)
			if err != nil {
				fatalf("%v", err)
			}
			attachments = append(attachments, pf)
		}

		c := a.syncer.AddComment(ctx, postID, author, text, attachments)
		if c == nil {
			fatalf("a comment needs text or an attachment")
		}

		if jsonOutput {
			outputJSON(c)
			return
		}
		fmt.Printf("%s Commented on %s\n", ui.RenderPass("✓"), postID)
		if queued(a.syncer, feedsync.IntentAddComment, postID) {
			fmt.Printf("   %s\n", ui.RenderWarn("Saved locally, queued for sync"))
		}
	},
}

var postsExportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export the cached posts as JSONL or YAML",
	Long: `Export the cached posts. Without a path the export is written to stdout.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := migrate.ParseFormat(formatFlag)
		if err != nil {
			fatalf("%v", err)
		}

		a := openApp()
		defer a.Close()
		posts := a.syncer.Posts()

		if len(args) == 0 {
			w := bufio.NewWriter(os.Stdout)
			if format == migrate.FormatYAML {
				err = migrate.WriteYAML(w, posts)
			} else {
				err = migrate.WriteJSONL(w, posts)
			}
			if err == nil {
				err = w.Flush()
			}
			if err != nil {
				fatalf("%v", err)
			}
			return
		}

		if err := migrate.Export(args[0], posts, format); err != nil {
			fatalf("%v", err)
		}
		fmt.Fprintf(os.Stderr, "%s Exported %d posts to %s\n", ui.RenderPass("✓"), len(posts), args[0])
	},
}

var postsImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Import posts from a JSONL file",
	Long: `Import posts from a JSONL file (one post per line).

By default posts are merged into the local cache; posts already cached are
kept. With --remote they are inserted into the remote store, comments
included, and the feed is refreshed. Re-running an import is safe.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		toRemote, _ := cmd.Flags().GetBool("remote")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		backup, _ := cmd.Flags().GetBool("backup")

		a := openApp()
		defer a.Close()
		ctx := context.Background()

		opts := migrate.ImportOptions{From: args[0], DryRun: dryRun, Backup: backup}
		var result *migrate.ImportResult
		var err error
		if toRemote {
			if a.gateway == nil {
				fatalf("--remote needs a reachable remote (remote.dsn)")
			}
			result, err = migrate.ImportToRemote(ctx, opts, a.gateway)
			if err == nil && !dryRun {
				a.syncer.FetchAll(ctx)
			}
		} else {
			result, err = migrate.ImportToCache(ctx, opts, localstore.NewPostCache(a.store, nil))
			if err == nil && !dryRun {
				a.syncer.Reload()
			}
		}
		if err != nil {
			fatalf("%v", err)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		verb := "Imported"
		if dryRun {
			verb = "Would import"
		}
		fmt.Printf("%s %s %d of %d posts", ui.RenderPass("✓"), verb, result.PostsImported, result.PostsRead)
		if toRemote {
			fmt.Printf(" (%d comments)", result.CommentsStored)
		}
		fmt.Println()
		if result.PostsSkipped > 0 {
			fmt.Printf("   Skipped: %d\n", result.PostsSkipped)
		}
		if result.BackupCreated != "" {
			fmt.Printf("   Backup: %s\n", result.BackupCreated)
		}
		for _, e := range result.Errors {
			fmt.Printf("   %s %s\n", ui.RenderWarn("⚠"), e)
		}
	},
}

func filterFromFlags(cmd *cobra.Command) query.Filter {
	tag, _ := cmd.Flags().GetString("tag")
	author, _ := cmd.Flags().GetString("author")
	since, _ := cmd.Flags().GetString("since")
	text, _ := cmd.Flags().GetString("text")
	limit, _ := cmd.Flags().GetInt("limit")

	t, err := query.ParseSince(since, time.Now())
	if err != nil {
		fatalf("invalid --since: %v", err)
	}
	return query.Filter{Tag: tag, AuthorID: author, Since: t, Text: text, Limit: limit}
}

// queued reports whether a pending intent of kind exists for postID.
func queued(s *feedsync.Syncer, kind feedsync.IntentKind, postID string) bool {
	for _, in := range s.Intents().Pending() {
		if in.Kind == kind && in.PostID == postID {
			return true
		}
	}
	return false
}

func readStdin() string {
	var b strings.Builder
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		fatalf("failed to read stdin: %v", err)
	}
	return strings.TrimRight(b.String(), "\n")
}

func init() {
	postsListCmd.Flags().String("tag", "", "Only posts with this tag")
	postsListCmd.Flags().String("author", "", "Only posts by this user id")
	postsListCmd.Flags().String("since", "", "Only posts created after this time")
	postsListCmd.Flags().String("text", "", "Only posts containing this text")
	postsListCmd.Flags().Int("limit", 0, "Maximum number of posts (0 = all)")
	postsListCmd.Flags().Bool("offline", false, "Read the local cache without contacting the remote")

	postsCreateCmd.Flags().String("tag", "", "Post category (default General)")
	postsCreateCmd.Flags().StringSlice("file", nil, "Attach a file (repeatable)")

	postsCommentCmd.Flags().StringSlice("file", nil, "Attach a file (repeatable)")

	postsExportCmd.Flags().String("format", "jsonl", "Export format: jsonl or yaml")

	postsImportCmd.Flags().Bool("remote", false, "Insert into the remote store instead of the local cache")
	postsImportCmd.Flags().Bool("dry-run", false, "Parse and count without writing")
	postsImportCmd.Flags().Bool("backup", true, "Back up the local cache before merging")

	postsCmd.AddCommand(postsListCmd, postsShowCmd, postsCreateCmd, postsLikeCmd,
		postsCommentCmd, postsExportCmd, postsImportCmd)
	rootCmd.AddCommand(postsCmd)
}
