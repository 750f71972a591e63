package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	feedsync "github.com/campuscircle/campusfeed/internal/feed/sync"
	"github.com/campuscircle/campusfeed/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Inspect and replay queued changes",
	Long: `Changes made while the remote is unreachable are queued as intents in the
data directory. 'sync replay' pushes them; the daemon does the same on a
timer.`,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the remote, the cache and the intent queue",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		intents := a.syncer.Intents()
		counts := intents.Counts()
		posts := a.syncer.Posts()

		remote := "not configured"
		switch {
		case a.gateway != nil:
			remote = a.database.DSN()
		case a.cfg.RemoteConfigured():
			remote = a.cfg.Remote.DSN + " (unreachable)"
		}

		remotePosts, remoteComments, countErr := a.remoteCounts(context.Background())
		if countErr != nil && a.database != nil {
			a.logs.Logger("campusfeed").Printf("Warning: %v", countErr)
		}

		if jsonOutput {
			out := map[string]interface{}{
				"remote":    remote,
				"data_dir":  a.store.Dir(),
				"posts":     len(posts),
				"pending":   counts[feedsync.IntentPending],
				"confirmed": counts[feedsync.IntentConfirmed],
				"failed":    counts[feedsync.IntentFailed],
				"intents":   intents.List(),
			}
			if countErr == nil {
				out["remote_posts"] = remotePosts
				out["remote_comments"] = remoteComments
			}
			outputJSON(out)
			return
		}

		fmt.Printf("\n%s Sync Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Remote:   %s\n", remote)
		fmt.Printf("Data dir: %s\n", a.store.Dir())
		fmt.Printf("Posts:    %d cached\n", len(posts))
		if countErr == nil {
			fmt.Printf("          %d posts, %d comments on the remote\n", remotePosts, remoteComments)
		}
		fmt.Printf("Intents:  %d pending, %d failed\n", counts[feedsync.IntentPending], counts[feedsync.IntentFailed])

		for _, in := range intents.List() {
			if in.Status == feedsync.IntentConfirmed {
				continue
			}
			mark := ui.RenderWarn("…")
			if in.Status == feedsync.IntentFailed {
				mark = ui.RenderFail("✗")
			}
			fmt.Printf("  %s %-14s %s %s\n", mark, in.Kind, in.PostID,
				ui.RenderMuted(fmt.Sprintf("attempts=%d %s", in.Attempts, in.LastError)))
		}
		fmt.Println()
	},
}

var syncReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Push queued changes to the remote now",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		if !a.syncer.RemoteConfigured() {
			fmt.Printf("%s No remote configured; nothing to replay\n", ui.RenderWarn("⚠"))
			return
		}

		res := a.syncer.ReplayPending(context.Background())
		if jsonOutput {
			outputJSON(res)
			return
		}
		fmt.Printf("%s Replayed %d intents: %d confirmed, %d failed, %d still pending\n",
			ui.RenderPass("✓"), res.Attempted, res.Confirmed, res.Failed, res.Pending)
		if res.Failed > 0 {
			fmt.Fprintf(os.Stderr, "Run 'campusfeed sync status' to see why\n")
		}
	},
}

func init() {
	syncCmd.AddCommand(syncStatusCmd, syncReplayCmd)
	rootCmd.AddCommand(syncCmd)
}
