package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campuscircle/campusfeed/internal/feed/daemon"
	"github.com/campuscircle/campusfeed/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Keep the local feed in sync (foreground)",
	Long: `Run the sync daemon in the foreground.

The daemon will:
  1. Refresh the feed and replay queued changes on start
  2. Reload the feed when another process writes the cache
  3. Replay queued changes every daemon.replay_interval
  4. Follow the push feed at feed.url, when set`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		d, err := daemon.NewWithConfig(a.syncer, a.store, &daemon.Config{
			ReplayInterval:   a.cfg.Daemon.ReplayInterval,
			DebounceInterval: a.cfg.Daemon.DebounceInterval,
			FeedURL:          a.cfg.Feed.URL,
			Logger:           a.logs.Logger("daemon"),
		})
		if err != nil {
			fatalf("failed to create daemon: %v", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("%s Sync daemon running on %s\n", ui.RenderAccent("🔄"), a.store.Dir())
		fmt.Println("Press Ctrl+C to stop...")

		if err := d.Start(ctx); err != nil {
			fatalf("daemon error: %v", err)
		}

		s := d.Stats()
		fmt.Printf("\n%s Daemon stopped: %d reloads, %d replays (%d confirmed), %d remote changes\n",
			ui.RenderPass("✓"), s.Reloads, s.Replays, s.Confirmed, s.RemoteChanges)
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
