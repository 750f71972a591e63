package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/campuscircle/campusfeed/internal/feed/loadtest"
	"github.com/campuscircle/campusfeed/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "advanced",
	Short:   "Load tests",
}

var benchLikesCmd = &cobra.Command{
	Use:   "likes",
	Short: "Run a concurrent like storm and check no toggle is lost",
	Long: `Run N clients that toggle likes on a few posts at the same time, then
check that every post's liker list matches what the clients saw.

By default the storm runs against a throwaway SQLite database. Pass --dsn
to aim it at another database; only bench-* posts are touched.`,
	Run: func(cmd *cobra.Command, args []string) {
		dsn, _ := cmd.Flags().GetString("dsn")
		numPosts, _ := cmd.Flags().GetInt("posts")
		clients, _ := cmd.Flags().GetInt("clients")
		toggles, _ := cmd.Flags().GetInt("toggles")

		if dsn == "" {
			dir, err := os.MkdirTemp("", "campusfeed-bench-")
			if err != nil {
				fatalf("%v", err)
			}
			defer os.RemoveAll(dir)
			dsn = filepath.Join(dir, "bench.db")
		}

		b, err := loadtest.Setup(dsn, numPosts)
		if err != nil {
			fatalf("%v", err)
		}
		defer b.Close()

		fmt.Printf("%s %d clients × %d toggles over %d posts\n", ui.RenderAccent("⚡"), clients, toggles, numPosts)
		ctx := context.Background()
		start := time.Now()
		stats, err := b.RunLikeStorm(ctx, clients, toggles)
		if err != nil {
			fatalf("%v", err)
		}
		elapsed := time.Since(start)

		stats.PrintStats(os.Stdout)
		fmt.Printf("  Throughput:    %.0f toggles/s\n", float64(stats.TotalQueries)/elapsed.Seconds())

		mismatches, err := b.VerifyConsistency(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		if len(mismatches) > 0 {
			for _, m := range mismatches {
				fmt.Printf("%s %s: stored %d likers, clients expect %d\n", ui.RenderFail("✗"), m.PostID, len(m.Stored), len(m.Believe))
			}
			fatalf("%d posts lost like updates", len(mismatches))
		}
		fmt.Printf("%s No lost updates\n", ui.RenderPass("✓"))
	},
}

func init() {
	benchLikesCmd.Flags().String("dsn", "", "Database to use (default a temporary SQLite file)")
	benchLikesCmd.Flags().Int("posts", 5, "Number of posts to like")
	benchLikesCmd.Flags().Int("clients", 20, "Concurrent clients")
	benchLikesCmd.Flags().Int("toggles", 50, "Toggles per client")

	benchCmd.AddCommand(benchLikesCmd)
	rootCmd.AddCommand(benchCmd)
}
