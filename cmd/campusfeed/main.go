package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	dataDirFlag string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "campusfeed",
	Short: "Campus social feed with offline-first sync",
	Long: `campusfeed keeps a local copy of the campus feed and syncs it with the
remote store when one is configured.

Every change lands in the local cache first. When the remote is unreachable
the change is queued and replayed later (see 'campusfeed sync status').

Configuration lives in ~/.campusfeed/config.toml; every key can be
overridden with a CAMPUSFEED_ environment variable, for example
CAMPUSFEED_REMOTE_DSN=/srv/campusfeed/feed.db.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "account", Title: "Account:"},
		&cobra.Group{ID: "feed", Title: "Feed:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default <data-dir>/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default ~/.campusfeed)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// fatalf reports an error the way every command does and exits.
func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func outputJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf("failed to encode JSON: %v", err)
	}
	fmt.Println(string(data))
}
