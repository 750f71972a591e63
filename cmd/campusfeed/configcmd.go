package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campuscircle/campusfeed/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		// a --config that does not exist yet is the file to create
		path := cfgFile
		if path != "" {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				cfgFile = ""
			}
		}
		cfg := loadConfig()

		if path == "" {
			path = cfg.Path()
		}
		if err := cfg.WriteFile(path, force); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if jsonOutput {
			outputJSON(cfg)
			return
		}
		if err := cfg.WriteTOML(os.Stdout); err != nil {
			fatalf("%v", err)
		}
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
