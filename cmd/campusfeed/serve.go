package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campuscircle/campusfeed/internal/feed/realtime"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Serve the push feed and stored files",
	Long: `Start the feed server.

Endpoints:
  ws://host:port/ws         push feed of post changes
  POST /publish             accepts a change from another campusfeed process
  GET  /storage/{bucket}/…  uploaded attachments and avatars
  GET  /health              liveness and client count

Point other clients at it with feed.url = "ws://host:port/ws".`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		port := a.cfg.Feed.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		host, _ := cmd.Flags().GetString("host")

		server := realtime.NewServer(&realtime.Config{
			Host:   host,
			Port:   port,
			Logger: a.logs.Logger("feed"),
		})
		server.Handle("/storage/", http.StripPrefix("/storage", a.objects.Handler()))
		if a.gateway != nil {
			a.gateway.SetPublisher(server)
		}

		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start feed server: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Feed server started on http://%s\n", server.GetAddr())
		fmt.Printf("WebSocket endpoint: %s\n", server.URL())
		fmt.Printf("Storage: http://%s/storage/\n", server.GetAddr())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down feed server...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Feed server stopped")
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (default feed.port)")
	serveCmd.Flags().String("host", realtime.DefaultHost, "Interface to bind (0.0.0.0 for all)")
	rootCmd.AddCommand(serveCmd)
}
