package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/store"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the surveillance web server",
	Long: `Start the CycleGuard web server.

The server accepts drop-off and pickup evidence uploads, runs the
matching pipeline and serves the recorded event history.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves host and port from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (string, int) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening event store: %w", err)
	}
	defer st.Close()

	index := store.NewDropoffIndex()
	pipeline, err := buildPipeline(ctx, cfg, st, index)
	if err != nil {
		return err
	}

	count, err := pipeline.RebuildIndex(ctx)
	if err != nil {
		return fmt.Errorf("building similarity index: %w", err)
	}
	fmt.Printf("Similarity index ready with %d drop-offs\n", count)

	host, port := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, host, port, pipeline, st, index)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting CycleGuard on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
