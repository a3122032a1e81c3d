package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/detector"
	"github.com/kozaktomas/face-recognizer/internal/embedding"
	"github.com/kozaktomas/face-recognizer/internal/enrollstore"
	"github.com/kozaktomas/face-recognizer/internal/facefilter"
	"github.com/kozaktomas/face-recognizer/internal/index"
	"github.com/kozaktomas/face-recognizer/internal/recognizer"
	"github.com/kozaktomas/face-recognizer/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recognition web server",
	Long: `Start the face recognition web server.
The server exposes recognition endpoints for single images and batches,
plus index reload and stats endpoints for operators.

The similarity index must exist before the server starts; run
'face-recognizer bootstrap' once to create it.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// buildService wires the recognition pipeline from configuration: model
// server clients, the persisted index, and the enrollment store.
func buildService(cfg *config.Config) (*recognizer.Service, error) {
	idx, err := index.LoadOrFail(cfg.Index.Path)
	if err != nil {
		if errors.Is(err, index.ErrIndexNotFound) {
			return nil, fmt.Errorf("no index at %s; run 'face-recognizer bootstrap' first", cfg.Index.Path)
		}
		return nil, fmt.Errorf("loading index: %w", err)
	}

	if idx.Dim() != cfg.Embedding.Dim {
		return nil, fmt.Errorf("index dimension %d does not match EMBEDDING_DIM %d", idx.Dim(), cfg.Embedding.Dim)
	}

	store, err := enrollstore.NewStore(cfg.Faces.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening enrollment store: %w", err)
	}

	det := detector.NewClient(cfg.Detector.URL)
	emb := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim)

	return recognizer.NewService(det, emb, idx, store, recognizer.Options{
		Threshold: cfg.Matching.Threshold,
		Filter: facefilter.Options{
			EdgeMarginRatio:  cfg.Filter.EdgeMarginRatio,
			ProfileThreshold: cfg.Filter.ProfileThreshold,
		},
	}), nil
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	service, err := buildService(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Index loaded from %s (%d faces, dim %d)\n", service.IndexPath(), service.IndexSize(), service.IndexDim())

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(service, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting face recognizer on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
