package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prompt-atelier/promptblocks/internal/handlers"
	"github.com/prompt-atelier/promptblocks/internal/kvstore"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the prompt decomposition web server",
		Long: `Starts the Promptblocks API on the specified port.

The API accepts uploaded images as data URIs, decomposes them into prompt
blocks with a vision LLM, and streams batch progress as NDJSON.`,
		Example: `  # Start server on default port 8888
  promptblocks serve

  # Start server on custom port
  promptblocks serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := handlers.New()

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/batch-decompose", handler.WithAuth(handler.HandleBatchDecompose))
			mux.HandleFunc("/api/decompose", handler.WithAuth(handler.HandleDecompose))
			mux.HandleFunc("/api/blocks", handler.WithAuth(handler.HandleBlocks))
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			if envPort := os.Getenv("PORT"); envPort != "" && !cmd.Flags().Changed("port") {
				port = envPort
			}

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Sweep expired usage counters in the background
			janitorCtx, stopJanitor := context.WithCancel(cmd.Context())
			defer stopJanitor()
			go runJanitor(janitorCtx, handler.Usage().Store())

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Promptblocks API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}

func runJanitor(ctx context.Context, store kvstore.Store) {
	memory, ok := store.(*kvstore.Memory)
	if !ok {
		return
	}

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			memory.Sweep()
		}
	}
}
