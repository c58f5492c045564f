package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stored models over an HTTP JSON API",
		Long: `Serve the stored models over an HTTP JSON API until interrupted.
When an API key is configured every request must send it in the
"markovtext-auth" header.

Endpoints:
  GET    /api/models                   list models
  GET    /api/models/NAME              model details
  DELETE /api/models/NAME              remove a model
  POST   /api/models/NAME/train        train from the request body
  POST   /api/models/NAME/import       import an exported model
  GET    /api/models/NAME/export       export a model
  GET    /api/models/NAME/generate     generate sentences
  POST   /api/prune                    remove unused vocabulary
  GET    /api/stats                    database statistics
  POST   /api/render                   render a template
  GET    /api/version                  build information

Examples:
  markovtext serve --addr :7280
  curl 'localhost:7280/api/models/news/generate?count=3&max_chars=140'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.config.Server.Addr
			}
			return runServe(cmd.Context(), a, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default: from config)")
	return cmd
}

// runServe hosts the API until ctx is done or the process is signalled.
func runServe(ctx context.Context, a *app, addr string) error {
	s, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	api := NewModelAPI(s, a.config, a.logger)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           api.Authenticate(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("Starting api server", "address", addr, "auth", a.config.Server.APIKey != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err = <-errChan:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Stopping api server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Api server shutdown failed", "error", err)
		return err
	}
	a.logger.Info("Api server stopped.")
	return nil
}
