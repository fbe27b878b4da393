package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/dialogmesh"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversation API over HTTP",
		Long: `Starts the HTTP API:

  POST /conversations/{id}/messages
  GET  /conversations/{id}/tracker
  POST /conversations/{id}/resume
  GET  /health

In-flight turns are allowed to finish on SIGINT/SIGTERM.`,
		RunE: runServe,
	}
	cmd.Flags().String("listen", "", "listen address (overrides the configuration)")
	cmd.Flags().Duration("shutdown-timeout", 30*time.Second, "grace period for in-flight turns")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mesh, closeStore, err := dialogmesh.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing tracker store failed", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mesh.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "domain", cfg.DomainPath, "store", cfg.Store.Type)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	grace, _ := cmd.Flags().GetDuration("shutdown-timeout")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	logger.Info("shutting down")

	return srv.Shutdown(shutdownCtx)
}
