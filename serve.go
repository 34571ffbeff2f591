package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/internal/infrastructure/repository"
	"squash-venue-enrichment/pkg/config"
	"squash-venue-enrichment/pkg/container"
	"squash-venue-enrichment/pkg/health"
	"squash-venue-enrichment/pkg/logging"
	"squash-venue-enrichment/pkg/monitoring"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ops server: health, metrics and on-demand categorization",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.Scope{Database: true, Places: true, Server: true}); err != nil {
			return err
		}
		p, err := resolveProcessor()
		if err != nil {
			return err
		}
		hm, err := container.Resolve[*health.Manager](deps)
		if err != nil {
			return err
		}
		repo, err := container.Resolve[*repository.SQLRepository](deps)
		if err != nil {
			return err
		}

		app := &App{
			engine: p,
			audits: repo,
			health: hm.Handler(),
			config: cfg,
			log:    logger.WithComponent("server"),
		}
		if cfg.EnablePprof {
			monitoring.EnableProfiling(true)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return listenAndServe(ctx, ":"+cfg.Port, newRouter(app, logger), logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// listenAndServe runs srv until ctx is cancelled, then drains in-flight requests.
func listenAndServe(ctx context.Context, addr string, h http.Handler, log *logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("ops server listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down ops server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeoutDefault)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
