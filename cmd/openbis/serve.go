package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"openbis/internal/adapters/exports"
	"openbis/internal/adapters/httpapi"
	"openbis/internal/config"
	"openbis/internal/core"
	"openbis/internal/observability"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Bootstrap the store and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			auth, err := cfg.Authenticator()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			rt, err := openApp(ctx, cfg, core.WithAuthenticator(auth))
			if err != nil {
				return err
			}
			if cfg.Auth.Mode == config.AuthAcceptAll {
				rt.logger.Warn("auth mode accept_all: every password is accepted")
			}
			defer rt.close()
			return rt.serve(ctx)
		},
	}
}

func (r *app) serve(ctx context.Context) error {
	if _, err := r.bootstrap(ctx); err != nil {
		return err
	}
	shutdownTimeout, err := r.cfg.ShutdownTimeout()
	if err != nil {
		return err
	}

	retention, err := r.cfg.ExportRetention()
	if err != nil {
		return err
	}
	worker := exports.NewWorker(r.svc, r.blobs, exports.Options{
		Workers:   r.cfg.Exports.Workers,
		QueueSize: r.cfg.Exports.QueueSize,
		Retention: retention,
		Logger:    observability.NewLogger(r.logger.Named("exports")),
	})
	worker.Start()

	handler := httpapi.NewHandler(r.svc,
		httpapi.WithExports(worker),
		httpapi.WithMetricsHandler(r.metrics.Handler()),
		httpapi.WithLogger(observability.NewLogger(r.logger.Named("http"))),
	)
	server := &http.Server{
		Addr:              r.cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown requested")
	case serveErr = <-errCh:
		if serveErr != nil {
			serveErr = fmt.Errorf("http server: %w", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		r.logger.Error("export worker shutdown failed", zap.Error(err))
	}
	return serveErr
}
