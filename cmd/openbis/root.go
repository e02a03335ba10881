package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"openbis/internal/blob"
	"openbis/internal/config"
	"openbis/internal/core"
	"openbis/internal/observability"
	"openbis/pkg/domain"
)

var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "openbis",
		Short:         "Laboratory information server for samples, experiments and data sets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "openbis.yaml", "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newBootstrapCommand(opts))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// app holds everything opened from a configuration.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	store   domain.PersistentStore
	blobs   blob.Store
	svc     *core.Service
}

// openApp opens the stores and builds the service; extra options are
// applied after the configured ones.
func openApp(ctx context.Context, cfg *config.Config, extra ...core.Option) (*app, error) {
	logger, err := observability.NewZapLogger(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.SessionTTLDuration()
	if err != nil {
		return nil, err
	}
	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	opts := []core.Option{
		core.WithLogger(observability.NewLogger(logger)),
		core.WithAuditRecorder(observability.NewAuditLogger(logger)),
		core.WithMetricsRecorder(metrics),
		core.WithBlobStore(blobs),
		core.WithSessionTTL(ttl),
	}
	svc := core.NewService(store, append(opts, extra...)...)
	logger.Info("server components opened",
		zap.String("storage", string(cfg.Storage.Driver)),
		zap.String("blob", string(blobs.Driver())),
		zap.Duration("session_ttl", ttl),
	)
	return &app{cfg: cfg, logger: logger, metrics: metrics, store: store, blobs: blobs, svc: svc}, nil
}

func (r *app) bootstrap(ctx context.Context) (core.BootstrapReport, error) {
	started := time.Now()
	report, err := r.svc.Bootstrap(ctx, core.BootstrapRequest{
		InstanceCode: r.cfg.InstanceCode,
		AdminUserID:  r.cfg.AdminUserID,
	})
	if err != nil {
		return report, fmt.Errorf("bootstrap: %w", err)
	}
	r.logger.Info("bootstrap finished",
		zap.String("instance", report.Instance.Code),
		zap.Bool("created", report.InstanceCreated),
		zap.Bool("renamed", report.InstanceRenamed),
		zap.Duration("took", time.Since(started)),
	)
	return report, nil
}

func (r *app) close() {
	closeStore(r.store)
	_ = r.logger.Sync()
}

func closeStore(store domain.PersistentStore) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}
