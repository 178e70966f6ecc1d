// Command carrierctl operates the carrier APN store and the operator name
// resolver: it queries and edits carrier rows, restores the factory set,
// resolves operator names, mirrors S3 asset overlays and serves metrics.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/superfly/carrierconf/assets"
	"github.com/superfly/carrierconf/config"
	"github.com/superfly/carrierconf/logging"
	"github.com/superfly/carrierconf/metrics"
	"github.com/superfly/carrierconf/provider"
	"github.com/superfly/carrierconf/s3"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds state shared by every subcommand once the root pre-run has
// loaded configuration.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	logger   *logrus.Logger
	closer   io.Closer
	registry *prometheus.Registry
	metrics  *metrics.Store
	resolver *metrics.Resolver
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "carrierctl",
		Short:        "Carrier APN store and operator name tool",
		Long:         `carrierctl manages the carrier APN database, its preferred-APN settings and the operator name tables built from carrier XML assets.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (default: ./carrierconf.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newQueryCommand(a),
		newInsertCommand(a),
		newUpdateCommand(a),
		newDeleteCommand(a),
		newRestoreCommand(a),
		newPopulateCommand(a),
		newResolveCommand(a),
		newAssetsCommand(a),
		newServeCommand(a),
		newVersionCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logger, closer, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.closer = closer
	a.registry = metrics.NewRegistry()
	a.metrics = metrics.NewStore(a.registry)
	a.resolver = metrics.NewResolver(a.registry)
	return nil
}

func (a *app) close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

// layout builds the asset areas. An enabled S3 overlay replaces the vendor
// directory.
func (a *app) layout(ctx context.Context) (assets.Layout, error) {
	l := assets.Layout{
		Bundled: assets.NewDirSource(a.cfg.Assets.Bundled),
		System:  assets.NewDirSource(a.cfg.Assets.System),
		Vendor:  assets.NewDirSource(a.cfg.Assets.Vendor),
	}
	if a.cfg.Assets.S3.Enable {
		src, err := a.s3Source(ctx)
		if err != nil {
			return assets.Layout{}, err
		}
		l.Vendor = src
	}
	return l, nil
}

func (a *app) s3Source(ctx context.Context) (*s3.Source, error) {
	c := a.cfg.Assets.S3
	return s3.New(ctx, s3.Config{
		Region:   c.Region,
		Bucket:   c.Bucket,
		Prefix:   c.Prefix,
		Endpoint: c.Endpoint,
		Logger:   a.logger,
	})
}

func (a *app) openProvider(ctx context.Context) (*provider.Provider, error) {
	layout, err := a.layout(ctx)
	if err != nil {
		return nil, err
	}
	for _, path := range []string{a.cfg.Database.Path, a.cfg.Prefs.Path} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return provider.Open(ctx, provider.Config{
		Database:      a.cfg.DatabaseConfig(),
		Prefs:         a.cfg.PrefsConfig(),
		Layout:        layout,
		DefaultSubID:  a.cfg.DefaultSubID,
		Logger:        a.logger,
		Metrics:       a.metrics,
		SlowThreshold: a.cfg.SlowThreshold,
	})
}
