package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/superfly/carrierconf/metrics"
	"github.com/superfly/carrierconf/notify"
	"github.com/superfly/carrierconf/provider"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the store and serve metrics and health until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Metrics.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := a.openProvider(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			for _, ch := range []notify.Channel{notify.Carriers, notify.CarriersDM, notify.SimInfo} {
				cancel := p.Subscribe(ch, changeLogger(a.logger))
				defer cancel()
			}

			srv := &http.Server{
				Addr:         addr,
				Handler:      newServeMux(a, p),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.WithFields(logrus.Fields{"addr": addr, "path": a.cfg.Metrics.Path}).Info("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("failed to start server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.WithError(err).Error("server forced to shutdown")
				return err
			}
			a.logger.Info("server exited gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: metrics.addr)")
	return cmd
}

func newServeMux(a *app, p *provider.Provider) *http.ServeMux {
	health := p.HealthChecker()
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, metrics.Handler(a.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := health.CheckAll(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func changeLogger(logger logrus.FieldLogger) notify.Observer {
	return notify.ObserverFunc(func(c notify.Change) {
		logger.WithFields(logrus.Fields{
			"change_id": c.ID.String(),
			"channel":   string(c.Channel),
			"resource":  c.Resource,
			"op":        c.Op,
			"count":     c.Count,
		}).Info("content changed")
	})
}
