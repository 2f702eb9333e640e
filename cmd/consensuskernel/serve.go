// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/luxfi/log"

	"github.com/luxfi/consensus/finality"
	"github.com/luxfi/consensus/ids"
	"github.com/luxfi/consensus/metrics"
	"github.com/luxfi/consensus/timesync"
)

func serveCmd() *cobra.Command {
	var addr string
	var syncInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the atomic-time oracle loop and expose /healthz and Prometheus metrics",
		Long: `serve wires the atomic-time oracle into a periodic synchronization
loop and exposes /healthz plus a Prometheus /metrics endpoint, the
harness shape for exercising the kernel locally. The consensus-critical
RPC/wire surfaces themselves stay external per spec.md's Non-goals;
this is local operator tooling only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewLogger("serve")
			registry := prometheus.NewRegistry()
			m := metrics.New(registry)

			clock := timesync.New(timesync.DefaultParams(), nil, logger)
			acc := finality.New(logger, func(hash ids.Hash) {
				logger.Info("block reached irreversible finality", "block", hash.String())
				m.IrreversibleBlocks.Inc()
			})
			_ = acc

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go syncLoop(ctx, clock, logger, m, syncInterval)

			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				if clock.Degraded() {
					w.WriteHeader(http.StatusServiceUnavailable)
					fmt.Fprintln(w, "degraded")
					return
				}
				w.WriteHeader(http.StatusOK)
				fmt.Fprintln(w, "ok")
			})
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

			srv := &http.Server{Addr: addr, Handler: mux}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-sig:
				logger.Info("shutting down")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				return srv.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address for /healthz and /metrics")
	cmd.Flags().DurationVar(&syncInterval, "sync-interval", 10*time.Second, "atomic-time oracle resynchronization interval")
	return cmd
}

func syncLoop(ctx context.Context, clock *timesync.Oracle, logger log.Logger, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := clock.Synchronize(ctx)
			m.TimeSyncStatus.Set(float64(result.Status))
			if result.Status != timesync.StatusValid {
				logger.Warn("time sync degraded", "status", result.Status.String())
			}
		}
	}
}
