package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/sessiondb"
	httpAdapter "github.com/aretw0/sessiondb/internal/adapters/http"
	"github.com/aretw0/sessiondb/internal/cli"
	"github.com/aretw0/sessiondb/internal/presentation/tui"
	"github.com/aretw0/sessiondb/pkg/observability"
	"github.com/aretw0/sessiondb/pkg/sessionstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin HTTP server",
		Long:  `Serves the session admin API and Prometheus metrics over HTTP until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}

			sc := cli.NewSignalContext(cmd.Context())
			defer sc.Cancel()

			return a.withStore(cmd, func(store *sessionstore.Store) error {
				out := cmd.OutOrStdout()
				tui.PrintBanner(out)
				tui.Status(out, "version", sessiondb.Version)
				tui.Status(out, "backend", cli.Backend(a.cfg.Store))
				tui.Status(out, "listen", a.cfg.Server.Addr)
				fmt.Fprintln(out)

				return serve(sc, a.cfg.Server.Addr, newServeHandler(store, a.logger), a.logger)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default from config)")
	return cmd
}

// newServeHandler wires the admin API and a metrics registry around store.
func newServeHandler(store *sessionstore.Store, logger *slog.Logger) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		observability.NewCollector(store, 0),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return httpAdapter.NewHandler(store, logger, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// serve runs the server until sc is cancelled, then shuts it down gracefully.
func serve(sc *cli.SignalContext, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting admin server", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-sc.Done():
		logger.Info("Start shutdown", "signal", sc.Signal())

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		logger.Info("Admin server stopped gracefully")
		return nil
	}
}
