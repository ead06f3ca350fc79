package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/charter"
	charterhttp "github.com/aretw0/charter/pkg/adapters/http"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [framework]",
	Short: "Start the HTTP server",
	Long: `Serves the governance queries and the session API over HTTP, with step
events over SSE and Prometheus metrics on /metrics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path, err := frameworkPath(args)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}

		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.close()

		var (
			hooks       domain.LifecycleHooks
			handlerOpts = []charterhttp.Option{charterhttp.WithLogger(logger)}
		)
		if !cfg.DisableMetrics {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			hooks = observability.NewMetrics(reg).Hooks()
			handlerOpts = append(handlerOpts, charterhttp.WithMetrics(reg))
		}

		exec, err := processExecutor()
		if err != nil {
			return err
		}
		it, err := charter.NewContext(ctx, path, interpreterOptions(b, hooks, exec)...)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           charterhttp.NewHandler(it, handlerOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting Charter Server", "address", srv.Addr, "framework", it.Name, "store", cfg.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-serverErrors:
			return err
		case <-shutdown.Done():
			logger.Info("Start shutdown...")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
			logger.Info("Charter Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from CHARTER_ADDR)")
}
