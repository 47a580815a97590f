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

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/cli"
	httpAdapter "github.com/aretw0/concierge/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the concierge in server mode, exposing runs as a JSON API over HTTP with SSE state streams.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, debug := configFlags(cmd)
		cfg, err := cli.LoadConfig(path, debug)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		registry := prometheus.NewRegistry()
		streams := httpAdapter.NewStreamManager()
		stack, err := cli.Build(cfg, cli.WithRegisterer(registry), cli.WithHooks(streams.Hooks()))
		if err != nil {
			return err
		}
		defer stack.Close()

		handler := httpAdapter.NewHandler(stack.Engine,
			httpAdapter.WithStreams(streams),
			httpAdapter.WithJournal(stack.Journal),
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
			httpAdapter.WithLogger(stack.Logger),
			httpAdapter.WithVersion(concierge.Version),
		)

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			stack.Logger.Info("Starting concierge server", "address", srv.Addr, "store", cfg.Store.Driver)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			stack.Logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				stack.Logger.Error("Graceful shutdown did not complete", "timeout", 5*time.Second, "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			stack.Logger.Info("Concierge server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (defaults to http.addr)")
}
