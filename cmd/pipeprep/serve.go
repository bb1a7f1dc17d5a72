package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/spf13/cobra"

	"github.com/aretw0/pipeprep"
	"github.com/aretw0/pipeprep/internal/cli"
	"github.com/aretw0/pipeprep/internal/presentation/tui"
	httpAdapter "github.com/aretw0/pipeprep/pkg/adapters/http"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serves the preparation API over HTTP, with server-sent events for session changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("metrics") {
			cfg.Metrics.Enabled, _ = cmd.Flags().GetBool("metrics")
		}
		cfg.Log.Format = "json"
		logger := cli.NewLogger(cfg.Log)

		ctx := lifecycle.NewSignalContext(cmd.Context())

		streams := httpAdapter.NewStreamManager(logger)
		app, err := cli.Build(ctx, cfg, logger, pipeprep.WithListener(streams))
		if err != nil {
			return err
		}
		defer app.Close()

		handlerOpts := []httpAdapter.Option{
			httpAdapter.WithStreams(streams),
			httpAdapter.WithWatcher(app.Graph),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMaxUploadBytes(cfg.HTTP.MaxUploadBytes),
		}
		if app.Metrics != nil {
			handlerOpts = append(handlerOpts, httpAdapter.WithMetrics(app.Metrics))
		}

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpAdapter.NewHandler(app.Service, handlerOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if tui.IsTerminal(os.Stderr) {
			tui.PrintBanner(os.Stderr, pipeprep.Version)
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting pipeprep server", "address", srv.Addr, "graph_dir", cfg.GraphDir, "sessions", cfg.Sessions.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case <-ctx.Done():
			logger.Info("Shutdown signal received")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				return srv.Close()
			}
			logger.Info("pipeprep server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("metrics", false, "Expose Prometheus metrics on /metrics")
}
