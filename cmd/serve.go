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

	"vessel-cbm-monitor/internal/api"
	"vessel-cbm-monitor/internal/ingest"
)

// serveCmd starts the REST API server
func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}

				var opts []ingest.Option
				if a.cfg.AutoSave {
					opts = append(opts, ingest.WithSaver(a.persistence))
				}
				server := api.NewServer(a.store, a.pipeline(opts...), api.Config{
					PageSize:      a.cfg.Query.PageSize,
					StalenessDays: a.cfg.Query.StalenessDays,
				}, a.logger, api.WithPersistence(a.persistence))

				httpServer := &http.Server{
					Addr:              addr,
					Handler:           server.Router(),
					ReadHeaderTimeout: 10 * time.Second,
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				errCh := make(chan error, 1)
				go func() {
					a.logger.Info("api server listening",
						zap.String("addr", addr),
						zap.String("database", a.cfg.Database),
						zap.Int("readings", a.store.Len()),
					)
					errCh <- httpServer.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return fmt.Errorf("server error: %w", err)
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				a.logger.Info("api server shutting down")
				return httpServer.Shutdown(shutdownCtx)
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	return cmd
}
