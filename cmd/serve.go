package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spotter-labs/fuel-router/internal/api"
	"github.com/spotter-labs/fuel-router/internal/db"
	"github.com/spotter-labs/fuel-router/internal/osrm"
	"github.com/spotter-labs/fuel-router/internal/station"
	"github.com/spotter-labs/fuel-router/pkg/geocode"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the route-planning HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Store.DatabaseURL == "" {
			return eris.New("database url is required (DATABASE_URL)")
		}

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		routeCache := osrm.NewRedisCache(cfg.Redis.URL)
		defer routeCache.Close() //nolint:errcheck

		var osrmOpts []osrm.Option
		if routeCache != nil {
			osrmOpts = append(osrmOpts, osrm.WithCache(routeCache))
		}
		osrmClient := osrm.NewClient(cfg.OSRM.BaseURL, osrmOpts...)

		server := api.NewServer(
			station.NewPostgresStore(pool),
			osrmClient,
			api.NewRouterFactory(geocode.NewCache(pool), cfg),
			cfg,
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Handler(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
