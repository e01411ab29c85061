package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tapalogi/game-room/internal/config"
	"github.com/Tapalogi/game-room/internal/logging"
	"github.com/Tapalogi/game-room/internal/relay"
	"github.com/Tapalogi/game-room/internal/server"
	"github.com/Tapalogi/game-room/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the room router",
	Long: `Run the room router.

Every flag can also be set through the environment with the GAME_ROOM_ prefix,
for example GAME_ROOM_LISTEN_PORT=9000. A .env file in the working directory is
loaded if present. Flags take precedence over the environment.

Examples:
  game-room serve
  game-room serve -l 9000 -d
  game-room serve --server-uuid 6ba7b810-9dad-11d1-80b4-00c04fd430c8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.DebugMode)

	registry := relay.NewRegistry(relay.Options{
		QueueSize:     cfg.QueueSize,
		NotifyServer:  cfg.NotifyServer,
		AllowedServer: cfg.ServerUUID,
		Logger:        logger,
	})

	router := server.NewRouter(logger, registry, server.Options{
		MaxMessageSize: cfg.MaxMessageSize,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
	})

	// No read or write timeouts: upgraded connections manage their own deadlines.
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("version", version.Version).
			Bool("notify_server", cfg.NotifyServer).
			Msg("starting game room router")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server failed to start")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	config.RegisterFlags(serveCmd.Flags())
}
