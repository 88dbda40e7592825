package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quiz-tournament-client/internal/app"
	"quiz-tournament-client/internal/config"
	transport "quiz-tournament-client/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand that serves the play UI bridge.
func NewServeCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve quiz sessions to a browser over websockets",
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			return runServer(cmd.Context(), rt, *port)
		}),
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (defaults to server.port)")
	return cmd
}

func runServer(ctx context.Context, rt *runtime, portFlag string) error {
	logger := rt.logger
	if rt.pool != nil {
		if err := runMigrationsWithConfig(ctx, rt.cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = rt.cfg.Server.Port
	}

	watcher, err := app.NewStatusWatcher(rt.repo, config.TTLDuration(rt.cfg.Watch.Interval, 30*time.Second), nil, logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer func() {
		if err := watcher.Stop(); err != nil {
			logger.Warn("stop watcher", slog.Any("error", err))
		}
	}()

	router := transport.NewRouter(transport.RouterConfig{
		Service:        rt.service,
		Sessions:       rt.sessionStore(),
		Watcher:        watcher,
		Logger:         logger,
		AllowedOrigins: rt.cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
		ErrorLog:    slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting play server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-stop:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
