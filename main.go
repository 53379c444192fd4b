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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/watchmenow/watchmenow-be/internal/api"
	"github.com/watchmenow/watchmenow-be/internal/auth"
	"github.com/watchmenow/watchmenow-be/internal/config"
	"github.com/watchmenow/watchmenow-be/internal/database"
	"github.com/watchmenow/watchmenow-be/internal/logger"
	"github.com/watchmenow/watchmenow-be/internal/mailer"
	"github.com/watchmenow/watchmenow-be/internal/monitoring"
	"github.com/watchmenow/watchmenow-be/internal/services"
	"github.com/watchmenow/watchmenow-be/internal/websocket"
)

var (
	flagEnvFile string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "watchmenow",
	Short: "WatchMeNow backend: accounts, sessions and film tips over HTTP",
	// Without a subcommand the server starts.
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagEnvFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger.Init(cfg.LogLevel, !cfg.IsProduction())
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tables or collections and indexes, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		store, err := database.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		log.Info().Str("driver", cfg.DatabaseDriver).Msg("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Optional dotenv file read before the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Set up database
	store, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	sender, err := mailer.New(cfg)
	if err != nil {
		return err
	}
	userService := services.NewUserService(store, store, tokens, sender, cfg.PublicURL)
	filmService := services.NewFilmService(store, userService, hub)

	// Set up and run the background session sweeper
	sweeper, err := monitoring.NewSessionSweeper(store, cfg.SessionSweepSchedule)
	if err != nil {
		return err
	}
	go sweeper.Run()

	// Set up router
	router := api.NewRouter(api.RouterConfig{
		Hub:          hub,
		Users:        userService,
		Films:        filmService,
		Store:        store,
		CORSOrigins:  cfg.CORSOrigins,
		SecureCookie: cfg.IsProduction(),
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("driver", cfg.DatabaseDriver).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutting down server...")
	case err := <-serverErr:
		log.Error().Err(err).Msg("ListenAndServe failed")
		sweeper.Stop()
		hub.Stop()
		return err
	}

	sweeper.Stop() // Stop the session sweeper
	hub.Stop()     // Disconnect websocket clients

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}
