package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"todo-list-backend/internal/analytics"
	"todo-list-backend/internal/config"
	"todo-list-backend/internal/db"
	"todo-list-backend/internal/server"
	"todo-list-backend/internal/tasks"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides ADDR)")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.Default()

	var sink analytics.Sink = analytics.NopSink{}
	if cfg.AnalyticsEnabled {
		database, err := db.Connect(ctx, cfg.ConnString())
		if err != nil {
			return fmt.Errorf("analytics db: %w", err)
		}
		defer database.Close()

		pg := analytics.NewPostgresSink(database, cfg.AnalyticsTable)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		sink = pg
		logger.Println("[INFO] analytics events go to PostgreSQL")
	}

	handler, err := server.NewHandler(server.Options{
		Config: cfg,
		Store:  tasks.NewStore(),
		Sink:   sink,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("[INFO] API server is running on %s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("[INFO] shutting down")
	return srv.Shutdown(shutdownCtx)
}
