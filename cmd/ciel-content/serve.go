package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/ciel-content/internal/api"
	"github.com/terra-clan/ciel-content/internal/catalog"
	"github.com/terra-clan/ciel-content/internal/cleanup"
	"github.com/terra-clan/ciel-content/internal/refcache"
	"github.com/terra-clan/ciel-content/internal/session"
	"github.com/terra-clan/ciel-content/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("starting ciel-content",
			"version", version,
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"upstream", cfg.Upstream.BaseURL,
			"store", cfg.Store.Driver,
		)

		// Create context for initialization
		initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer initCancel()

		repo, err := openRepository(initCtx)
		if err != nil {
			return err
		}
		defer repo.Close()

		cache, err := openCache(initCtx)
		if err != nil {
			return err
		}
		defer cache.Close()

		upstream := newClient()

		catalogService := catalog.NewService(upstream, cache, catalogOptions()...)

		sessions := session.NewManager(upstream, repo, session.Config{
			PageSize:       cfg.Browse.PageSize,
			RequestTimeout: cfg.Upstream.Timeout,
			IdleTTL:        cfg.Sessions.IdleTTL,
		})

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		// Start cleanup worker
		cleaner := cleanup.NewCleaner(sessions, cfg.Sessions.CleanupInterval)
		cleaner.Start(ctx)

		server := api.NewServer(cfg.Server, sessions, catalogService,
			api.ReadinessCheck{Name: "store", Check: repo.Ping},
			api.ReadinessCheck{Name: "cache", Check: cache.Ping},
			api.ReadinessCheck{Name: "upstream", Check: upstream.Health},
		)
		httpServer := &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      server.Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 75 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("HTTP server starting", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			return fmt.Errorf("HTTP server error: %w", err)
		}

		slog.Info("shutting down gracefully...")

		// Shutdown HTTP server with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}

		sessions.Shutdown(shutdownCtx)

		slog.Info("ciel-content stopped")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply session store migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		repo, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		fmt.Printf("Session store (%s) is up to date\n", cfg.Store.Driver)
		return nil
	},
}

// openRepository opens the configured session store. Postgres migrations run
// from the configured directory or the embedded set; SQLite migrates itself
// on open.
func openRepository(ctx context.Context) (storage.Repository, error) {
	switch cfg.Store.Driver {
	case "postgres":
		slog.Info("running database migrations", "dir", cfg.Store.MigrationsDir)
		if err := storage.MigrateFromDSN(ctx, cfg.Store.DSN, storage.MigrationSource(cfg.Store.MigrationsDir)); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
			DSN:          cfg.Store.DSN,
			MaxOpenConns: int32(cfg.Store.MaxOpenConns),
			MaxIdleConns: int32(cfg.Store.MaxIdleConns),
			MaxLifetime:  cfg.Store.MaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create database repository: %w", err)
		}
		slog.Info("database connected successfully")
		return repo, nil
	default:
		repo, err := storage.NewSQLiteRepository(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		slog.Info("sqlite store opened", "path", repo.Path())
		return repo, nil
	}
}

func openCache(ctx context.Context) (refcache.Cache, error) {
	if !cfg.Redis.Enabled {
		return refcache.NewMemoryCache(), nil
	}

	cache, err := refcache.NewRedisCache(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("redis cache connected", "address", cfg.Redis.Address)
	return cache, nil
}

func catalogOptions() []catalog.Option {
	opts := []catalog.Option{
		catalog.WithTTL(cfg.Redis.TTL),
		catalog.WithFallbackCategories(cfg.Browse.Categories),
	}

	if cfg.Browse.FormationsDir != "" {
		seed, err := catalog.LoadSeedFormations(cfg.Browse.FormationsDir)
		if err != nil {
			slog.Warn("failed to load seed formations", "dir", cfg.Browse.FormationsDir, "error", err)
		} else {
			opts = append(opts, catalog.WithSeedFormations(seed))
		}
	}
	return opts
}
