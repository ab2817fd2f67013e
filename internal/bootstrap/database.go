package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/jobsift/jobsift/config"
	"github.com/jobsift/jobsift/internal/data"
)

const connectProbeTimeout = 5 * time.Second

// ConnectDB opens and verifies the PostgreSQL connection pool.
func ConnectDB(cfg config.DBConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectProbeTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if logger != nil {
		logger.Info("database connected")
	}
	return db, nil
}

// RunMigrations applies pending schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := data.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}
	return nil
}

// BuildCache builds the read-API page cache. An unset address, or a Redis
// that does not answer the startup ping, yields a disabled cache: the read
// API then always hits the database.
func BuildCache(cfg config.CacheConfig, logger *slog.Logger) *data.JobListCache {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled() {
		return data.NewJobListCache(nil, cfg.DataTTL)
	}

	client := data.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	ctx, cancel := context.WithTimeout(context.Background(), connectProbeTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, page cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return data.NewJobListCache(nil, cfg.DataTTL)
	}

	logger.Info("redis connected", "addr", cfg.RedisAddr)
	return data.NewJobListCache(client, cfg.DataTTL)
}
