// Package postgres provides the PostgreSQL posture store for possync.
// It implements connection pooling and the session-scoped security context
// every reader and writer must hold: a connection is bound to exactly one
// tenant (or to the cross-tenant admin scope) once, immediately after
// acquisition, and the binding cannot change for the connection's lifetime.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

// Store manages the PostgreSQL connection pool lifecycle.
type Store struct {
	pool   *pgxpool.Pool
	config *config.DatabaseConfig
	logger logger.Logger
}

// NewStore creates the connection pool and performs an initial health check.
//
// Parameters:
//   - ctx: Context for connection timeout control
//   - cfg: Database configuration including host, credentials, and pool settings
//   - log: Logger instance for connection lifecycle events
//
// Returns:
//   - *Store: Initialized store
//   - error: Connection establishment error if any
func NewStore(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*Store, error) {
	if cfg == nil {
		return nil, errors.ErrConfiguration("database configuration is nil")
	}

	log.Info(ctx, "initializing PostgreSQL connection pool",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
		logger.Int("max_conns", cfg.MaxConns),
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, errors.ErrConfiguration("failed to parse database connection string").WithCause(err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Minute
	poolConfig.MaxConnIdleTime = time.Duration(cfg.MaxConnIdleTime) * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ConnTimeout)*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, errors.ErrTransient("failed to create database connection pool").WithCause(err)
	}

	s := &Store{pool: pool, config: cfg, logger: log.WithComponent("Store")}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info(ctx, "PostgreSQL connection pool ready",
		logger.Int("total_conns", int(pool.Stat().TotalConns())),
	)
	return s, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.pool.Ping(pingCtx); err != nil {
		s.logger.Error(ctx, "database ping failed", err)
		return errors.ErrTransient("database unreachable").WithCause(err)
	}
	return nil
}

// HealthCheck returns connection pool statistics for the health endpoint.
func (s *Store) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	stats := s.pool.Stat()
	return map[string]interface{}{
		"status":               "healthy",
		"total_connections":    stats.TotalConns(),
		"idle_connections":     stats.IdleConns(),
		"acquired_connections": stats.AcquiredConns(),
		"max_connections":      s.config.MaxConns,
	}, nil
}

// Close gracefully shuts down the connection pool.
func (s *Store) Close() {
	s.logger.Info(context.Background(), "closing PostgreSQL connection pool")
	s.pool.Close()
}
