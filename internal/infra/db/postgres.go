package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/acme/engagement-compliance/internal/config"
)

const defaultHealthQuery = "SELECT 1"

// Postgres wraps a sqlx DB instance backed by a pgx pool.
type Postgres struct {
	pool        *pgxpool.Pool
	db          *sqlx.DB
	healthQuery string
}

// NewPostgres creates a new connection pool and verifies it with a ping.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig) (*Postgres, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}

	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	if err := db.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	healthQuery := cfg.HealthQuery
	if healthQuery == "" {
		healthQuery = defaultHealthQuery
	}
	return &Postgres{pool: pool, db: db, healthQuery: healthQuery}, nil
}

// DB exposes the sqlx handle used by the repositories.
func (p *Postgres) DB() *sqlx.DB {
	return p.db
}

// HealthCheck runs the configured health query.
func (p *Postgres) HealthCheck(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, p.healthQuery); err != nil {
		return fmt.Errorf("postgres: health: %w", err)
	}
	return nil
}

// Close drains the pool and releases resources.
func (p *Postgres) Close(ctx context.Context) error {
	var err error
	if p.db != nil {
		err = p.db.Close()
	}
	if p.pool != nil {
		p.pool.Close()
	}
	return err
}
