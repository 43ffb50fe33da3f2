// Package db stores workspace state in Postgres.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPoolMaxConnLifetime = time.Hour
	defaultPoolMaxConns        = 8
	connectTimeout             = 5 * time.Second
)

// Pool wraps pgx connection pooling.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects and pings once, so a bad DATABASE_URL fails at startup.
func NewPool(ctx context.Context, connString string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = defaultPoolMaxConns
	cfg.MaxConnLifetime = defaultPoolMaxConnLifetime
	// Simple protocol keeps us compatible with transaction poolers.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
