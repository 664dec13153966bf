// Package postgres provides a ResourceGetter for PostgreSQL connection pools
// backed by jackc/pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	svcboot "github.com/masegraye/svcboot-go"
)

// Pool resolves the factory's connection string to a *pgxpool.Pool.
//
// The pool is created on the deployment's Runtime, so its background
// health checks live as long as the deployment rather than the caller.
type Pool struct{}

var _ svcboot.ResourceGetter[*pgxpool.Pool] = Pool{}

// GetResource implements svcboot.ResourceGetter.
func (Pool) GetResource(ctx context.Context, f svcboot.Factory, rt *svcboot.Runtime) (*pgxpool.Pool, error) {
	dsn, err := svcboot.SQLConnectionString(ctx, f)
	if err != nil {
		return nil, err
	}

	cfg, err := Config(dsn)
	if err != nil {
		return nil, &svcboot.Error{Kind: svcboot.KindResource, Op: "connect postgres", Err: err}
	}

	return svcboot.RunOn(ctx, rt, "connect postgres", func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return pool, nil
	})
}

// Open is shorthand for svcboot.GetResource with Pool.
func Open(ctx context.Context, f svcboot.Factory, rt *svcboot.Runtime) (*pgxpool.Pool, error) {
	return svcboot.GetResource[*pgxpool.Pool](ctx, f, rt, Pool{})
}

// Config parses dsn and applies the fixed pool sizing.
func Config(dsn string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MinConns = svcboot.PoolMinConns
	cfg.MaxConns = svcboot.PoolMaxConns
	return cfg, nil
}
