// Package sqlite provides a ResourceGetter for SQLite databases backed by the
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	svcboot "github.com/masegraye/svcboot-go"
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// DB resolves the factory's connection string to a *sql.DB.
//
// The handle is opened and pinged on the deployment's Runtime and sized with
// svcboot.PoolMinConns idle and svcboot.PoolMaxConns open connections.
type DB struct{}

var _ svcboot.ResourceGetter[*sql.DB] = DB{}

// GetResource implements svcboot.ResourceGetter.
func (DB) GetResource(ctx context.Context, f svcboot.Factory, rt *svcboot.Runtime) (*sql.DB, error) {
	dsn, err := svcboot.SQLConnectionString(ctx, f)
	if err != nil {
		return nil, err
	}
	return svcboot.RunOn(ctx, rt, "open sqlite", func(ctx context.Context) (*sql.DB, error) {
		return OpenDSN(ctx, dsn)
	})
}

// Open is shorthand for svcboot.GetResource with DB.
func Open(ctx context.Context, f svcboot.Factory, rt *svcboot.Runtime) (*sql.DB, error) {
	return svcboot.GetResource[*sql.DB](ctx, f, rt, DB{})
}

// OpenDSN opens and pings a SQLite database without going through a Factory.
func OpenDSN(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(svcboot.PoolMaxConns)
	db.SetMaxIdleConns(svcboot.PoolMinConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}
