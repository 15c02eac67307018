package repository

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/migrate"
)

// OpenSQLite opens a bun DB over the sqlite shim. In memory databases are
// pinned to a single connection so every query sees the same schema.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database").
			WithMetadata(map[string]any{"dsn": dsn})
	}

	if isMemoryDSN(dsn) {
		sqldb.SetMaxOpenConns(1)
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Migrate applies the embedded migrations
func Migrate(ctx context.Context, db *bun.DB) error {
	migrations := migrate.NewMigrations()
	if err := migrations.Discover(GetMigrationsFS()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discover migrations")
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to init migrations")
	}

	if _, err := migrator.Migrate(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to migrate")
	}
	return nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
