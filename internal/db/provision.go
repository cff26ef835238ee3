package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// EnsureDatabase creates the target database when it is missing. It connects
// to the maintenance "postgres" database of the same server. Failures are
// logged and swallowed: the database may already exist or the role may lack
// CREATEDB, and opening the pool afterwards reports any real problem.
func EnsureDatabase(ctx context.Context, log *slog.Logger, dbURL string) {
	cfg, err := pgx.ParseConfig(dbURL)
	if err != nil {
		log.Warn("provision: cannot parse database url", "err", err)
		return
	}

	name := cfg.Database
	if name == "" || name == "postgres" {
		return
	}

	cfg.Database = "postgres"

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		log.Warn("provision: cannot reach maintenance database", "err", err)
		return
	}
	defer func() { _ = conn.Close(ctx) }()

	var exists bool
	err = conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		log.Warn("provision: database lookup failed", "err", err)
		return
	}

	if exists {
		return
	}

	_, err = conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize())
	if err != nil {
		log.Warn("provision: create database failed", "database", name, "err", err)
		return
	}

	log.Info("provision: database created", "database", name)
}

// Migrate applies the embedded schema files in name order. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrationFiles.ReadFile(name)
		if err != nil {
			return err
		}

		_, err = pool.Exec(ctx, string(sql))
		if err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}

	return nil
}
