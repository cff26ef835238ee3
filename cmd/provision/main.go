// Command provision prepares a Postgres deployment: it creates the database
// when missing, applies migrations and seeds the bootstrap admin and demo
// clients. It is safe to run repeatedly.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/geocoder89/shiftreports/internal/config"
	"github.com/geocoder89/shiftreports/internal/db"
	"github.com/geocoder89/shiftreports/internal/observability"
	"github.com/geocoder89/shiftreports/internal/repo/postgres"
	"github.com/geocoder89/shiftreports/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db.EnsureDatabase(ctx, log, cfg.DBURL)

	pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	err = db.Seed(ctx, log,
		postgres.NewUsersRepo(pool, nil),
		postgres.NewClientsRepo(pool, nil),
		security.BcryptHasher{},
		db.SeedConfig{
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
			AdminName:     cfg.AdminName,
			DemoClients:   cfg.SeedDemoClients,
		},
	)
	if err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}

	log.Info("provisioning complete")
}
