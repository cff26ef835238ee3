package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/shiftreports/internal/access"
	"github.com/geocoder89/shiftreports/internal/auth"
	"github.com/geocoder89/shiftreports/internal/config"
	"github.com/geocoder89/shiftreports/internal/db"
	"github.com/geocoder89/shiftreports/internal/document"
	"github.com/geocoder89/shiftreports/internal/domain/client"
	"github.com/geocoder89/shiftreports/internal/domain/report"
	httpx "github.com/geocoder89/shiftreports/internal/http"
	"github.com/geocoder89/shiftreports/internal/identity"
	"github.com/geocoder89/shiftreports/internal/lock"
	"github.com/geocoder89/shiftreports/internal/notifications"
	"github.com/geocoder89/shiftreports/internal/observability"
	"github.com/geocoder89/shiftreports/internal/repo/memory"
	"github.com/geocoder89/shiftreports/internal/repo/postgres"
	"github.com/geocoder89/shiftreports/internal/security"
	"github.com/geocoder89/shiftreports/internal/submission"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "shiftreports-api"

// stores groups whichever backend was selected behind the interfaces the
// rest of the app consumes.
type stores struct {
	users interface {
		identity.UserStore
		db.SeedUsers
		Ping(ctx context.Context) error
	}
	clients interface {
		ListClients(ctx context.Context) ([]client.Client, error)
		CreateClient(ctx context.Context, req client.CreateClientRequest) (client.Client, error)
		CountClients(ctx context.Context) (int, error)
	}
	reports interface {
		CreateReport(ctx context.Context, req report.CreateReportRequest) (report.Report, error)
		submission.ReportStore
	}
	close func()
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger, prom *observability.Prom) (stores, error) {
	if cfg.Store == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		m := memory.NewStore()
		return stores{users: m, clients: m, reports: m, close: func() {}}, nil
	}

	// best effort: a missing database is created, anything else is logged
	db.EnsureDatabase(ctx, log, cfg.DBURL)

	pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		return stores{}, fmt.Errorf("db connect: %w", err)
	}

	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return stores{}, fmt.Errorf("db migrate: %w", err)
	}

	return stores{
		users:   postgres.NewUsersRepo(pool, prom),
		clients: postgres.NewClientsRepo(pool, prom),
		reports: postgres.NewReportsRepo(pool, prom),
		close:   pool.Close,
	}, nil
}

func newMailer(cfg config.Config, log *slog.Logger, prom *observability.Prom) notifications.Mailer {
	var inner notifications.Mailer

	switch cfg.Mail.Driver {
	case "log":
		inner = notifications.NewLogMailer(log)
	default:
		inner = notifications.NewSMTPMailer(notifications.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			User:     cfg.Mail.User,
			Password: cfg.Mail.Password,
			FromName: cfg.Mail.FromName,
		})
	}

	return notifications.NewProtectedMailer(inner, notifications.ProtectedMailerConfig{
		Timeout:          30 * time.Second,
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
		HalfOpenMaxCalls: 1,
		OnStateChange: func(state string) {
			prom.ObserveMailCircuit(state)
			if state != notifications.CircuitClosed {
				log.Warn("mail relay circuit changed", "state", state)
			}
		},
	})
}

func newLocker(ctx context.Context, cfg config.Config, log *slog.Logger) (lock.Locker, func()) {
	if cfg.Redis.Addr == "" {
		return lock.NewLocal(), func() {}
	}

	dctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rdb, err := lock.DialRedis(dctx, lock.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("redis unavailable, falling back to in-process send lock", "addr", cfg.Redis.Addr, "err", err)
		return lock.NewLocal(), func() {}
	}

	log.Info("using redis send lock", "addr", cfg.Redis.Addr)
	return lock.NewRedis(rdb, 2*time.Minute), func() { _ = rdb.Close() }
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: serviceName,
		Env:         cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	st, err := openStores(ctx, cfg, log, prom)
	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer st.close()

	hasher := security.BcryptHasher{}

	seedCtx, cancelSeed := context.WithTimeout(ctx, 10*time.Second)
	err = db.Seed(seedCtx, log, st.users, st.clients, hasher, db.SeedConfig{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		AdminName:     cfg.AdminName,
		DemoClients:   cfg.SeedDemoClients,
	})
	cancelSeed()
	if err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}

	if cfg.Mail.To == "" {
		log.Warn("SEND_EMAIL_TO is not set; sends will fail until it is configured")
	}

	locker, closeLocker := newLocker(ctx, cfg, log)
	defer closeLocker()

	jwt := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())

	engine := submission.NewEngine(
		st.reports,
		document.NewCompiler(cfg.DocumentTitle),
		newMailer(cfg, log, prom),
		locker,
		prom,
		log,
		submission.Config{
			Recipient:   cfg.Mail.To,
			Subject:     cfg.Mail.Subject,
			Body:        cfg.Mail.Body,
			Filename:    submission.DefaultFilename,
			ContentType: document.ContentType,
		},
	)

	router := httpx.NewRouter(httpx.Deps{
		Log:         log,
		Env:         cfg.Env,
		ServiceName: serviceName,
		CORSOrigins: cfg.CORSOrigins,
		Prom:        prom,
		Gatherer:    reg,
		Gate:        access.NewGate(jwt, st.users),
		Identity:    identity.NewService(st.users, hasher),
		Tokens:      jwt,
		Clients:     st.clients,
		Reports:     st.reports,
		Engine:      engine,
		Store:       st.users,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// sends wait on SMTP
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	// Graceful shutdown

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}
