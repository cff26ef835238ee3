package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env   string `env:"APP_ENV, default=dev"`
	Port  int    `env:"PORT, default=8080"`
	Store string `env:"STORE, default=postgres"`

	DBURL      string `env:"DATABASE_URL"`
	DBHost     string `env:"DB_HOST, default=127.0.0.1"`
	DBPort     string `env:"DB_PORT, default=5432"`
	DBUser     string `env:"DB_USER, default=postgres"`
	DBPassword string `env:"DB_PASSWORD, default=postgres"`
	DBName     string `env:"DB_NAME, default=mhp_portal"`
	DBSSLMode  string `env:"DB_SSLMODE, default=disable"`
	DBMaxConns int32  `env:"DB_MAX_CONNS, default=5"`

	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES, default=60"`

	AdminEmail      string `env:"ADMIN_EMAIL, default=admin@mhp.local"`
	AdminPassword   string `env:"ADMIN_PASSWORD"`
	AdminName       string `env:"ADMIN_NAME, default=Admin"`
	SeedDemoClients bool   `env:"SEED_DEMO_CLIENTS, default=true"`

	Mail  MailConfig
	Redis RedisConfig

	OTelEndpoint    string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRatio float64  `env:"OTEL_SAMPLE_RATIO, default=1"`
	CORSOrigins     []string `env:"CORS_ORIGINS, default=http://localhost:3000,http://127.0.0.1:3000"`
	DocumentTitle   string   `env:"DOCUMENT_TITLE, default=MHP Reporting"`
}

type MailConfig struct {
	Driver   string `env:"MAIL_DRIVER, default=smtp"`
	Host     string `env:"SMTP_HOST, default=smtp.gmail.com"`
	Port     int    `env:"SMTP_PORT, default=587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	FromName string `env:"MAIL_FROM_NAME, default=MHP Portal"`
	To       string `env:"SEND_EMAIL_TO"`
	Subject  string `env:"MAIL_SUBJECT, default=MHP Reports"`
	Body     string `env:"MAIL_BODY, default=Attached are the latest reports."`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set outside dev")

// devJWTSecret keeps local runs working without a .env file.
const devJWTSecret = "dev-only-insecure-secret"

// Load reads a .env file when present and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	return LoadFrom(context.Background(), envconfig.OsLookuper())
}

func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config

	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if cfg.DBURL == "" {
		cfg.DBURL = cfg.buildDBURL()
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "prod" {
			return Config{}, ErrMissingJWTSecret
		}
		cfg.JWTSecret = devJWTSecret
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	return cfg, nil
}

func (c Config) buildDBURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
