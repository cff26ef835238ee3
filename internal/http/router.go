package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/shiftreports/internal/cache"
	"github.com/geocoder89/shiftreports/internal/domain/client"
	"github.com/geocoder89/shiftreports/internal/http/handlers"
	"github.com/geocoder89/shiftreports/internal/http/middlewares"
	"github.com/geocoder89/shiftreports/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type Identity interface {
	handlers.Authenticator
	handlers.UserDirectory
}

// Deps is everything the router needs, built once in main.
type Deps struct {
	Log         *slog.Logger
	Env         string
	ServiceName string
	CORSOrigins []string

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Gate     middlewares.Resolver
	Identity Identity
	Tokens   handlers.TokenIssuer
	Clients  handlers.ClientStore
	Reports  handlers.ReportStore
	Engine   handlers.Submitter
	Store    handlers.Pinger

	LoginLimit      int
	LoginWindow     time.Duration
	ClientsCacheTTL time.Duration
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.ServiceName == "" {
		d.ServiceName = "shiftreports-api"
	}
	if d.LoginLimit <= 0 {
		d.LoginLimit = 10
	}
	if d.LoginWindow <= 0 {
		d.LoginWindow = time.Minute
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(d.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	health := handlers.NewHealthHandler(d.Store, d.ServiceName)
	r.GET("/", health.Banner)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	authMW := middlewares.NewAuthMiddleware(d.Gate)
	loginLimiter := middlewares.NewRateLimiter(d.LoginLimit, d.LoginWindow)

	authHandler := handlers.NewAuthHandler(d.Identity, d.Tokens)
	clientsHandler := handlers.NewClientsHandler(d.Clients, cache.New[[]client.Client](d.ClientsCacheTTL))
	reportsHandler := handlers.NewReportsHandler(d.Reports, d.Prom)
	documentsHandler := handlers.NewDocumentsHandler(d.Engine, "reports.pdf")
	adminHandler := handlers.NewAdminHandler(d.Identity, d.Reports)

	api := r.Group("/")
	api.Use(middlewares.RequireJSON())

	api.POST("/auth/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)

	authed := api.Group("/")
	authed.Use(authMW.RequireAuth())
	{
		authed.GET("/auth/me", authHandler.Me)
		authed.GET("/clients", clientsHandler.ListClients)
		authed.POST("/reports", reportsHandler.CreateReport)
		authed.GET("/reports/me", reportsHandler.ListMine)
		authed.GET("/pdf/me", documentsHandler.Fetch)
		authed.POST("/pdf/me/send", documentsHandler.Send)

		// ownership is checked in the handler so owners may read their own
		authed.GET("/admin/users/:id/reports", adminHandler.UserReports)
	}

	admin := authed.Group("/")
	admin.Use(authMW.RequireAdmin())
	{
		admin.POST("/auth/users", authHandler.CreateUser)
		admin.POST("/clients", clientsHandler.CreateClient)
		admin.GET("/admin/users", adminHandler.ListUsers)
		admin.GET("/admin/stats", adminHandler.Stats)
	}

	return r
}
