package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightwave/portal-api/internal/app"
	"github.com/brightwave/portal-api/internal/audit"
	"github.com/brightwave/portal-api/internal/auth"
	"github.com/brightwave/portal-api/internal/cache"
	"github.com/brightwave/portal-api/internal/contacts"
	"github.com/brightwave/portal-api/internal/files"
	"github.com/brightwave/portal-api/internal/invoices"
	"github.com/brightwave/portal-api/internal/observability"
	platformcache "github.com/brightwave/portal-api/internal/platform/cache"
	"github.com/brightwave/portal-api/internal/platform/db"
	"github.com/brightwave/portal-api/internal/projects"
	"github.com/brightwave/portal-api/internal/rbac"
	"github.com/brightwave/portal-api/internal/shared"
	"github.com/brightwave/portal-api/internal/tenant"
	"github.com/brightwave/portal-api/internal/upstream"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := platformcache.New(ctx, cfg.RedisAddr, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	crm := upstream.NewHTTPClient(cfg.UpstreamBaseURL, cfg.UpstreamToken)
	tenants := tenant.NewResolver(crm)

	metrics := observability.NewMetrics()

	cacheStore := cache.NewRedisStore(redisClient, logger)
	cacheService := cache.NewService(cacheStore, crm, logger, metrics, cache.TTLConfig{
		Projects: cfg.CacheProjectsTTL,
		Invoices: cfg.CacheInvoicesTTL,
		Files:    cfg.CacheFilesTTL,
	})

	auditLog := audit.NewLogger(audit.NewPGStore(pool), logger)
	gate := rbac.NewGate(logger)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	projectsHandler := projects.NewHandler(logger, gate, cacheService, crm, tenants, auditLog)
	invoicesHandler := invoices.NewHandler(logger, gate, cacheService, tenants, auditLog)
	filesHandler := files.NewHandler(logger, gate, cacheService, crm, tenants, auditLog)
	leadsHandler := contacts.NewHandler(logger, crm, auditLog)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		AuthHandler:     authHandler,
		ProjectsHandler: projectsHandler,
		InvoicesHandler: invoicesHandler,
		FilesHandler:    filesHandler,
		LeadsHandler:    leadsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
