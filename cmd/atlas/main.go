package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-saas/atlas/internal/app"
	"github.com/atlas-saas/atlas/internal/audit"
	"github.com/atlas-saas/atlas/internal/auth"
	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/levelpower"
	"github.com/atlas-saas/atlas/internal/observability"
	"github.com/atlas-saas/atlas/internal/permissions"
	"github.com/atlas-saas/atlas/internal/platform/cache"
	"github.com/atlas-saas/atlas/internal/platform/db"
	"github.com/atlas-saas/atlas/internal/roles"
	"github.com/atlas-saas/atlas/internal/staff"
	"github.com/atlas-saas/atlas/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	auditSink := audit.NewSink(asynqClient, logger)
	auditQuery := audit.NewQueryService(audit.NewRepository(pool))

	metrics := observability.NewMetrics()

	rolesRepo := roles.NewRepository(pool)
	staffRepo := staff.NewRepository(pool)
	levelRepo := levelpower.NewRepository(pool)
	permissionsRepo := permissions.NewRepository(pool)

	permCache := authz.NewCache()
	engine := authz.NewEngine(permCache, permissionsRepo, authz.NewMetrics(metrics.Registerer()), logger)
	resolver := authz.NewResolver(rolesRepo, staffRepo, levelRepo, staffRepo, logger)
	guard := authz.NewGuard(resolver, rolesRepo, levelRepo)
	permit := authz.Middleware{Engine: engine, Logger: logger}

	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)
	revoked := auth.NewRevocationList(redisClient)
	authService := auth.NewService(staffRepo, tokens, revoked, logger)
	authHandler := auth.NewHandler(logger, authService)
	authMW := auth.Middleware{Service: authService, Logger: logger}

	rolesService := roles.NewService(rolesRepo, guard, permCache, auditSink, logger)
	staffService := staff.NewService(staffRepo, guard, rolesRepo, levelRepo, auditSink, logger)
	levelService := levelpower.NewService(levelRepo, auditSink, logger)
	permissionsService := permissions.NewService(permissionsRepo, permCache, auditSink, logger)

	for _, scope := range []authz.Scope{authz.ScopePlatform, authz.ScopeTenant} {
		if err := permissionsService.EnsureCore(ctx, scope); err != nil {
			logger.Error("seed permission catalog", slog.Any("error", err))
			os.Exit(1)
		}
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:                     logger,
		Config:                     cfg,
		AuthHandler:                authHandler,
		AuthMiddleware:             authMW,
		PlatformRolesHandler:       roles.NewHandler(logger, rolesService, permit, authz.ScopePlatform),
		TenantRolesHandler:         roles.NewHandler(logger, rolesService, permit, authz.ScopeTenant),
		PlatformStaffHandler:       staff.NewHandler(logger, staffService, permit, authz.ScopePlatform),
		TenantStaffHandler:         staff.NewHandler(logger, staffService, permit, authz.ScopeTenant),
		PlatformPermissionsHandler: permissions.NewHandler(logger, permissionsService, permit, authz.ScopePlatform),
		TenantPermissionsHandler:   permissions.NewHandler(logger, permissionsService, permit, authz.ScopeTenant),
		LevelPowerHandler:          levelpower.NewHandler(logger, levelService, permit),
		PlatformAuditHandler:       audit.NewHandler(logger, auditQuery, permit, authz.ScopePlatform),
		TenantAuditHandler:         audit.NewHandler(logger, auditQuery, permit, authz.ScopeTenant),
		JobsHandler:                jobs.NewHandler(inspector, logger),
		Metrics:                    metrics,
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
