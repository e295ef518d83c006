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

	"github.com/tokenvault/tokenvault/internal/app"
	"github.com/tokenvault/tokenvault/internal/identity"
	"github.com/tokenvault/tokenvault/internal/observability"
	"github.com/tokenvault/tokenvault/internal/pause"
	"github.com/tokenvault/tokenvault/internal/platform/cache"
	"github.com/tokenvault/tokenvault/internal/platform/db"
	"github.com/tokenvault/tokenvault/internal/roles"
	"github.com/tokenvault/tokenvault/internal/shared"
	"github.com/tokenvault/tokenvault/internal/token"
	"github.com/tokenvault/tokenvault/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	identityRepo := identity.NewRepository(dbpool)
	identityService := identity.NewService(identityRepo)
	resolver := identity.NewResolver(cfg.ForwarderAddress())
	identityMiddleware := identity.Middleware{
		Service:  identityService,
		Resolver: resolver,
		Logger:   logger,
	}

	rolesRepo := roles.NewRepository(dbpool)
	rolesCache := roles.NewCache(redisClient, cfg.RoleCacheTTL)
	rolesService := roles.NewService(rolesRepo, rolesCache, auditLogger)
	rolesMiddleware := roles.Middleware{Service: rolesService, Logger: logger}
	rolesHandler := roles.NewHandler(logger, rolesService)

	pauseRepo := pause.NewRepository(dbpool)
	pauseService := pause.NewService(pauseRepo, rolesService, auditLogger)
	pauseHandler := pause.NewHandler(logger, pauseService)

	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	eventPublisher := jobs.NewEventPublisher(jobClient, metrics)

	supplyCache := token.NewSupplyCache(redisClient, cfg.SupplyCacheTTL)
	tokenRepo := token.NewRepository(dbpool)
	tokenService := token.NewService(tokenRepo, auditLogger, idempotencyStore, eventPublisher, supplyCache, logger)
	tokenHandler := token.NewHandler(logger, tokenService)
	if err := tokenService.EnsureBaseURI(ctx, cfg.BaseTokenURI); err != nil {
		logger.Error("seed base token uri", "error", err)
		os.Exit(1)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		IdentityMiddleware: identityMiddleware,
		RolesMiddleware:    rolesMiddleware,
		TokenHandler:       tokenHandler,
		RolesHandler:       rolesHandler,
		PauseHandler:       pauseHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
