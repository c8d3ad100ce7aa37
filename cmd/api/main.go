// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/postflowhq/postflow-api/internal/admin"
	"github.com/postflowhq/postflow-api/internal/auth"
	"github.com/postflowhq/postflow-api/internal/config"
	"github.com/postflowhq/postflow-api/internal/core"
	"github.com/postflowhq/postflow-api/internal/entitlement"
	"github.com/postflowhq/postflow-api/internal/health"
	"github.com/postflowhq/postflow-api/internal/middleware"
	"github.com/postflowhq/postflow-api/internal/post"
	"github.com/postflowhq/postflow-api/internal/promo"
	"github.com/postflowhq/postflow-api/internal/server"
	"github.com/postflowhq/postflow-api/internal/subscriber"
	"github.com/postflowhq/postflow-api/internal/usage"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	subscriberRepo := subscriber.NewRepository(db.Queries())
	subscriberSvc := subscriber.NewService(subscriberRepo)
	subscriberHandler := subscriber.NewHandler(subscriberSvc)

	authRepo := auth.NewRepository(db.Queries())
	authSvc := auth.NewService(authRepo, jwtManager, subscriberSvc, redis.Client)
	authHandler := auth.NewHandler(authSvc)

	usageRepo := usage.NewRepository(db.Queries())
	usageSvc := usage.NewService(usageRepo, logger)

	gate := entitlement.NewGate(cfg.Billing)
	entitlementSvc := entitlement.NewService(
		subscriberRepo,
		usageSvc,
		gate,
		redis,
		cfg.Billing,
		logger,
	)
	entitlementHandler := entitlement.NewHandler(entitlementSvc)

	subscriberSvc.SetTierChangeHook(entitlementSvc.InvalidateSnapshot)

	promoRepo := promo.NewRepository(db.Queries())
	promoSvc := promo.NewService(
		promoRepo,
		subscriberRepo,
		promo.NewApplier(db),
		entitlementSvc,
		cfg.Promo,
		logger,
	)
	promoHandler := promo.NewHandler(promoSvc)

	postRepo := post.NewRepository(db.Queries())
	postSvc := post.NewService(
		postRepo,
		post.NewStore(db),
		entitlementSvc,
		logger,
	)
	postHandler := post.NewHandler(postSvc)

	healthHandler := health.NewHandler(db, redis)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	// Authenticated routes carry a second, per-subscriber limiter keyed by
	// tier; it has to run after the authenticator has put the claims on the
	// context.
	tieredLimiter := middleware.TieredRateLimiter(
		redis.Client,
		middleware.DefaultTiers,
	)
	authenticator := middleware.Authenticator(jwtManager)
	authenticated := func(next http.Handler) http.Handler {
		return authenticator(tieredLimiter(next))
	}
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticated)

		subscriberHandler.RegisterRoutes(r, authenticated)
		entitlementHandler.RegisterRoutes(r, authenticated)
		promoHandler.RegisterRoutes(r, authenticated)
		postHandler.RegisterRoutes(r, authenticated)

		subscriberHandler.RegisterAdminRoutes(r, authenticated, adminOnly)
		entitlementHandler.RegisterAdminRoutes(r, authenticated, adminOnly)
		promoHandler.RegisterAdminRoutes(r, authenticated, adminOnly)
		adminHandler.RegisterRoutes(r, authenticated, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
