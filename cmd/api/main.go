package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/miniapp-auth/internal/api/http"
	"github.com/spec-kit/miniapp-auth/internal/api/http/handlers"
	"github.com/spec-kit/miniapp-auth/internal/auth"
	"github.com/spec-kit/miniapp-auth/internal/config"
	"github.com/spec-kit/miniapp-auth/internal/domain"
	"github.com/spec-kit/miniapp-auth/internal/observability"
	"github.com/spec-kit/miniapp-auth/internal/persistence"
	"github.com/spec-kit/miniapp-auth/internal/repository"
	"github.com/spec-kit/miniapp-auth/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:  userRepo,
		AuditRepo: auditRepo,
		Redis:     redis.Client,
		Logger:    logger,
		Metrics:   metrics,
	})

	cookie := auth.CookieConfig{
		Name:     cfg.Auth.CookieName,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.CookieSameSite,
	}
	routes := domain.RouteTable{
		Bypass:    cfg.Gate.BypassPrefixes,
		Login:     cfg.Gate.LoginPrefixes,
		Protected: cfg.Gate.ProtectedPrefixes,
	}
	gate := auth.NewGate(authService.TokenManager(), cookie, routes, cfg.Gate.LoginPath, cfg.Gate.LandingPath)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	authHandler := handlers.NewAuthHandler(authService, cookie)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   healthHandler,
		Auth:     authHandler,
		Gate:     gate,
		Resolver: authService.Resolver(),
		Cookie:   cookie,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
