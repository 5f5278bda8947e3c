package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/miniapp-auth/internal/api/http/handlers"
	"github.com/spec-kit/miniapp-auth/internal/auth"
	"github.com/spec-kit/miniapp-auth/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Gate     *auth.Gate
	Resolver *auth.Resolver
	Cookie   auth.CookieConfig
}

// RegisterRoutes wires HTTP routes. The gate runs first for every request;
// the /auth API surface sits under a bypass prefix so login and heartbeat
// are never themselves gated.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Gate.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/telegram", cfg.Auth.Telegram)
	authGroup.Post("/staff/login", cfg.Auth.StaffLogin)
	authGroup.Post("/heartbeat", cfg.Auth.Heartbeat)
	authGroup.Post("/revoke", cfg.Auth.Revoke)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/session", cfg.Auth.Session)

	authGroup.Get("/audit",
		auth.RequireIdentity(cfg.Resolver, cfg.Cookie),
		auth.RequireCapability(domain.CapViewAuditTrail),
		cfg.Auth.AuditTrail,
	)
}
