package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/miniapp-auth/internal/domain"
)

// Gate is the fast pre-handler interceptor. It performs a stateless token
// check only (signature + expiry, no stamp lookup) and decides redirect vs
// pass-through from the static route table.
//
// The gate alone cannot detect a revoked-but-unexpired token; any handler
// that actually needs the identity must still go through the Resolver. The
// two-tier split keeps per-request latency flat on every page load while the
// authoritative check runs only where it matters.
type Gate struct {
	tokens  *TokenManager
	cookie  CookieConfig
	routes  domain.RouteTable
	login   string
	landing string
}

// NewGate constructs the route gate middleware.
func NewGate(tokens *TokenManager, cookie CookieConfig, routes domain.RouteTable, loginPath, landingPath string) *Gate {
	return &Gate{
		tokens:  tokens,
		cookie:  cookie,
		routes:  routes,
		login:   loginPath,
		landing: landingPath,
	}
}

// Handle classifies the request path and applies the shallow check.
func (g *Gate) Handle(c *fiber.Ctx) error {
	switch g.routes.Classify(c.Path()) {
	case domain.RouteBypass:
		return c.Next()
	case domain.RouteLogin:
		// An already-authenticated-looking visitor skips the login page.
		if g.shallowValid(c) {
			return c.Redirect(g.landing, fiber.StatusFound)
		}
		return c.Next()
	case domain.RouteProtected:
		if !g.shallowValid(c) {
			g.cookie.Clear(c)
			return c.Redirect(g.login, fiber.StatusFound)
		}
		return c.Next()
	}
	return c.Next()
}

func (g *Gate) shallowValid(c *fiber.Ctx) bool {
	raw := g.cookie.Read(c)
	if raw == "" {
		return false
	}
	_, err := g.tokens.Verify(raw)
	return err == nil
}
