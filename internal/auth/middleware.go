package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/miniapp-auth/internal/domain"
	apperrors "github.com/spec-kit/miniapp-auth/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// RequireIdentity resolves the auth cookie through the full Resolver and
// stores the identity in request locals. Store unavailability surfaces as
// 503, never as an authenticated pass-through.
func RequireIdentity(resolver *Resolver, cookie CookieConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := resolver.Resolve(c.UserContext(), cookie.Read(c))
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				return apperrors.NewServiceUnavailable("session store unavailable")
			}
			return apperrors.NewUnauthorized("authentication required")
		}
		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// RequireCapability guards a route behind a capability resolved from the
// identity's role. Must run after RequireIdentity.
func RequireCapability(cap domain.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !identity.Can(cap) {
			return apperrors.NewForbidden("insufficient permissions")
		}
		return c.Next()
	}
}

// IdentityFromContext retrieves the resolved identity.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*domain.Identity)
	return identity, ok
}
