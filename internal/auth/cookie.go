package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// CookieConfig describes the transport credential cookie. SameSite must be
// "None" (with Secure) when the app is embedded inside Telegram's webview or
// served through a tunnel; "Lax" suffices for plain first-party deployments.
type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite string
}

// Write sets the auth cookie carrying the session token.
func (cc CookieConfig) Write(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     cc.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt) / time.Second),
		HTTPOnly: true,
		Secure:   cc.Secure,
		SameSite: cc.sameSite(),
	})
}

// Clear expires the auth cookie.
func (cc CookieConfig) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     cc.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   cc.Secure,
		SameSite: cc.sameSite(),
	})
}

// Read extracts the raw token from the request, empty when absent.
func (cc CookieConfig) Read(c *fiber.Ctx) string {
	return c.Cookies(cc.Name)
}

func (cc CookieConfig) sameSite() string {
	switch cc.SameSite {
	case "None", "none":
		return fiber.CookieSameSiteNoneMode
	case "Strict", "strict":
		return fiber.CookieSameSiteStrictMode
	default:
		return fiber.CookieSameSiteLaxMode
	}
}
