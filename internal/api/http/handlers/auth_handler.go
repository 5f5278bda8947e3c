package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/miniapp-auth/internal/api/dto"
	"github.com/spec-kit/miniapp-auth/internal/auth"
	"github.com/spec-kit/miniapp-auth/internal/ratelimit"
	"github.com/spec-kit/miniapp-auth/internal/service"
	apperrors "github.com/spec-kit/miniapp-auth/pkg/util/errorutil"
)

// AuthHandler exposes the session endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	cookie auth.CookieConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookie auth.CookieConfig) *AuthHandler {
	return &AuthHandler{auth: authService, cookie: cookie}
}

// Telegram handles POST /auth/telegram.
func (h *AuthHandler) Telegram(c *fiber.Ctx) error {
	var req dto.TelegramLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.InitData == "" {
		return apperrors.NewValidationError("initData required", nil)
	}

	identity, token, expiresAt, err := h.auth.LoginTelegram(c.UserContext(), req.InitData, c.IP())
	if err != nil {
		return mapAuthError(err)
	}

	h.cookie.Write(c, token, expiresAt)
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"identity": dto.NewIdentityResponse(identity),
		},
	})
}

// StaffLogin handles POST /auth/staff/login.
func (h *AuthHandler) StaffLogin(c *fiber.Ctx) error {
	var req dto.StaffLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	identity, token, expiresAt, err := h.auth.LoginStaff(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}

	h.cookie.Write(c, token, expiresAt)
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"identity": dto.NewIdentityResponse(identity),
		},
	})
}

// Heartbeat handles POST /auth/heartbeat. A valid session gets a fresh
// token and cookie; anything else is 401 with the cookie cleared.
func (h *AuthHandler) Heartbeat(c *fiber.Ctx) error {
	_, token, expiresAt, err := h.auth.Heartbeat(c.UserContext(), h.cookie.Read(c))
	if err != nil {
		if auth.IsTerminalAuthFailure(err) {
			h.cookie.Clear(c)
		}
		return mapAuthError(err)
	}

	h.cookie.Write(c, token, expiresAt)
	return c.JSON(fiber.Map{
		"data": dto.HeartbeatResponse{Active: true, ExpiresAt: expiresAt},
	})
}

// Revoke handles POST /auth/revoke: global logout across all devices.
func (h *AuthHandler) Revoke(c *fiber.Ctx) error {
	identity, _, err := h.auth.Session(c.UserContext(), h.cookie.Read(c))
	if err != nil {
		if auth.IsTerminalAuthFailure(err) {
			h.cookie.Clear(c)
		}
		return mapAuthError(err)
	}

	if err := h.auth.RevokeAll(c.UserContext(), identity); err != nil {
		return apperrors.MapError(err)
	}

	h.cookie.Clear(c)
	return c.JSON(fiber.Map{
		"data": fiber.Map{"success": true},
	})
}

// Logout handles POST /auth/logout: clears the local cookie only, leaving
// tokens on other devices untouched.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.cookie.Clear(c)
	return c.JSON(fiber.Map{
		"data": fiber.Map{"success": true},
	})
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	identity, active, err := h.auth.Session(c.UserContext(), h.cookie.Read(c))
	if err != nil {
		return mapAuthError(err)
	}

	return c.JSON(fiber.Map{
		"data": dto.SessionResponse{
			Identity:     dto.NewIdentityResponse(identity),
			Capabilities: identity.Capabilities.List(),
			Active:       active,
		},
	})
}

// AuditTrail handles GET /auth/audit (admin only).
func (h *AuthHandler) AuditTrail(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	entries, err := h.auth.AuditTrail(c.UserContext(), limit)
	if err != nil {
		return apperrors.MapError(err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{"entries": entries},
	})
}

// mapAuthError converts auth-core failures into client responses. Expired
// and revoked are indistinguishable to the client; store failures surface
// as 503 so callers never mistake an outage for "not signed in".
func mapAuthError(err error) error {
	switch {
	case errors.Is(err, auth.ErrStoreUnavailable):
		return apperrors.NewServiceUnavailable("session store unavailable")
	case errors.Is(err, ratelimit.ErrLimited):
		return apperrors.NewTooManyRequests("too many login attempts")
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorized("invalid credentials")
	case auth.IsTerminalAuthFailure(err):
		return apperrors.NewUnauthorized(http.StatusText(http.StatusUnauthorized))
	}
	return apperrors.MapError(err)
}
