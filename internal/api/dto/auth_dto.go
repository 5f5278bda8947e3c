package dto

import (
	"time"

	"github.com/spec-kit/miniapp-auth/internal/domain"
)

// TelegramLoginRequest payload for mini-app logins.
type TelegramLoginRequest struct {
	InitData string `json:"initData"`
}

// StaffLoginRequest payload for operator logins.
type StaffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// IdentityResponse is the wire form of an authenticated identity.
// TelegramID serializes as a JSON string to avoid precision loss on 64-bit ids.
type IdentityResponse struct {
	UserID     string      `json:"userId"`
	TelegramID string      `json:"telegramId,omitempty"`
	Role       domain.Role `json:"role"`
	MerchantID *string     `json:"merchantId,omitempty"`
}

// SessionResponse is returned by GET /auth/session.
type SessionResponse struct {
	Identity     IdentityResponse    `json:"identity"`
	Capabilities []domain.Capability `json:"capabilities"`
	Active       bool                `json:"active"`
}

// HeartbeatResponse is returned by POST /auth/heartbeat.
type HeartbeatResponse struct {
	Active    bool      `json:"active"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewIdentityResponse maps a domain identity to its wire form.
func NewIdentityResponse(identity *domain.Identity) IdentityResponse {
	return IdentityResponse{
		UserID:     identity.UserID,
		TelegramID: identity.TelegramID,
		Role:       identity.Role,
		MerchantID: identity.MerchantID,
	}
}
