package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/miniapp-auth/internal/domain"
)

// TokenManager handles issuing and validating session JWTs. It has no store
// dependency: verification here checks signature and expiry only, never the
// security stamp. The stamp cross-check belongs to the Resolver.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// SessionClaims describes the JWT payload. TelegramID is a string claim.
type SessionClaims struct {
	TelegramID    string      `json:"tg,omitempty"`
	Role          domain.Role `json:"role"`
	MerchantID    *string     `json:"mid,omitempty"`
	SecurityStamp string      `json:"stamp"`
	jwt.RegisteredClaims
}

// Identity rebuilds the principal the claims describe, resolving the
// capability set once.
func (c *SessionClaims) Identity() *domain.Identity {
	return &domain.Identity{
		UserID:        c.Subject,
		TelegramID:    c.TelegramID,
		Role:          c.Role,
		MerchantID:    c.MerchantID,
		SecurityStamp: c.SecurityStamp,
		Capabilities:  domain.CapabilitiesFor(c.Role),
	}
}

// Issue builds and signs a session token for the identity, embedding the
// identity's current security stamp.
func (tm *TokenManager) Issue(identity *domain.Identity) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &SessionClaims{
		TelegramID:    identity.TelegramID,
		Role:          identity.Role,
		MerchantID:    identity.MerchantID,
		SecurityStamp: identity.SecurityStamp,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates signature and expiry and returns the claims.
// Failures collapse into ErrExpired or ErrInvalidSignature.
func (tm *TokenManager) Verify(tokenStr string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidSignature
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSignature
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}
