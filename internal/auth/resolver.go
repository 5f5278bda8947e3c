package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/miniapp-auth/internal/domain"
)

// StampStore exposes the current security stamp for a user. Rotation must be
// atomic and immediately visible to subsequent reads; putting a cache in
// front of this interface reintroduces the ghost-session window that stamp
// rotation exists to close.
type StampStore interface {
	GetSecurityStamp(ctx context.Context, userID string) (string, error)
}

const stampLookupAttempts = 2

// Resolver performs the authoritative session check: verify the token, then
// cross-check its embedded stamp against the stored one. This is the only
// place stamp-based revocation is enforced; the route gate deliberately
// skips it to stay store-call-free.
type Resolver struct {
	tokens  *TokenManager
	stamps  StampStore
	timeout time.Duration
}

// NewResolver constructs a resolver with a bounded stamp lookup timeout.
func NewResolver(tokens *TokenManager, stamps StampStore, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{tokens: tokens, stamps: stamps, timeout: timeout}
}

// Resolve turns a raw bearer token into an authenticated identity.
//
// Failure contract: ErrNoCredential for an empty token, ErrExpired or
// ErrInvalidSignature from token verification, ErrRevoked on stamp mismatch
// or a deleted account, and ErrStoreUnavailable when the stamp store cannot
// answer. The last one must propagate distinctly so callers fail closed
// instead of treating a lookup failure as "no session".
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (*domain.Identity, error) {
	if rawToken == "" {
		return nil, ErrNoCredential
	}

	claims, err := r.tokens.Verify(rawToken)
	if err != nil {
		return nil, err
	}

	current, err := r.currentStamp(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRevoked
		}
		return nil, ErrStoreUnavailable
	}

	if current != claims.SecurityStamp {
		return nil, ErrRevoked
	}
	return claims.Identity(), nil
}

// currentStamp fetches the stored stamp with a short timeout and one retry.
// Store unavailability must not hang request handling.
func (r *Resolver) currentStamp(ctx context.Context, userID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < stampLookupAttempts; attempt++ {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		stamp, err := r.stamps.GetSecurityStamp(lookupCtx, userID)
		cancel()
		if err == nil {
			return stamp, nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}
