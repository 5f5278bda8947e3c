package auth_test

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/miniapp-auth/internal/auth"
	"github.com/spec-kit/miniapp-auth/internal/domain"
)

func merchantIdentity() *domain.Identity {
	merchantID := "c1a9e7a2-4c38-4a57-9f63-1c3f7a2d9b10"
	return &domain.Identity{
		UserID:        "6f0c2c9e-9a0a-4f20-9f6e-1df1c7a9b111",
		TelegramID:    "123456789",
		Role:          domain.RoleMerchant,
		MerchantID:    &merchantID,
		SecurityStamp: "stamp-v1",
		Capabilities:  domain.CapabilitiesFor(domain.RoleMerchant),
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tm := auth.NewTokenManager("round-trip-secret", 168*time.Hour)
	identity := merchantIdentity()

	token, expiresAt, err := tm.Issue(identity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if remaining := time.Until(expiresAt); remaining < 167*time.Hour {
		t.Fatalf("expected ~7 day expiry, got %v remaining", remaining)
	}

	claims, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != identity.UserID {
		t.Fatalf("subject mismatch: %q", claims.Subject)
	}
	if claims.TelegramID != identity.TelegramID {
		t.Fatalf("telegram id mismatch: %q", claims.TelegramID)
	}
	if claims.Role != identity.Role {
		t.Fatalf("role mismatch: %q", claims.Role)
	}
	if claims.MerchantID == nil || *claims.MerchantID != *identity.MerchantID {
		t.Fatalf("merchant id mismatch: %v", claims.MerchantID)
	}
	if claims.SecurityStamp != identity.SecurityStamp {
		t.Fatalf("stamp mismatch: %q", claims.SecurityStamp)
	}

	rebuilt := claims.Identity()
	if !rebuilt.Can(domain.CapManageStore) {
		t.Fatal("merchant identity should hold store.manage")
	}
	if rebuilt.Can(domain.CapManagePlatform) {
		t.Fatal("merchant identity should not hold platform.manage")
	}
}

func TestTokenRejectsForeignSecret(t *testing.T) {
	issuer := auth.NewTokenManager("secret-a", time.Hour)
	verifier := auth.NewTokenManager("secret-b", time.Hour)

	token, _, err := issuer.Issue(merchantIdentity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, auth.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	tm := auth.NewTokenManager("expiry-secret", time.Hour)

	claims := &auth.SessionClaims{
		TelegramID:    "123456789",
		Role:          domain.RoleSubscriber,
		SecurityStamp: "stamp-v1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("expiry-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := tm.Verify(signed); !errors.Is(err, auth.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestTokenRejectsWrongAlgorithm(t *testing.T) {
	tm := auth.NewTokenManager("alg-secret", time.Hour)

	claims := &auth.SessionClaims{
		Role:          domain.RoleSubscriber,
		SecurityStamp: "stamp-v1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("alg-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := tm.Verify(signed); !errors.Is(err, auth.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestTokenRejectsUnknownRole(t *testing.T) {
	tm := auth.NewTokenManager("role-secret", time.Hour)

	claims := &auth.SessionClaims{
		Role:          domain.Role("SUPERUSER"),
		SecurityStamp: "stamp-v1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("role-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := tm.Verify(signed); !errors.Is(err, auth.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
