package auth

import "errors"

var (
	// ErrInvalidSignature indicates a token or Telegram hash failed its
	// cryptographic check. Terminal, never retried.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrExpired indicates a token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrRevoked indicates a signature-valid token whose embedded security
	// stamp no longer matches the stored one. Client-visible behavior is
	// identical to ErrExpired; the distinction exists for audit logging.
	ErrRevoked = errors.New("session revoked")
	// ErrNoCredential indicates the request carried no auth cookie at all.
	ErrNoCredential = errors.New("no credential")
	// ErrStoreUnavailable indicates a transient stamp store failure. Callers
	// must fail closed: a lookup failure is never treated as authenticated.
	ErrStoreUnavailable = errors.New("stamp store unavailable")
	// ErrInitDataInvalid covers every Telegram initData rejection: bad
	// signature, missing hash, malformed payload, or stale auth_date. The
	// causes are deliberately indistinguishable to avoid an oracle.
	ErrInitDataInvalid = errors.New("telegram init data invalid")
)

// IsTerminalAuthFailure reports whether the error means "sign in again" as
// opposed to a transient infrastructure failure.
func IsTerminalAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrRevoked) ||
		errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrInitDataInvalid)
}
