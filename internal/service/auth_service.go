package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/miniapp-auth/internal/auth"
	"github.com/spec-kit/miniapp-auth/internal/config"
	"github.com/spec-kit/miniapp-auth/internal/domain"
	"github.com/spec-kit/miniapp-auth/internal/observability"
	"github.com/spec-kit/miniapp-auth/internal/ratelimit"
	"github.com/spec-kit/miniapp-auth/internal/repository"
)

// ErrInvalidCredentials indicates a failed staff login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService coordinates the session flows: Telegram login, staff login,
// heartbeat renewal, and global revocation via security stamp rotation.
// Sessions are stateless JWTs; the server holds no session table.
type AuthService struct {
	users        repository.UserRepository
	audit        repository.AuditRepository
	tokens       *auth.TokenManager
	verifier     *auth.TelegramVerifier
	resolver     *auth.Resolver
	loginLimiter *ratelimit.Limiter
	redis        *redis.Client
	logger       *zap.Logger
	metrics      *observability.Metrics
	bcryptCost   int
	replayTTL    time.Duration
	presenceTTL  time.Duration
}

// AuthDependencies encapsulates external requirements for the auth service.
type AuthDependencies struct {
	UserRepo  repository.UserRepository
	AuditRepo repository.AuditRepository
	Redis     *redis.Client
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// NewAuthService builds the service and its auth collaborators.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	return &AuthService{
		users:        deps.UserRepo,
		audit:        deps.AuditRepo,
		tokens:       tokens,
		verifier:     auth.NewTelegramVerifier(cfg.Auth.BotToken, cfg.Auth.InitDataMaxAge()),
		resolver:     auth.NewResolver(tokens, deps.UserRepo, cfg.Auth.StampLookupTimeout()),
		loginLimiter: ratelimit.NewLimiter(deps.Redis, "login_attempts", cfg.Auth.LoginRatePerMinute, time.Minute),
		redis:        deps.Redis,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		bcryptCost:   cfg.Auth.BcryptCost,
		replayTTL:    cfg.Auth.InitDataMaxAge(),
		presenceTTL:  cfg.Auth.PresenceTTL(),
	}
}

// LoginTelegram verifies initData, finds or provisions the account, and
// issues a stamped session token.
func (s *AuthService) LoginTelegram(ctx context.Context, initData, remoteIP string) (*domain.Identity, string, time.Time, error) {
	if err := s.loginLimiter.Allow(ctx, remoteIP); err != nil {
		if errors.Is(err, ratelimit.ErrLimited) {
			return nil, "", time.Time{}, err
		}
		// Limiter store trouble must not lock everyone out of login.
		s.logger.Warn("login limiter unavailable", zap.Error(err))
	}

	tgUser, err := s.verifier.Verify(initData)
	if err != nil {
		s.metrics.RecordAuthOutcome("initdata_rejected")
		return nil, "", time.Time{}, err
	}

	if s.replayed(ctx, initData) {
		s.metrics.RecordAuthOutcome("initdata_replayed")
		return nil, "", time.Time{}, auth.ErrInitDataInvalid
	}

	user, err := s.findOrCreateTelegramUser(ctx, tgUser)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if user.Status != domain.UserStatusActive {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	identity := user.Identity()
	token, expiresAt, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.recordAudit(ctx, repository.AuditEntry{
		ActorID: user.ID,
		Action:  repository.AuditActionLogin,
		Meta:    map[string]any{"telegram_id": identity.TelegramID, "ip": remoteIP},
	})
	s.metrics.RecordAuthOutcome("issued")
	return identity, token, expiresAt, nil
}

// LoginStaff authenticates a support/admin operator by email and password
// and issues the same stamped token the Telegram path uses.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.Identity, string, time.Time, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, ErrInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if user.PasswordHash == nil || user.Status != domain.UserStatusActive {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := auth.ComparePassword(*user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	identity := user.Identity()
	token, expiresAt, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.recordAudit(ctx, repository.AuditEntry{
		ActorID: user.ID,
		Action:  repository.AuditActionStaffLogin,
		Meta:    map[string]any{"email": email},
	})
	s.metrics.RecordAuthOutcome("issued")
	return identity, token, expiresAt, nil
}

// Heartbeat renews an active session: full resolve (a revoked session must
// not renew itself), then a fresh token carrying the same stamp. The new
// expiry is always now + TTL, a strict extension of the remaining window.
func (s *AuthService) Heartbeat(ctx context.Context, rawToken string) (*domain.Identity, string, time.Time, error) {
	identity, err := s.resolver.Resolve(ctx, rawToken)
	if err != nil {
		s.recordResolveOutcome(err)
		return nil, "", time.Time{}, err
	}

	token, expiresAt, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.markPresence(ctx, identity.UserID)
	s.metrics.RecordAuthOutcome("renewed")
	return identity, token, expiresAt, nil
}

// RevokeAll rotates the identity's security stamp. Every token issued before
// this call, on any device, fails the resolver's stamp comparison on its
// next authoritative check.
func (s *AuthService) RevokeAll(ctx context.Context, identity *domain.Identity) error {
	newStamp := uuid.NewString()
	if err := s.users.RotateSecurityStamp(ctx, identity.UserID, newStamp); err != nil {
		return err
	}

	s.recordAudit(ctx, repository.AuditEntry{
		ActorID: identity.UserID,
		Action:  repository.AuditActionRevokeAll,
		Meta:    map[string]any{"telegram_id": identity.TelegramID},
	})
	s.logger.Info("sessions revoked",
		zap.String("user_id", identity.UserID),
		zap.String("role", string(identity.Role)),
	)
	s.metrics.RecordAuthOutcome("revoked_all")
	return nil
}

// Session resolves the cookie token and reports whether a recent heartbeat
// presence marker exists.
func (s *AuthService) Session(ctx context.Context, rawToken string) (*domain.Identity, bool, error) {
	identity, err := s.resolver.Resolve(ctx, rawToken)
	if err != nil {
		s.recordResolveOutcome(err)
		return nil, false, err
	}

	active, err := s.redis.Exists(ctx, presenceKey(identity.UserID)).Result()
	if err != nil {
		s.logger.Warn("presence lookup failed", zap.Error(err))
		return identity, false, nil
	}
	return identity, active > 0, nil
}

// AuditTrail lists recent auth events. Guarded by CapViewAuditTrail upstream.
func (s *AuthService) AuditTrail(ctx context.Context, limit int) ([]repository.AuditEntry, error) {
	return s.audit.ListRecent(ctx, limit)
}

// TokenManager exposes the token manager for the route gate.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Resolver exposes the session resolver for protected handlers.
func (s *AuthService) Resolver() *auth.Resolver {
	return s.resolver
}

func (s *AuthService) findOrCreateTelegramUser(ctx context.Context, tgUser *auth.TelegramUser) (*domain.User, error) {
	user, err := s.users.FindByTelegramID(ctx, tgUser.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	tgID := tgUser.ID
	created := &domain.User{
		ID:            uuid.NewString(),
		TelegramID:    &tgID,
		Username:      tgUser.Username,
		FirstName:     tgUser.FirstName,
		LastName:      tgUser.LastName,
		Role:          domain.RoleSubscriber,
		SecurityStamp: uuid.NewString(),
		Status:        domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, created); err != nil {
		// Two first logins can race on the unique telegram_id.
		if existing, findErr := s.users.FindByTelegramID(ctx, tgUser.ID); findErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return created, nil
}

// replayed marks the payload as consumed and reports whether it was seen
// before. The guard is an extra defense on top of the HMAC+staleness check,
// so a guard store failure degrades to accepting the payload.
func (s *AuthService) replayed(ctx context.Context, initData string) bool {
	digest := sha256.Sum256([]byte(initData))
	key := "initdata_replay:" + hex.EncodeToString(digest[:])

	fresh, err := s.redis.SetNX(ctx, key, 1, s.replayTTL).Result()
	if err != nil {
		s.logger.Warn("replay guard unavailable", zap.Error(err))
		return false
	}
	return !fresh
}

func (s *AuthService) markPresence(ctx context.Context, userID string) {
	if err := s.redis.Set(ctx, presenceKey(userID), 1, s.presenceTTL).Err(); err != nil {
		s.logger.Warn("presence update failed", zap.Error(err))
	}
}

func (s *AuthService) recordAudit(ctx context.Context, entry repository.AuditEntry) {
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed",
			zap.String("action", entry.Action),
			zap.String("actor_id", entry.ActorID),
			zap.Error(err),
		)
	}
}

func (s *AuthService) recordResolveOutcome(err error) {
	switch {
	case errors.Is(err, auth.ErrRevoked):
		s.metrics.RecordAuthOutcome("revoked")
	case errors.Is(err, auth.ErrExpired):
		s.metrics.RecordAuthOutcome("expired")
	case errors.Is(err, auth.ErrStoreUnavailable):
		s.metrics.RecordAuthOutcome("store_unavailable")
	}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}
