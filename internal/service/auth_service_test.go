package service_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/miniapp-auth/internal/auth"
	"github.com/spec-kit/miniapp-auth/internal/auth/authtest"
	"github.com/spec-kit/miniapp-auth/internal/config"
	"github.com/spec-kit/miniapp-auth/internal/domain"
	"github.com/spec-kit/miniapp-auth/internal/observability"
	"github.com/spec-kit/miniapp-auth/internal/ratelimit"
	"github.com/spec-kit/miniapp-auth/internal/repository"
	"github.com/spec-kit/miniapp-auth/internal/service"
)

const (
	testBotToken = "7000000001:AAtest-bot-token-for-verification"
	testSecret   = "service-test-secret"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*domain.User{}}
}

func (r *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) FindByTelegramID(ctx context.Context, telegramID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.TelegramID != nil && *user.TelegramID == telegramID {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email != nil && *user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) GetSecurityStamp(ctx context.Context, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return user.SecurityStamp, nil
}

func (r *memUserRepo) RotateSecurityStamp(ctx context.Context, userID, newStamp string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.SecurityStamp = newStamp
	return nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []repository.AuditEntry
}

func (r *memAuditRepo) Record(ctx context.Context, entry repository.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memAuditRepo) ListRecent(ctx context.Context, limit int) ([]repository.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}

func (r *memAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:            testSecret,
			BotToken:             testBotToken,
			TokenTTLHours:        168,
			InitDataMaxAgeHours:  24,
			BcryptCost:           4,
			LoginRatePerMinute:   5,
			PresenceTTLMinutes:   30,
			StampLookupTimeoutMS: 2000,
		},
	}
}

func newService(t *testing.T) (*service.AuthService, *memUserRepo, *memAuditRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	users := newMemUserRepo()
	audit := &memAuditRepo{}

	svc := service.NewAuthService(testConfig(), service.AuthDependencies{
		UserRepo:  users,
		AuditRepo: audit,
		Redis:     client,
		Logger:    zap.NewNop(),
		Metrics:   observability.NewMetrics(),
	})
	return svc, users, audit
}

var queryIDSeq atomic.Int64

// signedInitData builds a validly signed payload. Each call gets a unique
// query_id so two logins in the same second do not trip the replay guard.
func signedInitData(telegramID string) string {
	return authtest.SignInitData(testBotToken, map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"query_id":  "AAH" + strconv.FormatInt(queryIDSeq.Add(1), 10),
		"user":      authtest.UserJSON(telegramID, "merchant_jane", "Jane"),
	})
}

func TestTelegramLoginProvisionsSubscriber(t *testing.T) {
	svc, users, audit := newService(t)

	identity, token, expiresAt, err := svc.LoginTelegram(context.Background(), signedInitData("123456789"), "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "123456789", identity.TelegramID)
	require.Equal(t, domain.RoleSubscriber, identity.Role)
	require.True(t, expiresAt.After(time.Now().Add(167*time.Hour)))

	stored, err := users.FindByTelegramID(context.Background(), "123456789")
	require.NoError(t, err)
	require.Equal(t, identity.SecurityStamp, stored.SecurityStamp)
	require.Contains(t, audit.actions(), repository.AuditActionLogin)
}

func TestTelegramLoginIsStableAcrossLogins(t *testing.T) {
	svc, users, _ := newService(t)
	ctx := context.Background()

	first, _, _, err := svc.LoginTelegram(ctx, signedInitData("555000111"), "10.0.0.1")
	require.NoError(t, err)

	second, _, _, err := svc.LoginTelegram(ctx, signedInitData("555000111"), "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, first.UserID, second.UserID)

	require.Len(t, users.users, 1)
}

func TestTelegramLoginRejectsReplayedInitData(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	payload := signedInitData("123456789")

	_, _, _, err := svc.LoginTelegram(ctx, payload, "10.0.0.1")
	require.NoError(t, err)

	_, _, _, err = svc.LoginTelegram(ctx, payload, "10.0.0.1")
	require.ErrorIs(t, err, auth.ErrInitDataInvalid)
}

func TestTelegramLoginRateLimited(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, _, err := svc.LoginTelegram(ctx, "not-a-real-payload", "10.9.9.9")
		require.ErrorIs(t, err, auth.ErrInitDataInvalid)
	}

	_, _, _, err := svc.LoginTelegram(ctx, "not-a-real-payload", "10.9.9.9")
	require.ErrorIs(t, err, ratelimit.ErrLimited)
}

func TestHeartbeatExtendsExpiry(t *testing.T) {
	svc, users, _ := newService(t)
	ctx := context.Background()

	tgID := "123456789"
	user := &domain.User{
		ID:            "4c7d3a5e-21aa-4e6b-8f1d-0f6f1f1b2c3d",
		TelegramID:    &tgID,
		Role:          domain.RoleMerchant,
		SecurityStamp: "stamp-v1",
		Status:        domain.UserStatusActive,
	}
	require.NoError(t, users.Create(ctx, user))

	// A session with two days remaining.
	oldExpiry := time.Now().Add(48 * time.Hour)
	claims := &auth.SessionClaims{
		TelegramID:    tgID,
		Role:          domain.RoleMerchant,
		SecurityStamp: "stamp-v1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-5 * 24 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(oldExpiry),
		},
	}
	oldToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	identity, newToken, newExpiry, err := svc.Heartbeat(ctx, oldToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.UserID)
	require.NotEqual(t, oldToken, newToken)
	require.True(t, newExpiry.After(oldExpiry), "heartbeat must extend, never shorten")
	require.True(t, newExpiry.After(time.Now().Add(167*time.Hour)))
}

func TestHeartbeatRejectsRevokedSession(t *testing.T) {
	svc, users, _ := newService(t)
	ctx := context.Background()

	identity, token, _, err := svc.LoginTelegram(ctx, signedInitData("123456789"), "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, users.RotateSecurityStamp(ctx, identity.UserID, "rotated"))

	_, _, _, err = svc.Heartbeat(ctx, token)
	require.ErrorIs(t, err, auth.ErrRevoked)
}

func TestRevokeAllInvalidatesOutstandingTokens(t *testing.T) {
	svc, _, audit := newService(t)
	ctx := context.Background()

	identity, t1, _, err := svc.LoginTelegram(ctx, signedInitData("123456789"), "10.0.0.1")
	require.NoError(t, err)
	_, t2, _, err := svc.Heartbeat(ctx, t1)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, identity))

	for _, token := range []string{t1, t2} {
		_, _, err := svc.Session(ctx, token)
		require.ErrorIs(t, err, auth.ErrRevoked)
	}
	require.Contains(t, audit.actions(), repository.AuditActionRevokeAll)
}

func TestRevokeAllLeavesOtherUsersIntact(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	identityA, _, _, err := svc.LoginTelegram(ctx, signedInitData("111111111"), "10.0.0.1")
	require.NoError(t, err)
	_, tokenB, _, err := svc.LoginTelegram(ctx, signedInitData("222222222"), "10.0.0.2")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, identityA))

	identityB, _, err := svc.Session(ctx, tokenB)
	require.NoError(t, err)
	require.Equal(t, "222222222", identityB.TelegramID)
}

func TestStaffLogin(t *testing.T) {
	svc, users, _ := newService(t)
	ctx := context.Background()

	hash, err := auth.HashPassword("operator-pass", 4)
	require.NoError(t, err)
	email := "ops@platform.local"
	require.NoError(t, users.Create(ctx, &domain.User{
		ID:            "9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d",
		Email:         &email,
		PasswordHash:  &hash,
		Role:          domain.RoleSupport,
		SecurityStamp: "stamp-v1",
		Status:        domain.UserStatusActive,
	}))

	identity, token, _, err := svc.LoginStaff(ctx, email, "operator-pass")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, domain.RoleSupport, identity.Role)
	require.True(t, identity.Can(domain.CapHandleTickets))

	_, _, _, err = svc.LoginStaff(ctx, email, "wrong-pass")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, _, err = svc.LoginStaff(ctx, "nobody@platform.local", "operator-pass")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestSessionReportsPresenceAfterHeartbeat(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, token, _, err := svc.LoginTelegram(ctx, signedInitData("123456789"), "10.0.0.1")
	require.NoError(t, err)

	_, active, err := svc.Session(ctx, token)
	require.NoError(t, err)
	require.False(t, active)

	_, refreshed, _, err := svc.Heartbeat(ctx, token)
	require.NoError(t, err)

	_, active, err = svc.Session(ctx, refreshed)
	require.NoError(t, err)
	require.True(t, active)
}
