package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Gate     GateConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
//
// JWTSecret and BotToken are process-wide: every instance that issues or
// verifies tokens must share the same values, otherwise all outstanding
// sessions silently break.
type AuthConfig struct {
	JWTSecret            string
	BotToken             string
	TokenTTLHours        int
	InitDataMaxAgeHours  int
	BcryptCost           int
	CookieName           string
	CookieSecure         bool
	CookieSameSite       string
	LoginRatePerMinute   int
	PresenceTTLMinutes   int
	StampLookupTimeoutMS int
}

// GateConfig classifies page routes for the request gate.
type GateConfig struct {
	LoginPath         string
	LandingPath       string
	BypassPrefixes    []string
	LoginPrefixes     []string
	ProtectedPrefixes []string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "miniapp-auth-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("AUTH_JWT_SECRET", "dev-secret"),
			BotToken:             os.Getenv("TELEGRAM_BOT_TOKEN"),
			TokenTTLHours:        getEnvAsInt("AUTH_TOKEN_TTL_HOURS", 168),
			InitDataMaxAgeHours:  getEnvAsInt("AUTH_INITDATA_MAX_AGE_HOURS", 24),
			BcryptCost:           getEnvAsInt("AUTH_BCRYPT_COST", 12),
			CookieName:           getEnv("AUTH_COOKIE_NAME", "auth_token"),
			CookieSecure:         getEnvAsBool("AUTH_COOKIE_SECURE", false),
			CookieSameSite:       getEnv("AUTH_COOKIE_SAMESITE", "Lax"),
			LoginRatePerMinute:   getEnvAsInt("AUTH_LOGIN_RATE_PER_MINUTE", 20),
			PresenceTTLMinutes:   getEnvAsInt("AUTH_PRESENCE_TTL_MINUTES", 30),
			StampLookupTimeoutMS: getEnvAsInt("AUTH_STAMP_LOOKUP_TIMEOUT_MS", 2000),
		},
		Gate: GateConfig{
			LoginPath:         getEnv("GATE_LOGIN_PATH", "/login"),
			LandingPath:       getEnv("GATE_LANDING_PATH", "/dashboard"),
			BypassPrefixes:    getEnvAsList("GATE_BYPASS_PREFIXES", "/auth,/health,/static,/assets,/favicon.ico"),
			LoginPrefixes:     getEnvAsList("GATE_LOGIN_PREFIXES", "/login"),
			ProtectedPrefixes: getEnvAsList("GATE_PROTECTED_PREFIXES", "/dashboard,/merchant,/admin,/support"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TokenTTL returns the session token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	if a.TokenTTLHours <= 0 {
		return 168 * time.Hour
	}
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// InitDataMaxAge returns the staleness window for Telegram initData.
func (a AuthConfig) InitDataMaxAge() time.Duration {
	if a.InitDataMaxAgeHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.InitDataMaxAgeHours) * time.Hour
}

// StampLookupTimeout bounds security stamp lookups in the session resolver.
func (a AuthConfig) StampLookupTimeout() time.Duration {
	if a.StampLookupTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(a.StampLookupTimeoutMS) * time.Millisecond
}

// PresenceTTL returns how long a heartbeat marks a session as active.
func (a AuthConfig) PresenceTTL() time.Duration {
	if a.PresenceTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(a.PresenceTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key, fallback string) []string {
	val := os.Getenv(key)
	if val == "" {
		val = fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
