package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Policy    PolicyConfig
	Quote     QuoteConfig
	Storage   StorageConfig
	Messaging MessagingConfig
	Location  LocationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	TaxRate               string
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
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// PolicyConfig bounds the operating window used by the time gate and the
// location broadcast gating. Guards receive it as an explicit value.
type PolicyConfig struct {
	OpenHour            int
	CloseHour           int
	MaxStartLeadMinutes int
}

// QuoteConfig controls quote validity.
type QuoteConfig struct {
	ValidityDays int
}

// StorageConfig selects the object-storage backend.
type StorageConfig struct {
	Backend   string // "gcs" or "memory"
	Bucket    string
	URLPrefix string
}

// MessagingConfig configures the post-completion notification channels.
type MessagingConfig struct {
	SMSProvider     string
	EmailProvider   string
	EmailFrom       string
	SMSWebhookURL   string
	EmailWebhookURL string
}

// LocationConfig controls the position broadcast policy loop.
type LocationConfig struct {
	RecheckSeconds  int
	ThrottleSeconds int
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "field-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			TaxRate:               getEnv("TAX_RATE", "0.21"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
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
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Policy: PolicyConfig{
			OpenHour:            getEnvAsInt("POLICY_OPEN_HOUR", 8),
			CloseHour:           getEnvAsInt("POLICY_CLOSE_HOUR", 20),
			MaxStartLeadMinutes: getEnvAsInt("POLICY_MAX_START_LEAD_MINUTES", 60),
		},
		Quote: QuoteConfig{
			ValidityDays: getEnvAsInt("QUOTE_VALIDITY_DAYS", 15),
		},
		Storage: StorageConfig{
			Backend:   getEnv("STORAGE_BACKEND", "memory"),
			Bucket:    getEnv("STORAGE_BUCKET", ""),
			URLPrefix: getEnv("STORAGE_URL_PREFIX", ""),
		},
		Messaging: MessagingConfig{
			SMSProvider:     getEnv("NOTIFY_SMS_PROVIDER", "log"),
			EmailProvider:   getEnv("NOTIFY_EMAIL_PROVIDER", "log"),
			EmailFrom:       getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMSWebhookURL:   getEnv("NOTIFY_SMS_WEBHOOK_URL", ""),
			EmailWebhookURL: getEnv("NOTIFY_EMAIL_WEBHOOK_URL", ""),
		},
		Location: LocationConfig{
			RecheckSeconds:  getEnvAsInt("LOCATION_RECHECK_SECONDS", 60),
			ThrottleSeconds: getEnvAsInt("LOCATION_THROTTLE_SECONDS", 20),
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

// MaxStartLead returns how far ahead of the scheduled time a visit may start.
func (p PolicyConfig) MaxStartLead() time.Duration {
	return time.Duration(p.MaxStartLeadMinutes) * time.Minute
}

// Recheck returns the policy re-evaluation interval.
func (l LocationConfig) Recheck() time.Duration {
	return time.Duration(l.RecheckSeconds) * time.Second
}

// Throttle returns the minimum interval between persisted GPS writes.
func (l LocationConfig) Throttle() time.Duration {
	return time.Duration(l.ThrottleSeconds) * time.Second
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
