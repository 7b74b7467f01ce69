// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; when empty the server runs on in-memory stores (dev mode).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; signs session tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; verifies session tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "expert-pancake").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "expert-pancake-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// SessionTokenTTL is the session token lifetime (e.g. "720h"). Expired tokens force re-login
	// even if the session row is still active.
	SessionTokenTTL string `mapstructure:"SESSION_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// ExpiryWebDays is the inactivity threshold for web-browser sessions (default 7).
	ExpiryWebDays int `mapstructure:"EXPIRY_WEB_DAYS"`
	// ExpiryMobileDays is the inactivity threshold for mobile-app sessions (default 90).
	ExpiryMobileDays int `mapstructure:"EXPIRY_MOBILE_DAYS"`
	// ExpiryDesktopDays is the inactivity threshold for desktop-app sessions (default 30).
	ExpiryDesktopDays int `mapstructure:"EXPIRY_DESKTOP_DAYS"`
	// ExpiryDefaultDays is the inactivity threshold for sessions with no recognized class (default 30).
	ExpiryDefaultDays int `mapstructure:"EXPIRY_DEFAULT_DAYS"`
	// SweepInterval is how often the expiry sweeper runs (e.g. "2m").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// RevokedRetention is how long revoked session rows are kept before the sweeper purges them (e.g. "720h").
	RevokedRetention string `mapstructure:"REVOKED_RETENTION"`
	// UserLockTimeout bounds how long a mutating call waits for the per-user lock before returning Conflict (e.g. "5s").
	UserLockTimeout string `mapstructure:"USER_LOCK_TIMEOUT"`

	// GeoDistanceThresholdKm demotes a new device to suspicious when its login location is farther
	// than this from every previously trusted location. 0 disables the geo check.
	GeoDistanceThresholdKm float64 `mapstructure:"GEO_DISTANCE_THRESHOLD_KM"`
	// TrustPolicyPath optionally points at a Rego file overriding the embedded trust policy.
	TrustPolicyPath string `mapstructure:"TRUST_POLICY_PATH"`

	// VerificationCodeTTL is the challenge code lifetime (e.g. "10m").
	VerificationCodeTTL string `mapstructure:"VERIFICATION_CODE_TTL"`
	// VerificationMaxAttempts is how many wrong codes consume a challenge (default 5).
	VerificationMaxAttempts int `mapstructure:"VERIFICATION_MAX_ATTEMPTS"`
	// CodeReturnToClient when true enables dev verification mode: the challenge code is returned in
	// the Begin response instead of being delivered out of band. Must not be true when Env is production.
	CodeReturnToClient bool `mapstructure:"CODE_RETURN_TO_CLIENT"`

	// Notifications (optional). When Kafka brokers are set, session events are published to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// NotifyKafkaTopic is the Kafka topic for session events (default session-events).
	NotifyKafkaTopic string `mapstructure:"NOTIFY_KAFKA_TOPIC"`

	// Worker-only: KafkaGroupID is the consumer group ID for the delivery worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// Worker-only: WebhookURL is the HTTP gateway the delivery worker posts rendered notifications to.
	WebhookURL string `mapstructure:"NOTIFY_WEBHOOK_URL"`
	// Worker-only: WebhookToken is sent as a bearer token on webhook posts. Optional.
	WebhookToken string `mapstructure:"NOTIFY_WEBHOOK_TOKEN"`
	// Worker-only: LokiURL for the delivery worker to push delivery outcomes (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// RedisAddr enables the rate-limit middleware when set (e.g. localhost:6379).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RateLimitPerMinute caps requests per client IP per minute when Redis is configured (default 120).
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("JWT_ISSUER", "expert-pancake")
	v.SetDefault("JWT_AUDIENCE", "expert-pancake-api")
	v.SetDefault("SESSION_TOKEN_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("EXPIRY_WEB_DAYS", 7)
	v.SetDefault("EXPIRY_MOBILE_DAYS", 90)
	v.SetDefault("EXPIRY_DESKTOP_DAYS", 30)
	v.SetDefault("EXPIRY_DEFAULT_DAYS", 30)
	v.SetDefault("SWEEP_INTERVAL", "2m")
	v.SetDefault("REVOKED_RETENTION", "720h")
	v.SetDefault("USER_LOCK_TIMEOUT", "5s")
	v.SetDefault("GEO_DISTANCE_THRESHOLD_KM", 500.0)
	v.SetDefault("TRUST_POLICY_PATH", "")
	v.SetDefault("VERIFICATION_CODE_TTL", "10m")
	v.SetDefault("VERIFICATION_MAX_ATTEMPTS", 5)
	v.SetDefault("CODE_RETURN_TO_CLIENT", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("NOTIFY_KAFKA_TOPIC", "session-events")
	v.SetDefault("KAFKA_GROUP_ID", "session-delivery-worker")
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_WEBHOOK_TOKEN", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.CodeReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: CODE_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.ExpiryWebDays <= 0 || cfg.ExpiryMobileDays <= 0 || cfg.ExpiryDesktopDays <= 0 || cfg.ExpiryDefaultDays <= 0 {
		return nil, errors.New("config: expiry thresholds must be positive day counts")
	}

	if cfg.GeoDistanceThresholdKm < 0 {
		return nil, errors.New("config: GEO_DISTANCE_THRESHOLD_KM must not be negative")
	}

	if cfg.VerificationMaxAttempts <= 0 {
		return nil, errors.New("config: VERIFICATION_MAX_ATTEMPTS must be positive")
	}

	if cfg.RateLimitPerMinute <= 0 {
		return nil, errors.New("config: RATE_LIMIT_PER_MINUTE must be positive")
	}

	return &cfg, nil
}

// TokenTTL parses SessionTokenTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTokenTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// SweepEvery parses SweepInterval as a time.Duration. Returns 2m if unset or invalid.
func (c *Config) SweepEvery() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// RevokedRetentionFor parses RevokedRetention as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RevokedRetentionFor() time.Duration {
	d, err := time.ParseDuration(c.RevokedRetention)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// LockTimeout parses UserLockTimeout as a time.Duration. Returns 5s if unset or invalid.
func (c *Config) LockTimeout() time.Duration {
	d, err := time.ParseDuration(c.UserLockTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// CodeTTL parses VerificationCodeTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) CodeTTL() time.Duration {
	d, err := time.ParseDuration(c.VerificationCodeTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// ExpiryWeb returns the web-browser inactivity threshold as a duration.
func (c *Config) ExpiryWeb() time.Duration { return time.Duration(c.ExpiryWebDays) * 24 * time.Hour }

// ExpiryMobile returns the mobile-app inactivity threshold as a duration.
func (c *Config) ExpiryMobile() time.Duration {
	return time.Duration(c.ExpiryMobileDays) * 24 * time.Hour
}

// ExpiryDesktop returns the desktop-app inactivity threshold as a duration.
func (c *Config) ExpiryDesktop() time.Duration {
	return time.Duration(c.ExpiryDesktopDays) * 24 * time.Hour
}

// ExpiryDefault returns the fallback inactivity threshold as a duration.
func (c *Config) ExpiryDefault() time.Duration {
	return time.Duration(c.ExpiryDefaultDays) * 24 * time.Hour
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
