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
	// DatabaseURL is the Postgres DSN. Empty means the in-memory backend
	// (dev and tests only).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the HMAC signing secret for access tokens. Required.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim (e.g. "authgate").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "authgate-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// RotateWithin is the remaining-validity window under which a refresh
	// rotates the stored token (e.g. "24h").
	RotateWithin string `mapstructure:"ROTATE_WITHIN"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// ThrottleWindow is the login failure observation window (e.g. "5m").
	ThrottleWindow string `mapstructure:"THROTTLE_WINDOW"`
	// ThrottleMaxFailures is the failure count above which logins are refused.
	ThrottleMaxFailures int `mapstructure:"THROTTLE_MAX_FAILURES"`
	// WebhookURL is the chat webhook for security alerts. Empty disables the
	// inline notifier.
	WebhookURL string `mapstructure:"WEBHOOK_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Alerts pipeline (optional). When Kafka brokers are set, the server
	// publishes auth events to Kafka and the worker forwards them.
	// AlertKafkaBrokers is a comma-separated list of broker addresses.
	AlertKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AlertKafkaTopic is the Kafka topic for auth events.
	AlertKafkaTopic string `mapstructure:"ALERT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the alert worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint enables OTLP metric export when set (host:port).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS on the OTLP connection (local collectors).
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
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
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "authgate")
	v.SetDefault("JWT_AUDIENCE", "authgate-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("ROTATE_WITHIN", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("THROTTLE_WINDOW", "5m")
	v.SetDefault("THROTTLE_MAX_FAILURES", 5)
	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ALERT_KAFKA_TOPIC", "authgate-alerts")
	v.SetDefault("KAFKA_GROUP_ID", "authgate-alert-worker")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.ThrottleMaxFailures < 1 {
		return nil, errors.New("config: THROTTLE_MAX_FAILURES must be at least 1")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return durationOr(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return durationOr(c.JWTRefreshTTL, 168*time.Hour)
}

// RotateWithinTTL parses RotateWithin as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) RotateWithinTTL() time.Duration {
	return durationOr(c.RotateWithin, 24*time.Hour)
}

// ThrottleWindowTTL parses ThrottleWindow as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) ThrottleWindowTTL() time.Duration {
	return durationOr(c.ThrottleWindow, 5*time.Minute)
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// AlertKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the alert pipeline is enabled (non-empty list) and to create the producer.
func (c *Config) AlertKafkaBrokersList() []string {
	if c == nil || c.AlertKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.AlertKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
