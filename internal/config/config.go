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
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MigrateOnStart applies embedded migrations before serving when true.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`

	// JWTPublicKey is the PEM-encoded public key (or path to file) used to verify access tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim (e.g. "firmdesk-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim (e.g. "firmdesk-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// PaymentGatewayURL is the base URL of the external payment gateway.
	PaymentGatewayURL string `mapstructure:"PAYMENT_GATEWAY_URL"`
	// PaymentGatewayKey is the API key sent in the Authorization header to the gateway.
	PaymentGatewayKey string `mapstructure:"PAYMENT_GATEWAY_KEY"`

	// EmailAPIURL is the base URL of the transactional email provider. Used by cmd/worker.
	EmailAPIURL string `mapstructure:"EMAIL_API_URL"`
	// EmailAPIKey is the API key for the email provider.
	EmailAPIKey string `mapstructure:"EMAIL_API_KEY"`
	// EmailFrom is the From address on outbound mail.
	EmailFrom string `mapstructure:"EMAIL_FROM"`

	// NotificationKafkaBrokers is a comma-separated list of Kafka broker addresses.
	// When empty the notification side channel is disabled (no-op notifier).
	NotificationKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// NotificationKafkaTopic is the Kafka topic for outbound email messages.
	NotificationKafkaTopic string `mapstructure:"NOTIFICATION_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the notification worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// InvitationTTL is the invitation validity window (e.g. "168h").
	InvitationTTL string `mapstructure:"INVITATION_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31) for generated member credentials; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
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
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("JWT_ISSUER", "firmdesk-auth")
	v.SetDefault("JWT_AUDIENCE", "firmdesk-api")
	v.SetDefault("PAYMENT_GATEWAY_URL", "")
	v.SetDefault("PAYMENT_GATEWAY_KEY", "")
	v.SetDefault("EMAIL_API_URL", "")
	v.SetDefault("EMAIL_API_KEY", "")
	v.SetDefault("EMAIL_FROM", "no-reply@firmdesk.example")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("NOTIFICATION_KAFKA_TOPIC", "firmdesk-notifications")
	v.SetDefault("KAFKA_GROUP_ID", "firmdesk-notification-worker")
	v.SetDefault("INVITATION_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("APP_ENV", "")

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

	return &cfg, nil
}

// InvitationValidity parses InvitationTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) InvitationValidity() time.Duration {
	d, err := time.ParseDuration(c.InvitationTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// NotificationKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the notification side channel is enabled (non-empty list) and to create the producer.
func (c *Config) NotificationKafkaBrokersList() []string {
	if c == nil || c.NotificationKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.NotificationKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
