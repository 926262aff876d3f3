package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Topup      TopupConfig      `mapstructure:"topup"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig describes the tokens issued by the CRM session service.
// This service only validates them.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// PaymentConfig configures inbound provider webhooks.
type PaymentConfig struct {
	WebhookEnabled         bool          `mapstructure:"webhook_enabled"`
	WebhookSecret          string        `mapstructure:"webhook_secret"` // "test_" prefix marks a non-production secret
	SignatureHeader        string        `mapstructure:"signature_header"`
	TimestampHeader        string        `mapstructure:"timestamp_header"`
	MaxAge                 time.Duration `mapstructure:"max_age"`
	FutureTolerance        time.Duration `mapstructure:"future_tolerance"`
	RelaxedMaxAge          time.Duration `mapstructure:"relaxed_max_age"`
	RelaxedFutureTolerance time.Duration `mapstructure:"relaxed_future_tolerance"`
}

// TopupConfig configures QR order issuance.
type TopupConfig struct {
	OrderPrefix      string `mapstructure:"order_prefix"`
	Currency         string `mapstructure:"currency"`
	CurrencyExponent int32  `mapstructure:"currency_exponent"` // 2 => 1 major unit = 100 minor units
	PointRate        string `mapstructure:"point_rate"`        // decimal string, points per major unit
	MaxAmountMinor   int64  `mapstructure:"max_amount_minor"`
	ExpiryMinutes    int    `mapstructure:"expiry_minutes"`
}

// Rate parses the configured point rate.
func (t TopupConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(t.PointRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing point rate %q: %w", t.PointRate, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("point rate must be >= 0, got %s", t.PointRate)
	}
	return rate, nil
}

type SettlementConfig struct {
	AmountToleranceMinor int64         `mapstructure:"amount_tolerance_minor"`
	SoftEffectTimeout    time.Duration `mapstructure:"soft_effect_timeout"`
	GuardCacheTTL        time.Duration `mapstructure:"guard_cache_ttl"`
}

type ProviderConfig struct {
	QR      HTTPCollaboratorConfig `mapstructure:"qr"`
	Profile HTTPCollaboratorConfig `mapstructure:"profile"`
}

// HTTPCollaboratorConfig configures an outbound JSON-over-HTTP collaborator.
type HTTPCollaboratorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotifyConfig configures the push gateway. An empty URL falls back to log-only delivery.
type NotifyConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KafkaConfig configures settlement event publishing. No brokers disables publishing.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: LPT_ (Loyalty Points Top-up).
// Nested keys use underscore: LPT_DATABASE_HOST, LPT_PAYMENT_WEBHOOK_SECRET, etc.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional; missing .env is fine

	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "loyalty_topup")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "loyalty-crm")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("payment.webhook_enabled", true)
	v.SetDefault("payment.webhook_secret", "")
	v.SetDefault("payment.signature_header", "X-Signature")
	v.SetDefault("payment.timestamp_header", "X-Timestamp")
	v.SetDefault("payment.max_age", "300s")
	v.SetDefault("payment.future_tolerance", "60s")
	v.SetDefault("payment.relaxed_max_age", "24h")
	v.SetDefault("payment.relaxed_future_tolerance", "10m")
	v.SetDefault("topup.order_prefix", "TOPUP")
	v.SetDefault("topup.currency", "THB")
	v.SetDefault("topup.currency_exponent", 2)
	v.SetDefault("topup.point_rate", "1")
	v.SetDefault("topup.max_amount_minor", 5000000)
	v.SetDefault("topup.expiry_minutes", 15)
	v.SetDefault("settlement.amount_tolerance_minor", 0)
	v.SetDefault("settlement.soft_effect_timeout", "5s")
	v.SetDefault("settlement.guard_cache_ttl", "72h")
	v.SetDefault("provider.qr.base_url", "")
	v.SetDefault("provider.qr.api_key", "")
	v.SetDefault("provider.qr.timeout", "10s")
	v.SetDefault("provider.profile.base_url", "")
	v.SetDefault("provider.profile.api_key", "")
	v.SetDefault("provider.profile.timeout", "5s")
	v.SetDefault("notify.url", "")
	v.SetDefault("notify.token", "")
	v.SetDefault("notify.timeout", "5s")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "loyalty.topup.settled")
	v.SetDefault("kafka.write_timeout", "5s")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: LPT_DATABASE_HOST -> database.host
	v.SetEnvPrefix("LPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file; env vars alone are enough
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks business settings that would otherwise fail at request time.
// The webhook secret's shape is checked by the verifier itself.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Topup.Rate(); err != nil {
		errs = append(errs, err)
	}
	if c.Topup.MaxAmountMinor <= 0 {
		errs = append(errs, fmt.Errorf("topup.max_amount_minor must be positive"))
	}
	if c.Topup.ExpiryMinutes <= 0 {
		errs = append(errs, fmt.Errorf("topup.expiry_minutes must be positive"))
	}
	if c.Topup.CurrencyExponent < 0 || c.Topup.CurrencyExponent > 4 {
		errs = append(errs, fmt.Errorf("topup.currency_exponent must be between 0 and 4"))
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver))
	}
	if c.Settlement.AmountToleranceMinor < 0 {
		errs = append(errs, fmt.Errorf("settlement.amount_tolerance_minor must be >= 0"))
	}
	return errors.Join(errs...)
}
