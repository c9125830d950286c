package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Paystack   PaystackConfig   `mapstructure:"paystack"`
	Courier    CourierConfig    `mapstructure:"courier"`
	Email      EmailConfig      `mapstructure:"email"`
	Checkout   CheckoutConfig   `mapstructure:"checkout"`
	Lifecycle  LifecycleConfig  `mapstructure:"lifecycle"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
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

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type AuthConfig struct {
	SupabaseJWTSecret string `mapstructure:"supabase_jwt_secret"`
	// Argon2id encoded hash of the token internal callers send in X-Service-Token.
	ServiceTokenHash string `mapstructure:"service_token_hash"`
}

type PaystackConfig struct {
	SecretKey          string `mapstructure:"secret_key"`
	BaseURL            string `mapstructure:"base_url"`
	CallbackURL        string `mapstructure:"callback_url"`
	PlatformSubaccount string `mapstructure:"platform_subaccount"`
}

type CourierConfig struct {
	CourierGuyAPIKey  string `mapstructure:"courier_guy_api_key"`
	CourierGuyBaseURL string `mapstructure:"courier_guy_base_url"`
	FastwayAPIKey     string `mapstructure:"fastway_api_key"`
	FastwayBaseURL    string `mapstructure:"fastway_base_url"`
}

type EmailConfig struct {
	BrevoAPIKey  string `mapstructure:"brevo_api_key"`
	BrevoBaseURL string `mapstructure:"brevo_base_url"`
	SenderName   string `mapstructure:"sender_name"`
	SenderEmail  string `mapstructure:"sender_email"`
	AdminEmail   string `mapstructure:"admin_email"`
}

type CheckoutConfig struct {
	ReservationTTL time.Duration `mapstructure:"reservation_ttl"`
	Currency       string        `mapstructure:"currency"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// DeliveryTimeoutPolicy decides what the sweeper does with collected orders
// that were never confirmed.
type DeliveryTimeoutPolicy string

const (
	DeliveryTimeoutAutoDeliver DeliveryTimeoutPolicy = "auto_deliver"
	DeliveryTimeoutFlag        DeliveryTimeoutPolicy = "flag"
)

type LifecycleConfig struct {
	CommitWindow          time.Duration         `mapstructure:"commit_window"`
	CollectionTimeout     time.Duration         `mapstructure:"collection_timeout"`
	DeliveryTimeout       time.Duration         `mapstructure:"delivery_timeout"`
	DeliveryTimeoutPolicy DeliveryTimeoutPolicy `mapstructure:"delivery_timeout_policy"`
}

type SweeperConfig struct {
	Schedule  string        `mapstructure:"schedule"` // robfig/cron spec
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
	BatchSize int           `mapstructure:"batch_size"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"` // outbound provider calls
}

type EncryptionConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

// Validate rejects combinations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Lifecycle.DeliveryTimeoutPolicy {
	case DeliveryTimeoutAutoDeliver, DeliveryTimeoutFlag:
	default:
		return fmt.Errorf("lifecycle.delivery_timeout_policy: unknown policy %q", c.Lifecycle.DeliveryTimeoutPolicy)
	}
	if c.Checkout.ReservationTTL <= 0 {
		return fmt.Errorf("checkout.reservation_ttl must be positive")
	}
	if c.Lifecycle.CommitWindow <= 0 || c.Lifecycle.CollectionTimeout <= 0 || c.Lifecycle.DeliveryTimeout <= 0 {
		return fmt.Errorf("lifecycle windows must be positive")
	}
	if c.Sweeper.BatchSize <= 0 {
		return fmt.Errorf("sweeper.batch_size must be positive")
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: RB_ (ReBooked).
// Nested keys use underscore: RB_DATABASE_HOST, RB_PAYSTACK_SECRET_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "rebooked")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("auth.supabase_jwt_secret", "")
	v.SetDefault("auth.service_token_hash", "")
	v.SetDefault("paystack.secret_key", "")
	v.SetDefault("paystack.base_url", "https://api.paystack.co")
	v.SetDefault("paystack.callback_url", "")
	v.SetDefault("paystack.platform_subaccount", "")
	v.SetDefault("courier.courier_guy_api_key", "")
	v.SetDefault("courier.courier_guy_base_url", "https://api.shiplogic.com")
	v.SetDefault("courier.fastway_api_key", "")
	v.SetDefault("courier.fastway_base_url", "https://sa.api.fastway.org/latest")
	v.SetDefault("email.brevo_api_key", "")
	v.SetDefault("email.brevo_base_url", "https://api.brevo.com")
	v.SetDefault("email.sender_name", "ReBooked Solutions")
	v.SetDefault("email.sender_email", "noreply@rebookedsolutions.co.za")
	v.SetDefault("email.admin_email", "")
	v.SetDefault("checkout.reservation_ttl", "15m")
	v.SetDefault("checkout.currency", "ZAR")
	v.SetDefault("checkout.idempotency_ttl", "24h")
	v.SetDefault("lifecycle.commit_window", "48h")
	v.SetDefault("lifecycle.collection_timeout", "168h")
	v.SetDefault("lifecycle.delivery_timeout", "336h")
	v.SetDefault("lifecycle.delivery_timeout_policy", string(DeliveryTimeoutAutoDeliver))
	v.SetDefault("sweeper.schedule", "*/15 * * * *")
	v.SetDefault("sweeper.lock_ttl", "10m")
	v.SetDefault("sweeper.batch_size", 200)
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("encryption.key", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// RB_DATABASE_HOST -> database.host
	v.SetEnvPrefix("RB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// a missing file is fine, env vars can carry everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
