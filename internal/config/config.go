package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/payment"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Payment  PaymentConfig
	JWT      JWTConfig
	Notify   NotifyConfig
	Checkout CheckoutConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
	// BaseURL is the public origin used in gateway return links.
	BaseURL string
	// AdminAPIKey guards operator endpoints. Empty disables them.
	AdminAPIKey string
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type PaymentConfig struct {
	Cashfree CashfreeConfig
	Stripe   StripeConfig
}

type CashfreeConfig struct {
	Environment string
	AppID       string
	SecretKey   string
	APIVersion  string
	Timeout     time.Duration
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	Currency       string
	APIBase        string
}

type JWTConfig struct {
	Secret   string
	Expiry   time.Duration
	ResetTTL time.Duration
}

type NotifyConfig struct {
	BotToken string
	ChatID   int64
}

type CheckoutConfig struct {
	InflightTTL        time.Duration
	PaymentExpireAfter time.Duration
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()
	setDefaults()

	cfg := &Config{
		Server: ServerConfig{
			Port:    viper.GetInt("APP_PORT"),
			Env:     environment(),
			BaseURL: strings.TrimRight(viper.GetString("APP_BASE_URL"), "/"),

			AdminAPIKey: strings.TrimSpace(viper.GetString("ADMIN_API_KEY")),
		},
		Database: loadDatabase(),
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Payment: PaymentConfig{
			Cashfree: CashfreeConfig{
				Environment: strings.ToLower(viper.GetString("CASHFREE_ENVIRONMENT")),
				AppID:       viper.GetString("CASHFREE_APP_ID"),
				SecretKey:   viper.GetString("CASHFREE_SECRET_KEY"),
				APIVersion:  viper.GetString("CASHFREE_API_VERSION"),
				Timeout:     duration("CASHFREE_TIMEOUT", 30*time.Second),
			},
			Stripe: StripeConfig{
				SecretKey:      viper.GetString("STRIPE_SECRET_KEY"),
				PublishableKey: viper.GetString("STRIPE_PUBLISHABLE_KEY"),
				WebhookSecret:  viper.GetString("STRIPE_WEBHOOK_SECRET"),
				Currency:       strings.ToLower(viper.GetString("STRIPE_CURRENCY")),
				APIBase:        viper.GetString("STRIPE_API_BASE"),
			},
		},
		JWT: JWTConfig{
			Secret:   viper.GetString("JWT_SECRET"),
			Expiry:   duration("JWT_EXPIRY", 24*time.Hour),
			ResetTTL: duration("RESET_TOKEN_TTL", 15*time.Minute),
		},
		Notify: NotifyConfig{
			BotToken: viper.GetString("NOTIFY_BOT_TOKEN"),
			ChatID:   viper.GetInt64("NOTIFY_CHAT_ID"),
		},
		Checkout: CheckoutConfig{
			InflightTTL:        duration("CHECKOUT_INFLIGHT_TTL", 2*time.Minute),
			PaymentExpireAfter: duration("PAYMENT_EXPIRE_AFTER", 24*time.Hour),
		},
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("APP_PORT %d is out of range", cfg.Server.Port)
	}
	if env := cfg.Payment.Cashfree.Environment; env != "sandbox" && env != "production" {
		return nil, fmt.Errorf("CASHFREE_ENVIRONMENT must be sandbox or production, got %q", env)
	}
	return cfg, nil
}

// LoadDatabaseOnly reads just the database settings, for --bootstrap-db.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	_ = godotenv.Load()
	viper.AutomaticEnv()
	setDefaults()

	cfg := loadDatabase()
	if cfg.Name == "" {
		return nil, fmt.Errorf("DB_NAME is not set")
	}
	return &cfg, nil
}

// Warnings lists settings that are missing but not fatal.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Database.Name == "" {
		warnings = append(warnings, "DB_NAME is not set")
	}
	if c.Server.BaseURL == "" {
		warnings = append(warnings, "APP_BASE_URL is not set, gateway return links will be relative")
	}
	if c.Payment.Stripe.WebhookSecret == "" {
		warnings = append(warnings, "STRIPE_WEBHOOK_SECRET is not set, Stripe webhooks will be rejected")
	}
	if c.Server.AdminAPIKey == "" {
		warnings = append(warnings, "ADMIN_API_KEY is not set, gateway test endpoint is disabled")
	}
	if c.JWT.Secret == "" {
		warnings = append(warnings, "JWT_SECRET is not set")
	}
	return warnings
}

// IsProduction reports whether the service runs against live gateways.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c CashfreeConfig) Gateway() payment.CashfreeConfig {
	return payment.CashfreeConfig{
		Environment: c.Environment,
		AppID:       c.AppID,
		SecretKey:   c.SecretKey,
		APIVersion:  c.APIVersion,
		Timeout:     c.Timeout,
	}
}

func (c StripeConfig) Gateway(env string) payment.StripeConfig {
	return payment.StripeConfig{
		SecretKey:      c.SecretKey,
		PublishableKey: c.PublishableKey,
		WebhookSecret:  c.WebhookSecret,
		Currency:       c.Currency,
		Environment:    env,
		APIBase:        c.APIBase,
	}
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}

func setDefaults() {
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CASHFREE_ENVIRONMENT", "sandbox")
	viper.SetDefault("CASHFREE_API_VERSION", "2022-09-01")
	viper.SetDefault("STRIPE_CURRENCY", "inr")
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host:    viper.GetString("DB_HOST"),
		Port:    viper.GetString("DB_PORT"),
		Name:    viper.GetString("DB_NAME"),
		User:    viper.GetString("DB_USER"),
		Pass:    viper.GetString("DB_PASS"),
		Charset: viper.GetString("DB_CHARSET"),
	}
}

// environment prefers APP_ENV and falls back to NODE_ENV.
func environment() string {
	for _, key := range []string{"APP_ENV", "NODE_ENV"} {
		if v := strings.ToLower(strings.TrimSpace(viper.GetString(key))); v != "" {
			return v
		}
	}
	return "production"
}

func duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
