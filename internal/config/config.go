package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pixgo-gateway/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Reconcile modes for status reads
const (
	ReconcileAlways    = "always"
	ReconcileThrottled = "throttled"
	ReconcileDisabled  = "disabled"
)

// Config application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig HTTP server
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig log output
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions converts to logger options
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig connection pool
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig store connection
type DatabaseConfig struct {
	Driver   string             `mapstructure:"driver"` // sqlite / postgres / mysql
	DSN      string             `mapstructure:"dsn"`
	Host     string             `mapstructure:"host"`
	Port     string             `mapstructure:"port"`
	Name     string             `mapstructure:"name"`
	User     string             `mapstructure:"user"`
	Password string             `mapstructure:"password"`
	LogSQL   bool               `mapstructure:"log_sql"`
	Pool     DatabasePoolConfig `mapstructure:"pool"`
}

// ResolveDSN returns the configured DSN, or assembles a mysql DSN from the
// discrete connection fields.
func (c DatabaseConfig) ResolveDSN() string {
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn
	}
	if strings.TrimSpace(c.Host) == "" {
		return ""
	}
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&timeout=5s",
		c.User, c.Password, strings.TrimSpace(c.Host), port, c.Name)
}

// RedisConfig redis
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig async queue
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig cross-origin
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// ProviderConfig PixGo API access
type ProviderConfig struct {
	Name           string `mapstructure:"name"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// WebhookBaseURL overrides the request host when building the default callback URL
	WebhookBaseURL string `mapstructure:"webhook_base_url"`
}

// WebhookConfig inbound webhook authentication
type WebhookConfig struct {
	Secret           string `mapstructure:"secret"`
	ToleranceSeconds int    `mapstructure:"tolerance_seconds"`
	AllowUnsigned    bool   `mapstructure:"allow_unsigned"`
}

// PaymentConfig lifecycle settings
type PaymentConfig struct {
	MinAmount string          `mapstructure:"min_amount"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Intent    IntentConfig    `mapstructure:"intent"`
}

// ReconcileConfig status read reconciliation
type ReconcileConfig struct {
	Mode               string  `mapstructure:"mode"` // always / throttled / disabled
	MinIntervalSeconds int     `mapstructure:"min_interval_seconds"`
	SweepAfterSeconds  int     `mapstructure:"sweep_after_seconds"`
	SweepBatchSize     int     `mapstructure:"sweep_batch_size"`
	SweepRatePerSecond float64 `mapstructure:"sweep_rate_per_second"`
}

// IntentConfig creation outbox recovery
type IntentConfig struct {
	StaleAfterSeconds int `mapstructure:"stale_after_seconds"`
	MaxAttempts       int `mapstructure:"max_attempts"`
	BatchSize         int `mapstructure:"batch_size"`
}

// RateLimitConfig request rate limits
type RateLimitConfig struct {
	CreatePayment RateLimitRuleConfig `mapstructure:"create_payment"`
}

// RateLimitRuleConfig fixed window rule
type RateLimitRuleConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// legacyEnv maps config keys to the environment names used by earlier deployments
var legacyEnv = map[string]string{
	"provider.api_key":  "PIXGO_API_KEY",
	"provider.base_url": "PIXGO_BASE_URL",
	"webhook.secret":    "PIXGO_WEBHOOK_SECRET",
	"database.host":     "MYSQLHOST",
	"database.port":     "MYSQLPORT",
	"database.name":     "MYSQLDATABASE",
	"database.user":     "MYSQLUSER",
	"database.password": "MYSQLPASSWORD",
}

// Load reads .env, config.yml and the environment
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")
	v.AddConfigPath("./etc")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Warnw("config_read_failed", "error", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
	}
	cfg.normalize()
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_sql", false)
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pixgo")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.queues", map[string]int{"default": 1})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "X-API-Key", "Idempotency-Key", "X-Webhook-Event", "X-Webhook-Timestamp", "X-Webhook-Signature"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 0)
	v.SetDefault("provider.name", "pixgo")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "https://pixgo.org/api/v1")
	v.SetDefault("provider.timeout_seconds", 30)
	v.SetDefault("provider.webhook_base_url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.tolerance_seconds", 300)
	v.SetDefault("webhook.allow_unsigned", false)
	v.SetDefault("payment.min_amount", "10.00")
	v.SetDefault("payment.reconcile.mode", ReconcileThrottled)
	v.SetDefault("payment.reconcile.min_interval_seconds", 5)
	v.SetDefault("payment.reconcile.sweep_after_seconds", 900)
	v.SetDefault("payment.reconcile.sweep_batch_size", 50)
	v.SetDefault("payment.reconcile.sweep_rate_per_second", 2)
	v.SetDefault("payment.intent.stale_after_seconds", 60)
	v.SetDefault("payment.intent.max_attempts", 5)
	v.SetDefault("payment.intent.batch_size", 50)
	v.SetDefault("rate_limit.create_payment.window_seconds", 60)
	v.SetDefault("rate_limit.create_payment.max_requests", 30)
}

func (c *Config) normalize() {
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	if c.Provider.Name == "" {
		c.Provider.Name = "pixgo"
	}
	c.Payment.Reconcile.Mode = strings.ToLower(strings.TrimSpace(c.Payment.Reconcile.Mode))
	if c.Payment.Reconcile.Mode == "" {
		c.Payment.Reconcile.Mode = ReconcileThrottled
	}
	// a discrete host without an explicit driver means the legacy mysql deployment
	if strings.TrimSpace(c.Database.DSN) == "" && strings.TrimSpace(c.Database.Host) != "" &&
		(c.Database.Driver == "" || c.Database.Driver == "sqlite") {
		c.Database.Driver = "mysql"
	}
	if strings.TrimSpace(c.Database.ResolveDSN()) == "" && (c.Database.Driver == "" || c.Database.Driver == "sqlite") {
		c.Database.DSN = "./db/pixgo.db"
	}
}

// Validate checks values that would make the service misbehave
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Payment.Reconcile.Mode {
	case ReconcileAlways, ReconcileThrottled, ReconcileDisabled:
	default:
		return fmt.Errorf("invalid payment.reconcile.mode: %s", c.Payment.Reconcile.Mode)
	}
	minAmount, err := decimal.NewFromString(strings.TrimSpace(c.Payment.MinAmount))
	if err != nil || !minAmount.IsPositive() {
		return fmt.Errorf("invalid payment.min_amount: %q", c.Payment.MinAmount)
	}
	if c.Database.ResolveDSN() == "" {
		return errors.New("database dsn is empty")
	}
	return nil
}
