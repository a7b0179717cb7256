package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort     string
	AppMode     string
	LogMode     string
	ClientURL   string
	Maintenance bool

	Database DatabaseConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	PayPal   PayPalConfig
	Admin    AdminConfig
	SMTP     SMTPConfig
	Archive  ArchiveConfig
	Ledger   LedgerConfig
	Notifier NotifierConfig
}

type DatabaseConfig struct {
	Driver          string // postgres | memory
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SeedFile lists campaigns loaded into the memory driver at start.
	SeedFile string
}

// DSN renders a libpq style connection string for the pgx stdlib driver.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type StripeConfig struct {
	WebhookSecret string
	Tolerance     time.Duration
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	APIBase      string
}

// Enabled reports whether enough PayPal credentials are present to verify webhooks.
func (p PayPalConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.WebhookID != ""
}

type AdminConfig struct {
	JWTSecret string
	KeyHash   string // bcrypt hash of the admin key
	TokenTTL  time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Pass     string
	TLSMode  string // none | tls | starttls
	From     string
	FromName string
}

type ArchiveConfig struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

type LedgerConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
}

type NotifierConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	// SinkTimeout bounds each failure sink write: the record on the
	// request path and every queued alert or archive upload.
	SinkTimeout time.Duration
}

// fileConfig is the optional YAML overlay. Secrets stay in the environment.
type fileConfig struct {
	App struct {
		Port        string `yaml:"port"`
		Mode        string `yaml:"mode"`
		LogMode     string `yaml:"log_mode"`
		ClientURL   string `yaml:"client_url"`
		Maintenance bool   `yaml:"maintenance"`
	} `yaml:"app"`
	Database struct {
		Driver          string `yaml:"driver"`
		Host            string `yaml:"host"`
		Port            string `yaml:"port"`
		Name            string `yaml:"name"`
		SSLMode         string `yaml:"sslmode"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		SeedFile        string `yaml:"seed_file"`
	} `yaml:"database"`
	Redis struct {
		Enabled *bool  `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		DB      int    `yaml:"db"`
	} `yaml:"redis"`
	Ledger struct {
		Retention     string `yaml:"retention"`
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"ledger"`
	Notifier struct {
		Workers     int    `yaml:"workers"`
		QueueSize   int    `yaml:"queue_size"`
		SendTimeout string `yaml:"send_timeout"`
		SinkTimeout string `yaml:"sink_timeout"`
	} `yaml:"notifier"`
}

func defaults() *Config {
	return &Config{
		AppPort:   "8080",
		AppMode:   "debug",
		LogMode:   "development",
		ClientURL: "http://localhost:3000",
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "postgres",
			Name:            "goodies",
			SSLMode:         "disable",
			MaxOpenConns:    50,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    "6379",
		},
		Stripe: StripeConfig{Tolerance: 5 * time.Minute},
		PayPal: PayPalConfig{APIBase: "https://api-m.sandbox.paypal.com"},
		Admin:  AdminConfig{TokenTTL: 30 * time.Minute},
		SMTP: SMTPConfig{
			Host:     "localhost",
			Port:     "1025",
			TLSMode:  "none",
			From:     "no-reply@goodies.local",
			FromName: "Goodies",
		},
		Archive: ArchiveConfig{Region: "us-east-1"},
		Ledger: LedgerConfig{
			Retention:     90 * 24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Notifier: NotifierConfig{
			Workers:     2,
			QueueSize:   256,
			SendTimeout: 10 * time.Second,
			SinkTimeout: 2 * time.Second,
		},
	}
}

// LoadConfig reads .env (if any), then the YAML file named by CONFIG_FILE
// (if any), then environment variables. Later sources win.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.AppPort, fc.App.Port)
	setString(&cfg.AppMode, fc.App.Mode)
	setString(&cfg.LogMode, fc.App.LogMode)
	setString(&cfg.ClientURL, fc.App.ClientURL)
	if fc.App.Maintenance {
		cfg.Maintenance = true
	}

	setString(&cfg.Database.Driver, fc.Database.Driver)
	setString(&cfg.Database.Host, fc.Database.Host)
	setString(&cfg.Database.Port, fc.Database.Port)
	setString(&cfg.Database.Name, fc.Database.Name)
	setString(&cfg.Database.SSLMode, fc.Database.SSLMode)
	setInt(&cfg.Database.MaxOpenConns, fc.Database.MaxOpenConns)
	setInt(&cfg.Database.MaxIdleConns, fc.Database.MaxIdleConns)
	setString(&cfg.Database.SeedFile, fc.Database.SeedFile)
	if err := setDuration(&cfg.Database.ConnMaxLifetime, fc.Database.ConnMaxLifetime); err != nil {
		return err
	}

	if fc.Redis.Enabled != nil {
		cfg.Redis.Enabled = *fc.Redis.Enabled
	}
	setString(&cfg.Redis.Host, fc.Redis.Host)
	setString(&cfg.Redis.Port, fc.Redis.Port)
	setInt(&cfg.Redis.DB, fc.Redis.DB)

	if err := setDuration(&cfg.Ledger.Retention, fc.Ledger.Retention); err != nil {
		return err
	}
	if err := setDuration(&cfg.Ledger.SweepInterval, fc.Ledger.SweepInterval); err != nil {
		return err
	}

	setInt(&cfg.Notifier.Workers, fc.Notifier.Workers)
	setInt(&cfg.Notifier.QueueSize, fc.Notifier.QueueSize)
	if err := setDuration(&cfg.Notifier.SendTimeout, fc.Notifier.SendTimeout); err != nil {
		return err
	}
	return setDuration(&cfg.Notifier.SinkTimeout, fc.Notifier.SinkTimeout)
}

func applyEnv(cfg *Config) {
	cfg.AppPort = getEnv("APP_PORT", cfg.AppPort)
	cfg.AppMode = getEnv("APP_MODE", cfg.AppMode)
	cfg.LogMode = getEnv("LOG_MODE", cfg.LogMode)
	cfg.ClientURL = getEnv("CLIENT_URL", cfg.ClientURL)
	cfg.Maintenance = getEnvAsBool("MAINTENANCE_MODE", cfg.Maintenance)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)
	cfg.Database.SeedFile = getEnv("DB_SEED_FILE", cfg.Database.SeedFile)

	cfg.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = getEnv("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.Stripe.WebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", cfg.Stripe.WebhookSecret)
	cfg.Stripe.Tolerance = getEnvAsDuration("STRIPE_WEBHOOK_TOLERANCE", cfg.Stripe.Tolerance)

	cfg.PayPal.ClientID = getEnv("PAYPAL_CLIENT_ID", cfg.PayPal.ClientID)
	cfg.PayPal.ClientSecret = getEnv("PAYPAL_CLIENT_SECRET", cfg.PayPal.ClientSecret)
	cfg.PayPal.WebhookID = getEnv("PAYPAL_WEBHOOK_ID", cfg.PayPal.WebhookID)
	cfg.PayPal.APIBase = getEnv("PAYPAL_API_BASE", cfg.PayPal.APIBase)

	cfg.Admin.JWTSecret = getEnv("ADMIN_JWT_SECRET", cfg.Admin.JWTSecret)
	cfg.Admin.KeyHash = getEnv("ADMIN_KEY_HASH", cfg.Admin.KeyHash)
	cfg.Admin.TokenTTL = getEnvAsDuration("ADMIN_TOKEN_TTL", cfg.Admin.TokenTTL)

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnv("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.User = getEnv("SMTP_USER", cfg.SMTP.User)
	cfg.SMTP.Pass = getEnv("SMTP_PASS", cfg.SMTP.Pass)
	cfg.SMTP.TLSMode = getEnv("SMTP_TLS_MODE", cfg.SMTP.TLSMode)
	cfg.SMTP.From = getEnv("MAIL_FROM", cfg.SMTP.From)
	cfg.SMTP.FromName = getEnv("MAIL_FROM_NAME", cfg.SMTP.FromName)

	cfg.Archive.Bucket = getEnv("ARCHIVE_S3_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.Region = getEnv("ARCHIVE_S3_REGION", cfg.Archive.Region)
	cfg.Archive.AccessKey = getEnv("ARCHIVE_S3_ACCESS_KEY", cfg.Archive.AccessKey)
	cfg.Archive.SecretKey = getEnv("ARCHIVE_S3_SECRET_KEY", cfg.Archive.SecretKey)
	cfg.Archive.Endpoint = getEnv("ARCHIVE_S3_ENDPOINT", cfg.Archive.Endpoint)

	cfg.Ledger.Retention = getEnvAsDuration("LEDGER_RETENTION", cfg.Ledger.Retention)
	cfg.Ledger.SweepInterval = getEnvAsDuration("LEDGER_SWEEP_INTERVAL", cfg.Ledger.SweepInterval)

	cfg.Notifier.Workers = getEnvAsInt("NOTIFIER_WORKERS", cfg.Notifier.Workers)
	cfg.Notifier.QueueSize = getEnvAsInt("NOTIFIER_QUEUE_SIZE", cfg.Notifier.QueueSize)
	cfg.Notifier.SendTimeout = getEnvAsDuration("NOTIFIER_SEND_TIMEOUT", cfg.Notifier.SendTimeout)
	cfg.Notifier.SinkTimeout = getEnvAsDuration("FAILURE_SINK_TIMEOUT", cfg.Notifier.SinkTimeout)
}

// Validate checks the settings the webhook path cannot run without.
func (c *Config) Validate() error {
	if c.Stripe.WebhookSecret == "" && !c.PayPal.Enabled() {
		return errors.New("no payment provider configured: set STRIPE_WEBHOOK_SECRET or PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET/PAYPAL_WEBHOOK_ID")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Ledger.Retention <= 0 {
		return errors.New("LEDGER_RETENTION must be positive")
	}
	if c.Notifier.Workers <= 0 || c.Notifier.QueueSize <= 0 {
		return errors.New("notifier workers and queue size must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", v, err)
	}
	*dst = d
	return nil
}
