// Package config loads service settings from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev        = "dev"
	devJWTSecret  = "dev-only-secret-change-me"
	defaultDBPath = "storefront.db"
)

type DatabaseConfig struct {
	Driver         string `yaml:"driver"`
	Path           string `yaml:"path"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Name           string `yaml:"name"`
	MigrationsPath string `yaml:"migrations_path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	CookieName  string        `yaml:"cookie_name"`
}

type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	OwnerEmail      string        `yaml:"owner_email"`
	OwnerPassword   string        `yaml:"owner_password"`
	LoginRatePerMin int           `yaml:"login_rate_per_min"`
}

type EventsConfig struct {
	Broker       string        `yaml:"broker"`
	KafkaBrokers []string      `yaml:"kafka_brokers"`
	KafkaTopic   string        `yaml:"kafka_topic"`
	RabbitMQURL  string        `yaml:"rabbitmq_url"`
	RabbitQueue  string        `yaml:"rabbitmq_queue"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Config struct {
	Env              string         `yaml:"env"`
	HTTPPort         string         `yaml:"http_port"`
	LogLevel         string         `yaml:"log_level"`
	RequestTimeout   time.Duration  `yaml:"request_timeout"`
	ShutdownTimeout  time.Duration  `yaml:"shutdown_timeout"`
	UploadsDir       string         `yaml:"uploads_dir"`
	MaxUploadBytes   int64          `yaml:"max_upload_bytes"`
	SeedProductsFile string         `yaml:"seed_products_file"`
	Database         DatabaseConfig `yaml:"database"`
	Redis            RedisConfig    `yaml:"redis"`
	Session          SessionConfig  `yaml:"session"`
	Auth             AuthConfig     `yaml:"auth"`
	Events           EventsConfig   `yaml:"events"`
}

func Default() *Config {
	return &Config{
		Env:              EnvDev,
		HTTPPort:         "8080",
		LogLevel:         "info",
		RequestTimeout:   30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		UploadsDir:       "uploads",
		MaxUploadBytes:   5 << 20, // 5MB
		SeedProductsFile: "data/products.json",
		Database: DatabaseConfig{
			Driver:         "sqlite",
			Path:           defaultDBPath,
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Name:           "storefront",
			MigrationsPath: "internal/repository/migrations",
		},
		Session: SessionConfig{
			IdleTimeout: 4 * time.Hour,
			CookieName:  "storefront_session",
		},
		Auth: AuthConfig{
			TokenTTL:        24 * time.Hour,
			LoginRatePerMin: 10,
		},
		Events: EventsConfig{
			Broker:       "log",
			KafkaTopic:   "order-events",
			RabbitQueue:  "order-events",
			PollInterval: time.Second,
		},
	}
}

// Load builds the configuration. path may be empty; a named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Auth.JWTSecret == "" && cfg.Env == EnvDev {
		cfg.Auth.JWTSecret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(dst *string, key string) { *dst = getEnv(key, *dst) }
	num := func(dst *int, key string) {
		v, err := getEnvAsInt(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	dur := func(dst *time.Duration, key string) {
		v, err := getEnvAsDuration(key, *dst)
		errs = append(errs, err)
		*dst = v
	}

	str(&c.Env, "APP_ENV")
	str(&c.HTTPPort, "HTTP_PORT")
	str(&c.LogLevel, "LOG_LEVEL")
	dur(&c.RequestTimeout, "REQUEST_TIMEOUT")
	dur(&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT")
	str(&c.UploadsDir, "UPLOADS_DIR")
	str(&c.SeedProductsFile, "SEED_PRODUCTS_FILE")

	maxUpload := int(c.MaxUploadBytes)
	num(&maxUpload, "MAX_UPLOAD_BYTES")
	c.MaxUploadBytes = int64(maxUpload)

	str(&c.Database.Driver, "DB_DRIVER")
	str(&c.Database.Path, "DB_PATH")
	str(&c.Database.Host, "DB_HOST")
	num(&c.Database.Port, "DB_PORT")
	str(&c.Database.User, "DB_USER")
	str(&c.Database.Password, "DB_PASSWORD")
	str(&c.Database.Name, "DB_NAME")
	str(&c.Database.MigrationsPath, "MIGRATIONS_PATH")

	str(&c.Redis.Addr, "REDIS_ADDR")
	str(&c.Redis.Password, "REDIS_PASSWORD")
	num(&c.Redis.DB, "REDIS_DB")

	dur(&c.Session.IdleTimeout, "SESSION_IDLE_TIMEOUT")
	str(&c.Session.CookieName, "SESSION_COOKIE")

	str(&c.Auth.JWTSecret, "JWT_SECRET")
	dur(&c.Auth.TokenTTL, "TOKEN_TTL")
	str(&c.Auth.OwnerEmail, "OWNER_EMAIL")
	str(&c.Auth.OwnerPassword, "OWNER_PASSWORD")
	num(&c.Auth.LoginRatePerMin, "LOGIN_RATE_PER_MIN")

	str(&c.Events.Broker, "EVENT_BROKER")
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Events.KafkaBrokers = splitList(brokers)
	}
	str(&c.Events.KafkaTopic, "KAFKA_TOPIC")
	str(&c.Events.RabbitMQURL, "RABBITMQ_URL")
	str(&c.Events.RabbitQueue, "RABBITMQ_QUEUE")
	dur(&c.Events.PollInterval, "OUTBOX_POLL_INTERVAL")

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	switch c.Events.Broker {
	case "log":
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka broker"))
		}
	case "rabbitmq":
		if c.Events.RabbitMQURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required for the rabbitmq broker"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown event broker %q", c.Events.Broker))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set outside the dev environment"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// UsesPostgres reports whether the config targets Postgres.
func (c *Config) UsesPostgres() bool {
	return c.Database.Driver == "postgres"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
