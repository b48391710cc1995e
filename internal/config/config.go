package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/barber-api/internal/email"
	"github.com/jwalitptl/barber-api/internal/middleware"
	"github.com/jwalitptl/barber-api/internal/repository/sqlstore"
	"github.com/jwalitptl/barber-api/internal/service/notification"
	"github.com/jwalitptl/barber-api/pkg/logger"
	"github.com/jwalitptl/barber-api/pkg/messaging/redis"
	"github.com/jwalitptl/barber-api/pkg/worker"
)

const EnvPrefix = "BARBER"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Notification NotificationConfig `mapstructure:"notification"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	Redis        RedisConfig        `mapstructure:"redis"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Booking      BookingConfig      `mapstructure:"booking"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Log          LogConfig          `mapstructure:"log"`

	// Secrets never come from the yaml file.
	Secrets Secrets `mapstructure:"-"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	// TrustedProxies is empty unless the API runs behind a known proxy.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type AdminConfig struct {
	Header string `mapstructure:"header"`
}

type NotificationConfig struct {
	Mode            string        `mapstructure:"mode"`
	Operator        string        `mapstructure:"operator"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Queue           string        `mapstructure:"queue"`
	DeadLetterQueue string        `mapstructure:"dead_letter_queue"`
	Wait            time.Duration `mapstructure:"wait"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	HealthPort      int           `mapstructure:"health_port"`
}

type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	From string `mapstructure:"from"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type BookingConfig struct {
	RejectPast bool   `mapstructure:"reject_past"`
	Location   string `mapstructure:"location"`
}

type CacheConfig struct {
	SlotsTTL time.Duration `mapstructure:"slots_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Secrets keep the environment names the deployment already uses.
type Secrets struct {
	GmailUser       string `envconfig:"GMAIL_USER"`
	GmailPass       string `envconfig:"GMAIL_PASS"`
	AdminSecret     string `envconfig:"ADMIN_SECRET"`
	AdminSecretHash string `envconfig:"ADMIN_SECRET_HASH"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("database.driver", sqlstore.DriverSQLite)
	v.SetDefault("database.dsn", "barberia.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("admin.header", middleware.DefaultAdminHeader)

	v.SetDefault("notification.mode", notification.ModeDirect)
	v.SetDefault("notification.operator", "")
	v.SetDefault("notification.timeout", 30*time.Second)
	v.SetDefault("notification.queue", notification.DefaultQueue)
	v.SetDefault("notification.dead_letter_queue", notification.DefaultQueue+":dead")
	v.SetDefault("notification.wait", 5*time.Second)
	v.SetDefault("notification.retry_attempts", 3)
	v.SetDefault("notification.retry_delay", 2*time.Second)
	v.SetDefault("notification.health_port", 3001)

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 1.0)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)

	v.SetDefault("cors.allow_origins", []string{"*"})

	v.SetDefault("booking.reject_past", false)
	v.SetDefault("booking.location", "Local")

	v.SetDefault("cache.slots_ttl", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads config.yaml when one exists, then BARBER_* variables, then the secrets.
// BARBER_DATABASE_DSN overrides database.dsn, and so on.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case sqlstore.DriverPostgres, sqlstore.DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn must be set")
	}
	switch c.Notification.Mode {
	case notification.ModeDirect, notification.ModeQueue, notification.ModeOff:
	default:
		return fmt.Errorf("unknown notification mode %q", c.Notification.Mode)
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port must be greater than 0")
	}
	if _, err := c.Booking.TimeLocation(); err != nil {
		return err
	}
	return nil
}

// TimeLocation resolves booking.location. "Local" and "" mean the process zone.
func (c BookingConfig) TimeLocation() (*time.Location, error) {
	if c.Location == "" || c.Location == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid booking.location %q: %w", c.Location, err)
	}
	return loc, nil
}

// Add conversion methods to convert config types

func (c *DatabaseConfig) ToStoreConfig() sqlstore.Config {
	return sqlstore.Config{
		Driver:          c.Driver,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *NotificationConfig) ToServiceConfig() notification.Config {
	return notification.Config{
		Mode:    c.Mode,
		Timeout: c.Timeout,
		Queue:   c.Queue,
	}
}

func (c *NotificationConfig) ToConsumerConfig() worker.ConsumerConfig {
	return worker.ConsumerConfig{
		Queue:           c.Queue,
		DeadLetterQueue: c.DeadLetterQueue,
		Wait:            c.Wait,
		RetryAttempts:   c.RetryAttempts,
		RetryDelay:      c.RetryDelay,
	}
}

func (c *Config) ToEmailConfig() email.Config {
	return email.Config{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.Secrets.GmailUser,
		Password: c.Secrets.GmailPass,
		From:     c.SMTP.From,
		Operator: c.Notification.Operator,
	}
}

func (c *Config) ToAdminGateConfig() middleware.AdminGateConfig {
	return middleware.AdminGateConfig{
		Header:     c.Admin.Header,
		Secret:     c.Secrets.AdminSecret,
		SecretHash: c.Secrets.AdminSecretHash,
	}
}

func (c *RateLimitConfig) ToLimiterConfig() middleware.RateLimiterConfig {
	return middleware.RateLimiterConfig{
		Rate:    rate.Limit(c.RequestsPerSecond),
		Burst:   c.Burst,
		IdleTTL: c.IdleTTL,
	}
}

func (c *CORSConfig) ToMiddlewareConfig() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	if len(c.AllowOrigins) > 0 {
		cors.AllowOrigins = c.AllowOrigins
	}
	return cors
}

func (c *LogConfig) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level: logger.ParseLevel(c.Level),
		JSON:  c.Format != "console",
	}
}
