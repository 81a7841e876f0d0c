// Package config loads server configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"txboundary/internal/infrastructure/storage/postgres"
)

type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	Database DBConfig   `mapstructure:",squash"`
	HTTP     HTTPConfig `mapstructure:",squash"`
}

type DBConfig struct {
	DSN              string        `mapstructure:"DATABASE_URL"`
	MaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	MinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	MaxConnLifetime  time.Duration `mapstructure:"DB_MAX_CONN_LIFETIME"`
	MaxConnIdleTime  time.Duration `mapstructure:"DB_MAX_CONN_IDLE_TIME"`
	StatementTimeout time.Duration `mapstructure:"DB_STATEMENT_TIMEOUT"`
	EnsureSchema     bool          `mapstructure:"DB_ENSURE_SCHEMA"`

	AuditCompressThreshold int `mapstructure:"DB_AUDIT_COMPRESS_THRESHOLD"`
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `mapstructure:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `mapstructure:"HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"HTTP_SHUTDOWN_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_MAX_CONN_LIFETIME", "1h")
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", "30m")
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")
	v.SetDefault("DB_ENSURE_SCHEMA", true)
	v.SetDefault("DB_AUDIT_COMPRESS_THRESHOLD", 10*1024)
	v.SetDefault("HTTP_READ_TIMEOUT", "15s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "30s")
	v.SetDefault("HTTP_IDLE_TIMEOUT", "60s")
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "30s")
}

// Load reads configuration. Variables already set in the environment take
// precedence over .env.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = gotenv.Load(".env")
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.Database.MaxConns)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Database.StatementTimeout < 0 {
		return fmt.Errorf("DB_STATEMENT_TIMEOUT must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// PoolConfig converts database settings to a pool configuration.
func (c *Config) PoolConfig() postgres.PoolConfig {
	pc := postgres.DefaultPoolConfig(c.Database.DSN)
	pc.MaxConns = c.Database.MaxConns
	pc.MinConns = c.Database.MinConns
	pc.MaxConnLifetime = c.Database.MaxConnLifetime
	pc.MaxConnIdleTime = c.Database.MaxConnIdleTime
	return pc
}

// TxOptions returns the default options for new transactions.
func (c *Config) TxOptions() postgres.TxOptions {
	opts := postgres.DefaultTxOptions()
	opts.StatementTimeout = c.Database.StatementTimeout
	return opts
}
