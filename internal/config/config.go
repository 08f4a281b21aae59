package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
	Loans     LoanConfig
	Money     MoneyConfig
	Telegram  TelegramConfig
	Health    HealthConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	// Driver is "sqlite" (one file per tenant under DataDir) or "postgres"
	// (URL is a DSN template where {tenant} names the tenant database).
	Driver          string
	DataDir         string
	URL             string
	Tenants         []string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled         bool
	Addr            string
	Password        string
	DB              int
	BalanceCacheTTL time.Duration
}

type SchedulerConfig struct {
	ReminderInterval  time.Duration
	ReminderJitter    time.Duration
	ReminderWindow    time.Duration
	ReminderLookahead time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type LoanConfig struct {
	LatePenaltyBpsPerDay int64
	LatePenaltyCapBps    int64
	MaxActiveLoans       int
	DefaultCreditScore   int
}

type MoneyConfig struct {
	MaxExponent int
}

type TelegramConfig struct {
	BotToken string
}

type HealthConfig struct {
	Timeout time.Duration
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// Don't fail if .env file doesn't exist
	_ = godotenv.Load(".env", "./deployments/.env")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	config := Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Env:          v.GetString("ENV"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("DATABASE_DRIVER")),
			DataDir:         v.GetString("DATA_DIR"),
			URL:             v.GetString("DATABASE_URL"),
			Tenants:         splitList(v.GetString("TENANTS")),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Enabled:         v.GetBool("REDIS_ENABLED"),
			Addr:            v.GetString("REDIS_ADDR"),
			Password:        v.GetString("REDIS_PASSWORD"),
			DB:              v.GetInt("REDIS_DB"),
			BalanceCacheTTL: v.GetDuration("BALANCE_CACHE_TTL"),
		},
		Scheduler: SchedulerConfig{
			ReminderInterval:  v.GetDuration("REMINDER_INTERVAL"),
			ReminderJitter:    v.GetDuration("REMINDER_JITTER"),
			ReminderWindow:    v.GetDuration("REMINDER_WINDOW"),
			ReminderLookahead: v.GetDuration("REMINDER_LOOKAHEAD"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Loans: LoanConfig{
			LatePenaltyBpsPerDay: v.GetInt64("LATE_PENALTY_BPS_PER_DAY"),
			LatePenaltyCapBps:    v.GetInt64("LATE_PENALTY_CAP_BPS"),
			MaxActiveLoans:       v.GetInt("MAX_ACTIVE_LOANS"),
			DefaultCreditScore:   v.GetInt("DEFAULT_CREDIT_SCORE"),
		},
		Money: MoneyConfig{
			MaxExponent: v.GetInt("MAX_EXPONENT"),
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("BOT_TOKEN"),
		},
		Health: HealthConfig{
			Timeout: v.GetDuration("HEALTH_CHECK_TIMEOUT"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BALANCE_CACHE_TTL", "1m")
	v.SetDefault("REMINDER_INTERVAL", "10m")
	v.SetDefault("REMINDER_JITTER", "5s")
	v.SetDefault("REMINDER_WINDOW", "24h")
	v.SetDefault("REMINDER_LOOKAHEAD", "24h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LATE_PENALTY_BPS_PER_DAY", 25)
	v.SetDefault("LATE_PENALTY_CAP_BPS", 2500)
	v.SetDefault("MAX_ACTIVE_LOANS", 3)
	v.SetDefault("DEFAULT_CREDIT_SCORE", 600)
	v.SetDefault("MAX_EXPONENT", 303)
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		if !strings.Contains(c.Database.URL, "{tenant}") {
			return fmt.Errorf("DATABASE_URL must contain a {tenant} placeholder")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}

	if c.Scheduler.ReminderInterval <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL must be a positive duration")
	}
	if c.Scheduler.ReminderJitter < 0 {
		return fmt.Errorf("REMINDER_JITTER must not be negative")
	}
	if c.Scheduler.ReminderWindow <= 0 || c.Scheduler.ReminderLookahead <= 0 {
		return fmt.Errorf("REMINDER_WINDOW and REMINDER_LOOKAHEAD must be positive durations")
	}

	if c.Loans.LatePenaltyBpsPerDay < 0 || c.Loans.LatePenaltyCapBps < 0 {
		return fmt.Errorf("late penalty settings must not be negative")
	}
	if c.Loans.MaxActiveLoans <= 0 {
		return fmt.Errorf("MAX_ACTIVE_LOANS must be greater than 0")
	}

	if c.Money.MaxExponent <= 0 || c.Money.MaxExponent > 303 {
		return fmt.Errorf("MAX_EXPONENT must be between 1 and 303")
	}

	if c.Health.Timeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a positive duration")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
