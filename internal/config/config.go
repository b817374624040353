package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"framestudio/internal/modules/calendar"
	"framestudio/internal/modules/reminder"
	"framestudio/internal/repository"
)

const envPrefix = "FS_"

type HTTPConfig struct {
	Addr            string        `json:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	CORSOrigins     []string      `json:"cors_origins"`
}

type LogConfig struct {
	Level string `json:"level"`
}

type RetryConfig struct {
	MaxRetries      uint64        `json:"max_retries"`
	InitialInterval time.Duration `json:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval"`
}

type ReminderConfig struct {
	Enabled       bool          `json:"enabled"`
	Interval      time.Duration `json:"interval"`
	BatchSize     int           `json:"batch_size"`
	RetentionDays int           `json:"retention_days"`
}

type Config struct {
	AppEnv      string          `json:"app_env"`
	DatabaseURL string          `json:"database_url"`
	HTTP        HTTPConfig      `json:"http"`
	Log         LogConfig       `json:"log"`
	Calendar    calendar.Config `json:"calendar"`
	Retry       RetryConfig     `json:"retry"`
	Reminders   ReminderConfig  `json:"reminders"`
}

func Default() Config {
	retry := repository.DefaultRetryConfig()
	dispatch := reminder.DefaultDispatcherConfig()
	return Config{
		AppEnv: "dev",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Log:      LogConfig{Level: "info"},
		Calendar: calendar.DefaultConfig(),
		Retry: RetryConfig{
			MaxRetries:      retry.MaxRetries,
			InitialInterval: retry.InitialInterval,
			MaxInterval:     retry.MaxInterval,
		},
		Reminders: ReminderConfig{
			Enabled:       true,
			Interval:      dispatch.Interval,
			BatchSize:     dispatch.BatchSize,
			RetentionDays: dispatch.RetentionDays,
		},
	}
}

// Load reads .env if present, then the optional YAML or JSON file at path,
// then FS_-prefixed environment variables (FS_CALENDAR__MAX_DAILY_HOURS sets
// calendar.max_daily_hours). Unset keys keep their defaults. DATABASE_URL and
// APP_ENV are honoured unprefixed as well.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("APP_ENV"); v != "" && k.String("app_env") == "" {
		cfg.AppEnv = v
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr must not be empty")
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry intervals must be positive and max >= initial")
	}
	if c.Reminders.Enabled && c.Reminders.Interval <= 0 {
		return fmt.Errorf("reminders.interval must be > 0")
	}
	if err := c.Calendar.Validate(); err != nil {
		return fmt.Errorf("calendar: %w", err)
	}
	return nil
}

func (c Config) RepositoryRetry() repository.RetryConfig {
	return repository.RetryConfig{
		MaxRetries:      c.Retry.MaxRetries,
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
	}
}

func (c Config) Dispatcher() reminder.DispatcherConfig {
	return reminder.DispatcherConfig{
		Interval:      c.Reminders.Interval,
		BatchSize:     c.Reminders.BatchSize,
		RetentionDays: c.Reminders.RetentionDays,
	}
}

func (c Config) IsProdLike() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production" || c.AppEnv == "release"
}
