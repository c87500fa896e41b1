package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LLM providers
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

type Config struct {
	DatabaseURL          string `env:"DATABASE_URL"`
	RunMigrationsOnStart bool   `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
	RedisURL             string `env:"REDIS_URL"`

	CategoriesFile string        `env:"CATEGORIES_FILE" envDefault:"config/chats.yaml"`
	ParseInterval  time.Duration `env:"PARSE_INTERVAL" envDefault:"2h"`
	RunOnStart     bool          `env:"RUN_ON_START" envDefault:"true"`
	RunLockTTL     time.Duration `env:"RUN_LOCK_TTL" envDefault:"2h"`

	SourceDelay   time.Duration `env:"REQUEST_DELAY" envDefault:"1500ms"`
	LookbackDays  int           `env:"LOOKBACK_DAYS" envDefault:"7"`
	MinTextLength int           `env:"MIN_TEXT_LENGTH" envDefault:"50"`
	TTLDays       int           `env:"MESSAGES_TTL_DAYS" envDefault:"30"`
	BatchSize     int           `env:"BATCH_SIZE" envDefault:"50"`

	TelegramBaseURL string `env:"TELEGRAM_BASE_URL" envDefault:"https://t.me"`

	LLMProvider       string `env:"LLM_PROVIDER" envDefault:"gemini"`
	ExtractMaxRetries int    `env:"EXTRACT_MAX_RETRIES" envDefault:"0"`
	GeminiAPIKey      string `env:"GEMINI_API_KEY"`
	GeminiModel       string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel   string `env:"OPENROUTER_MODEL"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	AdminToken      string        `env:"ADMIN_TOKEN"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore missing file in production)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.LLMProvider {
	case ProviderOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			slog.Warn("OPENROUTER_API_KEY not set, request extraction will not work")
		}
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			slog.Warn("GEMINI_API_KEY not set, falling back to application default credentials")
		}
	}

	return &cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("LOOKBACK_DAYS must be positive, got %d", c.LookbackDays)
	}
	if c.TTLDays <= 0 {
		return fmt.Errorf("MESSAGES_TTL_DAYS must be positive, got %d", c.TTLDays)
	}
	if c.ParseInterval <= 0 {
		return fmt.Errorf("PARSE_INTERVAL must be positive, got %s", c.ParseInterval)
	}
	if c.SourceDelay < 0 {
		return fmt.Errorf("REQUEST_DELAY must not be negative, got %s", c.SourceDelay)
	}
	if c.ExtractMaxRetries < 0 {
		return fmt.Errorf("EXTRACT_MAX_RETRIES must not be negative, got %d", c.ExtractMaxRetries)
	}
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenRouter:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

// LogLevelValue maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) LogLevelValue() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
