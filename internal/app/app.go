// Package app wires configuration into the storage, pipeline and HTTP
// components.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/vipul43/gigwatch/internal/api"
	"github.com/vipul43/gigwatch/internal/config"
	"github.com/vipul43/gigwatch/internal/database"
	"github.com/vipul43/gigwatch/internal/gemini"
	"github.com/vipul43/gigwatch/internal/lock"
	"github.com/vipul43/gigwatch/internal/openrouter"
	"github.com/vipul43/gigwatch/internal/repository"
	"github.com/vipul43/gigwatch/internal/service"
	"github.com/vipul43/gigwatch/internal/telegram"
	"github.com/vipul43/gigwatch/internal/watcher"
	"gorm.io/gorm"
)

// NewLogger builds the process logger: JSON on stderr at the configured level.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevelValue(),
	}))
}

// App holds the storage layer. Pipeline components are built on demand so
// read-only commands never need model credentials.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB         *gorm.DB
	Requests   *repository.RequestRepository
	Categories *repository.CategoryRepository
	Jobs       *repository.JobLogRepository

	redis *redis.Client
}

// Open connects to the database and, when enabled, applies migrations.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RunMigrationsOnStart {
		logger.Info("running database migrations")
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected")

	return &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Requests:   repository.NewRequestRepository(db),
		Categories: repository.NewCategoryRepository(db),
		Jobs:       repository.NewJobLogRepository(db),
	}, nil
}

// Close releases the database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, database.Close(a.DB))
	return errors.Join(errs...)
}

// Orchestrator builds the harvest pipeline: telegram reader, model
// extractor and the repositories.
func (a *App) Orchestrator(ctx context.Context) (*service.Orchestrator, error) {
	model, err := newCompleter(ctx, a.Config)
	if err != nil {
		return nil, err
	}
	extractor := service.NewExtractor(model, a.Config.ExtractMaxRetries, a.Logger)
	connector := telegram.Connector(telegram.Config{BaseURL: a.Config.TelegramBaseURL})
	load := func() (config.CategoryList, error) {
		return config.LoadCategories(a.Config.CategoriesFile)
	}

	return service.NewOrchestrator(
		a.Jobs,
		a.Categories,
		a.Requests,
		connector,
		extractor,
		load,
		service.OptionsFromConfig(a.Config),
		a.Logger,
	), nil
}

// Watcher builds the scheduler around a fresh orchestrator.
func (a *App) Watcher(ctx context.Context) (*watcher.Watcher, error) {
	orch, err := a.Orchestrator(ctx)
	if err != nil {
		return nil, err
	}
	locker, err := a.locker(ctx)
	if err != nil {
		return nil, err
	}
	return watcher.New(a.Config, orch, a.Jobs, locker, a.Logger), nil
}

// Server builds the HTTP API. Manual runs go through trigger.
func (a *App) Server(trigger api.RunTrigger) *api.Server {
	return api.NewServer(a.Requests, a.Categories, a.Jobs, trigger, a.Config.AdminToken, a.Logger)
}

// locker returns a redis lock when REDIS_URL is set so several replicas
// share one pipeline, and an in-process lock otherwise.
func (a *App) locker(ctx context.Context) (lock.Locker, error) {
	if a.Config.RedisURL == "" {
		return lock.NewLocal(), nil
	}
	if a.redis == nil {
		client, err := database.NewRedisClient(ctx, a.Config.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = client
	}
	return lock.NewRedis(a.redis, lock.DefaultKey, a.Config.RunLockTTL, a.Logger), nil
}

func newCompleter(ctx context.Context, cfg *config.Config) (service.Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenRouter:
		client := openrouter.NewClient(cfg.OpenRouterAPIKey)
		client.SetModel(cfg.OpenRouterModel)
		return client, nil
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
