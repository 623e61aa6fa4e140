// Package app wires the adapters and the application core from config.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/escalopa/quran-recite-feedback/internal/adapter/alquran"
	"github.com/escalopa/quran-recite-feedback/internal/adapter/analyzer"
	"github.com/escalopa/quran-recite-feedback/internal/adapter/i18n"
	"github.com/escalopa/quran-recite-feedback/internal/adapter/redis"
	"github.com/escalopa/quran-recite-feedback/internal/application"
	"github.com/escalopa/quran-recite-feedback/internal/config"
	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/escalopa/quran-recite-feedback/internal/observe"
	"go.uber.org/zap"
)

// Version is reported as service.version on metrics.
var Version = "dev"

type Options struct {
	ServiceName string
	Devices     application.Devices
}

type App struct {
	Config   *config.Config
	Log      *zap.Logger
	I18n     *i18n.I18n
	Content  *application.ContentRepository
	Analysis *application.AnalysisClient
	Service  *application.Service
	Metrics  *observe.Metrics
	Provider *observe.Provider

	cache *redis.Cache
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: logger}

	provider, err := observe.InitProvider(opts.ServiceName, Version)
	if err != nil {
		return nil, fmt.Errorf("init metrics provider: %w", err)
	}
	a.Provider = provider

	a.Metrics, err = observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	// Initialize i18n
	a.I18n, err = i18n.NewI18n(cfg.App.LocalesDir)
	if err != nil {
		return nil, fmt.Errorf("load locales: %w", err)
	}
	logger.Debug("i18n initialized")

	// Initialize content client, cached in redis when configured
	var content domain.ContentPort = alquran.NewClient(cfg.QuranAPI.BaseURL, cfg.QuranAPI.Timeout, logger)
	if cfg.Redis.URI != "" {
		cache, err := redis.NewCache(cfg.Redis.URI)
		if err != nil {
			logger.Warn("content cache disabled", zap.Error(err))
		} else {
			a.cache = cache
			content = alquran.NewCached(content, cache, cfg.Redis.TTL, logger)
			logger.Info("redis content cache connected")
		}
	}

	az, err := newAnalyzer(ctx, cfg.Analysis, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Analysis = application.NewAnalysisClient(az, a.I18n, cfg.Analysis.Timeout, a.Metrics, logger)
	a.Content = application.NewContentRepository(content, cfg.Editions, a.Metrics, logger)
	a.Service = application.NewService(application.ServiceConfig{
		Content:         a.Content,
		Analysis:        a.Analysis,
		Devices:         opts.Devices,
		DefaultLanguage: cfg.DefaultLanguage(),
		DrainTimeout:    cfg.Capture.StopTimeout,
		SessionTTL:      cfg.App.SessionTTL,
		Metrics:         a.Metrics,
		Logger:          logger,
	})

	return a, nil
}

func newAnalyzer(ctx context.Context, cfg config.AnalysisConfig, logger *zap.Logger) (domain.AnalyzerPort, error) {
	switch cfg.Provider {
	case config.AnalysisProviderHTTP:
		return analyzer.NewHTTP(cfg.BaseURL, cfg.APIKey, logger), nil
	case config.AnalysisProviderGemini:
		g, err := analyzer.NewGemini(ctx, cfg.APIKey, cfg.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("init gemini analyzer: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown analysis provider %q", cfg.Provider)
	}
}

// Checkers returns the readiness checks of the wired dependencies.
func (a *App) Checkers() []observe.Checker {
	if a.cache == nil {
		return nil
	}
	return []observe.Checker{{Name: "redis", Check: a.cache.Ping}}
}

// Close ends every session and releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Service != nil {
		a.Service.Close()
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.Provider != nil {
		errs = append(errs, a.Provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
