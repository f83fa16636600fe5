package app

import (
	"context"
	"fmt"

	"github.com/LJTian/TrendingNews/internal/collector"
	"github.com/LJTian/TrendingNews/internal/config"
	"github.com/LJTian/TrendingNews/internal/export"
	"github.com/LJTian/TrendingNews/internal/pipeline"
	"github.com/LJTian/TrendingNews/internal/storage"
	"github.com/LJTian/TrendingNews/internal/trends"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// App 持有 cmd/api 与 cmd/collect 共用的组件
type App struct {
	Pipeline *pipeline.Pipeline
	Articles *storage.ArticleStore
	// Runs 未配置 PostgreSQL 时为 nil
	Runs *storage.RunStore

	redis *redis.Client
}

// New 按配置组装存储、热搜来源、采集源和流水线
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	rdb, err := storage.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis ping failed")
	}
	a := &App{
		Articles: storage.NewArticleStore(rdb, cfg.ArticleTTL),
		redis:    rdb,
	}

	var hooks []pipeline.Hook
	if cfg.PostgresDSN != "" {
		runs, err := storage.NewRunStore(cfg.PostgresDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init run history: %w", err)
		}
		a.Runs = runs
		hooks = append(hooks, runs)
	}
	if cfg.ExportDir != "" {
		hooks = append(hooks, export.NewCSVExporter(cfg.ExportDir, cfg.ExportRetentionDays, log.WithField("component", "export")))
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	scrapers, err := collector.LoadScrapers(cfg.SourcesFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	names := make([]string, 0, len(scrapers))
	for _, s := range scrapers {
		names = append(names, s.Name())
	}
	log.WithFields(logrus.Fields{
		"provider": cfg.TrendsProvider,
		"sources":  names,
	}).Info("pipeline configured")

	a.Pipeline = pipeline.New(pipeline.Deps{
		Provider: provider,
		Scrapers: scrapers,
		Store:    a.Articles,
		Lock:     storage.NewRunLock(rdb, cfg.RunLockTTL),
		Logger:   log.WithField("component", "pipeline"),
		Hooks:    hooks,
	}, pipeline.Options{
		TopicsTimeout: cfg.TopicsTimeout,
		ScrapeTimeout: cfg.ScrapeTimeout,
		Concurrency:   cfg.ScrapeConcurrency,
	})
	return a, nil
}

// NewProvider 根据配置选择热搜来源
func NewProvider(cfg *config.Config) (trends.Provider, error) {
	switch cfg.TrendsProvider {
	case config.ProviderSerpAPI:
		return trends.NewSerpAPIProvider(cfg.SerpAPIKey, cfg.TrendsGeo), nil
	case config.ProviderTrends24:
		return trends.NewTrends24Provider(cfg.TrendsGeo), nil
	default:
		return nil, fmt.Errorf("unknown trends provider %q", cfg.TrendsProvider)
	}
}

func (a *App) Close() {
	if a.Runs != nil {
		if db, err := a.Runs.DB.DB(); err == nil {
			_ = db.Close()
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
