// Package app 根据配置组装抓取客户端、缓存、聚合器与服务，供 api 与 pttctl 两个入口共用。
package app

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/LJTian/PttHub/internal/board"
	"github.com/LJTian/PttHub/internal/collector"
	"github.com/LJTian/PttHub/internal/config"
	"github.com/LJTian/PttHub/internal/processor"
	"github.com/LJTian/PttHub/internal/scheduler"
	"github.com/LJTian/PttHub/internal/service"
	"github.com/LJTian/PttHub/internal/storage"
)

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Client  *collector.Client
	Cache   *storage.Cache
	Service *service.Service
}

// NewLogger 文本格式的 slog logger，输出到 stderr
func NewLogger(level string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

// New 组装整个服务；withCache 为 false 时即使配置了 Redis 也不使用缓存（命令行默认如此）
func New(cfg *config.Config, withCache bool) *App {
	logger := NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	client := collector.NewClient(collector.Options{
		UserAgent:      cfg.UserAgent,
		AllowedDomains: cfg.AllowedDomains,
		ListTimeout:    cfg.ListTimeout,
		DetailTimeout:  cfg.DetailTimeout,
		RelayTimeout:   cfg.RelayTimeout,
		RetryMax:       cfg.RetryMax,
		RetryWaitMin:   cfg.RetryWaitMin,
		RetryWaitMax:   cfg.RetryWaitMax,
		PoolSize:       cfg.PoolSize,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		Logger:         logger,
	})

	var cache *storage.Cache
	if withCache {
		cache = storage.NewCache(cfg.RedisAddr, cfg.CacheTTL)
	}

	walker := collector.NewWalker(client, cfg.BaseURL, logger)
	agg := board.NewAggregator(client, walker, processor.NewSimpleProcessor(), board.Options{
		HotBoards:      cfg.HotBoards,
		HotLimit:       cfg.HotLimit,
		BoardWorkers:   cfg.BoardWorkers,
		GalleryBoards:  cfg.GalleryBoards,
		GalleryPages:   cfg.GalleryPages,
		GalleryLimit:   cfg.GalleryLimit,
		PreviewWorkers: cfg.PreviewWorkers,
	}, logger)

	svc := service.New(service.Deps{
		Fetcher:    client,
		Opener:     client,
		Walker:     walker,
		Aggregator: agg,
		Cache:      cache,
		Logger:     logger,
	}, service.Options{
		BaseURL:        cfg.BaseURL,
		AllowedHosts:   cfg.AllowedDomains,
		SnippetRunes:   cfg.SnippetRunes,
		PreviewWorkers: cfg.PreviewWorkers,
		ListMinItems:   cfg.ListMinItems,
		ListMaxPages:   cfg.ListMaxPages,
	})

	return &App{
		Config:  cfg,
		Logger:  logger,
		Client:  client,
		Cache:   cache,
		Service: svc,
	}
}

// WarmJobs 定时重建热门与画廊缓存的任务
func (a *App) WarmJobs() []scheduler.Job {
	return []scheduler.Job{
		{Name: "hot", Run: func(ctx context.Context) error {
			_, err := a.Service.RefreshHot(ctx)
			return err
		}},
		{Name: "gallery", Run: func(ctx context.Context) error {
			_, err := a.Service.RefreshGallery(ctx)
			return err
		}},
	}
}

// Scheduler 缓存启用且配置了 warm_cron 时返回预热调度器，否则返回 nil
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	if a.Config.WarmCron == "" || !a.Cache.Enabled() {
		return nil, nil
	}
	return scheduler.New(a.Config.WarmCron, a.WarmJobs(), 0, a.Logger)
}

func (a *App) Close() error {
	return a.Cache.Close()
}
