package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigEnv 指定配置文件路径的环境变量
const ConfigEnv = "PTTHUB_CONFIG"

type Config struct {
	AppPort  string `mapstructure:"app_port"`
	LogLevel string `mapstructure:"log_level"`

	BaseURL        string   `mapstructure:"base_url"`
	UserAgent      string   `mapstructure:"user_agent"`
	AllowedDomains []string `mapstructure:"allowed_domains"`

	ListTimeout   time.Duration `mapstructure:"list_timeout"`
	DetailTimeout time.Duration `mapstructure:"detail_timeout"`
	RelayTimeout  time.Duration `mapstructure:"relay_timeout"`

	RetryMax     int           `mapstructure:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`

	PoolSize  int     `mapstructure:"pool_size"`
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	PreviewWorkers int `mapstructure:"preview_workers"`
	BoardWorkers   int `mapstructure:"board_workers"`
	SnippetRunes   int `mapstructure:"snippet_runes"`

	ListMinItems int `mapstructure:"list_min_items"`
	ListMaxPages int `mapstructure:"list_max_pages"`

	HotBoards []string `mapstructure:"hot_boards"`
	HotLimit  int      `mapstructure:"hot_limit"`

	GalleryBoards []string `mapstructure:"gallery_boards"`
	GalleryPages  int      `mapstructure:"gallery_pages"`
	GalleryLimit  int      `mapstructure:"gallery_limit"`

	// RedisAddr 为空时不启用缓存
	RedisAddr string        `mapstructure:"redis_addr"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	// WarmCron 预热热门与画廊缓存的 cron 表达式，为空时不启动定时任务
	WarmCron string `mapstructure:"warm_cron"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", "9000")
	v.SetDefault("log_level", "info")
	v.SetDefault("base_url", "https://www.ptt.cc")
	v.SetDefault("user_agent", "")
	v.SetDefault("allowed_domains", []string{"www.ptt.cc", "ptt.cc"})
	v.SetDefault("list_timeout", "10s")
	v.SetDefault("detail_timeout", "15s")
	v.SetDefault("relay_timeout", "30s")
	v.SetDefault("retry_max", 3)
	v.SetDefault("retry_wait_min", "500ms")
	v.SetDefault("retry_wait_max", "4s")
	v.SetDefault("pool_size", 16)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("rate_burst", 1)
	v.SetDefault("preview_workers", 10)
	v.SetDefault("board_workers", 8)
	v.SetDefault("snippet_runes", 120)
	v.SetDefault("list_min_items", 20)
	v.SetDefault("list_max_pages", 3)
	v.SetDefault("hot_boards", []string{})
	v.SetDefault("hot_limit", 100)
	v.SetDefault("gallery_boards", []string{})
	v.SetDefault("gallery_pages", 2)
	v.SetDefault("gallery_limit", 60)
	v.SetDefault("redis_addr", "")
	v.SetDefault("cache_ttl", "5m")
	v.SetDefault("warm_cron", "*/5 * * * *")
}

// Load 按 默认值 → 配置文件（PTTHUB_CONFIG）→ 环境变量 的顺序加载配置
func Load() (*Config, error) {
	return LoadFile(getEnv(ConfigEnv, ""))
}

// LoadFile 同 Load，但显式指定配置文件；path 为空时只用默认值与环境变量
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if errors.As(err, &nf) || errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()

	log.Printf("config loaded: port=%s base=%s hot_boards=%d redis=%t cron=%q",
		cfg.AppPort, cfg.BaseURL, len(cfg.HotBoards), cfg.RedisAddr != "", cfg.WarmCron)
	return cfg, nil
}

// Normalize 补齐零值并保证连接池不小于最大的并发 worker 数
func (c *Config) Normalize() {
	if c.AppPort == "" {
		c.AppPort = "9000"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://www.ptt.cc"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.PreviewWorkers <= 0 {
		c.PreviewWorkers = 10
	}
	if c.BoardWorkers <= 0 {
		c.BoardWorkers = 8
	}
	c.PoolSize = max(c.PoolSize, c.PreviewWorkers, c.BoardWorkers)
	if c.SnippetRunes <= 0 {
		c.SnippetRunes = 120
	}
	if c.ListMinItems <= 0 {
		c.ListMinItems = 20
	}
	if c.ListMaxPages <= 0 {
		c.ListMaxPages = 3
	}
	if c.HotLimit <= 0 {
		c.HotLimit = 100
	}
	if c.GalleryPages <= 0 {
		c.GalleryPages = 2
	}
	if c.GalleryLimit <= 0 {
		c.GalleryLimit = 60
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	c.AllowedDomains = cleanList(c.AllowedDomains)
	c.HotBoards = cleanList(c.HotBoards)
	c.GalleryBoards = cleanList(c.GalleryBoards)
	c.WarmCron = strings.TrimSpace(c.WarmCron)
}

// cleanList 去掉空白项；环境变量里逗号分隔的值已由 viper 拆成切片
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
