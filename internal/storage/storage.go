package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "ptthub"
	DefaultTTL = 5 * time.Minute
)

// Cache 短 TTL 的结果缓存，只用于减轻上游压力，不是数据的存放处。
// 未配置 Redis 时（或 *Cache 为 nil）所有读取都视为未命中、写入直接忽略。
type Cache struct {
	Redis *redis.Client
	TTL   time.Duration
}

// NewCache 连接 Redis；redisAddr 为空时返回一个禁用的缓存
func NewCache(redisAddr string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if redisAddr == "" {
		return &Cache{TTL: ttl}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis ping failed, cache reads will miss until it recovers", "addr", redisAddr, "err", err)
	}

	return &Cache{Redis: rdb, TTL: ttl}
}

// Enabled 是否配置了 Redis
func (c *Cache) Enabled() bool {
	return c != nil && c.Redis != nil
}

// GetJSON 读取并解码 key；未命中、Redis 出错或解码失败都返回 false
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	if !c.Enabled() {
		return false
	}
	bs, err := c.Redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Debug("cache read failed", "key", key, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(bs, dst); err != nil {
		slog.Warn("cache entry undecodable", "key", key, "err", err)
		return false
	}
	return true
}

// SetJSON 以默认 TTL 写入；失败只记日志
func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	c.SetJSONTTL(ctx, key, v, 0)
}

// SetJSONTTL 同 SetJSON，ttl <= 0 时使用默认 TTL
func (c *Cache) SetJSONTTL(ctx context.Context, key string, v any, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = c.TTL
	}
	bs, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	if err := c.Redis.Set(ctx, key, bs, ttl).Err(); err != nil {
		slog.Debug("cache write failed", "key", key, "err", err)
	}
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.Redis.Close()
}

// Key 拼出带统一前缀的缓存键，例如 ptthub:list:Gossiping:<hash>
func Key(kind string, parts ...string) string {
	if len(parts) == 0 {
		return fmt.Sprintf("%s:%s", keyPrefix, kind)
	}
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, strings.Join(parts, ":"))
}
