package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/PttHub/internal/config"
)

func TestNewWithoutCache(t *testing.T) {
	cfg := &config.Config{RedisAddr: "localhost:6379", WarmCron: "*/5 * * * *"}
	cfg.Normalize()

	a := New(cfg, false)
	require.NotNil(t, a.Service)
	require.NotNil(t, a.Client)
	assert.False(t, a.Cache.Enabled())

	// 没有缓存时预热没有意义，不创建调度器
	s, err := a.Scheduler()
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, a.Close())
}

func TestWarmJobs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Normalize()
	jobs := New(cfg, false).WarmJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "hot", jobs[0].Name)
	assert.Equal(t, "gallery", jobs[1].Name)
}

func TestNewLoggerLevels(t *testing.T) {
	assert.NotNil(t, NewLogger("debug"))
	assert.NotNil(t, NewLogger("nonsense"))
}
