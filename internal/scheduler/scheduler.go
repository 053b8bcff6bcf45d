package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job 一个预热任务，例如重建热门视图并写回缓存
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
	logger  *slog.Logger
}

// New 按 cron 表达式周期执行全部 jobs；每轮的每个 job 最长运行 timeout
func New(spec string, jobs []Job, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	c := cron.New()

	s := &Scheduler{
		cron:    c,
		jobs:    jobs,
		timeout: timeout,
		logger:  logger,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮预热，避免与服务刚启动时的用户请求争抢上游
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

// Stop 停止调度，返回的 context 在正在执行的任务结束后 Done
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发预热
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	s.logger.Info("warm-up job started", "jobs", len(s.jobs))

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			start := time.Now()
			if err := job.Run(ctx); err != nil {
				s.logger.Warn("warm-up job failed", "job", job.Name, "err", err)
				return
			}
			s.logger.Info("warm-up job done", "job", job.Name, "took", time.Since(start).Round(time.Millisecond))
		}()
	}

	wg.Wait()
}
