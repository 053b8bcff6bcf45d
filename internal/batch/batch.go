// Package batch 提供有界并发的批量抓取，结果与输入顺序一一对应。
package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrPanic 单项处理发生 panic 时交给 fallback 的错误
var ErrPanic = errors.New("batch: worker panicked")

// Run 以最多 workers 个并发对 links 调用 work，返回长度与 links 相同、顺序一致的结果。
// work 失败（或 panic）的链接由 fallback 生成降级结果。
// 相同链接只处理一次，结果写回每个出现的位置。
func Run[T any](ctx context.Context, links []string, workers int, work func(ctx context.Context, link string) (T, error), fallback func(link string, err error) T) []T {
	results := make([]T, len(links))
	if len(links) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}

	positions := make(map[string][]int, len(links))
	unique := make([]string, 0, len(links))
	for i, link := range links {
		if _, ok := positions[link]; !ok {
			unique = append(unique, link)
		}
		positions[link] = append(positions[link], i)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, link := range unique {
		g.Go(func() error {
			v := runOne(ctx, link, work, fallback)
			for _, i := range positions[link] {
				results[i] = v
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runOne[T any](ctx context.Context, link string, work func(context.Context, string) (T, error), fallback func(string, error) T) (v T) {
	defer func() {
		if r := recover(); r != nil {
			v = fallback(link, fmt.Errorf("%w: %s: %v", ErrPanic, link, r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return fallback(link, err)
	}
	out, err := work(ctx, link)
	if err != nil {
		return fallback(link, err)
	}
	return out
}
