package collector

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"strings"
)

// WalkOptions 翻页参数：累计到 MinItems 条或抓满 MaxPages 页即停止；MinItems <= 0 时抓满 MaxPages
type WalkOptions struct {
	MaxPages int
	MinItems int
}

type pageState int

const (
	pageOK pageState = iota
	// pageExhausted 上游 404，没有更旧的页面
	pageExhausted
	pageFailed
)

type pageOutcome struct {
	state pageState
	page  *PageResult
	err   error
}

// Walker 从某一页开始沿“上頁”链接向更旧的页面翻，结果按新到旧排列
type Walker struct {
	fetcher Fetcher
	baseURL string
	logger  *slog.Logger
}

func NewWalker(f Fetcher, baseURL string, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{fetcher: f, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// IndexURL 看板最新一页的地址
func (w *Walker) IndexURL(board string) string {
	return w.baseURL + "/bbs/" + url.PathEscape(board) + "/index.html"
}

func (w *Walker) fetchPage(ctx context.Context, board, pageURL string) pageOutcome {
	resp, err := w.fetcher.Fetch(ctx, pageURL, ModeList)
	if errors.Is(err, ErrNotFound) {
		return pageOutcome{state: pageExhausted}
	}
	if err != nil {
		return pageOutcome{state: pageFailed, err: err}
	}
	page, err := ParseList(resp, board, w.baseURL)
	if err != nil {
		return pageOutcome{state: pageFailed, err: err}
	}
	return pageOutcome{state: pageOK, page: page}
}

// Walk 抓取 startURL（为空时从看板首页开始）及更旧的页面。
// 每页逆序后追加，已出现过的链接跳过。首页失败直接返回错误；
// 中途失败返回已累计的结果，PrevPageLink 指向失败的那一页以便调用方续抓。
func (w *Walker) Walk(ctx context.Context, board, startURL string, opts WalkOptions) (*PageResult, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	if startURL == "" {
		startURL = w.IndexURL(board)
	}

	result := &PageResult{Articles: []ArticleSummary{}}
	seen := make(map[string]struct{})
	next := startURL

	for i := 0; i < opts.MaxPages; i++ {
		out := w.fetchPage(ctx, board, next)
		switch out.state {
		case pageExhausted:
			return result, nil
		case pageFailed:
			if i == 0 {
				return nil, out.err
			}
			w.logger.Warn("list walk stopped early", "board", board, "page", next, "pages", i, "err", out.err)
			result.PrevPageLink = next
			return result, nil
		}

		rows := out.page.Articles
		slices.Reverse(rows)
		for _, row := range rows {
			if _, ok := seen[row.Link]; ok {
				continue
			}
			seen[row.Link] = struct{}{}
			result.Articles = append(result.Articles, row)
		}

		next = out.page.PrevPageLink
		if next == "" || (opts.MinItems > 0 && len(result.Articles) >= opts.MinItems) {
			break
		}
	}

	result.PrevPageLink = next
	return result, nil
}
