// Package board 跨看板聚合：热门（今天/昨天，按推文数排序）与图片画廊。
package board

import (
	"context"
	"log/slog"

	"github.com/LJTian/PttHub/internal/batch"
	"github.com/LJTian/PttHub/internal/collector"
	"github.com/LJTian/PttHub/internal/processor"
)

// DefaultHotBoards 热门视图默认扫描的看板
var DefaultHotBoards = []string{
	"Gossiping", "Stock", "Baseball", "NBA", "LoL", "C_Chat", "HatePolitics",
	"Lifeismoney", "Tech_Job", "movie", "car", "Steam", "MobileComm",
	"home-sale", "WomenTalk", "Boy-Girl", "joke", "KoreaStar", "PC_Shopping",
	"Japan_Travel", "marvel", "basketballTW", "Military", "Hsinchu",
}

// DefaultGalleryBoards 画廊视图默认扫描的看板
var DefaultGalleryBoards = []string{"Beauty", "cat", "DigiCamera", "Food", "Japan_Travel", "PhotoCritique"}

// Options 聚合参数，零值字段使用默认值
type Options struct {
	HotBoards    []string
	HotLimit     int
	BoardWorkers int

	GalleryBoards  []string
	GalleryPages   int
	GalleryLimit   int
	PreviewWorkers int
}

func (o Options) withDefaults() Options {
	if len(o.HotBoards) == 0 {
		o.HotBoards = DefaultHotBoards
	}
	if o.HotLimit <= 0 {
		o.HotLimit = 100
	}
	if o.BoardWorkers <= 0 {
		o.BoardWorkers = 8
	}
	if len(o.GalleryBoards) == 0 {
		o.GalleryBoards = DefaultGalleryBoards
	}
	if o.GalleryPages <= 0 {
		o.GalleryPages = 2
	}
	if o.GalleryLimit <= 0 {
		o.GalleryLimit = 60
	}
	if o.PreviewWorkers <= 0 {
		o.PreviewWorkers = 10
	}
	return o
}

// GalleryItem 画廊中的一项：文章摘要加上代表图（或影片封面）
type GalleryItem struct {
	Article   collector.ArticleSummary `json:"article"`
	MediaURL  string                   `json:"media_url"`
	MediaKind string                   `json:"media_kind"`
	VideoID   string                   `json:"video_id,omitempty"`
}

type Aggregator struct {
	fetcher collector.Fetcher
	walker  *collector.Walker
	proc    *processor.SimpleProcessor
	opts    Options
	logger  *slog.Logger
}

func NewAggregator(f collector.Fetcher, walker *collector.Walker, proc *processor.SimpleProcessor, opts Options, logger *slog.Logger) *Aggregator {
	if proc == nil {
		proc = processor.NewSimpleProcessor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		fetcher: f,
		walker:  walker,
		proc:    proc,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// collect 并发抓取各看板的前 pages 页；失败的看板只记日志，不贡献任何行
func (a *Aggregator) collect(ctx context.Context, boards []string, pages int) []collector.ArticleSummary {
	perBoard := batch.Run(ctx, boards, a.opts.BoardWorkers,
		func(ctx context.Context, board string) ([]collector.ArticleSummary, error) {
			res, err := a.walker.Walk(ctx, board, "", collector.WalkOptions{MaxPages: pages})
			if err != nil {
				return nil, err
			}
			return res.Articles, nil
		},
		func(board string, err error) []collector.ArticleSummary {
			a.logger.Warn("board fetch failed", "board", board, "err", err)
			return nil
		})

	var merged []collector.ArticleSummary
	for _, rows := range perBoard {
		merged = append(merged, rows...)
	}
	return merged
}

// recentRanked 去重、保留今天/昨天、按推文数稳定降序
func (a *Aggregator) recentRanked(rows []collector.ArticleSummary) []collector.ArticleSummary {
	rows = a.proc.Process(rows)
	rows = a.proc.FilterRecent(rows)
	return processor.RankByPush(rows)
}

// Hot 热门视图：各看板第一页合并后取近两天的文章，按推文数排序取前 HotLimit 条
func (a *Aggregator) Hot(ctx context.Context) (*collector.PageResult, error) {
	rows := a.collect(ctx, a.opts.HotBoards, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows = a.recentRanked(rows)
	if len(rows) > a.opts.HotLimit {
		rows = rows[:a.opts.HotLimit]
	}
	a.logger.Info("hot view built", "boards", len(a.opts.HotBoards), "articles", len(rows))
	return &collector.PageResult{Articles: rows}, nil
}

// Gallery 画廊视图：按推文数挑出候选文章，并发解析详情，只保留带图片或影片的文章
func (a *Aggregator) Gallery(ctx context.Context) ([]GalleryItem, error) {
	rows := a.recentRanked(a.collect(ctx, a.opts.GalleryBoards, a.opts.GalleryPages))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit := a.opts.GalleryLimit * 2; len(rows) > limit {
		rows = rows[:limit]
	}

	links := make([]string, len(rows))
	for i, r := range rows {
		links[i] = r.Link
	}
	media := batch.Run(ctx, links, a.opts.PreviewWorkers,
		func(ctx context.Context, link string) (*GalleryItem, error) {
			resp, err := a.fetcher.Fetch(ctx, link, collector.ModeList)
			if err != nil {
				return nil, err
			}
			detail, err := collector.ParseArticle(resp)
			if err != nil {
				return nil, err
			}
			return pickMedia(detail), nil
		},
		func(link string, err error) *GalleryItem {
			a.logger.Warn("gallery detail failed", "link", link, "kind", collector.ErrorKind(err), "err", err)
			return nil
		})

	items := make([]GalleryItem, 0, a.opts.GalleryLimit)
	for i, m := range media {
		if m == nil {
			continue
		}
		m.Article = rows[i]
		items = append(items, *m)
		if len(items) == a.opts.GalleryLimit {
			break
		}
	}
	return items, nil
}

func pickMedia(detail *collector.ArticleDetail) *GalleryItem {
	if len(detail.Images) > 0 {
		return &GalleryItem{MediaURL: detail.Images[0], MediaKind: collector.MediaImage.String()}
	}
	if len(detail.Videos) > 0 {
		v := detail.Videos[0]
		return &GalleryItem{MediaURL: collector.VideoThumbnail(v.ID), MediaKind: collector.MediaVideo.String(), VideoID: v.ID}
	}
	return nil
}
