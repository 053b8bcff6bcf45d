// Package service 把抓取、解析、翻页、批量与聚合组合成对外的几个读操作，
// HTTP API 与命令行共用这一层。
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/LJTian/PttHub/internal/batch"
	"github.com/LJTian/PttHub/internal/board"
	"github.com/LJTian/PttHub/internal/collector"
	"github.com/LJTian/PttHub/internal/processor"
	"github.com/LJTian/PttHub/internal/storage"
)

var (
	// ErrInvalidBoard 看板名称为空或含非法字符
	ErrInvalidBoard = errors.New("service: invalid board name")
	// ErrInvalidLink 链接不是站点内的 http(s) 地址
	ErrInvalidLink = collector.ErrInvalidLink
	// ErrUnsupportedScheme 图片转发只接受 http/https
	ErrUnsupportedScheme = errors.New("service: unsupported url scheme")
	// ErrForbiddenHost 图片地址指向回环、内网或链路本地地址
	ErrForbiddenHost = errors.New("service: image host is not a public address")
)

// 运营商级 NAT 段，netip 不把它算作 private
var sharedAddrSpace = netip.MustParsePrefix("100.64.0.0/10")

var boardNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Opener 以流的方式打开远程资源，collector.Client 为线上实现
type Opener interface {
	Open(ctx context.Context, rawURL string) (*http.Response, error)
}

// Options 服务参数，零值字段使用默认值
type Options struct {
	BaseURL        string
	AllowedHosts   []string
	SnippetRunes   int
	PreviewWorkers int
	ListMinItems   int
	ListMaxPages   int
}

// Deps 服务依赖；Cache 可为 nil
type Deps struct {
	Fetcher    collector.Fetcher
	Opener     Opener
	Walker     *collector.Walker
	Aggregator *board.Aggregator
	Cache      *storage.Cache
	Logger     *slog.Logger
}

type Service struct {
	fetcher collector.Fetcher
	opener  Opener
	walker  *collector.Walker
	agg     *board.Aggregator
	cache   *storage.Cache
	logger  *slog.Logger
	opts    Options

	lookupIP func(ctx context.Context, host string) ([]net.IPAddr, error)
}

func New(deps Deps, opts Options) *Service {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.ptt.cc"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if len(opts.AllowedHosts) == 0 {
		if u, err := url.Parse(opts.BaseURL); err == nil && u.Host != "" {
			opts.AllowedHosts = []string{u.Host}
		}
	}
	hosts := make([]string, 0, len(opts.AllowedHosts))
	for _, h := range opts.AllowedHosts {
		hosts = append(hosts, strings.ToLower(h))
	}
	opts.AllowedHosts = hosts
	if opts.SnippetRunes <= 0 {
		opts.SnippetRunes = collector.DefaultSnippetRunes
	}
	if opts.PreviewWorkers <= 0 {
		opts.PreviewWorkers = 10
	}
	if opts.ListMinItems <= 0 {
		opts.ListMinItems = 20
	}
	if opts.ListMaxPages <= 0 {
		opts.ListMaxPages = 3
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	walker := deps.Walker
	if walker == nil {
		walker = collector.NewWalker(deps.Fetcher, opts.BaseURL, logger)
	}
	agg := deps.Aggregator
	if agg == nil {
		agg = board.NewAggregator(deps.Fetcher, walker, nil, board.Options{PreviewWorkers: opts.PreviewWorkers}, logger)
	}

	return &Service{
		fetcher: deps.Fetcher,
		opener:  deps.Opener,
		walker:  walker,
		agg:     agg,
		cache:   deps.Cache,
		logger:  logger,
		opts:    opts,

		lookupIP: net.DefaultResolver.LookupIPAddr,
	}
}

// GetList 返回看板列表（新到旧）。pageLink 为空时从看板首页开始，
// 会向更旧的页面翻，直到累计 ListMinItems 条或抓满 ListMaxPages 页。
func (s *Service) GetList(ctx context.Context, boardName, pageLink string) (*collector.PageResult, error) {
	if !boardNameRe.MatchString(boardName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBoard, boardName)
	}
	start := s.walker.IndexURL(boardName)
	if pageLink != "" {
		if err := s.checkSiteLink(pageLink); err != nil {
			return nil, err
		}
		start = pageLink
	}

	key := storage.Key("list", boardName, processor.LinkKey(start))
	var cached collector.PageResult
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	res, err := s.walker.Walk(ctx, boardName, start, collector.WalkOptions{
		MaxPages: s.opts.ListMaxPages,
		MinItems: s.opts.ListMinItems,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", boardName, err)
	}
	s.cache.SetJSON(ctx, key, res)
	return res, nil
}

// GetDetail 抓取并解析单篇文章
func (s *Service) GetDetail(ctx context.Context, link string) (*collector.ArticleDetail, error) {
	if err := s.checkSiteLink(link); err != nil {
		return nil, err
	}

	key := storage.Key("article", processor.LinkKey(link))
	var cached collector.ArticleDetail
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	resp, err := s.fetcher.Fetch(ctx, link, collector.ModeDetail)
	if err != nil {
		return nil, err
	}
	detail, err := collector.ParseArticle(resp)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, key, detail)
	return detail, nil
}

// GetPreviewBatch 并发抓取多篇文章的预览，结果与 links 等长同序；
// 单篇失败返回降级结果，不影响其他项，整个调用不会因单项失败而报错。
func (s *Service) GetPreviewBatch(ctx context.Context, links []string) []collector.PreviewResult {
	return batch.Run(ctx, links, s.opts.PreviewWorkers,
		func(ctx context.Context, link string) (collector.PreviewResult, error) {
			p, err := s.preview(ctx, link)
			if err != nil {
				return collector.PreviewResult{}, err
			}
			return *p, nil
		},
		func(link string, err error) collector.PreviewResult {
			s.logger.Warn("preview failed", "link", link, "kind", collector.ErrorKind(err), "err", err)
			return *collector.DegradedPreview(link, err)
		})
}

func (s *Service) preview(ctx context.Context, link string) (*collector.PreviewResult, error) {
	if err := s.checkSiteLink(link); err != nil {
		return nil, err
	}
	key := storage.Key("preview", processor.LinkKey(link))
	var cached collector.PreviewResult
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	resp, err := s.fetcher.Fetch(ctx, link, collector.ModeList)
	if err != nil {
		return nil, err
	}
	p, err := collector.ParsePreview(resp, link, s.opts.SnippetRunes)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, key, p)
	return p, nil
}

// GetHot 跨看板热门视图，缓存命中时直接返回
func (s *Service) GetHot(ctx context.Context) (*collector.PageResult, error) {
	var cached collector.PageResult
	if s.cache.GetJSON(ctx, storage.Key("hot"), &cached) {
		return &cached, nil
	}
	return s.RefreshHot(ctx)
}

// RefreshHot 跳过缓存重新聚合热门视图并写回缓存
func (s *Service) RefreshHot(ctx context.Context) (*collector.PageResult, error) {
	res, err := s.agg.Hot(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, storage.Key("hot"), res)
	return res, nil
}

// GetGallery 图片画廊视图
func (s *Service) GetGallery(ctx context.Context) ([]board.GalleryItem, error) {
	var cached []board.GalleryItem
	if s.cache.GetJSON(ctx, storage.Key("gallery"), &cached) {
		return cached, nil
	}
	return s.RefreshGallery(ctx)
}

// RefreshGallery 跳过缓存重建画廊视图
func (s *Service) RefreshGallery(ctx context.Context) ([]board.GalleryItem, error) {
	items, err := s.agg.Gallery(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, storage.Key("gallery"), items)
	return items, nil
}

// GetFeed 通过 Atom 订阅读取看板最新文章
func (s *Service) GetFeed(ctx context.Context, boardName string) ([]collector.ArticleSummary, error) {
	if !boardNameRe.MatchString(boardName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBoard, boardName)
	}
	key := storage.Key("feed", boardName)
	var cached []collector.ArticleSummary
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := collector.ReadFeed(ctx, s.fetcher, s.opts.BaseURL, boardName)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", boardName, err)
	}
	s.cache.SetJSON(ctx, key, rows)
	return rows, nil
}

// RelayImage 转发远程图片：http 升级为 https，其余 scheme 拒绝；字节与 Content-Type 原样返回。
// 调用方负责关闭返回的 ReadCloser。
func (s *Service) RelayImage(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	target, err := normalizeImageURL(rawURL)
	if err != nil {
		return nil, "", err
	}
	if err := s.checkPublicHost(ctx, target.Hostname()); err != nil {
		return nil, "", err
	}
	resp, err := s.opener.Open(ctx, target.String())
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func normalizeImageURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedScheme, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrUnsupportedScheme)
	}
	return u, nil
}

// checkPublicHost 解析图片 host，任一地址落在回环、内网、链路本地等网段即拒绝。
// 解析与实际连接之间的 DNS 变化不在此处理。
func (s *Service) checkPublicHost(ctx context.Context, host string) error {
	if ip, err := netip.ParseAddr(host); err == nil {
		return checkPublicAddr(host, ip)
	}
	addrs, err := s.lookupIP(ctx, host)
	if err != nil {
		return &collector.FetchError{URL: host, Err: err}
	}
	for _, a := range addrs {
		ip, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		if err := checkPublicAddr(host, ip); err != nil {
			return err
		}
	}
	return nil
}

func checkPublicAddr(host string, ip netip.Addr) error {
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() ||
		sharedAddrSpace.Contains(ip) {
		return fmt.Errorf("%w: %s (%s)", ErrForbiddenHost, host, ip)
	}
	return nil
}

// checkSiteLink 文章与列表链接必须指向配置的站点，避免被当作任意地址的代理
func (s *Service) checkSiteLink(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrInvalidLink, link)
	}
	if !slices.Contains(s.opts.AllowedHosts, strings.ToLower(u.Host)) {
		return fmt.Errorf("%w: %q", ErrInvalidLink, link)
	}
	return nil
}
