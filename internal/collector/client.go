package collector

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// PTT 的成人看板需要先点“已满 18 岁”，用固定 cookie 跳过
	ageGateCookie = "over18=1"
)

// Mode 区分批量列表抓取与单篇详情抓取，两者使用不同的超时
type Mode int

const (
	ModeList Mode = iota
	ModeDetail
)

// Options 抓取客户端配置，零值字段在 NewClient 中填默认值
type Options struct {
	UserAgent      string
	AllowedDomains []string

	ListTimeout   time.Duration
	DetailTimeout time.Duration
	RelayTimeout  time.Duration

	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// PoolSize 每个 host 保留的空闲连接数，应不小于最大的并发 worker 数
	PoolSize int

	// RateLimit 每秒请求数上限，0 表示不限速
	RateLimit float64
	RateBurst int

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.ListTimeout <= 0 {
		o.ListTimeout = 10 * time.Second
	}
	if o.DetailTimeout <= 0 {
		o.DetailTimeout = 15 * time.Second
	}
	if o.RelayTimeout <= 0 {
		o.RelayTimeout = 30 * time.Second
	}
	if o.RetryMax < 0 {
		o.RetryMax = 0
	}
	if o.RetryWaitMin <= 0 {
		o.RetryWaitMin = 500 * time.Millisecond
	}
	if o.RetryWaitMax < o.RetryWaitMin {
		o.RetryWaitMax = o.RetryWaitMin
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 16
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Client 进程内唯一的抓取客户端：列表、详情、图片转发三套超时，共用同一个连接池
type Client struct {
	list      *colly.Collector
	detail    *colly.Collector
	relay     *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient 创建抓取客户端，应在启动时创建一次并注入各组件
func NewClient(opts Options) *Client {
	opts = opts.withDefaults()

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          opts.PoolSize * 2,
		MaxIdleConnsPerHost:   opts.PoolSize,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &Client{
		list:      newCollector(transport, opts, opts.ListTimeout),
		detail:    newCollector(transport, opts, opts.DetailTimeout),
		relay:     newRetryClient(transport, opts, opts.RelayTimeout).StandardClient(),
		userAgent: opts.UserAgent,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}
	return c
}

func newRetryClient(transport http.RoundTripper, opts Options, timeout time.Duration) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport, Timeout: timeout}
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	rc.CheckRetry = retryPolicy
	// 重试用尽后把最后一次响应原样交回，由 Fetch 统一按状态码归类
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = opts.Logger
	return rc
}

func newCollector(transport http.RoundTripper, opts Options, timeout time.Duration) *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(opts.UserAgent))
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	if len(opts.AllowedDomains) > 0 {
		c.AllowedDomains = opts.AllowedDomains
	}
	c.WithTransport(&retryablehttp.RoundTripper{Client: newRetryClient(transport, opts, timeout)})
	// 外层超时需覆盖全部重试及退避时间，单次请求的超时由内层 client 控制
	c.SetRequestTimeout(timeout*time.Duration(opts.RetryMax+1) + opts.RetryWaitMax*time.Duration(opts.RetryMax))
	return c
}

// retryPolicy 只对连接错误和 500/502/503/504 重试；404 及其他 4xx 直接返回
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil || ctx.Err() != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Fetch 抓取一个 HTML 页面。2xx 返回响应；404 返回包装了 ErrNotFound 的 *FetchError；
// 其余失败均为 *FetchError。
func (c *Client) Fetch(ctx context.Context, rawURL string, mode Mode) (*colly.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	base := c.list
	if mode == ModeDetail {
		base = c.detail
	}
	// Clone 共用底层 backend（即同一连接池），回调彼此隔离
	col := base.Clone()
	col.AllowURLRevisit = true
	col.ParseHTTPErrorResponse = true

	var resp *colly.Response
	// ctx 只在发出请求前检查；已发出的请求不随 ctx 取消，由模式对应的单次超时兜底
	col.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Cookie", ageGateCookie)
	})
	col.OnResponse(func(r *colly.Response) {
		resp = r
	})

	if err := col.Visit(rawURL); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &FetchError{URL: rawURL, Err: errors.New("no response")}
	}
	if err := classifyStatus(rawURL, resp.StatusCode); err != nil {
		return nil, err
	}
	return resp, nil
}

func classifyStatus(rawURL string, code int) error {
	switch {
	case code == http.StatusNotFound:
		return &FetchError{URL: rawURL, StatusCode: code, Err: ErrNotFound}
	case code < 200 || code >= 300:
		return &FetchError{URL: rawURL, StatusCode: code, Err: errors.New(http.StatusText(code))}
	}
	return nil
}

// Open 以流的方式 GET 一个远程资源（图片转发用），调用方负责关闭 Body
func (c *Client) Open(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.relay.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if err := classifyStatus(rawURL, resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}
