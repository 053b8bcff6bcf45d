package service

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/PttHub/internal/board"
	"github.com/LJTian/PttHub/internal/collector"
	"github.com/LJTian/PttHub/internal/processor"
)

const base = "https://www.ptt.cc"

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls []string
}

func newStub() *stubFetcher {
	return &stubFetcher{pages: map[string]string{}, errs: map[string]error{}}
}

func (s *stubFetcher) Fetch(_ context.Context, rawURL string, _ collector.Mode) (*colly.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rawURL)
	if err, ok := s.errs[rawURL]; ok {
		return nil, err
	}
	if body, ok := s.pages[rawURL]; ok {
		return &colly.Response{StatusCode: 200, Body: []byte(body)}, nil
	}
	return nil, &collector.FetchError{URL: rawURL, StatusCode: 404, Err: collector.ErrNotFound}
}

type stubOpener struct {
	lastURL string
	err     error
}

func (o *stubOpener) Open(_ context.Context, rawURL string) (*http.Response, error) {
	o.lastURL = rawURL
	if o.err != nil {
		return nil, o.err
	}
	h := http.Header{}
	h.Set("Content-Type", "image/png")
	return &http.Response{StatusCode: 200, Header: h, Body: io.NopCloser(strings.NewReader("PNGDATA"))}, nil
}

const listBody = `<div class="btn-group"><a class="btn wide" href="/bbs/Test/index1.html">‹ 上頁</a></div>
<div class="r-list-container">
<div class="r-ent"><div class="nrec"><span>3</span></div><div class="title"><a href="/bbs/Test/M.1.html">first</a></div><div class="meta"><div class="author">a</div><div class="date">1/05</div></div></div>
<div class="r-ent"><div class="nrec"><span>爆</span></div><div class="title"><a href="/bbs/Test/M.2.html">second</a></div><div class="meta"><div class="author">b</div><div class="date">1/05</div></div></div>
</div>`

const articleBody = `<div id="main-content"><div class="article-metaline"><span class="article-meta-tag">作者</span><span class="article-meta-value">a (A)</span></div>` +
	`<div class="article-metaline"><span class="article-meta-tag">時間</span><span class="article-meta-value">Sun Jan  5 09:00:00 2025</span></div>` +
	`內文 <a href="https://i.imgur.com/z.jpg">https://i.imgur.com/z.jpg</a></div>`

func newTestService(f *stubFetcher, o *stubOpener) *Service {
	now := time.Date(2025, 1, 5, 2, 0, 0, 0, time.UTC)
	walker := collector.NewWalker(f, base, nil)
	proc := processor.NewSimpleProcessor().WithClock(func() time.Time { return now })
	agg := board.NewAggregator(f, walker, proc, board.Options{HotBoards: []string{"Test"}}, nil)
	svc := New(Deps{Fetcher: f, Opener: o, Walker: walker, Aggregator: agg}, Options{
		BaseURL:      base,
		ListMinItems: 1,
		ListMaxPages: 1,
	})
	svc.lookupIP = stubLookup(map[string]string{
		"i.imgur.com":       "203.0.113.7",
		"intranet.example":  "192.168.1.20",
		"metadata.internal": "169.254.169.254",
	})
	return svc
}

// stubLookup 用固定表代替 DNS，测试不访问网络
func stubLookup(hosts map[string]string) func(context.Context, string) ([]net.IPAddr, error) {
	return func(_ context.Context, host string) ([]net.IPAddr, error) {
		ip, ok := hosts[host]
		if !ok {
			return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
		}
		return []net.IPAddr{{IP: net.ParseIP(ip)}}, nil
	}
}

func TestGetList(t *testing.T) {
	f := newStub()
	f.pages[base+"/bbs/Test/index.html"] = listBody
	svc := newTestService(f, nil)

	res, err := svc.GetList(context.Background(), "Test", "")
	require.NoError(t, err)
	require.Len(t, res.Articles, 2)
	assert.Equal(t, base+"/bbs/Test/M.2.html", res.Articles[0].Link)
	assert.Equal(t, base+"/bbs/Test/index1.html", res.PrevPageLink)

	// 从 prev 链接继续翻页，上游 404 表示没有更旧的页面
	res, err = svc.GetList(context.Background(), "Test", res.PrevPageLink)
	require.NoError(t, err)
	assert.Empty(t, res.Articles)
	assert.Empty(t, res.PrevPageLink)
}

func TestGetListRejectsBadInput(t *testing.T) {
	f := newStub()
	svc := newTestService(f, nil)

	_, err := svc.GetList(context.Background(), "../etc", "")
	assert.ErrorIs(t, err, ErrInvalidBoard)
	_, err = svc.GetList(context.Background(), "Test", "https://evil.example.com/bbs/Test/index.html")
	assert.ErrorIs(t, err, ErrInvalidLink)
	assert.Empty(t, f.calls)
}

func TestGetListFirstPageError(t *testing.T) {
	f := newStub()
	f.errs[base+"/bbs/Test/index.html"] = &collector.FetchError{URL: "x", StatusCode: 503, Err: errors.New("Service Unavailable")}
	_, err := newTestService(f, nil).GetList(context.Background(), "Test", "")
	var fe *collector.FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestGetDetail(t *testing.T) {
	f := newStub()
	link := base + "/bbs/Test/M.1.html"
	f.pages[link] = articleBody
	svc := newTestService(f, nil)

	d, err := svc.GetDetail(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, "a (A)", d.AuthorFull)
	assert.Equal(t, "2025 01 05 09:00 週日", d.FormattedTimestamp)
	assert.Equal(t, []string{"https://i.imgur.com/z.jpg"}, d.Images)

	_, err = svc.GetDetail(context.Background(), base+"/bbs/Test/M.404.html")
	assert.ErrorIs(t, err, collector.ErrNotFound)

	_, err = svc.GetDetail(context.Background(), "file:///etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestGetPreviewBatch(t *testing.T) {
	f := newStub()
	ok1 := base + "/bbs/Test/M.1.html"
	missing := base + "/bbs/Test/M.2.html"
	ok3 := base + "/bbs/Test/M.3.html"
	foreign := "https://example.com/a.html"
	f.pages[ok1] = articleBody
	f.pages[ok3] = articleBody

	out := newTestService(f, nil).GetPreviewBatch(context.Background(), []string{ok1, missing, ok3, foreign, ok1})
	require.Len(t, out, 5)

	assert.Equal(t, ok1, out[0].Link)
	assert.Empty(t, out[0].ErrorKind)
	assert.Equal(t, "https://i.imgur.com/z.jpg", out[0].Thumbnail)

	assert.Equal(t, missing, out[1].Link)
	assert.Equal(t, collector.KindNotFound, out[1].ErrorKind)
	assert.Equal(t, collector.DegradedSnippet, out[1].Snippet)
	assert.Equal(t, collector.DegradedTimestamp, out[1].FormattedTimestamp)

	assert.Equal(t, ok3, out[2].Link)
	assert.Empty(t, out[2].ErrorKind)

	assert.Equal(t, foreign, out[3].Link)
	assert.Equal(t, collector.KindInvalidLink, out[3].ErrorKind)

	assert.Equal(t, out[0], out[4])

	// 重复链接只抓一次，站外链接不抓
	counts := map[string]int{}
	for _, c := range f.calls {
		counts[c]++
	}
	assert.Equal(t, 1, counts[ok1])
	assert.Zero(t, counts[foreign])
}

func TestGetHot(t *testing.T) {
	f := newStub()
	f.pages[base+"/bbs/Test/index.html"] = listBody
	res, err := newTestService(f, nil).GetHot(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Articles, 2)
	assert.Equal(t, collector.PushScoreMax, res.Articles[0].PushScore)
}

func TestGetFeed(t *testing.T) {
	f := newStub()
	f.pages[base+"/atom/Test.xml"] = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Test</title>
<entry><title>hello</title><link href="https://www.ptt.cc/bbs/Test/M.9.html"/><id>9</id>
<author><name>neo</name></author><published>2025-01-05T09:00:00+08:00</published></entry></feed>`
	svc := newTestService(f, nil)

	rows, err := svc.GetFeed(context.Background(), "Test")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "neo", rows[0].Author)

	_, err = svc.GetFeed(context.Background(), "a b")
	assert.ErrorIs(t, err, ErrInvalidBoard)
}

func TestRelayImage(t *testing.T) {
	o := &stubOpener{}
	svc := newTestService(newStub(), o)

	body, ct, err := svc.RelayImage(context.Background(), "http://i.imgur.com/a.png")
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "PNGDATA", string(data))
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, "https://i.imgur.com/a.png", o.lastURL)

	_, _, err = svc.RelayImage(context.Background(), "ftp://i.imgur.com/a.png")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	_, _, err = svc.RelayImage(context.Background(), "https:///nohost.png")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	o.err = &collector.FetchError{URL: "x", StatusCode: 404, Err: collector.ErrNotFound}
	o.lastURL = ""
	_, _, err = svc.RelayImage(context.Background(), "https://i.imgur.com/gone.png")
	assert.ErrorIs(t, err, collector.ErrNotFound)
}

func TestRelayImageRejectsInternalHosts(t *testing.T) {
	o := &stubOpener{}
	svc := newTestService(newStub(), o)

	for _, raw := range []string{
		"http://127.0.0.1/a.png",
		"https://localhost.localdomain.invalid/a.png",
		"http://169.254.169.254/latest/meta-data/",
		"https://10.0.0.5/a.png",
		"https://[::1]:8080/a.png",
		"https://[::ffff:192.168.0.1]/a.png",
		"https://100.64.1.1/a.png",
		"https://0.0.0.0/a.png",
		"https://intranet.example/a.png",
		"https://metadata.internal/a.png",
	} {
		_, _, err := svc.RelayImage(context.Background(), raw)
		assert.Error(t, err, raw)
	}
	assert.Empty(t, o.lastURL, "internal hosts must never be opened")

	_, _, err := svc.RelayImage(context.Background(), "https://intranet.example/a.png")
	assert.ErrorIs(t, err, ErrForbiddenHost)
	_, _, err = svc.RelayImage(context.Background(), "http://169.254.169.254/latest/meta-data/")
	assert.ErrorIs(t, err, ErrForbiddenHost)

	// 解析失败视为上游不可用，而不是放行
	_, _, err = svc.RelayImage(context.Background(), "https://localhost.localdomain.invalid/a.png")
	assert.Equal(t, collector.KindUnavailable, collector.ErrorKind(err))

	body, _, err := svc.RelayImage(context.Background(), "https://203.0.113.9/a.png")
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, "https://203.0.113.9/a.png", o.lastURL)
}

// 真实客户端 + httptest：第 0 篇比第 2 篇晚返回，第 1 篇超过列表超时；
// 结果仍按输入顺序排列，超时项降级且不影响其他项
func TestGetPreviewBatchOutOfOrderAndTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var delay time.Duration
		switch r.URL.Path {
		case "/bbs/Test/M.0.html":
			delay = 100 * time.Millisecond
		case "/bbs/Test/M.1.html":
			delay = 2 * time.Second
		}
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, articleBody)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	client := collector.NewClient(collector.Options{
		ListTimeout:  400 * time.Millisecond,
		RetryMax:     0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})
	svc := New(Deps{Fetcher: client, Opener: client}, Options{
		BaseURL:        srv.URL,
		AllowedHosts:   []string{u.Host},
		PreviewWorkers: 3,
	})

	in := []string{
		srv.URL + "/bbs/Test/M.0.html",
		srv.URL + "/bbs/Test/M.1.html",
		srv.URL + "/bbs/Test/M.2.html",
	}
	out := svc.GetPreviewBatch(context.Background(), in)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i], out[i].Link, "position %d", i)
	}

	assert.Empty(t, out[0].ErrorKind)
	assert.Equal(t, "https://i.imgur.com/z.jpg", out[0].Thumbnail)
	assert.Equal(t, "2025 01 05 09:00 週日", out[0].FormattedTimestamp)

	assert.Equal(t, collector.KindTimeout, out[1].ErrorKind)
	assert.Equal(t, collector.DegradedSnippet, out[1].Snippet)
	assert.Equal(t, collector.DegradedTimestamp, out[1].FormattedTimestamp)

	assert.Empty(t, out[2].ErrorKind)
	assert.Equal(t, "https://i.imgur.com/z.jpg", out[2].Thumbnail)
}
