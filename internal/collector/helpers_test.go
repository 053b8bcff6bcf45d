package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"
)

type testRow struct {
	title, href, push, date, author string
	// sep 为 true 时只输出置顶分隔线 div.r-list-sep
	sep bool
}

func listHTML(prevHref string, rows ...testRow) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="btn-group btn-group-paging">`)
	b.WriteString(`<a class="btn wide" href="/bbs/Test/index1.html">最舊</a>`)
	if prevHref != "" {
		fmt.Fprintf(&b, `<a class="btn wide" href="%s">‹ 上頁</a>`, prevHref)
	} else {
		b.WriteString(`<a class="btn wide disabled">‹ 上頁</a>`)
	}
	b.WriteString(`</div><div class="r-list-container action-bar-margin bbs-screen">`)
	for _, r := range rows {
		if r.sep {
			b.WriteString(`<div class="r-list-sep"></div>`)
			continue
		}
		fmt.Fprintf(&b, `<div class="r-ent"><div class="nrec"><span class="hl">%s</span></div>`, r.push)
		if r.href != "" {
			fmt.Fprintf(&b, `<div class="title"><a href="%s">%s</a></div>`, r.href, r.title)
		} else {
			fmt.Fprintf(&b, `<div class="title">%s</div>`, r.title)
		}
		fmt.Fprintf(&b, `<div class="meta"><div class="author">%s</div><div class="date">%s</div></div></div>`, r.author, r.date)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func htmlResponse(body string) *colly.Response {
	return &colly.Response{StatusCode: 200, Body: []byte(body)}
}

// fakeFetcher 按 URL 返回预置页面或错误，并记录调用次数
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, _ Mode) (*colly.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if body, ok := f.pages[rawURL]; ok {
		return htmlResponse(body), nil
	}
	return nil, &FetchError{URL: rawURL, StatusCode: 404, Err: ErrNotFound}
}
