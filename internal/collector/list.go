package collector

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// 标题中出现这些字样表示文章已被删除
var withdrawnMarkers = []string{"本文已被刪除", "已被刪除", "本文已被"}

func newDocument(resp *colly.Response) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}

func responseURL(resp *colly.Response) string {
	if resp == nil || resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}

// ParseList 解析看板列表页。行按页面中的顺序返回，逆序由 Walker 负责。
// 缺少标题链接或 meta 区块的行、已删除的文章直接跳过；
// 首页 div.r-list-sep 之后是置顶公告，不属于按时间排列的文章，同样跳过。
func ParseList(resp *colly.Response, board, baseURL string) (*PageResult, error) {
	doc, err := newDocument(resp)
	if err != nil {
		return nil, err
	}
	container := doc.Find("div.r-list-container").First()
	if container.Length() == 0 {
		return nil, fmt.Errorf("%w: list page %s has no div.r-list-container", ErrMalformed, responseURL(resp))
	}

	articles := make([]ArticleSummary, 0, 20)
	container.Find("div.r-ent").Each(func(i int, s *goquery.Selection) {
		if s.PrevAllFiltered("div.r-list-sep").Length() > 0 {
			return
		}
		e := colly.NewHTMLElementFromSelectionNode(resp, s, s.Nodes[0], i)
		if row, ok := parseRow(e, board, baseURL); ok {
			articles = append(articles, row)
		}
	})

	return &PageResult{
		Articles:     articles,
		PrevPageLink: prevPageLink(doc, baseURL),
	}, nil
}

func parseRow(e *colly.HTMLElement, board, baseURL string) (ArticleSummary, bool) {
	href := e.ChildAttr("div.title a", "href")
	if href == "" || e.DOM.Find("div.meta").Length() == 0 {
		return ArticleSummary{}, false
	}
	title := e.ChildText("div.title a")
	if isWithdrawn(title) {
		return ArticleSummary{}, false
	}
	pushText := e.ChildText("div.nrec")
	return ArticleSummary{
		Title:     title,
		Link:      resolveURL(baseURL, href),
		Board:     board,
		Author:    e.ChildText("div.meta div.author"),
		Date:      e.ChildText("div.meta div.date"),
		PushScore: ParsePushScore(pushText),
		PushText:  pushText,
	}, true
}

func isWithdrawn(title string) bool {
	for _, m := range withdrawnMarkers {
		if strings.Contains(title, m) {
			return true
		}
	}
	return false
}

// prevPageLink 找到“‹ 上頁”按钮；最旧一页的按钮是 disabled 且没有 href
func prevPageLink(doc *goquery.Document, baseURL string) string {
	link := ""
	doc.Find("a.btn.wide").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), "上頁") {
			return true
		}
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			link = resolveURL(baseURL, strings.TrimSpace(href))
		}
		return false
	})
	return link
}

func resolveURL(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return baseURL + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return baseURL + href
	}
	return base.ResolveReference(ref).String()
}
