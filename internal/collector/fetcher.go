package collector

import (
	"context"

	"github.com/gocolly/colly/v2"
)

// Fetcher 抽象页面抓取，Client 为线上实现，测试中可替换
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, mode Mode) (*colly.Response, error)
}

// ArticleSummary 列表页中的一行文章摘要
type ArticleSummary struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Board  string `json:"board"`
	Author string `json:"author"`
	Date   string `json:"date"`
	// PushScore 为归一化后的推文数，见 ParsePushScore
	PushScore int    `json:"push_score"`
	PushText  string `json:"push_text,omitempty"`
}

// Push 文章下的一条推文
type Push struct {
	Tag     string `json:"tag"`
	User    string `json:"user"`
	Content string `json:"content"`
	Time    string `json:"time"`
}

// Video 正文中出现的影片链接
type Video struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ArticleDetail 单篇文章的完整内容
type ArticleDetail struct {
	AuthorFull         string   `json:"author_full"`
	Timestamp          string   `json:"timestamp"`
	FormattedTimestamp string   `json:"formatted_timestamp"`
	Content            string   `json:"content"`
	Signature          string   `json:"signature,omitempty"`
	Images             []string `json:"images"`
	Videos             []Video  `json:"videos"`
	Pushes             []Push   `json:"pushes"`
}

// PreviewResult 批量预览中的一项；ErrorKind 非空时其余字段为降级默认值
type PreviewResult struct {
	Link               string `json:"link"`
	Thumbnail          string `json:"thumbnail,omitempty"`
	FormattedTimestamp string `json:"formatted_timestamp,omitempty"`
	Snippet            string `json:"snippet"`
	ErrorKind          string `json:"error_kind,omitempty"`
	Error              string `json:"error,omitempty"`
}

// PageResult 一次列表抓取（可能跨多页）的结果；PrevPageLink 为空表示已到最旧一页
type PageResult struct {
	Articles     []ArticleSummary `json:"articles"`
	PrevPageLink string           `json:"prev_page_link,omitempty"`
}
