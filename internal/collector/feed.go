package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

// FeedURL PTT 为每个看板提供的 Atom 订阅地址
func FeedURL(baseURL, board string) string {
	return strings.TrimRight(baseURL, "/") + "/atom/" + url.PathEscape(board) + ".xml"
}

// ReadFeed 通过看板的 Atom 订阅读取最新文章，条目顺序与订阅一致（新到旧）。
// 订阅里没有推文数，PushScore 恒为 0。
func ReadFeed(ctx context.Context, f Fetcher, baseURL, board string) ([]ArticleSummary, error) {
	feedURL := FeedURL(baseURL, board)
	resp, err := f.Fetch(ctx, feedURL, ModeList)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: atom feed %s: %v", ErrMalformed, feedURL, err)
	}

	articles := make([]ArticleSummary, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" || isWithdrawn(item.Title) {
			continue
		}
		row := ArticleSummary{
			Title: strings.TrimSpace(item.Title),
			Link:  resolveURL(baseURL, item.Link),
			Board: board,
		}
		if item.Author != nil {
			row.Author = strings.TrimSpace(item.Author.Name)
		}
		switch {
		case item.PublishedParsed != nil:
			row.Date = item.PublishedParsed.In(TaipeiLocation).Format("1/02")
		case item.UpdatedParsed != nil:
			row.Date = item.UpdatedParsed.In(TaipeiLocation).Format("1/02")
		}
		articles = append(articles, row)
	}
	return articles, nil
}
