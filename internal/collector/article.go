package collector

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const (
	metaAuthor      = "作者"
	metaTime        = "時間"
	signatureMarker = "--"
)

// ParseArticle 解析文章详情页。
// 作者、时间两行 meta 读取后即从 DOM 移除，推文同理；剩下的正文再按 "--" 拆出签名档。
func ParseArticle(resp *colly.Response) (*ArticleDetail, error) {
	doc, err := newDocument(resp)
	if err != nil {
		return nil, err
	}
	main := doc.Find("#main-content").First()
	if main.Length() == 0 {
		return nil, fmt.Errorf("%w: article %s has no #main-content", ErrMalformed, responseURL(resp))
	}

	detail := &ArticleDetail{}
	main.Find("div.article-metaline").Each(func(_ int, line *goquery.Selection) {
		tag := strings.TrimSpace(line.Find(".article-meta-tag").Text())
		value := strings.TrimSpace(line.Find(".article-meta-value").Text())
		switch tag {
		case metaAuthor:
			if detail.AuthorFull == "" {
				detail.AuthorFull = value
			}
		case metaTime:
			if detail.Timestamp == "" {
				detail.Timestamp = value
			}
		}
	})
	detail.FormattedTimestamp = FormatTimestamp(detail.Timestamp)

	detail.Pushes = extractPushes(main)
	main.Find("div.article-metaline, div.article-metaline-right, span.f2").Remove()

	detail.Images, detail.Videos = collectMedia(main)

	main.Find("br").ReplaceWithHtml("\n")
	detail.Content, detail.Signature = splitSignature(main.Text())
	return detail, nil
}

// extractPushes 读取推文并从 DOM 中移除，避免推文里的链接混进正文
func extractPushes(main *goquery.Selection) []Push {
	pushes := []Push{}
	main.Find("div.push").Each(func(_ int, s *goquery.Selection) {
		user := strings.TrimSpace(s.Find(".push-userid").Text())
		if user == "" {
			return
		}
		content := strings.TrimSpace(s.Find(".push-content").Text())
		content = strings.TrimSpace(strings.TrimPrefix(content, ":"))
		pushes = append(pushes, Push{
			Tag:     strings.TrimSpace(s.Find(".push-tag").Text()),
			User:    user,
			Content: content,
			Time:    strings.TrimSpace(s.Find(".push-ipdatetime").Text()),
		})
	})
	main.Find("div.push").Remove()
	return pushes
}

// splitSignature 在第一行内容恰为 "--" 处切分正文与签名档
func splitSignature(text string) (content, signature string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == signatureMarker {
			return strings.TrimSpace(strings.Join(lines[:i], "\n")),
				strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
	}
	return strings.TrimSpace(text), ""
}
