package collector

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const (
	DefaultSnippetRunes = 120

	// 预览抓取失败时返回的占位文字
	DegradedTimestamp = "無法載入"
	DegradedSnippet   = "無法載入預覽..."
)

// ParsePreview 从文章页提取预览：第一张图（没有则用影片封面）、格式化时间、正文摘要。
// 摘要去掉 meta、推文、系统讯息与非图片链接，压缩空白后截断；纯链接正文不产生摘要。
func ParsePreview(resp *colly.Response, link string, snippetRunes int) (*PreviewResult, error) {
	if snippetRunes <= 0 {
		snippetRunes = DefaultSnippetRunes
	}
	doc, err := newDocument(resp)
	if err != nil {
		return nil, err
	}
	main := doc.Find("#main-content").First()
	if main.Length() == 0 {
		return nil, fmt.Errorf("%w: article %s has no #main-content", ErrMalformed, link)
	}

	result := &PreviewResult{
		Link:               link,
		FormattedTimestamp: FormatTimestamp(metaValue(main, metaTime)),
		Thumbnail:          firstThumbnail(main),
	}

	main.Find("div.article-metaline, div.article-metaline-right, div.push, .f2, script, style").Remove()
	main.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if ClassifyLink(href).Kind != MediaImage {
			a.Remove()
		}
	})

	text := strings.Join(strings.Fields(main.Text()), " ")
	lower := strings.ToLower(text)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		result.Snippet = clipRunes(text, snippetRunes)
	}
	return result, nil
}

func metaValue(main *goquery.Selection, tag string) string {
	value := ""
	main.Find("div.article-metaline").EachWithBreak(func(_ int, line *goquery.Selection) bool {
		if strings.TrimSpace(line.Find(".article-meta-tag").Text()) != tag {
			return true
		}
		value = strings.TrimSpace(line.Find(".article-meta-value").Text())
		return false
	})
	return value
}

// firstThumbnail 正文（不含推文）里的第一张图片，没有图片时退回第一个影片的封面
func firstThumbnail(main *goquery.Selection) string {
	var image, video string
	main.Find("a").NotSelection(main.Find("div.push a")).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		m := ClassifyLink(href)
		switch {
		case m.Kind == MediaImage:
			image = m.URL
			return false
		case m.Kind == MediaVideo && video == "":
			video = VideoThumbnail(m.VideoID)
		}
		return true
	})
	if image != "" {
		return image
	}
	return video
}

// clipRunes 按字符而非字节截断
func clipRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// DegradedPreview 抓取或解析失败时的占位预览
func DegradedPreview(link string, err error) *PreviewResult {
	return &PreviewResult{
		Link:               link,
		FormattedTimestamp: DegradedTimestamp,
		Snippet:            DegradedSnippet,
		ErrorKind:          ErrorKind(err),
		Error:              err.Error(),
	}
}
