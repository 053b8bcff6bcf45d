package collector

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MediaKind 链接分类
type MediaKind int

const (
	MediaOther MediaKind = iota
	MediaImage
	MediaVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	default:
		return "other"
	}
}

// Media 一个链接的分类结果；VideoID 仅在 Kind 为 MediaVideo 时有值
type Media struct {
	Kind    MediaKind
	URL     string
	VideoID string
}

var (
	imageExtRe = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|avif|webp)$`)
	videoRe    = regexp.MustCompile(`(?i)^(?:https?://)?(?:(?:www\.|m\.)?youtube\.com/(?:watch\?(?:[^#]*&)?v=|embed/|shorts/)|youtu\.be/)([a-z0-9_-]{11})`)
)

// ClassifyLink 对链接只做一次分类：影片优先，其次按扩展名判断图片
func ClassifyLink(href string) Media {
	href = strings.TrimSpace(href)
	if href == "" {
		return Media{Kind: MediaOther}
	}
	if m := videoRe.FindStringSubmatch(href); m != nil {
		return Media{Kind: MediaVideo, URL: href, VideoID: m[1]}
	}
	if imageExtRe.MatchString(href) {
		return Media{Kind: MediaImage, URL: href}
	}
	return Media{Kind: MediaOther, URL: href}
}

// VideoThumbnail 返回 YouTube 影片的预览图地址
func VideoThumbnail(id string) string {
	return "https://img.youtube.com/vi/" + id + "/hqdefault.jpg"
}

// Dedupe 去重并保留首次出现的顺序
func Dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// collectMedia 扫描容器内所有链接，返回去重后的图片与影片
func collectMedia(root *goquery.Selection) ([]string, []Video) {
	var images []string
	videos := []Video{}
	seenVideo := make(map[string]struct{})

	root.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := ClassifyLink(href)
		switch m.Kind {
		case MediaImage:
			images = append(images, m.URL)
		case MediaVideo:
			if _, ok := seenVideo[m.VideoID]; ok {
				return
			}
			seenVideo[m.VideoID] = struct{}{}
			videos = append(videos, Video{ID: m.VideoID, URL: m.URL})
		}
	})
	return Dedupe(images), videos
}
