package processor

import (
	"cmp"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/LJTian/PttHub/internal/collector"
)

// SimpleProcessor 对列表行做清洗、去重与近期过滤
type SimpleProcessor struct {
	loc *time.Location
	now func() time.Time
}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{loc: collector.TaipeiLocation, now: time.Now}
}

// WithClock 固定“当前时间”，用于测试与回放
func (p *SimpleProcessor) WithClock(now func() time.Time) *SimpleProcessor {
	cp := *p
	cp.now = now
	return &cp
}

// Process 清理标题空白，并按链接去重（保留首次出现）
func (p *SimpleProcessor) Process(items []collector.ArticleSummary) []collector.ArticleSummary {
	out := make([]collector.ArticleSummary, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		id := LinkKey(it.Link)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		it.Title = strings.TrimSpace(it.Title)
		it.Link = strings.TrimSpace(it.Link)
		out = append(out, it)
	}

	return out
}

// FilterRecent 只保留台北时间今天或昨天发布的行
func (p *SimpleProcessor) FilterRecent(items []collector.ArticleSummary) []collector.ArticleSummary {
	today := p.now().In(p.loc)
	spellings := append(DateSpellings(today), DateSpellings(today.AddDate(0, 0, -1))...)

	out := make([]collector.ArticleSummary, 0, len(items))
	for _, it := range items {
		if matchesAny(it.Date, spellings) {
			out = append(out, it)
		}
	}
	return out
}

// DateSpellings 列表页日期可能出现的写法：MM/DD、M/DD、M/D、MM/D
func DateSpellings(t time.Time) []string {
	m, d := int(t.Month()), t.Day()
	candidates := []string{
		fmt.Sprintf("%02d/%02d", m, d),
		fmt.Sprintf("%d/%02d", m, d),
		fmt.Sprintf("%d/%d", m, d),
		fmt.Sprintf("%02d/%d", m, d),
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// matchesAny 以空白为边界做包含判断，避免 "1/05" 命中 "11/05"
func matchesAny(raw string, spellings []string) bool {
	padded := " " + strings.TrimSpace(raw) + " "
	for _, s := range spellings {
		if strings.Contains(padded, " "+s+" ") {
			return true
		}
	}
	return false
}

// RankByPush 按推文分数从高到低稳定排序，分数相同保持原顺序；不修改入参
func RankByPush(items []collector.ArticleSummary) []collector.ArticleSummary {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b collector.ArticleSummary) int {
		return cmp.Compare(b.PushScore, a.PushScore)
	})
	return out
}

// LinkKey 链接的稳定短 key，用于去重与缓存键
func LinkKey(link string) string {
	return hashURL(strings.TrimSpace(link))
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
