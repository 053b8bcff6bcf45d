package collector

import (
	"strings"
	"time"
)

// PTT 文章时间格式，例如 "Sat Jan  4 12:00:00 2025"
const pttTimeLayout = "Mon Jan _2 15:04:05 2006"

var weekdayNames = [...]string{"週日", "週一", "週二", "週三", "週四", "週五", "週六"}

// TaipeiLocation PTT 使用台北时间，用于日期展示与“今天/昨天”判断
var TaipeiLocation *time.Location

func init() {
	TaipeiLocation, _ = time.LoadLocation("Asia/Taipei")
	if TaipeiLocation == nil {
		TaipeiLocation = time.FixedZone("CST", 8*3600)
	}
}

// FormatTimestamp 把 PTT 时间转成 "2006 01 02 15:04 週X"；无法解析时原样返回
func FormatTimestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	t, err := time.Parse(pttTimeLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format("2006 01 02 15:04") + " " + weekdayNames[t.Weekday()]
}
