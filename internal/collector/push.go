package collector

import (
	"strconv"
	"strings"
)

const (
	// PushScoreMax 对应“爆”，高于任何数字推文数
	PushScoreMax = 1_000_000
	// pushScoreFloor 以下留给 X 系列标记：X1 = floor-1，X9 = floor-9，XX 视为 X10
	pushScoreFloor = -1_000_000

	pushMaxMarker = "爆"
	pushNegPrefix = "X"
)

// ParsePushScore 将列表页的推文数文字归一化为可排序的整数。
// 排序：爆 > 任意数字 > X0 > X1 > ... > X9 > XX；无法解析的文字为 0。
func ParsePushScore(text string) int {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return 0
	case text == pushMaxMarker:
		return PushScoreMax
	case strings.HasPrefix(text, pushNegPrefix):
		return pushScoreFloor - negativeSuffix(strings.TrimPrefix(text, pushNegPrefix))
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	if n >= PushScoreMax {
		return PushScoreMax - 1
	}
	if n <= pushScoreFloor {
		return pushScoreFloor + 1
	}
	return n
}

func negativeSuffix(s string) int {
	if s == pushNegPrefix {
		return 10
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	if n > PushScoreMax {
		return PushScoreMax
	}
	return n
}
