package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePushScore(t *testing.T) {
	cases := map[string]int{
		"":        0,
		"  ":      0,
		"爆":       PushScoreMax,
		"99":      99,
		" 12 ":    12,
		"-5":      -5,
		"X1":      pushScoreFloor - 1,
		"X9":      pushScoreFloor - 9,
		"XX":      pushScoreFloor - 10,
		"X":       pushScoreFloor,
		"abc":     0,
		"2000000": PushScoreMax - 1,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParsePushScore(in), "input %q", in)
	}
}

func TestParsePushScoreOrdering(t *testing.T) {
	// 爆 > 数字 > 0 > X1 > X9 > XX
	order := []string{"爆", "99", "1", "", "X1", "X9", "XX"}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, ParsePushScore(order[i-1]), ParsePushScore(order[i]),
			"%q should rank above %q", order[i-1], order[i])
	}
	// 数字不会越过“爆”
	assert.Less(t, ParsePushScore("999999"), ParsePushScore("爆"))
}
