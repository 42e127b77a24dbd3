package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseTimestampText 把 "M:SS" / "H:MM:SS" 形式的时间文本转为秒。
//
// 规则：按 ':' 切分；2 段 => m*60+s；3 段 => h*3600+m*60+s；其它形态一律返回 0（不是错误）。
func ParseTimestampText(s string) float64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	nums := make([]float64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		nums = append(nums, n)
	}
	switch len(nums) {
	case 2:
		return nums[0]*60 + nums[1]
	case 3:
		return nums[0]*3600 + nums[1]*60 + nums[2]
	default:
		return 0
	}
}

// FormatTimestamp 把秒数格式化为 "M:SS"（不足 1 小时）或 "H:MM:SS"。
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// RelativeTime 把 epoch-ms 时间戳渲染为相对时间（用于历史列表）。
func RelativeTime(tsMillis int64, now time.Time) string {
	t := time.UnixMilli(tsMillis)
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "刚刚"
	case d < time.Hour:
		return fmt.Sprintf("%d 分钟前", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d 小时前", int(d/time.Hour))
	default:
		return t.Local().Format("2006-01-02")
	}
}
