// Package model 定义药房排班引擎的核心数据模型
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout 日期格式
const DateLayout = "2006-01-02"

// Namespace 用于生成确定性 ID（班次、冲突）的命名空间
var Namespace = uuid.MustParse("6f1c2a64-3f0e-5d7a-9b1e-6c2f4d8a0e11")

// StableID 根据若干片段生成确定性 UUID，相同输入总是得到相同 ID
func StableID(parts ...string) uuid.UUID {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += "|"
		}
		key += p
	}
	return uuid.NewSHA1(Namespace, []byte(key))
}

// ParseDate 解析 YYYY-MM-DD 日期（UTC 零点）
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效日期 %q: %w", s, err)
	}
	return t, nil
}

// FormatDate 格式化日期
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DayStart 返回该时刻所在日期的零点
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDate 返回下一天
func NextDate(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return ""
	}
	return FormatDate(t.AddDate(0, 0, 1))
}

// TimeRange 时间范围
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 返回时间范围的持续时间
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Overlaps 检查两个时间范围是否重叠
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// MinutesByDate 将时间范围按午夜切分，返回每个日期上的分钟数
func (tr TimeRange) MinutesByDate() map[string]int {
	result := make(map[string]int)
	cur := tr.Start.UTC()
	end := tr.End.UTC()
	for cur.Before(end) {
		next := DayStart(cur).AddDate(0, 0, 1)
		if next.After(end) {
			next = end
		}
		result[FormatDate(cur)] += int(next.Sub(cur).Minutes())
		cur = next
	}
	return result
}

// Horizon 排班周期（起止日期均包含）
type Horizon struct {
	StartDate string `json:"start_date" yaml:"start_date"`
	EndDate   string `json:"end_date" yaml:"end_date"`
}

// Bounds 解析周期的起止日期
func (h Horizon) Bounds() (start, end time.Time, err error) {
	if start, err = ParseDate(h.StartDate); err != nil {
		return
	}
	if end, err = ParseDate(h.EndDate); err != nil {
		return
	}
	if end.Before(start) {
		err = fmt.Errorf("结束日期 %s 早于开始日期 %s", h.EndDate, h.StartDate)
	}
	return
}

// Dates 返回周期内的所有日期
func (h Horizon) Dates() []string {
	start, end, err := h.Bounds()
	if err != nil {
		return nil
	}
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, FormatDate(d))
	}
	return dates
}

// Contains 检查日期是否在周期内
func (h Horizon) Contains(date string) bool {
	return date >= h.StartDate && date <= h.EndDate
}
