package model

import (
	"fmt"
	"time"
)

// Clock 一天中的时刻，自零点起的分钟数，取值 0..1440
type Clock int

// EndOfDay 24:00
const EndOfDay Clock = 24 * 60

// ParseClock 解析 HH:MM，允许 24:00
func ParseClock(s string) (Clock, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("无效时刻 %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("时刻 %q 超出 00:00-24:00 范围", s)
	}
	return Clock(h*60 + m), nil
}

// At 时钟小时构造
func At(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// String 格式化为 HH:MM
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Valid 是否在 0..24:00 范围内
func (c Clock) Valid() bool {
	return c >= 0 && c <= EndOfDay
}

// On 返回某日期上的该时刻
func (c Clock) On(day time.Time) time.Time {
	return DayStart(day).Add(time.Duration(c) * time.Minute)
}

// MarshalText 实现 encoding.TextMarshaler
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ClockRange 一天内的时段
type ClockRange struct {
	Start Clock `json:"start" yaml:"start"`
	End   Clock `json:"end" yaml:"end"`
}

// RuleKind 覆盖规则类型
type RuleKind string

const (
	RuleRecurring RuleKind = "recurring"
	RuleGuard     RuleKind = "guard"
	RuleHoliday   RuleKind = "holiday"
)

// CoverageRule 门店覆盖规则：RecurringRule、GuardPeriod 或 Holiday 之一
type CoverageRule interface {
	Kind() RuleKind
	coverageRule()
}

// RecurringRule 每周固定营业时段
type RecurringRule struct {
	Weekdays []time.Weekday `json:"weekdays"`
	Start    Clock          `json:"start"`
	End      Clock          `json:"end"`
	MinStaff int            `json:"min_staff"`
}

// GuardPeriod 一次性值班时段，允许跨午夜
type GuardPeriod struct {
	ID       string    `json:"id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	MinStaff int       `json:"min_staff"`
}

// Holiday 地区法定假日；Hours 为空时沿用当天的营业时段
type Holiday struct {
	Date     string      `json:"date"`
	Name     string      `json:"name,omitempty"`
	Hours    *ClockRange `json:"hours,omitempty"`
	MinStaff int         `json:"min_staff"` // 0 表示沿用营业时段的最低人数
}

func (RecurringRule) Kind() RuleKind { return RuleRecurring }
func (GuardPeriod) Kind() RuleKind { return RuleGuard }
func (Holiday) Kind() RuleKind { return RuleHoliday }

func (RecurringRule) coverageRule() {}
func (GuardPeriod) coverageRule() {}
func (Holiday) coverageRule() {}

// HasWeekday 检查规则是否适用于某星期
func (r RecurringRule) HasWeekday(wd time.Weekday) bool {
	for _, w := range r.Weekdays {
		if w == wd {
			return true
		}
	}
	return false
}
