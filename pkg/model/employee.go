package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role 员工角色
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Period 工时统计周期
type Period string

const (
	PeriodDay   Period = "daily"
	PeriodWeek  Period = "weekly"
	PeriodMonth Period = "monthly"
	PeriodYear  Period = "annual"
)

// Periods 所有工时周期，从小到大
var Periods = []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodYear}

// Label 周期中文名
func (p Period) Label() string {
	switch p {
	case PeriodDay:
		return "日"
	case PeriodWeek:
		return "周"
	case PeriodMonth:
		return "月"
	case PeriodYear:
		return "年"
	}
	return string(p)
}

// PeriodKey 返回日期所属周期窗口的键；周按 ISO 周（周一开始）计算
func PeriodKey(p Period, date time.Time) string {
	date = date.UTC()
	switch p {
	case PeriodWeek:
		y, w := date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case PeriodMonth:
		return date.Format("2006-01")
	case PeriodYear:
		return date.Format("2006")
	default:
		return FormatDate(date)
	}
}

// HourCaps 各周期工时上限（小时）
type HourCaps struct {
	Daily   int `json:"daily" yaml:"daily"`
	Weekly  int `json:"weekly" yaml:"weekly"`
	Monthly int `json:"monthly" yaml:"monthly"`
	Annual  int `json:"annual" yaml:"annual"`
}

// Limit 返回某周期的上限（小时）
func (c HourCaps) Limit(p Period) int {
	switch p {
	case PeriodDay:
		return c.Daily
	case PeriodWeek:
		return c.Weekly
	case PeriodMonth:
		return c.Monthly
	case PeriodYear:
		return c.Annual
	}
	return 0
}

// Validate 校验工时上限的取值关系，返回不合法的原因
func (c HourCaps) Validate() []string {
	var reasons []string
	for _, p := range Periods {
		if c.Limit(p) < 0 {
			reasons = append(reasons, fmt.Sprintf("%s工时上限不能为负数", p.Label()))
		}
	}
	if c.Monthly < 4*c.Weekly {
		reasons = append(reasons, fmt.Sprintf("月工时上限(%d)必须不小于周上限的4倍(%d)", c.Monthly, 4*c.Weekly))
	}
	if c.Annual < 12*c.Monthly {
		reasons = append(reasons, fmt.Sprintf("年工时上限(%d)必须不小于月上限的12倍(%d)", c.Annual, 12*c.Monthly))
	}
	return reasons
}

// Employee 员工
type Employee struct {
	ID             uuid.UUID  `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	SiteID         *uuid.UUID `json:"site_id,omitempty" yaml:"site_id,omitempty"` // 为空表示机动人员
	Role           Role       `json:"role" yaml:"role"`
	ShowInCalendar bool       `json:"show_in_calendar" yaml:"show_in_calendar"`
	Active         bool       `json:"active" yaml:"active"`
	Caps           HourCaps   `json:"caps" yaml:"caps"`
	Holidays       []string   `json:"holidays,omitempty" yaml:"holidays,omitempty"` // 个人休假日期
}

// IsSchedulable 检查员工能否在指定门店排班
func (e *Employee) IsSchedulable(siteID uuid.UUID) bool {
	if !e.Active {
		return false
	}
	switch e.Role {
	case RoleEmployee, RoleManager:
	case RoleAdmin:
		if !e.ShowInCalendar {
			return false
		}
	default:
		return false
	}
	return e.SiteID == nil || *e.SiteID == siteID
}

// IsOnHoliday 检查员工在某日是否休假
func (e *Employee) IsOnHoliday(date string) bool {
	for _, h := range e.Holidays {
		if h == date {
			return true
		}
	}
	return false
}

// Site 门店
type Site struct {
	ID   uuid.UUID `json:"id" yaml:"id"`
	Name string    `json:"name" yaml:"name"`
	Code string    `json:"code,omitempty" yaml:"code,omitempty"`
}
