// Package input 定义 HTTP 接口和命令行共用的排班输入格式，并转换为引擎请求
package input

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/paiban/pharmashift/pkg/errors"
	"github.com/paiban/pharmashift/pkg/model"
	"github.com/paiban/pharmashift/pkg/scheduler"
)

// Document 一个门店一个周期的排班输入
type Document struct {
	Site      SiteInput              `json:"site" yaml:"site"`
	Horizon   model.Horizon          `json:"horizon" yaml:"horizon"`
	Employees []EmployeeInput        `json:"employees" yaml:"employees"`
	Rules     []RuleInput            `json:"rules" yaml:"rules"`
	Config    *model.AlgorithmConfig `json:"config,omitempty" yaml:"config,omitempty"` // 为空时使用服务端默认配置
	Prior     []model.Shift          `json:"prior,omitempty" yaml:"-"`
}

// SiteInput 门店
type SiteInput struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Code string `json:"code,omitempty" yaml:"code,omitempty"`
}

// EmployeeInput 员工
type EmployeeInput struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	SiteID         string         `json:"site_id,omitempty" yaml:"site_id,omitempty"` // 为空表示机动人员
	Role           string         `json:"role,omitempty" yaml:"role,omitempty"`
	ShowInCalendar bool           `json:"show_in_calendar,omitempty" yaml:"show_in_calendar,omitempty"`
	Active         *bool          `json:"active,omitempty" yaml:"active,omitempty"` // 默认在职
	Caps           model.HourCaps `json:"caps" yaml:"caps"`
	Holidays       []string       `json:"holidays,omitempty" yaml:"holidays,omitempty"`
}

// RuleInput 覆盖规则，type 取 recurring / guard / holiday
type RuleInput struct {
	Type     string   `json:"type" yaml:"type"`
	Weekdays []string `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
	Start    string   `json:"start,omitempty" yaml:"start,omitempty"`
	End      string   `json:"end,omitempty" yaml:"end,omitempty"`
	MinStaff int      `json:"min_staff" yaml:"min_staff"`
	ID       string   `json:"id,omitempty" yaml:"id,omitempty"`
	Date     string   `json:"date,omitempty" yaml:"date,omitempty"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
}

// guardLayouts 值班起止时间可接受的格式，均按 UTC 解释
var guardLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// NewDocument 返回以 defaults 为算法配置初值的输入，解码时只覆盖出现的配置项
func NewDocument(defaults model.AlgorithmConfig) *Document {
	return &Document{Config: &defaults}
}

// ReadYAML 解析 YAML 格式的排班输入，未知字段视为错误
func ReadYAML(r io.Reader, defaults model.AlgorithmConfig) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	doc := NewDocument(defaults)
	if err := dec.Decode(doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "解析排班输入失败").WithDetails(err.Error())
	}
	return doc, nil
}

// LoadFile 读取 YAML 排班输入文件
func LoadFile(path string, defaults model.AlgorithmConfig) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开排班输入文件失败: %w", err)
	}
	defer f.Close()
	return ReadYAML(f, defaults)
}

// ToRequest 转换为引擎请求。格式错误汇总为一个 VALIDATION_FAILED 错误；
// 取值关系（工时上限、规则时段等）由引擎校验。
func (d *Document) ToRequest(defaults model.AlgorithmConfig) (scheduler.Request, error) {
	verrs := &errors.ValidationErrors{}
	req := scheduler.Request{
		Horizon: d.Horizon,
		Config:  defaults,
		Prior:   d.Prior,
	}
	if d.Config != nil {
		req.Config = *d.Config
	}

	req.Site = model.Site{Name: d.Site.Name, Code: d.Site.Code}
	if id, err := uuid.Parse(d.Site.ID); err != nil {
		verrs.Add("site.id", fmt.Sprintf("无效的门店ID %q", d.Site.ID))
	} else {
		req.Site.ID = id
	}

	req.Roster = make([]*model.Employee, 0, len(d.Employees))
	for i := range d.Employees {
		if emp := d.Employees[i].toModel(fmt.Sprintf("employees[%d]", i), verrs); emp != nil {
			req.Roster = append(req.Roster, emp)
		}
	}

	req.Rules = make([]model.CoverageRule, 0, len(d.Rules))
	for i := range d.Rules {
		if rule := d.Rules[i].toModel(fmt.Sprintf("rules[%d]", i), verrs); rule != nil {
			req.Rules = append(req.Rules, rule)
		}
	}

	if verrs.HasErrors() {
		return req, verrs.ToAppError()
	}
	return req, nil
}

func (e *EmployeeInput) toModel(field string, verrs *errors.ValidationErrors) *model.Employee {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		verrs.Add(field+".id", fmt.Sprintf("无效的员工ID %q", e.ID))
		return nil
	}

	emp := &model.Employee{
		ID:             id,
		Name:           e.Name,
		Role:           model.RoleEmployee,
		ShowInCalendar: e.ShowInCalendar,
		Active:         e.Active == nil || *e.Active,
		Caps:           e.Caps,
		Holidays:       e.Holidays,
	}
	if e.Role != "" {
		emp.Role = model.Role(strings.ToLower(e.Role))
	}
	if e.SiteID != "" {
		siteID, err := uuid.Parse(e.SiteID)
		if err != nil {
			verrs.Add(field+".site_id", fmt.Sprintf("无效的门店ID %q", e.SiteID))
			return nil
		}
		emp.SiteID = &siteID
	}
	return emp
}

func (r *RuleInput) toModel(field string, verrs *errors.ValidationErrors) model.CoverageRule {
	switch model.RuleKind(strings.ToLower(r.Type)) {
	case model.RuleRecurring:
		start, end, ok := r.clockRange(field, verrs)
		if !ok {
			return nil
		}
		days := make([]time.Weekday, 0, len(r.Weekdays))
		for _, name := range r.Weekdays {
			wd, ok := weekdayNames[strings.ToLower(name)]
			if !ok {
				verrs.Add(field+".weekdays", fmt.Sprintf("无效的星期 %q", name))
				return nil
			}
			days = append(days, wd)
		}
		return model.RecurringRule{Weekdays: days, Start: start, End: end, MinStaff: r.MinStaff}

	case model.RuleGuard:
		start, err := parseGuardTime(r.Start)
		if err != nil {
			verrs.Add(field+".start", err.Error())
			return nil
		}
		end, err := parseGuardTime(r.End)
		if err != nil {
			verrs.Add(field+".end", err.Error())
			return nil
		}
		return model.GuardPeriod{ID: r.ID, Start: start, End: end, MinStaff: r.MinStaff}

	case model.RuleHoliday:
		h := model.Holiday{Date: r.Date, Name: r.Name, MinStaff: r.MinStaff}
		if r.Start != "" || r.End != "" {
			start, end, ok := r.clockRange(field, verrs)
			if !ok {
				return nil
			}
			h.Hours = &model.ClockRange{Start: start, End: end}
		}
		return h
	}

	verrs.Add(field+".type", fmt.Sprintf("未知的规则类型 %q，应为 recurring、guard 或 holiday", r.Type))
	return nil
}

func (r *RuleInput) clockRange(field string, verrs *errors.ValidationErrors) (model.Clock, model.Clock, bool) {
	start, err := model.ParseClock(r.Start)
	if err != nil {
		verrs.Add(field+".start", err.Error())
		return 0, 0, false
	}
	end, err := model.ParseClock(r.End)
	if err != nil {
		verrs.Add(field+".end", err.Error())
		return 0, 0, false
	}
	return start, end, true
}

func parseGuardTime(s string) (time.Time, error) {
	for _, layout := range guardLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("无效时间 %q，应为 YYYY-MM-DDTHH:MM", s)
}
