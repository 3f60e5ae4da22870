// Package demand 将门店覆盖规则展开为具体的需求时段
package demand

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/paiban/pharmashift/pkg/errors"
	"github.com/paiban/pharmashift/pkg/model"
)

// maxGuardSpan 单个值班时段的最长跨度
const maxGuardSpan = 7 * 24 * time.Hour

var weekdayMap = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// window 某日期上的一个营业窗口
type window struct {
	start, end model.Clock
	staff      int
}

// Builder 需求时段构建器
type Builder struct {
	horizon    model.Horizon
	start, end time.Time
	recurring  []model.RecurringRule
	guards     []model.GuardPeriod
	holidays   map[string][]model.Holiday
}

// Build 校验覆盖规则并展开为按日期、开始时间排序的需求时段
func Build(rules []model.CoverageRule, horizon model.Horizon) ([]model.DemandSlot, error) {
	b, err := NewBuilder(rules, horizon)
	if err != nil {
		return nil, err
	}
	return b.Slots()
}

// NewBuilder 校验输入并创建构建器
func NewBuilder(rules []model.CoverageRule, horizon model.Horizon) (*Builder, error) {
	start, end, err := horizon.Bounds()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidTimeRange, "排班周期无效").WithDetails(err.Error())
	}

	if verrs := Validate(rules); verrs.HasErrors() {
		return nil, verrs.ToAppError()
	}

	b := &Builder{
		horizon:  horizon,
		start:    start,
		end:      end,
		holidays: make(map[string][]model.Holiday),
	}
	for _, r := range rules {
		switch rule := r.(type) {
		case model.RecurringRule:
			b.recurring = append(b.recurring, rule)
		case model.GuardPeriod:
			b.guards = append(b.guards, rule)
		case model.Holiday:
			b.holidays[rule.Date] = append(b.holidays[rule.Date], rule)
		}
	}
	return b, nil
}

// Validate 校验覆盖规则，收集全部错误
func Validate(rules []model.CoverageRule) *errors.ValidationErrors {
	verrs := &errors.ValidationErrors{Code: errors.CodeInvalidRule}

	for i, r := range rules {
		field := fmt.Sprintf("rules[%d]", i)
		switch rule := r.(type) {
		case model.RecurringRule:
			if len(rule.Weekdays) == 0 {
				verrs.Add(field, "至少需要一个星期几")
			}
			for _, wd := range rule.Weekdays {
				if wd < time.Sunday || wd > time.Saturday {
					verrs.Add(field, fmt.Sprintf("无效的星期几: %d", wd))
				}
			}
			validateWindow(verrs, field, rule.Start, rule.End)
			if rule.MinStaff < 0 {
				verrs.Add(field, "最低在岗人数不能为负数")
			}
		case model.GuardPeriod:
			if rule.Start.IsZero() || rule.End.IsZero() {
				verrs.Add(field, "值班起止时间不能为空")
			} else if !rule.End.After(rule.Start) {
				verrs.Add(field, "值班结束时间必须晚于开始时间")
			} else if rule.End.Sub(rule.Start) > maxGuardSpan {
				verrs.Add(field, "单次值班不能超过7天")
			}
			if rule.MinStaff < 0 {
				verrs.Add(field, "最低在岗人数不能为负数")
			}
		case model.Holiday:
			if _, err := model.ParseDate(rule.Date); err != nil {
				verrs.Add(field, err.Error())
			}
			if rule.Hours != nil {
				validateWindow(verrs, field, rule.Hours.Start, rule.Hours.End)
			}
			if rule.MinStaff < 0 {
				verrs.Add(field, "最低在岗人数不能为负数")
			}
		case nil:
			verrs.Add(field, "覆盖规则不能为空")
		default:
			verrs.Add(field, fmt.Sprintf("未知的覆盖规则类型 %T", r))
		}
	}
	return verrs
}

func validateWindow(verrs *errors.ValidationErrors, field string, start, end model.Clock) {
	if !start.Valid() || !end.Valid() {
		verrs.Add(field, "时刻必须在 00:00 到 24:00 之间")
		return
	}
	if start >= end {
		verrs.Add(field, fmt.Sprintf("开始时刻 %s 必须早于结束时刻 %s", start, end))
	}
}

// Slots 展开全部需求时段
func (b *Builder) Slots() ([]model.DemandSlot, error) {
	byDate := make(map[string][]window)

	for _, rule := range b.recurring {
		dates, err := b.occurrences(rule)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidRule, "每周营业规则展开失败")
		}
		for _, d := range dates {
			date := model.FormatDate(d)
			if _, isHoliday := b.holidays[date]; isHoliday {
				continue
			}
			byDate[date] = addWindow(byDate[date], window{rule.Start, rule.End, rule.MinStaff})
		}
	}

	slots := make([]model.DemandSlot, 0)
	for date, windows := range byDate {
		day, _ := model.ParseDate(date)
		for _, w := range windows {
			slots = appendWindowSlot(slots, day, w, model.KindRegular)
		}
	}

	for date, configs := range b.holidays {
		if !b.horizon.Contains(date) {
			continue
		}
		day, _ := model.ParseDate(date)
		for _, w := range b.holidayWindows(day, configs) {
			slots = appendWindowSlot(slots, day, w, model.KindHoliday)
		}
	}

	for i, g := range b.guards {
		slots = append(slots, b.guardSlots(i, g)...)
	}

	Sort(slots)
	return slots, nil
}

// occurrences 用 RFC 5545 每周规则求出周期内的适用日期
func (b *Builder) occurrences(rule model.RecurringRule) ([]time.Time, error) {
	days := make([]rrule.Weekday, 0, len(rule.Weekdays))
	for _, wd := range rule.Weekdays {
		days = append(days, weekdayMap[wd])
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Wkst:      rrule.MO,
		Dtstart:   b.start,
		Until:     b.end,
		Byweekday: days,
	})
	if err != nil {
		return nil, err
	}
	return r.All(), nil
}

// holidayWindows 计算假日当天的营业窗口：有指定时段时使用指定时段，
// 否则沿用当天星期对应的营业时段；最低人数为 0 时沿用当天营业规则的人数，
// 多个配置重叠处取最大最低人数
func (b *Builder) holidayWindows(day time.Time, configs []model.Holiday) []window {
	var raw []window
	for _, h := range configs {
		if h.Hours != nil {
			staff := h.MinStaff
			if staff == 0 {
				staff = b.weekdayStaff(day.Weekday())
			}
			raw = append(raw, window{h.Hours.Start, h.Hours.End, staff})
			continue
		}
		for _, rule := range b.recurring {
			if !rule.HasWeekday(day.Weekday()) {
				continue
			}
			staff := rule.MinStaff
			if h.MinStaff > 0 {
				staff = h.MinStaff
			}
			raw = append(raw, window{rule.Start, rule.End, staff})
		}
	}
	return flatten(raw)
}

// weekdayStaff 当天星期匹配的营业规则中的最大最低人数，没有匹配时为 0
func (b *Builder) weekdayStaff(wd time.Weekday) int {
	staff := 0
	for _, rule := range b.recurring {
		if rule.HasWeekday(wd) && rule.MinStaff > staff {
			staff = rule.MinStaff
		}
	}
	return staff
}

// flatten 按所有窗口边界切分，每段取覆盖它的窗口中的最大人数，相邻同人数段再合并
func flatten(raw []window) []window {
	if len(raw) == 0 {
		return nil
	}
	cuts := make([]model.Clock, 0, len(raw)*2)
	for _, w := range raw {
		cuts = append(cuts, w.start, w.end)
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i] < cuts[j] })

	var result []window
	for i := 0; i+1 < len(cuts); i++ {
		from, to := cuts[i], cuts[i+1]
		if from == to {
			continue
		}
		best, covered := 0, false
		for _, w := range raw {
			if w.start <= from && to <= w.end {
				covered = true
				if w.staff > best {
					best = w.staff
				}
			}
		}
		if !covered {
			continue
		}
		if n := len(result); n > 0 && result[n-1].end == from && result[n-1].staff == best {
			result[n-1].end = to
			continue
		}
		result = append(result, window{from, to, best})
	}
	return result
}

// addWindow 同一天完全相同的窗口只保留一个，人数取较大值
func addWindow(windows []window, w window) []window {
	for i := range windows {
		if windows[i].start == w.start && windows[i].end == w.end {
			if w.staff > windows[i].staff {
				windows[i].staff = w.staff
			}
			return windows
		}
	}
	return append(windows, w)
}

func appendWindowSlot(slots []model.DemandSlot, day time.Time, w window, kind model.ShiftKind) []model.DemandSlot {
	if w.staff <= 0 {
		return slots
	}
	date := model.FormatDate(day)
	return append(slots, model.DemandSlot{
		ID:       fmt.Sprintf("%s/%s/%s-%s", date, kind, w.start, w.end),
		Date:     date,
		Start:    w.start.On(day),
		End:      w.end.On(day),
		Kind:     kind,
		Required: w.staff,
	})
}

// guardSlots 将值班按午夜拆分为多个日期相邻的时段，只保留周期内的部分
func (b *Builder) guardSlots(index int, g model.GuardPeriod) []model.DemandSlot {
	if g.MinStaff <= 0 {
		return nil
	}
	guardID := g.ID
	if guardID == "" {
		guardID = fmt.Sprintf("guard-%d", index)
	}

	var slots []model.DemandSlot
	cur, end := g.Start.UTC(), g.End.UTC()
	for part := 0; cur.Before(end); part++ {
		next := model.DayStart(cur).AddDate(0, 0, 1)
		if next.After(end) {
			next = end
		}
		date := model.FormatDate(cur)
		if b.horizon.Contains(date) {
			slots = append(slots, model.DemandSlot{
				ID:       fmt.Sprintf("%s/%s/%s/%d", date, model.KindGuard, guardID, part),
				Date:     date,
				Start:    cur,
				End:      next,
				Kind:     model.KindGuard,
				Required: g.MinStaff,
				GuardID:  guardID,
			})
		}
		cur = next
	}
	return slots
}

// Sort 按日期、开始时间排序；同时开始时需求人数多的在前
func Sort(slots []model.DemandSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Required != b.Required {
			return a.Required > b.Required
		}
		return a.ID < b.ID
	})
}
