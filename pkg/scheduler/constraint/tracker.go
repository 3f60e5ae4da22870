package constraint

import (
	"time"

	"github.com/google/uuid"

	"github.com/paiban/pharmashift/pkg/model"
)

// Settings 累加器使用的限制参数
type Settings struct {
	MinRest            time.Duration
	MaxConsecutiveDays int
}

// SettingsFrom 从算法配置提取限制参数
func SettingsFrom(cfg model.AlgorithmConfig) Settings {
	return Settings{
		MinRest:            time.Duration(cfg.MinRestHours) * time.Hour,
		MaxConsecutiveDays: cfg.MaxConsecutiveDays,
	}
}

// empState 单个员工的累计状态
type empState struct {
	used           map[model.Period]map[string]int // 周期 -> 窗口键 -> 分钟
	lastEnd        time.Time
	lastDay        time.Time
	run            int // 截至 lastDay 的连续工作天数
	guardMinutes   int
	holidayMinutes int
}

// Tracker 单次排班运行内的员工工时累加器。
// 由分配器独占，按时间顺序提交分配，所有查询均为 O(1)。
type Tracker struct {
	siteID    uuid.UUID
	settings  Settings
	employees map[uuid.UUID]*model.Employee
	states    map[uuid.UUID]*empState

	eligible     int
	totalGuard   int
	totalHoliday int
}

// NewTracker 创建累加器
func NewTracker(siteID uuid.UUID, roster []*model.Employee, settings Settings) *Tracker {
	t := &Tracker{
		siteID:    siteID,
		settings:  settings,
		employees: make(map[uuid.UUID]*model.Employee, len(roster)),
		states:    make(map[uuid.UUID]*empState, len(roster)),
	}
	for _, e := range roster {
		t.employees[e.ID] = e
		t.states[e.ID] = &empState{used: make(map[model.Period]map[string]int, len(model.Periods))}
		if e.IsSchedulable(siteID) {
			t.eligible++
		}
	}
	return t
}

// SiteID 当前门店
func (t *Tracker) SiteID() uuid.UUID {
	return t.siteID
}

func (t *Tracker) state(id uuid.UUID) *empState {
	s, ok := t.states[id]
	if !ok {
		s = &empState{used: make(map[model.Period]map[string]int)}
		t.states[id] = s
	}
	return s
}

// UsedMinutes 员工在 slot 所在周期窗口内已分配的分钟数
func (t *Tracker) UsedMinutes(id uuid.UUID, p model.Period, slot *model.DemandSlot) int {
	return t.state(id).used[p][model.PeriodKey(p, slot.Start)]
}

// RemainingCapacity 员工在 slot 所在周期窗口内的剩余工时，可能为负（允许加班时）
func (t *Tracker) RemainingCapacity(id uuid.UUID, p model.Period, slot *model.DemandSlot) time.Duration {
	emp := t.employees[id]
	if emp == nil {
		return 0
	}
	remaining := emp.Caps.Limit(p)*60 - t.UsedMinutes(id, p, slot)
	return time.Duration(remaining) * time.Minute
}

// FitsCaps 检查 slot 是否在所有周期的剩余工时之内，不满足时返回第一个超限的周期
func (t *Tracker) FitsCaps(id uuid.UUID, slot *model.DemandSlot) (bool, model.Period) {
	need := slot.End.Sub(slot.Start)
	for _, p := range model.Periods {
		if t.RemainingCapacity(id, p, slot) < need {
			return false, p
		}
	}
	return true, ""
}

// Headroom 各周期剩余工时占上限比例的最小值，范围 [0,1]
func (t *Tracker) Headroom(id uuid.UUID, slot *model.DemandSlot) float64 {
	emp := t.employees[id]
	if emp == nil {
		return 0
	}
	headroom := 1.0
	for _, p := range model.Periods {
		limit := emp.Caps.Limit(p) * 60
		if limit <= 0 {
			return 0
		}
		r := float64(limit-t.UsedMinutes(id, p, slot)) / float64(limit)
		if r < headroom {
			headroom = r
		}
	}
	if headroom < 0 {
		return 0
	}
	return headroom
}

// RestSatisfied 距上一班结束的间隔是否满足最小休息；
// 紧接上一班开始视为同一段连续值勤，与上一班重叠则不满足
func (t *Tracker) RestSatisfied(id uuid.UUID, slot *model.DemandSlot) bool {
	s := t.state(id)
	if s.lastEnd.IsZero() {
		return true
	}
	if s.lastEnd.Equal(slot.Start) {
		return true
	}
	if s.lastEnd.After(slot.Start) {
		return false
	}
	return slot.Start.Sub(s.lastEnd) >= t.settings.MinRest
}

// Extends slot 是否紧接该员工上一班
func (t *Tracker) Extends(id uuid.UUID, slot *model.DemandSlot) bool {
	s := t.state(id)
	return !s.lastEnd.IsZero() && s.lastEnd.Equal(slot.Start)
}

// ConsecutiveDaysOk 在 date 工作后连续工作天数是否不超过上限
func (t *Tracker) ConsecutiveDaysOk(id uuid.UUID, date string) bool {
	day, err := model.ParseDate(date)
	if err != nil {
		return false
	}
	return t.runIfWorked(t.state(id), day) <= t.settings.MaxConsecutiveDays
}

func (t *Tracker) runIfWorked(s *empState, day time.Time) int {
	if s.run == 0 {
		return 1
	}
	switch gap := int(day.Sub(s.lastDay).Hours() / 24); {
	case gap <= 0:
		return s.run
	case gap == 1:
		return s.run + 1
	default:
		return 1
	}
}

// IsOnPersonalHoliday 员工在该日是否个人休假
func (t *Tracker) IsOnPersonalHoliday(id uuid.UUID, date string) bool {
	emp := t.employees[id]
	return emp != nil && emp.IsOnHoliday(date)
}

// Commit 提交一次分配，更新累计值
func (t *Tracker) Commit(id uuid.UUID, slot *model.DemandSlot) {
	s := t.state(id)
	minutes := slot.Minutes()

	for _, p := range model.Periods {
		if s.used[p] == nil {
			s.used[p] = make(map[string]int)
		}
		s.used[p][model.PeriodKey(p, slot.Start)] += minutes
	}

	if slot.End.After(s.lastEnd) {
		s.lastEnd = slot.End
	}

	day := model.DayStart(slot.Start)
	if s.run == 0 || day.After(s.lastDay) {
		s.run = t.runIfWorked(s, day)
		s.lastDay = day
	}

	switch slot.Kind {
	case model.KindGuard:
		s.guardMinutes += minutes
		t.totalGuard += minutes
	case model.KindHoliday:
		s.holidayMinutes += minutes
		t.totalHoliday += minutes
	}
}

// GuardMinutes 员工累计值班分钟数
func (t *Tracker) GuardMinutes(id uuid.UUID) int {
	return t.state(id).guardMinutes
}

// HolidayMinutes 员工累计节假日分钟数
func (t *Tracker) HolidayMinutes(id uuid.UUID) int {
	return t.state(id).holidayMinutes
}

// MeanGuardMinutes 可排班员工的平均值班分钟数
func (t *Tracker) MeanGuardMinutes() float64 {
	if t.eligible == 0 {
		return 0
	}
	return float64(t.totalGuard) / float64(t.eligible)
}

// MeanHolidayMinutes 可排班员工的平均节假日分钟数
func (t *Tracker) MeanHolidayMinutes() float64 {
	if t.eligible == 0 {
		return 0
	}
	return float64(t.totalHoliday) / float64(t.eligible)
}
