// Package validator 分析排班结果，生成按严重程度排序的冲突报告
package validator

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/pharmashift/pkg/model"
)

// maxSuggestedEmployees 每条冲突最多推荐的替补员工数
const maxSuggestedEmployees = 3

// DetectorConfig 检测器配置
type DetectorConfig struct {
	SiteID             uuid.UUID
	MinRestHours       int // 最小休息时间（小时）
	MaxConsecutiveDays int // 最大连续工作天数
}

// ConfigFrom 从算法配置构造检测器配置
func ConfigFrom(siteID uuid.UUID, cfg model.AlgorithmConfig) *DetectorConfig {
	return &DetectorConfig{
		SiteID:             siteID,
		MinRestHours:       cfg.MinRestHours,
		MaxConsecutiveDays: cfg.MaxConsecutiveDays,
	}
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	d := model.DefaultAlgorithmConfig()
	return &DetectorConfig{
		MinRestHours:       d.MinRestHours,
		MaxConsecutiveDays: d.MaxConsecutiveDays,
	}
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

// analysis 单次检测的中间数据
type analysis struct {
	shifts []model.Shift
	roster []*model.Employee
	// 员工 -> 班次下标（按开始时间）
	byEmp map[uuid.UUID][]int
	// 员工 -> 日期 -> 分钟
	minutes  map[uuid.UUID]map[string]int
	pending  map[int]bool
	conflict map[int]bool
}

// DetectAll 检测全部冲突，并把受影响班次的状态改写为 pending 或 conflict。
// 除状态外不修改班次。
func (d *ConflictDetector) DetectAll(shifts []model.Shift, slots []model.DemandSlot, roster []*model.Employee) []model.Conflict {
	a := d.prepare(shifts, roster)

	conflicts := make([]model.Conflict, 0)
	conflicts = append(conflicts, d.detectCoverage(a, slots)...)

	for _, emp := range a.roster {
		if len(a.byEmp[emp.ID]) == 0 {
			continue
		}
		conflicts = append(conflicts, d.detectRestViolations(a, emp)...)
		conflicts = append(conflicts, d.detectHourOverruns(a, emp)...)
		conflicts = append(conflicts, d.detectConsecutiveDays(a, emp)...)
	}

	for i := range shifts {
		switch {
		case a.conflict[i]:
			shifts[i].Status = model.StatusConflict
		case a.pending[i]:
			shifts[i].Status = model.StatusPending
		}
	}

	SortConflicts(conflicts)
	return conflicts
}

func (d *ConflictDetector) prepare(shifts []model.Shift, roster []*model.Employee) *analysis {
	a := &analysis{
		shifts:   shifts,
		byEmp:    make(map[uuid.UUID][]int),
		minutes:  make(map[uuid.UUID]map[string]int),
		pending:  make(map[int]bool),
		conflict: make(map[int]bool),
	}

	a.roster = make([]*model.Employee, len(roster))
	copy(a.roster, roster)
	sort.Slice(a.roster, func(i, j int) bool { return a.roster[i].ID.String() < a.roster[j].ID.String() })

	for i := range shifts {
		s := &shifts[i]
		a.byEmp[s.EmployeeID] = append(a.byEmp[s.EmployeeID], i)
		if a.minutes[s.EmployeeID] == nil {
			a.minutes[s.EmployeeID] = make(map[string]int)
		}
		for date, m := range s.Range().MinutesByDate() {
			a.minutes[s.EmployeeID][date] += m
		}
	}
	for _, idx := range a.byEmp {
		sort.SliceStable(idx, func(i, j int) bool { return shifts[idx[i]].Start.Before(shifts[idx[j]].Start) })
	}
	return a
}

// detectCoverage 每个人手不足的时段生成一条冲突
func (d *ConflictDetector) detectCoverage(a *analysis, slots []model.DemandSlot) []model.Conflict {
	covering := make(map[string][]int)
	for i := range a.shifts {
		for _, id := range a.shifts[i].SlotIDs {
			covering[id] = append(covering[id], i)
		}
	}

	var conflicts []model.Conflict
	for i := range slots {
		slot := &slots[i]
		assigned := len(covering[slot.ID])
		if assigned >= slot.Required {
			continue
		}
		for _, idx := range covering[slot.ID] {
			a.pending[idx] = true
		}

		short := slot.Required - assigned
		conflicts = append(conflicts, model.Conflict{
			ID:       model.StableID("conflict", string(model.ConflictInsufficientCoverage), slot.ID),
			Kind:     model.ConflictInsufficientCoverage,
			Severity: coverageSeverity(float64(short) / float64(slot.Required)),
			Date:     slot.Date,
			SlotID:   slot.ID,
			Message: fmt.Sprintf("%s %s-%s 需要 %d 人，仅安排 %d 人",
				slot.Date, slot.Start.Format("15:04"), slot.End.Format("15:04"), slot.Required, assigned),
			Suggestions: d.coverageSuggestions(a, slot, covering[slot.ID]),
		})
	}
	return conflicts
}

// coverageSeverity 缺员比例 ≥50% 为 critical，≥25% 为 high，其余 medium
func coverageSeverity(shortRatio float64) model.Severity {
	switch {
	case shortRatio >= 0.5:
		return model.SeverityCritical
	case shortRatio >= 0.25:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// detectRestViolations 相邻两段值勤的间隔小于最小休息时间；首尾相接的班次视为同一段
func (d *ConflictDetector) detectRestViolations(a *analysis, emp *model.Employee) []model.Conflict {
	idx := a.byEmp[emp.ID]
	minRest := time.Duration(d.config.MinRestHours) * time.Hour

	var conflicts []model.Conflict
	blockEnd := a.shifts[idx[0]].End
	prev := idx[0]
	for _, i := range idx[1:] {
		s := &a.shifts[i]
		switch {
		case s.Start.Equal(blockEnd):
			blockEnd = s.End
		case s.Start.Before(blockEnd) || s.Start.Sub(blockEnd) < minRest:
			gap := s.Start.Sub(blockEnd)
			a.conflict[i] = true
			a.conflict[prev] = true
			empID, shiftID := emp.ID, s.ID
			conflicts = append(conflicts, model.Conflict{
				ID:         model.StableID("conflict", string(model.ConflictInsufficientRest), emp.ID.String(), s.ID.String()),
				Kind:       model.ConflictInsufficientRest,
				Severity:   model.SeverityHigh,
				Date:       s.Date,
				EmployeeID: &empID,
				ShiftID:    &shiftID,
				Message: fmt.Sprintf("%s 在 %s 与 %s 的班次间隔 %.1f 小时，少于 %d 小时",
					emp.Name, a.shifts[prev].Date, s.Date, gap.Hours(), d.config.MinRestHours),
				Suggestions: []string{
					fmt.Sprintf("调整 %s 的班次，使两段值勤至少间隔 %d 小时", emp.Name, d.config.MinRestHours),
					fmt.Sprintf("将 %s 的 %s 班次改派给其他员工", emp.Name, s.Date),
				},
			})
			if s.End.After(blockEnd) {
				blockEnd = s.End
			}
		default:
			blockEnd = s.End
		}
		prev = i
	}
	return conflicts
}

// detectHourOverruns 任一周期窗口内累计工时超过上限；超出 20% 以上为 critical
func (d *ConflictDetector) detectHourOverruns(a *analysis, emp *model.Employee) []model.Conflict {
	dates := sortedDates(a.minutes[emp.ID])

	var conflicts []model.Conflict
	for _, p := range model.Periods {
		totals := make(map[string]int)
		lastDate := make(map[string]string)
		var keys []string
		for _, date := range dates {
			day, _ := model.ParseDate(date)
			key := model.PeriodKey(p, day)
			if _, seen := totals[key]; !seen {
				keys = append(keys, key)
			}
			totals[key] += a.minutes[emp.ID][date]
			lastDate[key] = date
		}

		limit := emp.Caps.Limit(p) * 60
		for _, key := range keys {
			used := totals[key]
			if used <= limit {
				continue
			}

			severity := model.SeverityCritical
			if limit > 0 && float64(used-limit)/float64(limit) <= 0.2 {
				severity = model.SeverityHigh
			}

			affected := d.shiftsInWindow(a, emp.ID, p, key)
			for _, i := range affected {
				a.conflict[i] = true
			}
			empID := emp.ID
			c := model.Conflict{
				ID:         model.StableID("conflict", string(model.ConflictHourOverrun), emp.ID.String(), string(p), key),
				Kind:       model.ConflictHourOverrun,
				Severity:   severity,
				Date:       lastDate[key],
				EmployeeID: &empID,
				Message: fmt.Sprintf("%s 在%s周期 %s 内排班 %.1f 小时，超过上限 %d 小时",
					emp.Name, p.Label(), key, float64(used)/60, emp.Caps.Limit(p)),
				Suggestions: d.overrunSuggestions(a, emp, p, lastDate[key]),
			}
			if len(affected) > 0 {
				shiftID := a.shifts[affected[len(affected)-1]].ID
				c.ShiftID = &shiftID
			}
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// shiftsInWindow 员工在周期窗口内有工作时长的班次
func (d *ConflictDetector) shiftsInWindow(a *analysis, empID uuid.UUID, p model.Period, key string) []int {
	var result []int
	for _, i := range a.byEmp[empID] {
		for date := range a.shifts[i].Range().MinutesByDate() {
			day, _ := model.ParseDate(date)
			if model.PeriodKey(p, day) == key {
				result = append(result, i)
				break
			}
		}
	}
	return result
}

// detectConsecutiveDays 连续工作天数超过上限的每一段生成一条冲突
func (d *ConflictDetector) detectConsecutiveDays(a *analysis, emp *model.Employee) []model.Conflict {
	dates := sortedDates(a.minutes[emp.ID])
	limit := d.config.MaxConsecutiveDays

	var conflicts []model.Conflict
	runStart := 0
	for i := 1; i <= len(dates); i++ {
		if i < len(dates) && isNextDay(dates[i-1], dates[i]) {
			continue
		}
		run := dates[runStart:i]
		if len(run) > limit {
			excess := make(map[string]bool)
			for _, date := range run[limit:] {
				excess[date] = true
			}
			var shiftID *uuid.UUID
			for _, idx := range a.byEmp[emp.ID] {
				for date := range a.shifts[idx].Range().MinutesByDate() {
					if excess[date] {
						a.conflict[idx] = true
						if shiftID == nil {
							id := a.shifts[idx].ID
							shiftID = &id
						}
						break
					}
				}
			}
			empID := emp.ID
			conflicts = append(conflicts, model.Conflict{
				ID:         model.StableID("conflict", string(model.ConflictConsecutiveWorkdays), emp.ID.String(), run[0]),
				Kind:       model.ConflictConsecutiveWorkdays,
				Severity:   model.SeverityMedium,
				Date:       run[limit],
				EmployeeID: &empID,
				ShiftID:    shiftID,
				Message: fmt.Sprintf("%s 从 %s 到 %s 连续工作 %d 天，超过上限 %d 天",
					emp.Name, run[0], run[len(run)-1], len(run), limit),
				Suggestions: []string{
					fmt.Sprintf("在 %s 为 %s 安排休息日", run[limit], emp.Name),
				},
			})
		}
		runStart = i
	}
	return conflicts
}

// spareCandidate 有剩余周工时的员工
type spareCandidate struct {
	emp   *model.Employee
	spare int // 分钟
}

// spareEmployees 在 date 所在周仍有至少 need 分钟剩余工时的可排班员工
func (d *ConflictDetector) spareEmployees(a *analysis, date string, need int, exclude func(*model.Employee) bool) []spareCandidate {
	day, err := model.ParseDate(date)
	if err != nil {
		return nil
	}
	week := model.PeriodKey(model.PeriodWeek, day)

	var result []spareCandidate
	for _, emp := range a.roster {
		if !emp.IsSchedulable(d.config.SiteID) || emp.IsOnHoliday(date) {
			continue
		}
		if exclude != nil && exclude(emp) {
			continue
		}
		used := 0
		for dt, m := range a.minutes[emp.ID] {
			dd, _ := model.ParseDate(dt)
			if model.PeriodKey(model.PeriodWeek, dd) == week {
				used += m
			}
		}
		spare := emp.Caps.Weekly*60 - used
		if spare >= need && spare > 0 {
			result = append(result, spareCandidate{emp: emp, spare: spare})
		}
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].spare > result[j].spare })
	if len(result) > maxSuggestedEmployees {
		result = result[:maxSuggestedEmployees]
	}
	return result
}

func (d *ConflictDetector) coverageSuggestions(a *analysis, slot *model.DemandSlot, assigned []int) []string {
	busy := make(map[uuid.UUID]bool)
	for _, i := range assigned {
		busy[a.shifts[i].EmployeeID] = true
	}
	r := slot.Range()
	overlapping := func(emp *model.Employee) bool {
		if busy[emp.ID] {
			return true
		}
		for _, i := range a.byEmp[emp.ID] {
			if a.shifts[i].Range().Overlaps(r) {
				return true
			}
		}
		return false
	}

	var suggestions []string
	for _, c := range d.spareEmployees(a, slot.Date, slot.Minutes(), overlapping) {
		suggestions = append(suggestions, fmt.Sprintf("可将该时段指派给 %s（本周剩余 %.1f 小时，需确认休息间隔）",
			c.emp.Name, float64(c.spare)/60))
	}
	if slot.Kind == model.KindGuard {
		suggestions = append(suggestions, "拆分值班时段，由多名员工轮流承担")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, "增加该门店的可排班人员，或降低该时段的最低在岗人数")
	}
	return suggestions
}

func (d *ConflictDetector) overrunSuggestions(a *analysis, emp *model.Employee, p model.Period, date string) []string {
	suggestions := []string{
		fmt.Sprintf("将 %s 在%s周期内的部分班次转给其他员工", emp.Name, p.Label()),
	}
	self := func(e *model.Employee) bool { return e.ID == emp.ID }
	for _, c := range d.spareEmployees(a, date, 60, self) {
		suggestions = append(suggestions, fmt.Sprintf("%s 本周仍有 %.1f 小时剩余工时", c.emp.Name, float64(c.spare)/60))
	}
	return suggestions
}

// SortConflicts 严重程度降序，其次按日期、类型、时段
func SortConflicts(conflicts []model.Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.SlotID != b.SlotID {
			return a.SlotID < b.SlotID
		}
		return a.ID.String() < b.ID.String()
	})
}

func sortedDates(m map[string]int) []string {
	dates := make([]string, 0, len(m))
	for d, minutes := range m {
		if minutes > 0 {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates
}

func isNextDay(a, b string) bool {
	return model.NextDate(a) == b
}
