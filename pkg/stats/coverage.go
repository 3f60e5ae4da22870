// Package stats 提供排班统计分析功能
package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paiban/pharmashift/pkg/model"
)

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	SlotsTotal      int     `json:"slots_total"`      // 需求时段数
	SlotsCovered    int     `json:"slots_covered"`    // 满员时段数
	OverallCoverage float64 `json:"overall_coverage"` // 满员时段比例 [0,1]

	// 人时满足度：已分配人时 / 需求人时
	DemandSatisfaction float64 `json:"demand_satisfaction"`

	DailyCoverage map[string]DayCoverage      `json:"daily_coverage"`
	KindCoverage  map[model.ShiftKind]float64 `json:"kind_coverage"`
	Understaffed  []UnderstaffedSlot          `json:"understaffed"`
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Date         string  `json:"date"`
	Slots        int     `json:"slots"`
	Covered      int     `json:"covered"`
	CoverageRate float64 `json:"coverage_rate"`
	StaffCount   int     `json:"staff_count"` // 当日上班的不同员工数
	TotalHours   float64 `json:"total_hours"`
}

// UnderstaffedSlot 人手不足时段
type UnderstaffedSlot struct {
	SlotID   string          `json:"slot_id"`
	Date     string          `json:"date"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Kind     model.ShiftKind `json:"kind"`
	Required int             `json:"required"`
	Assigned int             `json:"assigned"`
	Shortage int             `json:"shortage"`
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

// Analyze 按时段统计覆盖情况。没有需求时段时覆盖率为 1。
func (c *CoverageAnalyzer) Analyze(slots []model.DemandSlot, shifts []model.Shift) *CoverageMetrics {
	metrics := &CoverageMetrics{
		SlotsTotal:         len(slots),
		OverallCoverage:    1,
		DemandSatisfaction: 1,
		DailyCoverage:      make(map[string]DayCoverage),
		KindCoverage:       make(map[model.ShiftKind]float64),
		Understaffed:       make([]UnderstaffedSlot, 0),
	}
	if len(slots) == 0 {
		return metrics
	}

	assigned := AssignedBySlot(shifts)

	kindTotal := make(map[model.ShiftKind]int)
	kindCovered := make(map[model.ShiftKind]int)
	var requiredMinutes, assignedMinutes int

	for i := range slots {
		slot := &slots[i]
		n := assigned[slot.ID]
		day := metrics.DailyCoverage[slot.Date]
		day.Date = slot.Date
		day.Slots++
		kindTotal[slot.Kind]++

		requiredMinutes += slot.Required * slot.Minutes()
		assignedMinutes += min(n, slot.Required) * slot.Minutes()

		if n >= slot.Required {
			metrics.SlotsCovered++
			day.Covered++
			kindCovered[slot.Kind]++
		} else {
			metrics.Understaffed = append(metrics.Understaffed, UnderstaffedSlot{
				SlotID:   slot.ID,
				Date:     slot.Date,
				Start:    slot.Start.Format("15:04"),
				End:      slot.End.Format("15:04"),
				Kind:     slot.Kind,
				Required: slot.Required,
				Assigned: n,
				Shortage: slot.Required - n,
			})
		}
		metrics.DailyCoverage[slot.Date] = day
	}

	staff := make(map[string]map[string]bool)
	for i := range shifts {
		s := &shifts[i]
		day, ok := metrics.DailyCoverage[s.Date]
		if !ok {
			continue
		}
		if staff[s.Date] == nil {
			staff[s.Date] = make(map[string]bool)
		}
		staff[s.Date][s.EmployeeID.String()] = true
		day.TotalHours += s.Hours()
		metrics.DailyCoverage[s.Date] = day
	}

	for date, day := range metrics.DailyCoverage {
		day.StaffCount = len(staff[date])
		day.CoverageRate = float64(day.Covered) / float64(day.Slots)
		metrics.DailyCoverage[date] = day
	}
	for kind, total := range kindTotal {
		metrics.KindCoverage[kind] = float64(kindCovered[kind]) / float64(total)
	}

	metrics.OverallCoverage = float64(metrics.SlotsCovered) / float64(metrics.SlotsTotal)
	if requiredMinutes > 0 {
		metrics.DemandSatisfaction = float64(assignedMinutes) / float64(requiredMinutes)
	}
	return metrics
}

// AssignedBySlot 统计每个时段被多少个班次覆盖
func AssignedBySlot(shifts []model.Shift) map[string]int {
	assigned := make(map[string]int)
	for i := range shifts {
		for _, id := range shifts[i].SlotIDs {
			assigned[id]++
		}
	}
	return assigned
}

// GenerateCoverageReport 生成覆盖率报告文本
func (c *CoverageAnalyzer) GenerateCoverageReport(metrics *CoverageMetrics) string {
	var sb strings.Builder

	sb.WriteString("=== 排班覆盖率报告 ===\n\n")
	sb.WriteString(fmt.Sprintf("满员时段: %d/%d (%.1f%%)\n", metrics.SlotsCovered, metrics.SlotsTotal, metrics.OverallCoverage*100))
	sb.WriteString(fmt.Sprintf("人时满足度: %.1f%%\n", metrics.DemandSatisfaction*100))

	if len(metrics.DailyCoverage) > 0 {
		sb.WriteString("\n每日覆盖:\n")
		dates := make([]string, 0, len(metrics.DailyCoverage))
		for d := range metrics.DailyCoverage {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		for _, d := range dates {
			day := metrics.DailyCoverage[d]
			sb.WriteString(fmt.Sprintf("  %s: %d/%d 时段满员, %d 人, %.1f 小时\n",
				d, day.Covered, day.Slots, day.StaffCount, day.TotalHours))
		}
	}

	if len(metrics.Understaffed) > 0 {
		sb.WriteString(fmt.Sprintf("\n人手不足时段 (%d):\n", len(metrics.Understaffed)))
		for _, u := range metrics.Understaffed {
			sb.WriteString(fmt.Sprintf("  %s %s-%s: 需要 %d 人, 已安排 %d 人, 缺 %d 人\n",
				u.Date, u.Start, u.End, u.Required, u.Assigned, u.Shortage))
		}
	}

	return sb.String()
}
