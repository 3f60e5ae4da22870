package stats

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/paiban/pharmashift/pkg/model"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	AvgHoursPerEmployee float64 `json:"avg_hours_per_employee"`
	WorkloadStdDev      float64 `json:"workload_std_dev"`
	WorkloadGini        float64 `json:"workload_gini"` // 0=完全公平, 1=完全不公平

	GuardEvenness   float64 `json:"guard_evenness"`   // 值班工时均衡度 [0,1]
	HolidayEvenness float64 `json:"holiday_evenness"` // 节假日工时均衡度 [0,1]
	CapAdherence    float64 `json:"cap_adherence"`    // 未超上限员工比例 [0,1]

	EmployeeStats []model.EmployeeStats `json:"employee_stats"`
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct {
	siteID uuid.UUID
}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer(siteID uuid.UUID) *FairnessAnalyzer {
	return &FairnessAnalyzer{siteID: siteID}
}

// Analyze 分析排班公平性。均衡度和上限遵守率只统计本门店可排班员工。
func (f *FairnessAnalyzer) Analyze(shifts []model.Shift, roster []*model.Employee) *FairnessMetrics {
	employeeStats := f.EmployeeStats(shifts, roster)

	byID := make(map[uuid.UUID]*model.EmployeeStats, len(employeeStats))
	for i := range employeeStats {
		byID[employeeStats[i].EmployeeID] = &employeeStats[i]
	}

	var hours, guard, holiday []float64
	within := 0
	for _, emp := range roster {
		if !emp.IsSchedulable(f.siteID) {
			continue
		}
		stat := byID[emp.ID]
		hours = append(hours, stat.TotalHours)
		guard = append(guard, stat.GuardHours)
		holiday = append(holiday, stat.HolidayHours)
		if stat.WithinCaps {
			within++
		}
	}

	metrics := &FairnessMetrics{
		AvgHoursPerEmployee: calculateMean(hours),
		WorkloadGini:        calculateGini(hours),
		GuardEvenness:       evenness(guard),
		HolidayEvenness:     evenness(holiday),
		CapAdherence:        1,
		EmployeeStats:       employeeStats,
	}
	metrics.WorkloadStdDev = math.Sqrt(calculateVariance(hours, metrics.AvgHoursPerEmployee))
	if len(hours) > 0 {
		metrics.CapAdherence = float64(within) / float64(len(hours))
	}
	return metrics
}

// EmployeeStats 按员工汇总班次。包含本门店可排班员工和有班次的员工，按 ID 排序。
func (f *FairnessAnalyzer) EmployeeStats(shifts []model.Shift, roster []*model.Employee) []model.EmployeeStats {
	byEmp := make(map[uuid.UUID][]*model.Shift)
	for i := range shifts {
		byEmp[shifts[i].EmployeeID] = append(byEmp[shifts[i].EmployeeID], &shifts[i])
	}

	result := make([]model.EmployeeStats, 0, len(roster))
	for _, emp := range roster {
		list := byEmp[emp.ID]
		if len(list) == 0 && !emp.IsSchedulable(f.siteID) {
			continue
		}
		result = append(result, employeeStat(emp, list))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EmployeeID.String() < result[j].EmployeeID.String()
	})
	return result
}

func employeeStat(emp *model.Employee, shifts []*model.Shift) model.EmployeeStats {
	stat := model.EmployeeStats{
		EmployeeID: emp.ID,
		Name:       emp.Name,
		Shifts:     len(shifts),
	}

	minutes := make(map[string]int)
	guards := make(map[string]bool)
	holidays := make(map[string]bool)
	for _, s := range shifts {
		h := s.Hours()
		stat.TotalHours += h
		switch s.Kind {
		case model.KindGuard:
			stat.GuardHours += h
			key := s.GuardID
			if key == "" {
				key = s.ID.String()
			}
			guards[key] = true
		case model.KindHoliday:
			stat.HolidayHours += h
			holidays[s.Date] = true
		default:
			stat.RegularHours += h
		}
		for date, m := range s.Range().MinutesByDate() {
			minutes[date] += m
		}
	}

	stat.Guards = len(guards)
	stat.Holidays = len(holidays)
	for _, m := range minutes {
		if m > 0 {
			stat.DaysWorked++
		}
	}
	stat.WithinCaps = WithinCaps(emp.Caps, minutes)
	return stat
}

// WithinCaps 检查按日期汇总的分钟数在每个周期窗口内都不超过上限
func WithinCaps(caps model.HourCaps, minutesByDate map[string]int) bool {
	for _, p := range model.Periods {
		totals := make(map[string]int)
		for date, m := range minutesByDate {
			day, err := model.ParseDate(date)
			if err != nil {
				continue
			}
			totals[model.PeriodKey(p, day)] += m
		}
		limit := caps.Limit(p) * 60
		for _, used := range totals {
			if used > limit {
				return false
			}
		}
	}
	return true
}

// evenness 1 减变异系数的平方，截断到 [0,1]；全为 0 时视为完全均衡
func evenness(values []float64) float64 {
	mean := calculateMean(values)
	if mean == 0 {
		return 1
	}
	cv2 := calculateVariance(values, mean) / (mean * mean)
	return math.Max(0, math.Min(1, 1-cv2))
}

// calculateMean 计算平均值
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算方差
func calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateGini 计算基尼系数
func calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}
	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}
